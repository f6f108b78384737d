package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"chartscope/internal/core"
	"chartscope/internal/query"
)

// Chart geometry for the inline SVG trend panel.
const (
	chartWidth   = 640
	chartHeight  = 260
	chartPadLeft = 56
	chartPadTop  = 16
	chartPadBot  = 32
)

// seriesPalette colors the trend lines; cycles when a window holds more
// artists than colors.
var seriesPalette = []string{
	"#4f8ef7", "#f76f4f", "#3dbd7d", "#b04ff7", "#f7c94f",
	"#4fd2f7", "#f74f9e", "#8ef74f", "#f7824f", "#4f5ef7",
}

// trendWindow resolves the chart window from query parameters, defaulting
// to the five years ending at the selected year.
func trendWindow(r *http.Request, sel core.Selection) core.YearWindow {
	from := parseIntParam(r, "from", sel.Year-4)
	to := parseIntParam(r, "to", sel.Year)
	return core.YearWindow{From: from, To: to}
}

// handleTrendPanel renders the multi-line artist trend chart partial.
func (s *Server) handleTrendPanel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sel := s.viewSelection(r)
	window := trendWindow(r, sel)
	topN := parseIntParam(r, "top", query.DefaultTrendSeries)

	view, err := s.getTrend(r.Context(), sel.Country, window, topN)
	if err != nil {
		slog.ErrorContext(r.Context(), "Trend error", "error", err,
			"country", sel.Country, "from", window.From, "to", window.To)
		view = query.TrendView{Country: sel.Country, Window: window}
	}

	data := buildTrendChart(view)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "trend_panel", data); err != nil {
		slog.ErrorContext(r.Context(), "Trend template failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleTrendJSON exposes the trend view as JSON for external tooling.
func (s *Server) handleTrendJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sel := s.viewSelection(r)
	window := trendWindow(r, sel)
	topN := parseIntParam(r, "top", query.DefaultTrendSeries)

	view, err := s.getTrend(r.Context(), sel.Country, window, topN)
	if err != nil {
		slog.ErrorContext(r.Context(), "Trend error", "error", err,
			"country", sel.Country, "from", window.From, "to", window.To)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}

type chartSeries struct {
	Name    string
	Color   string
	Points  string
	Streams string
}

type chartTick struct {
	X     int
	Label int
}

type trendChart struct {
	Country string
	From    int
	To      int
	HasData bool
	Width   int
	Height  int
	Series  []chartSeries
	Ticks   []chartTick
	YMax    string
	BaseY   int
}

// buildTrendChart maps the trend view onto SVG coordinates. Years spread
// across the x axis, streams scale linearly from zero to the window maximum.
func buildTrendChart(view query.TrendView) trendChart {
	chart := trendChart{
		Country: view.Country,
		From:    view.Window.From,
		To:      view.Window.To,
		Width:   chartWidth,
		Height:  chartHeight,
		BaseY:   chartHeight - chartPadBot,
	}

	var maxStreams int64
	for _, s := range view.Series {
		for _, p := range s.Points {
			if p.StreamsSum > maxStreams {
				maxStreams = p.StreamsSum
			}
		}
	}
	if maxStreams == 0 {
		return chart
	}
	chart.HasData = true
	chart.YMax = formatCount(maxStreams)

	plotW := chartWidth - chartPadLeft - 16
	plotH := chartHeight - chartPadTop - chartPadBot
	span := view.Window.To - view.Window.From

	xFor := func(year int) int {
		if span == 0 {
			return chartPadLeft + plotW/2
		}
		return chartPadLeft + (year-view.Window.From)*plotW/span
	}
	yFor := func(streams int64) int {
		return chartPadTop + plotH - int(streams*int64(plotH)/maxStreams)
	}

	for i, s := range view.Series {
		var b strings.Builder
		for j, p := range s.Points {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d,%d", xFor(p.Year), yFor(p.StreamsSum))
		}
		chart.Series = append(chart.Series, chartSeries{
			Name:    s.ArtistName,
			Color:   seriesPalette[i%len(seriesPalette)],
			Points:  b.String(),
			Streams: formatCount(s.TotalStreams),
		})
	}

	for year := view.Window.From; year <= view.Window.To; year++ {
		chart.Ticks = append(chart.Ticks, chartTick{X: xFor(year), Label: year})
	}

	return chart
}
