package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"chartscope/internal/core"
	"chartscope/internal/query"
)

// selectorData feeds the country/year picker partial.
type selectorData struct {
	Countries []string
	Years     []int
	Current   core.Selection
	Error     string
}

func (s *Server) selectorFor(ctx context.Context, sel core.Selection) (selectorData, error) {
	countries, err := s.store.Countries(ctx)
	if err != nil {
		return selectorData{}, err
	}
	years, err := s.store.Years(ctx, sel.Country)
	if err != nil {
		return selectorData{}, err
	}
	return selectorData{Countries: countries, Years: years, Current: sel}, nil
}

// handleDashboard renders the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	sel := s.selection.Current()
	picker, err := s.selectorFor(r.Context(), sel)
	if err != nil {
		slog.ErrorContext(r.Context(), "Selector data error", "error", err)
		http.Error(w, "snapshot store unavailable", http.StatusInternalServerError)
		return
	}

	data := struct {
		Selector selectorData
		Current  core.Selection
	}{Selector: picker, Current: sel}

	if err := s.templates.ExecuteTemplate(w, "dashboard_page", data); err != nil {
		slog.ErrorContext(r.Context(), "Dashboard template execution failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleSelect applies a new (country, year) selection. On success it
// returns the refreshed picker and fires the selection changed event so
// every panel re-fetches itself.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Malformed request</div>`))
		return
	}

	country := sanitizeInput(r.Form.Get("country"))
	yearStr := sanitizeInput(r.Form.Get("year"))

	sel := s.selection.Current()
	if country != "" {
		sel.Country = country
	}
	if yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			s.renderSelectorError(w, r, http.StatusUnprocessableEntity, "Year must be a number")
			return
		}
		sel.Year = y
	}

	// A country change may leave the old year out of range; snap to the
	// latest year available for the new country.
	if country != "" && country != s.selection.Current().Country {
		if years, err := s.store.Years(r.Context(), country); err == nil && len(years) > 0 && yearStr == "" {
			sel.Year = years[len(years)-1]
		}
	}

	if err := s.selection.Set(r.Context(), sel); err != nil {
		slog.WarnContext(r.Context(), "Selection rejected", "error", err, "country", sel.Country, "year", sel.Year)
		s.renderSelectorError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	picker, err := s.selectorFor(r.Context(), sel)
	if err != nil {
		slog.ErrorContext(r.Context(), "Selector data error", "error", err)
		http.Error(w, "snapshot store unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("HX-Trigger", hxTrigger(selectionChangedEvent, map[string]any{
		"country": sel.Country,
		"year":    sel.Year,
	}))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "selector_form", picker); err != nil {
		slog.ErrorContext(r.Context(), "Selector template failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// renderSelectorError re-renders the picker with an inline error, keeping
// the current selection untouched.
func (s *Server) renderSelectorError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	picker, err := s.selectorFor(r.Context(), s.selection.Current())
	if err != nil {
		http.Error(w, msg, status)
		return
	}
	picker.Error = msg

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "selector_form", picker); err != nil {
		slog.ErrorContext(r.Context(), "Selector template failed", "error", err)
	}
}

// handleSummaryPanel renders the headline stats partial.
func (s *Server) handleSummaryPanel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sel := s.viewSelection(r)
	sum, ok, err := s.getSummary(r.Context(), sel)

	data := struct {
		Country         string
		Year            int
		HasData         bool
		TotalEntries    string
		TotalStreams    string
		UniqueArtists   string
		UniqueTracks    string
		AvgRank         string
		DominantGenre   string
		ArtistDiversity string
	}{Country: sel.Country, Year: sel.Year}

	if err != nil {
		slog.ErrorContext(r.Context(), "Summary error", "error", err, "country", sel.Country, "year", sel.Year)
	} else if ok {
		data.HasData = true
		data.TotalEntries = formatCount(sum.TotalEntries)
		data.TotalStreams = formatCount(sum.TotalStreams)
		data.UniqueArtists = formatCount(sum.UniqueArtists)
		data.UniqueTracks = formatCount(sum.UniqueTracks)
		data.AvgRank = formatRatio(sum.AvgRank)
		data.DominantGenre = sum.DominantGenre
		data.ArtistDiversity = formatRatio(sum.ArtistDiversity)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "summary_panel", data); err != nil {
		slog.ErrorContext(r.Context(), "Summary template failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleTracksPanel renders the ranked track table partial.
func (s *Server) handleTracksPanel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sel := s.viewSelection(r)
	limit := parseIntParam(r, "limit", query.DefaultTrackLimit)

	rows, err := s.getTracks(r.Context(), sel, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Top tracks error", "error", err, "country", sel.Country, "year", sel.Year)
		rows = nil
	}

	var maxStreams int64
	for _, t := range rows {
		if t.StreamsSum > maxStreams {
			maxStreams = t.StreamsSum
		}
	}

	type trackView struct {
		Rank        int
		TrackName   string
		ArtistName  string
		Streams     string
		BestRank    int
		DaysCharted int
		Width       int
	}
	data := struct {
		Country string
		Year    int
		Tracks  []trackView
	}{Country: sel.Country, Year: sel.Year}
	for _, t := range rows {
		data.Tracks = append(data.Tracks, trackView{
			Rank:        t.Rank,
			TrackName:   t.TrackName,
			ArtistName:  t.ArtistName,
			Streams:     formatCount(t.StreamsSum),
			BestRank:    t.BestRank,
			DaysCharted: t.DaysCharted,
			Width:       barWidth(t.StreamsSum, maxStreams),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "tracks_panel", data); err != nil {
		slog.ErrorContext(r.Context(), "Tracks template failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleArtistsPanel renders the per-artist breakdown partial.
func (s *Server) handleArtistsPanel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sel := s.viewSelection(r)
	limit := parseIntParam(r, "limit", query.DefaultTrackLimit)

	rows, err := s.getArtists(r.Context(), sel, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Top artists error", "error", err, "country", sel.Country, "year", sel.Year)
		rows = nil
	}

	var maxStreams int64
	for _, a := range rows {
		if a.StreamsSum > maxStreams {
			maxStreams = a.StreamsSum
		}
	}

	type artistView struct {
		Position    int
		ArtistName  string
		Streams     string
		BestRank    int
		TracksInTop int
		Width       int
	}
	data := struct {
		Country string
		Year    int
		Artists []artistView
	}{Country: sel.Country, Year: sel.Year}
	for i, a := range rows {
		data.Artists = append(data.Artists, artistView{
			Position:    i + 1,
			ArtistName:  a.ArtistName,
			Streams:     formatCount(a.StreamsSum),
			BestRank:    a.BestRank,
			TracksInTop: a.TracksInTop,
			Width:       barWidth(a.StreamsSum, maxStreams),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "artists_panel", data); err != nil {
		slog.ErrorContext(r.Context(), "Artists template failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleCountriesPanel renders the world ranking partial for a year.
func (s *Server) handleCountriesPanel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sel := s.viewSelection(r)
	year := sel.Year
	metric := query.Metric(sanitizeInput(r.URL.Query().Get("metric")))
	if metric == "" {
		metric = query.MetricStreams
	}
	n := parseIntParam(r, "n", query.DefaultCountryTop)

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	rows, err := s.engine.TopCountries(ctx, year, metric, n)
	if err != nil {
		slog.ErrorContext(r.Context(), "Top countries error", "error", err, "year", year, "metric", string(metric))
		rows = nil
	}

	var maxStreams int64
	for _, c := range rows {
		if c.TotalStreams > maxStreams {
			maxStreams = c.TotalStreams
		}
	}

	type countryView struct {
		Position int
		Country  string
		ISO3     string
		Streams  string
		Artists  string
		Tracks   string
		AvgRank  string
		Width    int
	}
	data := struct {
		Year      int
		Metric    string
		Countries []countryView
	}{Year: year, Metric: string(metric)}
	for i, c := range rows {
		data.Countries = append(data.Countries, countryView{
			Position: i + 1,
			Country:  c.Country,
			ISO3:     c.ISO3,
			Streams:  formatCount(c.TotalStreams),
			Artists:  formatCount(c.UniqueArtists),
			Tracks:   formatCount(c.UniqueTracks),
			AvgRank:  formatRatio(c.AvgRank),
			Width:    barWidth(c.TotalStreams, maxStreams),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "countries_panel", data); err != nil {
		slog.ErrorContext(r.Context(), "Countries template failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
