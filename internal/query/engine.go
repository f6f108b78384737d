// Package query derives the dashboard views from the snapshot store. Every
// operation is a pure function of (store contents, selection): no hidden
// state, deterministic, idempotent, cheap enough to recompute on every
// selection change.
package query

import (
	"context"
	"fmt"
	"sort"

	"chartscope/internal/core"
	"chartscope/internal/snapshot"
)

// Default and maximum list lengths for the table views.
const (
	DefaultTrackLimit  = 25
	MaxTrackLimit      = 100
	DefaultTrendSeries = 5
	MaxTrendSeries     = 20
	DefaultCountryTop  = 10
	MaxCountryTop      = 25
)

type Engine struct {
	store snapshot.Store
}

func New(store snapshot.Store) *Engine {
	return &Engine{store: store}
}

// Summary returns the summary row for the selection. ok=false is the valid
// "no data for this selection" state, never an error.
func (e *Engine) Summary(ctx context.Context, sel core.Selection) (core.CountryYearSummary, bool, error) {
	return e.store.SummaryFor(ctx, sel.Country, sel.Year)
}

// TopTracks returns the ranked track table for the selection, rank
// ascending with no duplicate ranks. Equal ranks are broken by track name
// then artist name so ordering is stable across calls. limit <= 0 means
// the default; the cap is MaxTrackLimit.
func (e *Engine) TopTracks(ctx context.Context, sel core.Selection, limit int) ([]TrackRow, error) {
	if limit <= 0 {
		limit = DefaultTrackLimit
	}
	if limit > MaxTrackLimit {
		limit = MaxTrackLimit
	}

	entries, err := e.store.TracksFor(ctx, sel.Country, sel.Year)
	if err != nil {
		return nil, fmt.Errorf("tracks for %s/%d: %w", sel.Country, sel.Year, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		if entries[i].TrackName != entries[j].TrackName {
			return entries[i].TrackName < entries[j].TrackName
		}
		return entries[i].ArtistName < entries[j].ArtistName
	})

	rows := make([]TrackRow, 0, min(limit, len(entries)))
	lastRank := 0
	for _, t := range entries {
		if t.Rank == lastRank {
			// Duplicate ranks should not occur in a well-formed
			// snapshot; keep the first row after the stable sort.
			continue
		}
		lastRank = t.Rank
		rows = append(rows, TrackRow{
			Rank:        t.Rank,
			TrackName:   t.TrackName,
			ArtistName:  t.ArtistName,
			StreamsSum:  t.StreamsSum,
			BestRank:    t.BestRank,
			DaysCharted: t.DaysCharted,
		})
		if len(rows) == limit {
			break
		}
	}
	return rows, nil
}

// TopArtists collapses the selection's track list by artist: summed
// streams, best rank, and how many tracks the artist placed. Ordered by
// streams descending, ties broken by artist name.
func (e *Engine) TopArtists(ctx context.Context, sel core.Selection, limit int) ([]ArtistRow, error) {
	if limit <= 0 {
		limit = DefaultTrackLimit
	}
	if limit > MaxTrackLimit {
		limit = MaxTrackLimit
	}

	entries, err := e.store.TracksFor(ctx, sel.Country, sel.Year)
	if err != nil {
		return nil, fmt.Errorf("tracks for %s/%d: %w", sel.Country, sel.Year, err)
	}

	byArtist := make(map[string]*ArtistRow)
	order := make([]string, 0)
	for _, t := range entries {
		row, ok := byArtist[t.ArtistName]
		if !ok {
			row = &ArtistRow{ArtistName: t.ArtistName, BestRank: t.Rank}
			byArtist[t.ArtistName] = row
			order = append(order, t.ArtistName)
		}
		row.StreamsSum += t.StreamsSum
		row.TracksInTop++
		if t.Rank < row.BestRank {
			row.BestRank = t.Rank
		}
	}

	rows := make([]ArtistRow, 0, len(order))
	for _, name := range order {
		rows = append(rows, *byArtist[name])
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StreamsSum != rows[j].StreamsSum {
			return rows[i].StreamsSum > rows[j].StreamsSum
		}
		return rows[i].ArtistName < rows[j].ArtistName
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// ArtistTrend builds the multi-line time series for a country over the
// window, restricted to the top-200-per-year artist pool. Each series is
// strictly increasing in year; should the snapshot carry duplicate years
// for an artist, the higher streams value wins. Series are ordered by total
// streams over the window descending, then artist name, and capped at topN.
func (e *Engine) ArtistTrend(ctx context.Context, country string, window core.YearWindow, topN int) (TrendView, error) {
	if err := window.Validate(); err != nil {
		return TrendView{}, err
	}
	if topN <= 0 {
		topN = DefaultTrendSeries
	}
	if topN > MaxTrendSeries {
		topN = MaxTrendSeries
	}

	points, err := e.store.TrendFor(ctx, country, window)
	if err != nil {
		return TrendView{}, fmt.Errorf("trend for %s %d-%d: %w", country, window.From, window.To, err)
	}

	perArtist := make(map[string]map[int]TrendPoint)
	for _, p := range points {
		years, ok := perArtist[p.ArtistName]
		if !ok {
			years = make(map[int]TrendPoint)
			perArtist[p.ArtistName] = years
		}
		if prev, dup := years[p.Year]; !dup || p.StreamsSum > prev.StreamsSum {
			years[p.Year] = TrendPoint{Year: p.Year, StreamsSum: p.StreamsSum, Rank: p.Rank}
		}
	}

	series := make([]TrendSeries, 0, len(perArtist))
	for name, years := range perArtist {
		s := TrendSeries{ArtistName: name, Points: make([]TrendPoint, 0, len(years))}
		for _, pt := range years {
			s.Points = append(s.Points, pt)
			s.TotalStreams += pt.StreamsSum
		}
		sort.Slice(s.Points, func(i, j int) bool { return s.Points[i].Year < s.Points[j].Year })
		series = append(series, s)
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].TotalStreams != series[j].TotalStreams {
			return series[i].TotalStreams > series[j].TotalStreams
		}
		return series[i].ArtistName < series[j].ArtistName
	})
	if len(series) > topN {
		series = series[:topN]
	}

	return TrendView{Country: country, Window: window, Series: series}, nil
}

// TopCountries ranks the summary rows of a year by the given metric,
// excluding the synthetic "Global" row. For avg_rank lower is better; for
// every other metric higher is better. Ties are broken by country name.
func (e *Engine) TopCountries(ctx context.Context, year int, metric Metric, n int) ([]CountryRow, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	if n <= 0 {
		n = DefaultCountryTop
	}
	if n > MaxCountryTop {
		n = MaxCountryTop
	}

	sums, err := e.store.SummariesForYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("summaries for %d: %w", year, err)
	}

	rows := make([]CountryRow, 0, len(sums))
	for _, s := range sums {
		if s.Country == core.GlobalCountry {
			continue
		}
		rows = append(rows, CountryRow{
			Country:       s.Country,
			ISO3:          s.ISO3,
			TotalStreams:  s.TotalStreams,
			UniqueArtists: s.UniqueArtists,
			UniqueTracks:  s.UniqueTracks,
			AvgRank:       s.AvgRank,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch metric {
		case MetricArtists:
			if a.UniqueArtists != b.UniqueArtists {
				return a.UniqueArtists > b.UniqueArtists
			}
		case MetricTracks:
			if a.UniqueTracks != b.UniqueTracks {
				return a.UniqueTracks > b.UniqueTracks
			}
		case MetricAvgRank:
			if a.AvgRank != b.AvgRank {
				return a.AvgRank < b.AvgRank
			}
		default:
			if a.TotalStreams != b.TotalStreams {
				return a.TotalStreams > b.TotalStreams
			}
		}
		return a.Country < b.Country
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}
