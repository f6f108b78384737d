// Package snapshot defines the read-only port over the three precomputed
// chart datasets and the row decoding shared by all backends.
package snapshot

import (
	"context"

	"chartscope/internal/core"
)

// Fixed file names of the three snapshot tables inside the snapshot
// directory. The offline aggregation writes them; this process only reads.
const (
	SummaryFile = "country_year_summary.csv"
	TracksFile  = "top_tracks_country_year_top500.csv"
	ArtistsFile = "artist_country_year_top200.csv"
)

// Store is the read-only access port to the loaded snapshots. All backends
// (memory, sqlite, sheets) satisfy it with identical semantics: exact-match
// filters over immutable data, empty results are not errors.
type Store interface {
	// Countries returns the distinct countries present in the summary
	// table, sorted alphabetically with the synthetic "Global" row first
	// when present.
	Countries(ctx context.Context) ([]string, error)

	// Years returns the distinct years the summary table has for the
	// given country, ascending. Unknown countries yield an empty slice.
	Years(ctx context.Context, country string) ([]int, error)

	// SummaryFor returns the summary row for an exact (country, year)
	// match. The bool is false when no row matches; that is a valid
	// "no data" state, not an error.
	SummaryFor(ctx context.Context, country string, year int) (core.CountryYearSummary, bool, error)

	// TracksFor returns the top-track rows for (country, year), sorted by
	// rank ascending. At most core.MaxTrackRank rows.
	TracksFor(ctx context.Context, country string, year int) ([]core.TrackEntry, error)

	// TrendFor returns the artist trend points for a country whose year
	// falls inside the inclusive window, in no particular order.
	TrendFor(ctx context.Context, country string, window core.YearWindow) ([]core.ArtistTrendPoint, error)

	// SummariesForYear returns every summary row for the given year,
	// including the synthetic "Global" row.
	SummariesForYear(ctx context.Context, year int) ([]core.CountryYearSummary, error)
}
