package query

import "chartscope/internal/core"

// TrackRow is one line of the ranked track table.
type TrackRow struct {
	Rank        int    `json:"rank"`
	TrackName   string `json:"track_name"`
	ArtistName  string `json:"artist_name"`
	StreamsSum  int64  `json:"streams_sum"`
	BestRank    int    `json:"best_rank"`
	DaysCharted int    `json:"days_charted"`
}

// ArtistRow is one line of the top-artists breakdown: an artist's tracks in
// the top list collapsed into totals.
type ArtistRow struct {
	ArtistName  string `json:"artist_name"`
	StreamsSum  int64  `json:"streams_sum"`
	BestRank    int    `json:"best_rank"`
	TracksInTop int    `json:"tracks_in_top"`
}

// TrendPoint is one (year, streams) sample of an artist's series.
type TrendPoint struct {
	Year       int   `json:"year"`
	StreamsSum int64 `json:"streams_sum"`
	Rank       int   `json:"rank"`
}

// TrendSeries is one artist's line in the trend chart. Points are ordered
// by year, strictly increasing, no duplicates.
type TrendSeries struct {
	ArtistName   string       `json:"artist_name"`
	TotalStreams int64        `json:"total_streams"`
	Points       []TrendPoint `json:"points"`
}

// TrendView is the full multi-line chart for a country over a window.
type TrendView struct {
	Country string          `json:"country"`
	Window  core.YearWindow `json:"window"`
	Series  []TrendSeries   `json:"series"`
}

// Metric selects the ranking dimension of the top-countries view.
type Metric string

const (
	MetricStreams Metric = "streams"
	MetricArtists Metric = "artists"
	MetricTracks  Metric = "tracks"
	MetricAvgRank Metric = "avg_rank"
)

// Valid reports whether m is a known ranking metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricStreams, MetricArtists, MetricTracks, MetricAvgRank:
		return true
	}
	return false
}

// CountryRow is one line of the top-countries ranking for a year.
type CountryRow struct {
	Country       string  `json:"country"`
	ISO3          string  `json:"iso3"`
	TotalStreams  int64   `json:"total_streams"`
	UniqueArtists int64   `json:"unique_artists"`
	UniqueTracks  int64   `json:"unique_tracks"`
	AvgRank       float64 `json:"avg_rank"`
}
