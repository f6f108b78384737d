package core

import (
	"errors"
	"strings"
)

// Row limits fixed by the offline aggregation that produces the snapshots.
const (
	MaxTrackRank  = 500
	MaxArtistRank = 200
)

// GlobalCountry is the synthetic row aggregating all countries. It is kept
// in selector domains as a worldwide benchmark but excluded from country
// rankings.
const GlobalCountry = "Global"

type (
	// CountryYearSummary is one row of the summary snapshot: chart-wide
	// metrics for a single country and year.
	CountryYearSummary struct {
		Country         string
		ISO3            string
		Year            int
		TotalEntries    int64
		TotalStreams    int64
		UniqueArtists   int64
		UniqueTracks    int64
		AvgRank         float64
		DominantGenre   string
		ArtistDiversity float64
	}

	// TrackEntry is one row of the top-tracks snapshot, ranked 1..500
	// within its (country, year).
	TrackEntry struct {
		Country     string
		Year        int
		Rank        int
		TrackName   string
		ArtistName  string
		StreamsSum  int64
		BestRank    int
		DaysCharted int
	}

	// ArtistTrendPoint is one row of the artist snapshot: one artist's
	// yearly streams total for a country, top 200 per (country, year).
	ArtistTrendPoint struct {
		Country    string
		Year       int
		ArtistName string
		StreamsSum int64
		Rank       int
	}

	// Selection is the (country, year) pair driving all derived views.
	Selection struct {
		Country string
		Year    int
	}

	// YearWindow is an inclusive year range for trend queries.
	YearWindow struct {
		From int
		To   int
	}
)

var (
	ErrEmptyCountry  = errors.New("empty country")
	ErrEmptyArtist   = errors.New("empty artist name")
	ErrEmptyTrack    = errors.New("empty track name")
	ErrInvalidYear   = errors.New("invalid year")
	ErrInvalidWindow = errors.New("invalid year window")
	ErrInvalidRank   = errors.New("invalid rank")
)

func validYear(y int) bool { return y >= 1900 && y <= 2200 }

// Validate checks structural plausibility only. Membership in the loaded
// snapshot domains is enforced by the selection state, not here.
func (s Selection) Validate() error {
	if strings.TrimSpace(s.Country) == "" {
		return ErrEmptyCountry
	}
	if !validYear(s.Year) {
		return ErrInvalidYear
	}
	return nil
}

func (w YearWindow) Validate() error {
	if w.From > w.To {
		return ErrInvalidWindow
	}
	if !validYear(w.From) || !validYear(w.To) {
		return ErrInvalidWindow
	}
	return nil
}

// Contains reports whether the window includes the given year.
func (w YearWindow) Contains(year int) bool {
	return year >= w.From && year <= w.To
}

func (s CountryYearSummary) Validate() error {
	if strings.TrimSpace(s.Country) == "" {
		return ErrEmptyCountry
	}
	if !validYear(s.Year) {
		return ErrInvalidYear
	}
	return nil
}

func (t TrackEntry) Validate() error {
	if strings.TrimSpace(t.Country) == "" {
		return ErrEmptyCountry
	}
	if strings.TrimSpace(t.TrackName) == "" {
		return ErrEmptyTrack
	}
	if t.Rank < 1 || t.Rank > MaxTrackRank {
		return ErrInvalidRank
	}
	if !validYear(t.Year) {
		return ErrInvalidYear
	}
	return nil
}

func (p ArtistTrendPoint) Validate() error {
	if strings.TrimSpace(p.Country) == "" {
		return ErrEmptyCountry
	}
	if strings.TrimSpace(p.ArtistName) == "" {
		return ErrEmptyArtist
	}
	if p.Rank < 1 || p.Rank > MaxArtistRank {
		return ErrInvalidRank
	}
	if !validYear(p.Year) {
		return ErrInvalidYear
	}
	return nil
}

// Key returns the selection matching a summary row.
func (s CountryYearSummary) Key() Selection {
	return Selection{Country: s.Country, Year: s.Year}
}
