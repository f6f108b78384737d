// Package memory holds the three snapshot tables in indexed in-memory
// slices. It is the default backend and also the landing store for rows
// fetched from Google Sheets.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"chartscope/internal/core"
	"chartscope/internal/snapshot"
)

type key struct {
	country string
	year    int
}

type Store struct {
	mu sync.RWMutex

	countries []string
	years     map[string][]int

	summaries map[key]core.CountryYearSummary
	byYear    map[int][]core.CountryYearSummary
	tracks    map[key][]core.TrackEntry
	trend     map[string][]core.ArtistTrendPoint
}

var _ snapshot.Store = (*Store)(nil)

// New builds an indexed store from already-decoded rows.
func New(sums []core.CountryYearSummary, tracks []core.TrackEntry, points []core.ArtistTrendPoint) (*Store, error) {
	s := &Store{
		years:     make(map[string][]int),
		summaries: make(map[key]core.CountryYearSummary, len(sums)),
		byYear:    make(map[int][]core.CountryYearSummary),
		tracks:    make(map[key][]core.TrackEntry),
		trend:     make(map[string][]core.ArtistTrendPoint),
	}

	for _, sum := range sums {
		k := key{sum.Country, sum.Year}
		if _, dup := s.summaries[k]; dup {
			return nil, fmt.Errorf("duplicate summary row for %s/%d", sum.Country, sum.Year)
		}
		s.summaries[k] = sum
		s.byYear[sum.Year] = append(s.byYear[sum.Year], sum)
	}
	for _, t := range tracks {
		k := key{t.Country, t.Year}
		s.tracks[k] = append(s.tracks[k], t)
	}
	for _, p := range points {
		s.trend[p.Country] = append(s.trend[p.Country], p)
	}

	// Pre-sort track lists by rank; equal ranks fall back to track then
	// artist name so ordering is deterministic.
	for k := range s.tracks {
		list := s.tracks[k]
		sort.Slice(list, func(i, j int) bool {
			if list[i].Rank != list[j].Rank {
				return list[i].Rank < list[j].Rank
			}
			if list[i].TrackName != list[j].TrackName {
				return list[i].TrackName < list[j].TrackName
			}
			return list[i].ArtistName < list[j].ArtistName
		})
		if len(list) > core.MaxTrackRank {
			list = list[:core.MaxTrackRank]
		}
		s.tracks[k] = list
	}

	// Selector domains come from the summary table alone.
	seen := make(map[string]bool)
	for k := range s.summaries {
		if !seen[k.country] {
			seen[k.country] = true
			s.countries = append(s.countries, k.country)
		}
		s.years[k.country] = append(s.years[k.country], k.year)
	}
	sort.Slice(s.countries, func(i, j int) bool {
		// "Global" first as the worldwide benchmark, rest alphabetical.
		if s.countries[i] == core.GlobalCountry {
			return true
		}
		if s.countries[j] == core.GlobalCountry {
			return false
		}
		return s.countries[i] < s.countries[j]
	})
	for c := range s.years {
		sort.Ints(s.years[c])
	}

	return s, nil
}

// NewFromFiles loads the three snapshot CSVs from dir. The files are read
// and decoded concurrently; any missing or malformed file fails the whole
// load. One-shot, no retry.
func NewFromFiles(ctx context.Context, dir string) (*Store, error) {
	var (
		sums   []core.CountryYearSummary
		tracks []core.TrackEntry
		points []core.ArtistTrendPoint
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := snapshot.ReadTable(filepath.Join(dir, snapshot.SummaryFile))
		if err != nil {
			return err
		}
		sums, err = snapshot.DecodeSummaries(rows)
		if err != nil {
			return fmt.Errorf("%s: %w", snapshot.SummaryFile, err)
		}
		return nil
	})
	g.Go(func() error {
		rows, err := snapshot.ReadTable(filepath.Join(dir, snapshot.TracksFile))
		if err != nil {
			return err
		}
		tracks, err = snapshot.DecodeTracks(rows)
		if err != nil {
			return fmt.Errorf("%s: %w", snapshot.TracksFile, err)
		}
		return nil
	})
	g.Go(func() error {
		rows, err := snapshot.ReadTable(filepath.Join(dir, snapshot.ArtistsFile))
		if err != nil {
			return err
		}
		points, err = snapshot.DecodeTrendPoints(rows)
		if err != nil {
			return fmt.Errorf("%s: %w", snapshot.ArtistsFile, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return New(sums, tracks, points)
}

func (s *Store) Countries(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.countries...), nil
}

func (s *Store) Years(_ context.Context, country string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.years[country]...), nil
}

func (s *Store) SummaryFor(_ context.Context, country string, year int) (core.CountryYearSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[key{country, year}]
	return sum, ok, nil
}

func (s *Store) TracksFor(_ context.Context, country string, year int) ([]core.TrackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.TrackEntry(nil), s.tracks[key{country, year}]...), nil
}

func (s *Store) TrendFor(_ context.Context, country string, window core.YearWindow) ([]core.ArtistTrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.ArtistTrendPoint
	for _, p := range s.trend[country] {
		if window.Contains(p.Year) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) SummariesForYear(_ context.Context, year int) ([]core.CountryYearSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.CountryYearSummary(nil), s.byYear[year]...), nil
}

// Counts returns the number of rows loaded per table, for startup logging
// and the snapshot-check command.
func (s *Store) Counts() (summaries, tracks, trendPoints int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries = len(s.summaries)
	for _, list := range s.tracks {
		tracks += len(list)
	}
	for _, list := range s.trend {
		trendPoints += len(list)
	}
	return summaries, tracks, trendPoints
}
