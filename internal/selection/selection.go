// Package selection holds the current (country, year) pair and publishes
// changes to subscribers. The dashboard serves one interactive session per
// process; the mutex only guards against concurrent handler goroutines.
package selection

import (
	"context"
	"fmt"
	"sync"

	"chartscope/internal/core"
	"chartscope/internal/snapshot"
)

type State struct {
	mu    sync.Mutex
	store snapshot.Store
	cur   core.Selection
	subs  []func(core.Selection)
}

// New creates the selection state with an already-validated initial value.
func New(store snapshot.Store, initial core.Selection) *State {
	return &State{store: store, cur: initial}
}

// Default derives the startup selection from the store: the synthetic
// "Global" row when present, otherwise the first country; the latest year
// available for it.
func Default(ctx context.Context, store snapshot.Store, preferredCountry string) (core.Selection, error) {
	countries, err := store.Countries(ctx)
	if err != nil {
		return core.Selection{}, fmt.Errorf("list countries: %w", err)
	}
	if len(countries) == 0 {
		return core.Selection{}, fmt.Errorf("summary snapshot holds no countries")
	}

	country := countries[0]
	if preferredCountry != "" {
		for _, c := range countries {
			if c == preferredCountry {
				country = c
				break
			}
		}
	}

	years, err := store.Years(ctx, country)
	if err != nil {
		return core.Selection{}, fmt.Errorf("list years for %s: %w", country, err)
	}
	if len(years) == 0 {
		return core.Selection{}, fmt.Errorf("no years for country %s", country)
	}

	return core.Selection{Country: country, Year: years[len(years)-1]}, nil
}

// Subscribe registers fn to run synchronously, in registration order, after
// every successful Set. Subscribers must not call back into Set.
func (s *State) Subscribe(fn func(core.Selection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Current returns the selection driving the views right now.
func (s *State) Current() core.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Set validates sel against the loaded snapshot domains and publishes it.
// Selections outside the domains are rejected and publish nothing.
func (s *State) Set(ctx context.Context, sel core.Selection) error {
	if err := sel.Validate(); err != nil {
		return err
	}
	if err := s.checkDomains(ctx, sel); err != nil {
		return err
	}

	s.mu.Lock()
	s.cur = sel
	subs := append([]func(core.Selection){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(sel)
	}
	return nil
}

func (s *State) checkDomains(ctx context.Context, sel core.Selection) error {
	countries, err := s.store.Countries(ctx)
	if err != nil {
		return fmt.Errorf("list countries: %w", err)
	}
	found := false
	for _, c := range countries {
		if c == sel.Country {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown country %q", sel.Country)
	}

	years, err := s.store.Years(ctx, sel.Country)
	if err != nil {
		return fmt.Errorf("list years for %s: %w", sel.Country, err)
	}
	for _, y := range years {
		if y == sel.Year {
			return nil
		}
	}
	return fmt.Errorf("no data for %s in %d", sel.Country, sel.Year)
}
