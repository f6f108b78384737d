package selection

import (
	"context"
	"strings"
	"testing"

	"chartscope/internal/core"
	"chartscope/internal/snapshot/memory"
)

func testStore(t *testing.T) *memory.Store {
	t.Helper()
	sums := []core.CountryYearSummary{
		{Country: "Global", Year: 2021, TotalEntries: 10},
		{Country: "Global", Year: 2022, TotalEntries: 11},
		{Country: "Portugal", Year: 2021, TotalEntries: 5},
	}
	store, err := memory.New(sums, nil, nil)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	return store
}

func TestDefaultPrefersGlobalLatestYear(t *testing.T) {
	sel, err := Default(context.Background(), testStore(t), core.GlobalCountry)
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if sel.Country != core.GlobalCountry || sel.Year != 2022 {
		t.Fatalf("default selection = %+v, want Global/2022", sel)
	}
}

func TestDefaultFallsBackToFirstCountry(t *testing.T) {
	sel, err := Default(context.Background(), testStore(t), "Atlantis")
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	// "Atlantis" is not in the store; the first country wins.
	if sel.Country != core.GlobalCountry {
		t.Fatalf("default selection = %+v", sel)
	}
}

func TestSetPublishesInOrder(t *testing.T) {
	store := testStore(t)
	st := New(store, core.Selection{Country: "Global", Year: 2022})

	var calls []string
	st.Subscribe(func(s core.Selection) { calls = append(calls, "first:"+s.Country) })
	st.Subscribe(func(s core.Selection) { calls = append(calls, "second:"+s.Country) })

	if err := st.Set(context.Background(), core.Selection{Country: "Portugal", Year: 2021}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(calls) != 2 || calls[0] != "first:Portugal" || calls[1] != "second:Portugal" {
		t.Fatalf("subscriber calls = %v", calls)
	}
	if got := st.Current(); got.Country != "Portugal" || got.Year != 2021 {
		t.Fatalf("Current = %+v", got)
	}
}

func TestSetRejectsOutsideDomains(t *testing.T) {
	store := testStore(t)
	st := New(store, core.Selection{Country: "Global", Year: 2022})

	notified := false
	st.Subscribe(func(core.Selection) { notified = true })

	err := st.Set(context.Background(), core.Selection{Country: "Nowhereland", Year: 1999})
	if err == nil || !strings.Contains(err.Error(), "unknown country") {
		t.Fatalf("err = %v, want unknown country", err)
	}

	// Year not present for a known country.
	err = st.Set(context.Background(), core.Selection{Country: "Portugal", Year: 2022})
	if err == nil || !strings.Contains(err.Error(), "no data for") {
		t.Fatalf("err = %v, want no data", err)
	}

	if notified {
		t.Fatal("rejected Set published to subscribers")
	}
	if got := st.Current(); got.Country != "Global" || got.Year != 2022 {
		t.Fatalf("Current changed on rejected Set: %+v", got)
	}
}
