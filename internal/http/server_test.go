package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"chartscope/internal/core"
	"chartscope/internal/query"
	"chartscope/internal/selection"
	"chartscope/internal/snapshot/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	sums := []core.CountryYearSummary{
		{Country: "Global", Year: 2021, TotalEntries: 18200, TotalStreams: 9876543210, UniqueArtists: 2100, UniqueTracks: 4100, AvgRank: 100.5, DominantGenre: "pop", ArtistDiversity: 0.12},
		{Country: "Brazil", ISO3: "BRA", Year: 2021, TotalEntries: 1240, TotalStreams: 565000000, UniqueArtists: 402, UniqueTracks: 715, AvgRank: 100.4, DominantGenre: "funk", ArtistDiversity: 0.32},
		{Country: "Portugal", ISO3: "PRT", Year: 2021, TotalEntries: 842, TotalStreams: 123456789, UniqueArtists: 530, UniqueTracks: 812, AvgRank: 98.4, DominantGenre: "pop", ArtistDiversity: 0.63},
	}
	tracks := []core.TrackEntry{
		{Country: "Portugal", Year: 2021, Rank: 1, TrackName: "Amor Amarelo", ArtistName: "Rita Vidal", StreamsSum: 9200000, BestRank: 1, DaysCharted: 212},
		{Country: "Portugal", Year: 2021, Rank: 2, TrackName: "Noite Aberta", ArtistName: "Os Azulejos", StreamsSum: 8100000, BestRank: 1, DaysCharted: 198},
	}
	points := []core.ArtistTrendPoint{
		{Country: "Brazil", Year: 2018, ArtistName: "Anitta", StreamsSum: 52000000, Rank: 1},
		{Country: "Brazil", Year: 2019, ArtistName: "Anitta", StreamsSum: 61000000, Rank: 1},
		{Country: "Brazil", Year: 2020, ArtistName: "Anitta", StreamsSum: 70000000, Rank: 1},
		{Country: "Brazil", Year: 2021, ArtistName: "Anitta", StreamsSum: 76000000, Rank: 1},
		{Country: "Brazil", Year: 2022, ArtistName: "Anitta", StreamsSum: 81000000, Rank: 1},
	}

	store, err := memory.New(sums, tracks, points)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}

	initial, err := selection.Default(context.Background(), store, core.GlobalCountry)
	if err != nil {
		t.Fatalf("selection.Default: %v", err)
	}
	sel := selection.New(store, initial)

	srv, err := NewServer("127.0.0.1:0", store, query.New(store), sel, Options{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func doPost(t *testing.T, srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestDashboardPage(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Chartscope", "Global", "selector"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSummaryPanelWithData(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/ui/summary?country=Portugal&year=2021")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"842", "pop", "0.63"} {
		if !strings.Contains(body, want) {
			t.Errorf("summary missing %q in %s", want, body)
		}
	}
}

func TestPanelsRenderNoDataPlaceholder(t *testing.T) {
	srv := newTestServer(t)
	paths := []string{
		"/ui/summary?country=Nowhereland&year=1999",
		"/ui/tracks?country=Nowhereland&year=1999",
		"/ui/artists?country=Nowhereland&year=1999",
		"/ui/trend?country=Nowhereland&year=1999",
	}
	for _, path := range paths {
		rec := doGet(t, srv, path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
			continue
		}
		if !strings.Contains(rec.Body.String(), "No data") {
			t.Errorf("%s missing no-data placeholder", path)
		}
	}
}

func TestTracksPanelOrdering(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/ui/tracks?country=Portugal&year=2021")
	body := rec.Body.String()
	first := strings.Index(body, "Amor Amarelo")
	second := strings.Index(body, "Noite Aberta")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("tracks out of order: amor=%d noite=%d", first, second)
	}
}

func TestSelectFiresChangeEvent(t *testing.T) {
	srv := newTestServer(t)
	rec := doPost(t, srv, "/select", url.Values{"country": {"Portugal"}, "year": {"2021"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	trigger := rec.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, selectionChangedEvent) || !strings.Contains(trigger, "Portugal") {
		t.Fatalf("HX-Trigger = %q", trigger)
	}
	if cur := srv.selection.Current(); cur.Country != "Portugal" || cur.Year != 2021 {
		t.Fatalf("selection not applied: %+v", cur)
	}
}

func TestSelectRejectsUnknownCountry(t *testing.T) {
	srv := newTestServer(t)
	before := srv.selection.Current()

	rec := doPost(t, srv, "/select", url.Values{"country": {"Nowhereland"}, "year": {"1999"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("HX-Trigger") != "" {
		t.Error("rejected selection fired a change event")
	}
	if cur := srv.selection.Current(); cur != before {
		t.Fatalf("selection changed on rejection: %+v", cur)
	}
	if !strings.Contains(rec.Body.String(), "unknown country") {
		t.Errorf("body missing rejection reason: %s", rec.Body.String())
	}
}

func TestTrendJSON(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/api/trend?country=Brazil&from=2018&to=2022")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view query.TrendView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(view.Series) == 0 || view.Series[0].ArtistName != "Anitta" {
		t.Fatalf("unexpected view: %+v", view)
	}
	for i := 1; i < len(view.Series[0].Points); i++ {
		if view.Series[0].Points[i-1].Year >= view.Series[0].Points[i].Year {
			t.Fatal("trend years not strictly increasing")
		}
	}
}

func TestTrendJSONInvalidWindow(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/api/trend?country=Brazil&from=2022&to=2018")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCountriesPanelExcludesGlobal(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/ui/countries?year=2021")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Brazil") || !strings.Contains(body, "Portugal") {
		t.Errorf("ranking missing countries: %s", body)
	}
	if strings.Contains(body, ">Global<") {
		t.Error("Global row leaked into country ranking")
	}
}

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestServer(t)
	if rec := doGet(t, srv, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := doGet(t, srv, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}
}

func TestNewServerParsesEmbeddedTemplates(t *testing.T) {
	srv := newTestServer(t)
	if srv.templates == nil {
		t.Fatal("templates not parsed")
	}
	for _, name := range []string{"dashboard_page", "selector_form", "summary_panel", "tracks_panel", "artists_panel", "trend_panel", "countries_panel"} {
		if srv.templates.Lookup(name) == nil {
			t.Errorf("template %q not defined", name)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	// Exhaust the per-IP budget so the rate limit counter moves.
	var last *httptest.ResponseRecorder
	for i := 0; i < maxRequestsPerMinute+1; i++ {
		last = doGet(t, srv, "/ui/summary")
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exhausting budget, got %d", last.Code)
	}

	rec := doGet(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"rate_limit_hits_total 1",
		"http_requests_total",
		"invalid_client_ips_total",
		"cache_entries{type=\"summary\"}",
		"active_rate_limit_clients 1",
		"uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestSelectionChangeEvictsPreviousViews(t *testing.T) {
	srv := newTestServer(t)
	before := srv.selection.Current()

	doGet(t, srv, "/ui/summary")
	doGet(t, srv, "/ui/tracks")
	if _, found := srv.summaryCache.Get(selKey(before)); !found {
		t.Fatal("summary not cached for initial selection")
	}

	rec := doPost(t, srv, "/select", url.Values{"country": {"Portugal"}, "year": {"2021"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d", rec.Code)
	}

	if _, found := srv.summaryCache.Get(selKey(before)); found {
		t.Error("outgoing selection summary still cached")
	}
	if _, found := srv.tracksCache.Get(selKey(before) + "|" + "25"); found {
		t.Error("outgoing selection tracks still cached")
	}
	after := srv.selection.Current()
	if _, found := srv.summaryCache.Get(selKey(after)); !found {
		t.Error("new selection summary not warmed")
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	rec := doGet(t, srv, "/")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); !strings.Contains(got, "default-src 'self'") {
		t.Errorf("CSP = %q", got)
	}
}
