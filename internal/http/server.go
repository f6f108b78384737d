// Package http serves the dashboard: one full page plus htmx partials that
// re-render whenever the shared selection changes.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"chartscope/internal/cache"
	"chartscope/internal/core"
	"chartscope/internal/query"
	"chartscope/internal/selection"
	"chartscope/internal/snapshot"
	appweb "chartscope/web"
)

// partialTimeout bounds a single widget refresh so a slow store cannot hang
// the page.
const partialTimeout = 7 * time.Second

// selectionChangedEvent is the htmx event emitted after a successful
// selection change; every panel listens for it.
const selectionChangedEvent = "selection:changed"

// Options tunes the derived-view caches.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// summaryResult caches the two-valued summary lookup; absence is a valid
// state and worth caching too.
type summaryResult struct {
	Summary core.CountryYearSummary
	Found   bool
}

type Server struct {
	http.Server
	templates *template.Template
	store     snapshot.Store
	engine    *query.Engine
	selection *selection.State

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	summaryCache *cache.LRUCache[summaryResult]
	tracksCache  *cache.LRUCache[[]query.TrackRow]
	artistsCache *cache.LRUCache[[]query.ArtistRow]
	trendCache   *cache.LRUCache[query.TrendView]
	caches       *cache.Manager

	startTime     time.Time
	requestsTotal int64

	prevMu  sync.Mutex
	prevSel core.Selection

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. The selection subscriber warms the caches so the partial
// refreshes triggered by a selection change hit warm entries. A template
// parse failure is an error: the binary cannot render anything without
// the embedded templates.
func NewServer(addr string, store snapshot.Store, eng *query.Engine, sel *selection.State, opts Options) (*Server, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}

	templates, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse embedded templates: %w", err)
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		templates:   templates,
		store:       store,
		engine:      eng,
		selection:   sel,
		rateLimiter: newRateLimiter(),
		metrics:     &securityMetrics{},
		startTime:   time.Now(),
		prevSel:     sel.Current(),

		summaryCache: cache.NewLRUCache[summaryResult](opts.CacheSize, opts.CacheTTL),
		tracksCache:  cache.NewLRUCache[[]query.TrackRow](opts.CacheSize, opts.CacheTTL),
		artistsCache: cache.NewLRUCache[[]query.ArtistRow](opts.CacheSize, opts.CacheTTL),
		trendCache:   cache.NewLRUCache[query.TrendView](opts.CacheSize, opts.CacheTTL),
		caches:       cache.NewManager(slog.Default()),
	}

	s.caches.Register(s.summaryCache)
	s.caches.Register(s.tracksCache)
	s.caches.Register(s.artistsCache)
	s.caches.Register(s.trendCache)
	s.caches.StartCleanup(opts.CacheTTL)

	sel.Subscribe(s.onSelectionChange)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleDashboard))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/select", s.withSecurityHeaders(s.handleSelect))
	// UI partials
	mux.HandleFunc("/ui/summary", s.withSecurityHeaders(s.handleSummaryPanel))
	mux.HandleFunc("/ui/tracks", s.withSecurityHeaders(s.handleTracksPanel))
	mux.HandleFunc("/ui/artists", s.withSecurityHeaders(s.handleArtistsPanel))
	mux.HandleFunc("/ui/trend", s.withSecurityHeaders(s.handleTrendPanel))
	mux.HandleFunc("/ui/countries", s.withSecurityHeaders(s.handleCountriesPanel))
	// JSON API
	mux.HandleFunc("/api/trend", s.withSecurityHeaders(s.handleTrendJSON))

	return s, nil
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

type requestIDKey struct{}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&s.requestsTotal, 1)

		clientIP := extractClientIP(r, s.metrics)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready only when the snapshot store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.store.Countries(ctx); err != nil {
		slog.ErrorContext(ctx, "Readiness check failed", "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics exposes operational counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", atomic.LoadInt64(&s.requestsTotal))

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total number of rate limited requests\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", atomic.LoadInt64(&s.metrics.rateLimitHits))

	fmt.Fprintf(w, "# HELP invalid_client_ips_total Total number of requests with an unparseable client IP\n")
	fmt.Fprintf(w, "# TYPE invalid_client_ips_total counter\n")
	fmt.Fprintf(w, "invalid_client_ips_total %d\n\n", atomic.LoadInt64(&s.metrics.invalidIPAttempts))

	fmt.Fprintf(w, "# HELP cache_entries Current number of cached view entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"summary\"} %d\n", s.summaryCache.Size())
	fmt.Fprintf(w, "cache_entries{type=\"tracks\"} %d\n", s.tracksCache.Size())
	fmt.Fprintf(w, "cache_entries{type=\"artists\"} %d\n", s.artistsCache.Size())
	fmt.Fprintf(w, "cache_entries{type=\"trend\"} %d\n\n", s.trendCache.Size())

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Number of client IPs currently tracked by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Server uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %d\n", int64(time.Since(s.startTime).Seconds()))
}

// selKey builds the cache key prefix for a selection.
func selKey(sel core.Selection) string {
	return sel.Country + "|" + strconv.Itoa(sel.Year)
}

func (s *Server) getSummary(ctx context.Context, sel core.Selection) (core.CountryYearSummary, bool, error) {
	key := selKey(sel)
	if res, found := s.summaryCache.Get(key); found {
		slog.DebugContext(ctx, "Summary cache hit", "country", sel.Country, "year", sel.Year)
		return res.Summary, res.Found, nil
	}

	cctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()
	sum, ok, err := s.engine.Summary(cctx, sel)
	if err != nil {
		return core.CountryYearSummary{}, false, err
	}
	s.summaryCache.Set(key, summaryResult{Summary: sum, Found: ok})
	return sum, ok, nil
}

func (s *Server) getTracks(ctx context.Context, sel core.Selection, limit int) ([]query.TrackRow, error) {
	key := selKey(sel) + "|" + strconv.Itoa(limit)
	if rows, found := s.tracksCache.Get(key); found {
		return rows, nil
	}

	cctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()
	rows, err := s.engine.TopTracks(cctx, sel, limit)
	if err != nil {
		return nil, err
	}
	s.tracksCache.Set(key, rows)
	return rows, nil
}

func (s *Server) getArtists(ctx context.Context, sel core.Selection, limit int) ([]query.ArtistRow, error) {
	key := selKey(sel) + "|" + strconv.Itoa(limit)
	if rows, found := s.artistsCache.Get(key); found {
		return rows, nil
	}

	cctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()
	rows, err := s.engine.TopArtists(cctx, sel, limit)
	if err != nil {
		return nil, err
	}
	s.artistsCache.Set(key, rows)
	return rows, nil
}

func (s *Server) getTrend(ctx context.Context, country string, window core.YearWindow, topN int) (query.TrendView, error) {
	key := country + "|" + strconv.Itoa(window.From) + "-" + strconv.Itoa(window.To) + "|" + strconv.Itoa(topN)
	if view, found := s.trendCache.Get(key); found {
		return view, nil
	}

	cctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()
	view, err := s.engine.ArtistTrend(cctx, country, window, topN)
	if err != nil {
		return query.TrendView{}, err
	}
	s.trendCache.Set(key, view)
	return view, nil
}

// onSelectionChange drops the outgoing selection's cached views, then warms
// the caches for the new one. Runs as a selection subscriber, synchronously,
// so the partials fired by the same selection change find warm entries.
func (s *Server) onSelectionChange(sel core.Selection) {
	s.prevMu.Lock()
	prev := s.prevSel
	s.prevSel = sel
	s.prevMu.Unlock()

	if prev != (core.Selection{}) && prev != sel {
		s.evictSelection(prev)
	}
	s.warmCaches(sel)
}

// evictSelection removes every cached view derived from the given selection.
// Summary keys are exactly the selection key; tracks and artists append a
// limit suffix; trend keys start with the country.
func (s *Server) evictSelection(sel core.Selection) {
	key := selKey(sel)
	s.summaryCache.Delete(key)
	s.tracksCache.DeletePrefix(key + "|")
	s.artistsCache.DeletePrefix(key + "|")
	s.trendCache.DeletePrefix(sel.Country + "|")
}

// warmCaches precomputes the default views for a fresh selection.
func (s *Server) warmCaches(sel core.Selection) {
	ctx, cancel := context.WithTimeout(context.Background(), partialTimeout)
	defer cancel()

	if _, _, err := s.getSummary(ctx, sel); err != nil {
		slog.Warn("Cache warm failed for summary", "error", err, "country", sel.Country, "year", sel.Year)
	}
	if _, err := s.getTracks(ctx, sel, query.DefaultTrackLimit); err != nil {
		slog.Warn("Cache warm failed for tracks", "error", err, "country", sel.Country, "year", sel.Year)
	}
	if _, err := s.getArtists(ctx, sel, query.DefaultTrackLimit); err != nil {
		slog.Warn("Cache warm failed for artists", "error", err, "country", sel.Country, "year", sel.Year)
	}
	window := core.YearWindow{From: sel.Year - 4, To: sel.Year}
	if _, err := s.getTrend(ctx, sel.Country, window, query.DefaultTrendSeries); err != nil {
		slog.Warn("Cache warm failed for trend", "error", err, "country", sel.Country, "year", sel.Year)
	}
}

// hxTrigger encodes an HX-Trigger header payload.
func hxTrigger(event string, detail any) string {
	payload, err := json.Marshal(map[string]any{event: detail})
	if err != nil {
		return event
	}
	return string(payload)
}
