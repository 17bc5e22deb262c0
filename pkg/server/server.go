package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/aqiwatch/internal/scheduler"
	"github.com/elonfeng/aqiwatch/internal/store"
	"github.com/elonfeng/aqiwatch/pkg/aqi"
	"github.com/elonfeng/aqiwatch/pkg/insight"
	"github.com/elonfeng/aqiwatch/pkg/location"
	"github.com/elonfeng/aqiwatch/pkg/prediction"
	"github.com/elonfeng/aqiwatch/pkg/source"
	"github.com/elonfeng/aqiwatch/pkg/travel"
	"github.com/elonfeng/aqiwatch/pkg/trend"
)

const maxImportBytes = 10 << 20

// Collector runs one collection pass on demand.
type Collector interface {
	CollectOnce(ctx context.Context) (*scheduler.RunResult, error)
}

// Options wires the server's dependencies. Collector may be nil, in which
// case POST /api/v1/collect is unavailable.
type Options struct {
	Store     store.Store
	Resolver  *location.Resolver
	Source    source.Source
	Engine    *trend.Engine
	Collector Collector
	Logger    *slog.Logger
	Port      int
}

// Server provides the HTTP API.
type Server struct {
	store     store.Store
	resolver  *location.Resolver
	source    source.Source
	engine    *trend.Engine
	collector Collector
	logger    *slog.Logger
	port      int
}

// New creates a new HTTP server.
func New(o Options) *Server {
	if o.Port == 0 {
		o.Port = 8080
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Server{
		store:     o.Store,
		resolver:  o.Resolver,
		source:    o.Source,
		engine:    o.Engine,
		collector: o.Collector,
		logger:    o.Logger,
		port:      o.Port,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/locations", s.handleLocations)
	mux.HandleFunc("/api/v1/air-quality", s.handleAirQuality)
	mux.HandleFunc("/api/v1/insights", s.handleInsights)
	mux.HandleFunc("/api/v1/aqi-levels", s.handleLevels)
	mux.HandleFunc("/api/v1/pollutants", s.handlePollutants)
	mux.HandleFunc("/api/v1/predictions", s.handlePredictions)
	mux.HandleFunc("/api/v1/predictions/export", s.handleExport)
	mux.HandleFunc("/api/v1/predictions/import", s.handleImport)
	mux.HandleFunc("/api/v1/travel", s.handleTravel)
	mux.HandleFunc("/api/v1/readings", s.handleReadings)
	mux.HandleFunc("/api/v1/trends", s.handleTrends)
	mux.HandleFunc("/api/v1/advisories", s.handleAdvisories)
	mux.HandleFunc("/api/v1/collect", s.handleCollect)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("aqiwatch server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stateInfo struct {
	State  string   `json:"state"`
	Cities []string `json:"cities"`
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	dir := s.resolver.Directory()

	if state := r.URL.Query().Get("state"); state != "" {
		cities, err := dir.Cities(state)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeList(w, cities)
		return
	}

	states := dir.States()
	infos := make([]stateInfo, 0, len(states))
	for _, st := range states {
		cities, _ := dir.Cities(st)
		infos = append(infos, stateInfo{State: st, Cities: cities})
	}
	writeList(w, infos)
}

func (s *Server) fetch(r *http.Request) (*source.Reading, error) {
	q, err := locationQuery(r)
	if err != nil {
		return nil, err
	}
	loc, err := s.resolver.Resolve(r.Context(), q)
	if err != nil {
		return nil, err
	}
	return s.source.Fetch(r.Context(), loc)
}

func (s *Server) handleAirQuality(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	reading, err := s.fetch(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": reading})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	reading, err := s.fetch(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": insight.Build(reading)})
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeList(w, aqi.Levels())
}

func (s *Server) handlePollutants(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeList(w, aqi.Pollutants())
}

func (s *Server) predictionOpts(r *http.Request) (store.PredictionOpts, error) {
	q := r.URL.Query()
	opts := store.PredictionOpts{
		States: listParam(q["state"]),
		Cities: listParam(q["city"]),
	}
	if d := q.Get("date"); d != "" {
		date, err := prediction.ParseDate(d)
		if err != nil {
			return opts, badRequest(err)
		}
		opts.Date = date
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return opts, badRequest(fmt.Errorf("invalid limit %q", l))
		}
		opts.Limit = n
	}
	return opts, nil
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	opts, err := s.predictionOpts(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	records, err := s.store.ListPredictions(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeList(w, orEmpty(records))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	opts, err := s.predictionOpts(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	records, err := s.store.ListPredictions(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="predictions.csv"`)
	if err := prediction.WriteCSV(w, records); err != nil {
		s.logger.Error("export predictions", "err", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	records, err := prediction.ReadCSV(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}
	inserted, err := s.store.InsertPredictions(r.Context(), records)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("predictions imported", "rows", len(records), "inserted", inserted)
	writeJSON(w, http.StatusOK, map[string]int{
		"rows":     len(records),
		"inserted": inserted,
		"skipped":  len(records) - inserted,
	})
}

func (s *Server) handleTravel(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()

	sev, err := travel.ParseSeverity(q.Get("severity"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	date, err := prediction.ParseDate(q.Get("date"))
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}

	records, err := s.store.ListPredictions(r.Context(), store.PredictionOpts{Date: date})
	if err != nil {
		s.writeError(w, err)
		return
	}
	plan, err := travel.Build(records, travel.Query{
		Date:     date,
		States:   listParam(q["state"]),
		Cities:   listParam(q["city"]),
		Severity: sev,
	})
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": plan})
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	opts := store.ReadingOpts{
		State: q.Get("state"),
		City:  q.Get("city"),
		Limit: 100,
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.writeError(w, badRequest(fmt.Errorf("invalid since %q: want RFC3339", since)))
			return
		}
		opts.Since = t
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			opts.Limit = n
		}
	}

	readings, err := s.store.ListReadings(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeList(w, orEmpty(readings))
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	state, city := q.Get("state"), q.Get("city")

	if state != "" || city != "" {
		if state == "" || city == "" {
			s.writeError(w, badRequest(errors.New("both state and city are required")))
			return
		}
		t, err := s.engine.CityTrend(r.Context(), state, city)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": t})
		return
	}

	trends, err := s.engine.Detect(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeList(w, orEmpty(trends))
}

func (s *Server) handleAdvisories(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	items, err := s.store.ListAdvisories(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeList(w, orEmpty(items))
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if s.collector == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "collection is not configured"})
		return
	}
	res, err := s.collector.CollectOnce(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func locationQuery(r *http.Request) (location.Query, error) {
	q := r.URL.Query()
	lq := location.Query{
		State:   q.Get("state"),
		City:    q.Get("city"),
		Zip:     q.Get("zip"),
		Country: q.Get("country"),
	}
	for _, p := range []struct {
		name string
		dst  **float64
	}{{"lat", &lq.Lat}, {"lon", &lq.Lon}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return lq, fmt.Errorf("%w: %s is not a number", location.ErrInvalidQuery, p.name)
		}
		*p.dst = &v
	}
	return lq, nil
}

// listParam accepts both repeated parameters and comma separated values.
func listParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &requestError{err: err} }

func statusFor(err error) int {
	var (
		reqErr *requestError
		apiErr *source.APIError
	)
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, location.ErrInvalidQuery),
		errors.Is(err, travel.ErrInvalidSeverity):
		return http.StatusBadRequest
	case errors.Is(err, location.ErrUnknownState),
		errors.Is(err, location.ErrUnknownCity),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr), errors.Is(err, source.ErrNoData):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return false
	}
	return true
}

func writeList[T any](w http.ResponseWriter, items []T) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"count": len(items),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
