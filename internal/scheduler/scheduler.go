package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/aqiwatch/internal/store"
	"github.com/elonfeng/aqiwatch/pkg/alert"
	"github.com/elonfeng/aqiwatch/pkg/aqi"
	"github.com/elonfeng/aqiwatch/pkg/location"
	"github.com/elonfeng/aqiwatch/pkg/source"
)

// AdvisoryCollector fetches advisory items.
type AdvisoryCollector interface {
	Collect(ctx context.Context) ([]source.Advisory, error)
}

// Options configures a Scheduler. Zero values fall back to defaults.
type Options struct {
	Watch            []location.Location
	CollectInterval  time.Duration
	AdvisoryInterval time.Duration
	MinRiskScore     int
	Concurrency      int
}

// Scheduler runs periodic collection, alerting and advisory refresh.
type Scheduler struct {
	store       store.Store
	source      source.Source
	advisories  AdvisoryCollector
	alertMgr    *alert.Manager
	watch       []location.Location
	collectInt  time.Duration
	advisoryInt time.Duration
	minRisk     int
	concurrency int
	logger      *slog.Logger
}

// New creates a new scheduler. advisories and alertMgr may be nil.
func New(s store.Store, src source.Source, advisories AdvisoryCollector, alertMgr *alert.Manager, opts Options, logger *slog.Logger) *Scheduler {
	if opts.CollectInterval <= 0 {
		opts.CollectInterval = 30 * time.Minute
	}
	if opts.AdvisoryInterval <= 0 {
		opts.AdvisoryInterval = time.Hour
	}
	if opts.MinRiskScore <= 0 {
		opts.MinRiskScore = 3
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if alertMgr == nil {
		alertMgr = alert.NewManager(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:       s,
		source:      src,
		advisories:  advisories,
		alertMgr:    alertMgr,
		watch:       opts.Watch,
		collectInt:  opts.CollectInterval,
		advisoryInt: opts.AdvisoryInterval,
		minRisk:     opts.MinRiskScore,
		concurrency: opts.Concurrency,
		logger:      logger,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	collectTicker := time.NewTicker(s.collectInt)
	advisoryTicker := time.NewTicker(s.advisoryInt)
	defer collectTicker.Stop()
	defer advisoryTicker.Stop()

	s.logger.Info("scheduler: initial collection", "cities", len(s.watch))
	s.collect(ctx)
	s.refreshAdvisories(ctx)

	s.logger.Info("scheduler: running",
		"collect_every", s.collectInt.String(),
		"advisories_every", s.advisoryInt.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return ctx.Err()
		case <-collectTicker.C:
			s.collect(ctx)
		case <-advisoryTicker.C:
			s.refreshAdvisories(ctx)
		}
	}
}

func (s *Scheduler) collect(ctx context.Context) {
	res, err := s.CollectOnce(ctx)
	if err != nil {
		s.logger.Error("collection failed", "err", err)
		return
	}
	s.logger.Info("collection done",
		"run_id", res.RunID,
		"stored", len(res.Readings),
		"failed", len(res.Failures),
		"alerts", res.Alerts)
}

func (s *Scheduler) refreshAdvisories(ctx context.Context) {
	if s.advisories == nil {
		return
	}
	n, err := s.RefreshAdvisories(ctx)
	if err != nil {
		s.logger.Error("advisory refresh failed", "err", err)
		return
	}
	s.logger.Info("advisories refreshed", "items", n)
}

// Failure records a city that could not be collected.
type Failure struct {
	State string `json:"state"`
	City  string `json:"city"`
	Error string `json:"error"`
}

// RunResult summarises one collection pass.
type RunResult struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Readings  []store.Reading `json:"readings"`
	Failures  []Failure       `json:"failures"`
	Alerts    int             `json:"alerts"`
}

// CollectOnce fetches every watched city, stores the readings and raises
// alerts. Per-city failures are reported in the result; only a cancelled
// context returns an error.
func (s *Scheduler) CollectOnce(ctx context.Context) (*RunResult, error) {
	res := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Readings:  []store.Reading{},
		Failures:  []Failure{},
	}

	readings := make([]*source.Reading, len(s.watch))
	errs := make([]error, len(s.watch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, loc := range s.watch {
		g.Go(func() error {
			r, err := s.source.Fetch(gctx, loc)
			readings[i], errs[i] = r, err
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, loc := range s.watch {
		if errs[i] != nil {
			s.logger.Warn("collect failed", "state", loc.State, "city", loc.City, "err", errs[i])
			res.Failures = append(res.Failures, Failure{State: loc.State, City: loc.City, Error: errs[i].Error()})
			continue
		}

		r := readings[i]
		id, err := s.store.AddReading(ctx, res.RunID, r)
		if err != nil {
			s.logger.Error("store reading failed", "state", loc.State, "city", loc.City, "err", err)
			res.Failures = append(res.Failures, Failure{State: loc.State, City: loc.City, Error: err.Error()})
			continue
		}
		res.Readings = append(res.Readings, store.Reading{ID: id, RunID: res.RunID, Reading: *r})

		alerted, err := s.evaluateAlert(ctx, r)
		if err != nil {
			s.logger.Error("alert failed", "state", loc.State, "city", loc.City, "err", err)
		}
		if alerted {
			res.Alerts++
		}
	}

	return res, nil
}

// evaluateAlert notifies when a city's risk score reaches the minimum and
// exceeds the score last alerted for it. The remembered score resets once
// the city drops back below the minimum.
func (s *Scheduler) evaluateAlert(ctx context.Context, r *source.Reading) (bool, error) {
	if !s.alertMgr.HasNotifiers() {
		return false, nil
	}

	state, city := r.Location.State, r.Location.City
	score, _ := aqi.RiskScore(r.AQI)

	prev, err := s.store.GetAlertTier(ctx, state, city)
	if err != nil {
		return false, err
	}

	if score < s.minRisk {
		if prev != 0 {
			return false, s.store.SetAlertTier(ctx, state, city, 0)
		}
		return false, nil
	}
	if score <= prev {
		return false, nil
	}

	if err := s.alertMgr.Broadcast(ctx, alert.NewNotification(r, prev)); err != nil {
		s.logger.Warn("alert delivery incomplete", "state", state, "city", city, "err", err)
	}
	if err := s.store.SetAlertTier(ctx, state, city, score); err != nil {
		return true, err
	}
	s.logger.Info("alerted", "state", state, "city", city, "aqi", r.AQI, "risk_score", score)
	return true, nil
}

// RefreshAdvisories collects advisories and stores them.
func (s *Scheduler) RefreshAdvisories(ctx context.Context) (int, error) {
	if s.advisories == nil {
		return 0, errors.New("advisories are not configured")
	}
	items, err := s.advisories.Collect(ctx)
	if err != nil {
		return 0, fmt.Errorf("collect advisories: %w", err)
	}
	if err := s.store.UpsertAdvisories(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}
