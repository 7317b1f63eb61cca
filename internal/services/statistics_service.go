package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/backend"
	"expenses/internal/cache"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
)

// Report names, used as cache keys and metric labels.
const (
	ReportTopDays       = "top_days"
	ReportMonthlyChange = "monthly_change"
	ReportPredictions   = "predictions"
)

type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// StatisticsService serves the three reports from a short-lived cache.
// Invalidate must be called after every expense write.
type StatisticsService struct {
	reader backend.StatisticsReader
	now    func() time.Time

	topDays     *cache.LRUCache[[]core.TopDayExpenditure]
	changes     *cache.LRUCache[[]core.MonthlyPercentageChange]
	predictions *cache.LRUCache[[]core.ExpenditurePrediction]
	caches      *cache.Manager
	metrics     *metrics.Metrics

	// mu orders cache fills against Invalidate; generation tells a fill
	// whether a write happened while it was loading.
	mu         sync.Mutex
	generation uint64
}

func NewStatisticsService(reader backend.StatisticsReader, cfg CacheConfig, m *metrics.Metrics) *StatisticsService {
	s := &StatisticsService{
		reader:  reader,
		now:     func() time.Time { return time.Now().UTC() },
		caches:  cache.NewManager(),
		metrics: m,
	}
	s.topDays = cache.NewLRUCache[[]core.TopDayExpenditure](cfg.Size, cfg.TTL, cache.WithObserver(m.CacheObserver(ReportTopDays)))
	s.changes = cache.NewLRUCache[[]core.MonthlyPercentageChange](cfg.Size, cfg.TTL, cache.WithObserver(m.CacheObserver(ReportMonthlyChange)))
	s.predictions = cache.NewLRUCache[[]core.ExpenditurePrediction](cfg.Size, cfg.TTL, cache.WithObserver(m.CacheObserver(ReportPredictions)))
	s.caches.Register(s.topDays, s.changes, s.predictions)
	return s
}

// WithClock replaces the UTC wall clock, which decides the prediction window.
func (s *StatisticsService) WithClock(now func() time.Time) *StatisticsService {
	s.now = now
	return s
}

func (s *StatisticsService) TopDays(ctx context.Context) ([]core.TopDayExpenditure, error) {
	return cached(s, s.topDays, ReportTopDays, ReportTopDays, func() ([]core.TopDayExpenditure, error) {
		return s.reader.TopDays(ctx, core.TopDaysPerUser)
	})
}

func (s *StatisticsService) MonthlyChanges(ctx context.Context) ([]core.MonthlyPercentageChange, error) {
	return cached(s, s.changes, ReportMonthlyChange, ReportMonthlyChange, func() ([]core.MonthlyPercentageChange, error) {
		return s.reader.MonthlyChanges(ctx)
	})
}

// Predictions are keyed by the current month so a rollover never serves
// last month's window.
func (s *StatisticsService) Predictions(ctx context.Context) ([]core.ExpenditurePrediction, error) {
	now := s.now()
	return cached(s, s.predictions, ReportPredictions, core.MonthOf(now).String(), func() ([]core.ExpenditurePrediction, error) {
		return s.reader.Predictions(ctx, now)
	})
}

// All computes the three reports concurrently. Any failure fails the whole.
func (s *StatisticsService) All(ctx context.Context) (core.Statistics, error) {
	var out core.Statistics
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TopDays, err = s.TopDays(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.MonthlyChange, err = s.MonthlyChanges(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Predictions, err = s.Predictions(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Statistics{}, err
	}
	return out, nil
}

func (s *StatisticsService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if n := s.caches.PurgeAll(); n > 0 {
		slog.Debug("Statistics cache invalidated", log.FieldComponent, log.ComponentStats, "entries", n)
	}
	s.metrics.CachePurged()
}

// SweepExpired drops expired entries and returns how many were removed.
func (s *StatisticsService) SweepExpired() int {
	return s.caches.CleanExpired()
}

func cached[T any](s *StatisticsService, c *cache.LRUCache[T], report, key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	slog.Debug("Statistics cache miss", log.FieldComponent, log.ComponentStats, log.FieldReport, report, "key", key)
	v, err := load()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("compute %s: %w", report, err)
	}

	s.mu.Lock()
	if s.generation == gen {
		c.Set(key, v)
	}
	s.mu.Unlock()
	return v, nil
}
