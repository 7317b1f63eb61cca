package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// RolloverSpec fires at midnight UTC on the first of every month.
	RolloverSpec = "0 0 1 * *"
	// SweepSpec is how often expired cache entries are dropped.
	SweepSpec = "@every 10m"
)

// StatsCache is implemented by services.StatisticsService.
type StatsCache interface {
	Invalidate()
	SweepExpired() int
}

// CacheWorker keeps the statistics cache honest between writes: reports
// that depend on the current month are purged when the month changes, and
// expired entries are swept so they do not pin memory.
type CacheWorker struct {
	cache      StatsCache
	cron       *cron.Cron
	rolloverID cron.EntryID
}

func NewCacheWorker(cache StatsCache) (*CacheWorker, error) {
	w := &CacheWorker{
		cache: cache,
		cron:  cron.New(cron.WithLocation(time.UTC)),
	}
	id, err := w.cron.AddFunc(RolloverSpec, w.Rollover)
	if err != nil {
		return nil, fmt.Errorf("schedule month rollover: %w", err)
	}
	w.rolloverID = id
	if _, err := w.cron.AddFunc(SweepSpec, func() { w.Sweep() }); err != nil {
		return nil, fmt.Errorf("schedule cache sweep: %w", err)
	}
	return w, nil
}

func (w *CacheWorker) Start() {
	w.cron.Start()
	slog.Info("Cache worker started", "component", "worker", "jobs", len(w.cron.Entries()))
}

// Stop prevents new runs and waits for a running job, at most until ctx is done.
func (w *CacheWorker) Stop(ctx context.Context) error {
	done := w.cron.Stop().Done()
	select {
	case <-done:
		slog.Info("Cache worker stopped", "component", "worker")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rollover purges every cached report.
func (w *CacheWorker) Rollover() {
	w.cache.Invalidate()
	slog.Info("Statistics cache purged for month rollover", "component", "worker")
}

// Sweep drops expired entries and returns how many were removed.
func (w *CacheWorker) Sweep() int {
	n := w.cache.SweepExpired()
	if n > 0 {
		slog.Debug("Expired statistics entries swept", "component", "worker", "entries", n)
	}
	return n
}

// NextRollover reports when the next purge is scheduled; zero before Start.
func (w *CacheWorker) NextRollover() time.Time {
	return w.cron.Entry(w.rolloverID).Next
}
