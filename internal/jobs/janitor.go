package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/narrate/internal/tasks"
)

// Janitor periodically removes finished tasks older than MaxAge.
type Janitor struct {
	store    tasks.Store
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

// JanitorConfig configures a Janitor.
type JanitorConfig struct {
	Store    tasks.Store
	Interval time.Duration // default: 1h
	MaxAge   time.Duration // default: 24h
	Logger   *slog.Logger
}

// NewJanitor creates a janitor for cfg.Store.
func NewJanitor(cfg JanitorConfig) *Janitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Janitor{
		store:    cfg.Store,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger.With("component", "janitor"),
	}
}

// Sweep runs one cleanup pass and returns the number of removed tasks.
func (j *Janitor) Sweep() int {
	removed := j.store.Cleanup(j.maxAge)
	if removed > 0 {
		j.logger.Debug("sweep removed finished tasks", "count", removed, "max_age", j.maxAge)
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}
