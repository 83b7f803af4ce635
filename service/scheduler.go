package service

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// DefaultSyncInterval is the pause between periodic runs
const DefaultSyncInterval = 5 * time.Minute

// SchedulerConfig configures the periodic sync scheduler
type SchedulerConfig struct {
	Sync     *SyncService
	Interval time.Duration
	// RunAtStart triggers a run immediately instead of after the first interval
	RunAtStart bool
	Logger     *slog.Logger
}

// Scheduler executes SyncAll on a fixed cadence
type Scheduler struct {
	sync       *SyncService
	interval   time.Duration
	runAtStart bool
	logger     *slog.Logger
}

// NewScheduler constructs a scheduler with defaults for unset fields
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Scheduler{
		sync:       cfg.Sync,
		interval:   interval,
		runAtStart: cfg.RunAtStart,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start runs the scheduling loop until the context is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.sync == nil {
		return
	}
	if s.runAtStart {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.sync.SyncAll(ctx); err != nil {
		s.logger.Error("scheduled sync failed", "error", err)
	}
}
