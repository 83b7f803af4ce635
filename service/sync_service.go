package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// DefaultSyncWorkers is the number of hackathons reconciled concurrently
const DefaultSyncWorkers = 4

// SyncConfig wires the reconciliation service
type SyncConfig struct {
	Ledger       ports.LedgerReader
	Cache        ports.CacheStore
	Events       ports.EventPublisher
	Freshness    *FreshnessTracker
	Workers      int
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Now          func() time.Time
}

// SyncService mirrors the ledger into the cache. Runs may overlap; every
// upsert is independently complete and idempotent.
type SyncService struct {
	ledger    ports.LedgerReader
	cache     ports.CacheStore
	events    ports.EventPublisher
	freshness *FreshnessTracker
	workers   int
	logger    *slog.Logger
	metrics   syncMetrics
	now       func() time.Time
}

// NewSyncService constructs a sync service with defaults for unset fields
func NewSyncService(cfg SyncConfig) *SyncService {
	s := &SyncService{
		ledger:    cfg.Ledger,
		cache:     cfg.Cache,
		events:    cfg.Events,
		freshness: cfg.Freshness,
		workers:   cfg.Workers,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if s.workers <= 0 {
		s.workers = DefaultSyncWorkers
	}
	if s.freshness == nil {
		s.freshness = NewFreshnessTracker()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "sync")
	s.metrics.init(cfg.PromRegistry)
	return s
}

// SyncAll reconciles every hackathon on the ledger. Only a failure to count
// hackathons aborts the run; everything else is skipped and reported. A
// cancelled context stops the run between hackathons and the partial report
// is returned with Cancelled set.
func (s *SyncService) SyncAll(ctx context.Context) (*core.SyncReport, error) {
	report := &core.SyncReport{StartedAt: s.now()}

	count, err := s.ledger.CountHackathons(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count hackathons: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for id := uint64(1); id <= count; id++ {
		if ctx.Err() != nil {
			report.MarkCancelled()
			break
		}
		g.Go(func() error {
			s.syncGraph(ctx, id, report)
			return nil
		})
	}
	_ = g.Wait()

	s.finish(ctx, report)
	return report, nil
}

// SyncHackathon reconciles a single hackathon graph
func (s *SyncService) SyncHackathon(ctx context.Context, id uint64) (*core.SyncReport, error) {
	report := &core.SyncReport{StartedAt: s.now()}
	s.syncGraph(ctx, id, report)
	s.finish(ctx, report)
	return report, nil
}

// syncGraph fetches and upserts one hackathon with its prizes, judges and
// projects. Failed entities are recorded and skipped.
func (s *SyncService) syncGraph(ctx context.Context, id uint64, report *core.SyncReport) {
	if ctx.Err() != nil {
		report.MarkCancelled()
		return
	}
	hackathonKey := core.HackathonExternalID(id)

	h, err := s.ledger.GetHackathon(ctx, id)
	if err != nil {
		s.skip(report, core.EntityHackathon, hackathonKey, err)
		return
	}
	report.AddHackathon()

	syncedAt := s.now()
	if !s.record(report, core.EntityHackathon, hackathonKey, func() (core.WriteResult, error) {
		return s.cache.UpsertHackathon(ctx, *h, syncedAt)
	}) {
		return
	}
	s.freshness.MarkVerified(core.EntityHackathon, hackathonKey, syncedAt)

	if ctx.Err() != nil {
		report.MarkCancelled()
		return
	}

	var g errgroup.Group
	g.SetLimit(s.workers)

	g.Go(func() error {
		prizes, err := s.ledger.GetPrizes(ctx, id)
		if err != nil {
			s.skip(report, core.EntityPrize, hackathonKey, err)
			return nil
		}
		for _, p := range prizes {
			s.record(report, core.EntityPrize, core.PrizeExternalID(id, p.Position), func() (core.WriteResult, error) {
				return s.cache.UpsertPrize(ctx, p, syncedAt)
			})
		}
		return nil
	})

	g.Go(func() error {
		judges, err := s.ledger.GetJudges(ctx, id)
		if err != nil {
			s.skip(report, core.EntityJudge, hackathonKey, err)
			return nil
		}
		verifiedAt := s.now()
		for _, addr := range judges {
			key := core.JudgeExternalID(id, addr)
			if s.record(report, core.EntityJudge, key, func() (core.WriteResult, error) {
				return s.cache.UpsertJudge(ctx, core.JudgeAssignment{HackathonID: id, Address: addr}, syncedAt)
			}) {
				s.freshness.MarkVerified(core.EntityJudge, key, verifiedAt)
			}
		}
		return nil
	})

	var projectsDone atomic.Int64
	for pid := uint64(1); pid <= h.ProjectCount; pid++ {
		g.Go(func() error {
			key := core.ProjectExternalID(id, pid)
			p, err := s.ledger.GetProject(ctx, id, pid)
			if err != nil {
				s.skip(report, core.EntityProject, key, err)
				return nil
			}
			if s.record(report, core.EntityProject, key, func() (core.WriteResult, error) {
				return s.cache.UpsertProject(ctx, *p, syncedAt)
			}) {
				projectsDone.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug("hackathon reconciled",
		"hackathon_id", id,
		"projects", projectsDone.Load(),
		"project_count", h.ProjectCount,
	)
}

// record runs one upsert, counting the outcome. It reports whether the cache
// now holds the entity.
func (s *SyncService) record(report *core.SyncReport, entity core.EntityType, externalID string, upsert func() (core.WriteResult, error)) bool {
	res, err := upsert()
	if err != nil {
		s.skip(report, entity, externalID, err)
		return false
	}
	report.Record(res)
	s.metrics.records.WithLabelValues(string(entity), res.String()).Inc()
	return true
}

func (s *SyncService) skip(report *core.SyncReport, entity core.EntityType, externalID string, err error) {
	report.Skip(entity, externalID, err)
	s.metrics.skipped.WithLabelValues(string(entity)).Inc()
	s.logger.Warn("skipping entity", "entity", entity, "external_id", externalID, "error", err)
}

func (s *SyncService) finish(ctx context.Context, report *core.SyncReport) {
	if ctx.Err() != nil {
		report.MarkCancelled()
	}
	report.FinishedAt = s.now()
	s.metrics.runs.Inc()
	s.metrics.duration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	s.logger.Info("sync finished",
		"hackathons", report.Hackathons,
		"created", report.Created,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"skipped", report.SkippedCount(),
		"cancelled", report.Cancelled,
	)

	if s.events != nil {
		// The run context may already be cancelled
		if err := s.events.PublishSyncCompleted(context.WithoutCancel(ctx), report); err != nil {
			s.logger.Warn("failed to publish sync completed event", "error", err)
		}
	}
}
