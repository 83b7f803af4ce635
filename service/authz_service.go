package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultAuthzStaleness is how long a cached grant is trusted
const DefaultAuthzStaleness = 2 * time.Minute

const (
	sourceCache  = "cache"
	sourceLedger = "ledger"
)

// AuthzConfig wires the authorization resolver
type AuthzConfig struct {
	Ledger       ports.LedgerReader
	Cache        ports.CacheStore
	Identities   ports.IdentityStore
	Freshness    *FreshnessTracker
	Staleness    time.Duration
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Now          func() time.Time
}

// AuthzService answers role checks against a hackathon. A fresh cache record
// may grant; every denial is confirmed by the ledger.
type AuthzService struct {
	ledger     ports.LedgerReader
	cache      ports.CacheStore
	identities ports.IdentityStore
	freshness  *FreshnessTracker
	staleness  time.Duration
	logger     *slog.Logger
	metrics    authzMetrics
	now        func() time.Time
}

// NewAuthzService constructs a resolver with defaults for unset fields
func NewAuthzService(cfg AuthzConfig) *AuthzService {
	s := &AuthzService{
		ledger:     cfg.Ledger,
		cache:      cfg.Cache,
		identities: cfg.Identities,
		freshness:  cfg.Freshness,
		staleness:  cfg.Staleness,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if s.staleness <= 0 {
		s.staleness = DefaultAuthzStaleness
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
	s.logger = s.logger.With("component", "authz")
	s.metrics.init(cfg.PromRegistry)
	return s
}

// IsAuthorized reports whether address holds role for the hackathon. A ledger
// that cannot be reached denies and returns the error.
func (s *AuthzService) IsAuthorized(ctx context.Context, address string, role core.Role, hackathonID uint64) (bool, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return false, err
	}

	var (
		granted bool
		source  string
	)
	switch role {
	case core.RoleJudge:
		granted, source, err = s.isJudge(ctx, addr, hackathonID)
	case core.RoleOrganizer:
		granted, source, err = s.isOrganizer(ctx, addr, hackathonID)
	case core.RoleParticipant:
		granted, source, err = s.isParticipant(ctx, addr, hackathonID)
	default:
		return false, fmt.Errorf("%q: %w", role, core.ErrInvalidRole)
	}

	result := "denied"
	switch {
	case err != nil:
		result = "error"
	case granted:
		result = "granted"
	}
	s.metrics.decisions.WithLabelValues(role.String(), source, result).Inc()

	if err != nil {
		if errors.Is(err, core.ErrEntityNotFound) {
			return false, nil
		}
		s.logger.Warn("authorization failed closed",
			"address", addr, "role", role, "hackathon_id", hackathonID, "error", err)
		return false, err
	}
	return granted, nil
}

// CachedJudges lists the judge assignments mirrored for a hackathon. The list
// may be stale and is never used for an authorization decision.
func (s *AuthzService) CachedJudges(ctx context.Context, hackathonID uint64) ([]core.CachedJudge, error) {
	judges, err := s.cache.ListJudges(ctx, hackathonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached judges: %w", err)
	}
	return judges, nil
}

func (s *AuthzService) isJudge(ctx context.Context, addr string, hackathonID uint64) (bool, string, error) {
	key := core.JudgeExternalID(hackathonID, addr)
	now := s.now()

	cached, err := s.cache.GetJudge(ctx, hackathonID, addr)
	switch {
	case err == nil:
		if s.freshness.IsFresh(core.EntityJudge, key, cached.LastSyncedAt, now, s.staleness) {
			return true, sourceCache, nil
		}
	case !errors.Is(err, core.ErrCacheMiss):
		s.logger.Warn("judge cache lookup failed", "external_id", key, "error", err)
	}

	ok, err := s.ledger.IsJudge(ctx, hackathonID, addr)
	if err != nil {
		return false, sourceLedger, err
	}
	if ok {
		if _, err := s.cache.UpsertJudge(ctx, core.JudgeAssignment{HackathonID: hackathonID, Address: addr}, now); err != nil {
			s.logger.Warn("failed to cache judge assignment", "external_id", key, "error", err)
		} else {
			s.freshness.MarkVerified(core.EntityJudge, key, now)
		}
	}
	return ok, sourceLedger, nil
}

func (s *AuthzService) isOrganizer(ctx context.Context, addr string, hackathonID uint64) (bool, string, error) {
	if cached, ok := s.freshHackathon(ctx, hackathonID); ok && strings.EqualFold(cached.OrganizerAddress, addr) {
		return true, sourceCache, nil
	}

	h, err := s.ledgerHackathon(ctx, hackathonID)
	if err != nil {
		return false, sourceLedger, err
	}
	return strings.EqualFold(h.OrganizerAddress, addr), sourceLedger, nil
}

func (s *AuthzService) isParticipant(ctx context.Context, addr string, hackathonID uint64) (bool, string, error) {
	identity, err := s.identities.GetIdentityByAddress(ctx, addr)
	if errors.Is(err, core.ErrNotRegistered) {
		return false, sourceCache, nil
	}
	if err != nil {
		return false, sourceCache, err
	}
	if identity.Role != core.RoleParticipant {
		return false, sourceCache, nil
	}

	if cached, ok := s.freshHackathon(ctx, hackathonID); ok && cached.Active {
		return true, sourceCache, nil
	}

	h, err := s.ledgerHackathon(ctx, hackathonID)
	if err != nil {
		return false, sourceLedger, err
	}
	return h.Active, sourceLedger, nil
}

func (s *AuthzService) freshHackathon(ctx context.Context, hackathonID uint64) (*core.CachedHackathon, bool) {
	key := core.HackathonExternalID(hackathonID)
	cached, err := s.cache.GetHackathon(ctx, hackathonID)
	if err != nil {
		if !errors.Is(err, core.ErrCacheMiss) {
			s.logger.Warn("hackathon cache lookup failed", "external_id", key, "error", err)
		}
		return nil, false
	}
	return cached, s.freshness.IsFresh(core.EntityHackathon, key, cached.LastSyncedAt, s.now(), s.staleness)
}

// ledgerHackathon reads the hackathon from the ledger and refreshes the cache
func (s *AuthzService) ledgerHackathon(ctx context.Context, hackathonID uint64) (*core.Hackathon, error) {
	h, err := s.ledger.GetHackathon(ctx, hackathonID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	key := core.HackathonExternalID(hackathonID)
	if _, err := s.cache.UpsertHackathon(ctx, *h, now); err != nil {
		s.logger.Warn("failed to cache hackathon", "external_id", key, "error", err)
	} else {
		s.freshness.MarkVerified(core.EntityHackathon, key, now)
	}
	return h, nil
}
