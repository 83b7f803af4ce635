package ports

import (
	"context"
	"time"

	"github.com/layer-3/hackledger/core"
)

// IdentityStore persists registered identities. Address uniqueness is
// enforced by the store itself.
type IdentityStore interface {
	// CreateIdentity returns core.ErrAlreadyRegistered when the address exists
	CreateIdentity(ctx context.Context, identity *core.Identity) error
	// GetIdentityByAddress returns core.ErrNotRegistered when absent
	GetIdentityByAddress(ctx context.Context, address string) (*core.Identity, error)
	TouchLogin(ctx context.Context, identityID string, at time.Time) error
	// ListIdentities returns all identities, or those with the given role
	ListIdentities(ctx context.Context, role *core.Role) ([]core.Identity, error)
}

// CacheStore mirrors ledger entities. Upserts are idempotent and report
// whether anything was written.
type CacheStore interface {
	UpsertHackathon(ctx context.Context, h core.Hackathon, syncedAt time.Time) (core.WriteResult, error)
	UpsertPrize(ctx context.Context, p core.Prize, syncedAt time.Time) (core.WriteResult, error)
	UpsertJudge(ctx context.Context, j core.JudgeAssignment, syncedAt time.Time) (core.WriteResult, error)
	UpsertProject(ctx context.Context, p core.Project, syncedAt time.Time) (core.WriteResult, error)

	// Lookups return core.ErrCacheMiss when absent
	GetHackathon(ctx context.Context, id uint64) (*core.CachedHackathon, error)
	GetJudge(ctx context.Context, hackathonID uint64, address string) (*core.CachedJudge, error)
	ListJudges(ctx context.Context, hackathonID uint64) ([]core.CachedJudge, error)
}

// RevocationStore keeps revoked session ids until they would have expired
type RevocationStore interface {
	RevokeSession(ctx context.Context, sessionID string, expiry time.Duration) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)
}
