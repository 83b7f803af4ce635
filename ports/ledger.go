package ports

import (
	"context"

	"github.com/layer-3/hackledger/core"
)

// LedgerReader is the read-only contract over the authoritative ledger. Errors
// wrap core.ErrLedgerUnreachable or core.ErrEntityNotFound.
type LedgerReader interface {
	CountHackathons(ctx context.Context) (uint64, error)
	GetHackathon(ctx context.Context, id uint64) (*core.Hackathon, error)
	GetPrizes(ctx context.Context, id uint64) ([]core.Prize, error)
	GetJudges(ctx context.Context, id uint64) ([]string, error)
	GetProject(ctx context.Context, hackathonID, projectID uint64) (*core.Project, error)
	IsJudge(ctx context.Context, hackathonID uint64, address string) (bool, error)
}
