package ledger

import (
	"context"
	"fmt"

	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// BoundedReader caps concurrent ledger reads and their rate
type BoundedReader struct {
	next    ports.LedgerReader
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewBoundedReader allows at most maxInFlight concurrent reads and
// requestsPerSecond reads per second. A non-positive rate disables the limit.
func NewBoundedReader(next ports.LedgerReader, maxInFlight int64, requestsPerSecond float64) ports.LedgerReader {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &BoundedReader{
		next:    next,
		sem:     semaphore.NewWeighted(maxInFlight),
		limiter: rate.NewLimiter(limit, int(maxInFlight)),
	}
}

func (b *BoundedReader) acquire(ctx context.Context) (func(), error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w: %w", core.ErrLedgerUnreachable, err)
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("in-flight limit: %w: %w", core.ErrLedgerUnreachable, err)
	}
	return func() { b.sem.Release(1) }, nil
}

func bounded[T any](ctx context.Context, b *BoundedReader, fn func() (T, error)) (T, error) {
	release, err := b.acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer release()
	return fn()
}

func (b *BoundedReader) CountHackathons(ctx context.Context) (uint64, error) {
	return bounded(ctx, b, func() (uint64, error) { return b.next.CountHackathons(ctx) })
}

func (b *BoundedReader) GetHackathon(ctx context.Context, id uint64) (*core.Hackathon, error) {
	return bounded(ctx, b, func() (*core.Hackathon, error) { return b.next.GetHackathon(ctx, id) })
}

func (b *BoundedReader) GetPrizes(ctx context.Context, id uint64) ([]core.Prize, error) {
	return bounded(ctx, b, func() ([]core.Prize, error) { return b.next.GetPrizes(ctx, id) })
}

func (b *BoundedReader) GetJudges(ctx context.Context, id uint64) ([]string, error) {
	return bounded(ctx, b, func() ([]string, error) { return b.next.GetJudges(ctx, id) })
}

func (b *BoundedReader) GetProject(ctx context.Context, hackathonID, projectID uint64) (*core.Project, error) {
	return bounded(ctx, b, func() (*core.Project, error) { return b.next.GetProject(ctx, hackathonID, projectID) })
}

func (b *BoundedReader) IsJudge(ctx context.Context, hackathonID uint64, address string) (bool, error) {
	return bounded(ctx, b, func() (bool, error) { return b.next.IsJudge(ctx, hackathonID, address) })
}
