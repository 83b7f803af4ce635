package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
)

// RetryingReader retries reads that failed with core.ErrLedgerUnreachable.
// Not-found answers are returned immediately.
type RetryingReader struct {
	next       ports.LedgerReader
	maxRetries uint64
	initial    time.Duration
	maxDelay   time.Duration
}

// NewRetryingReader wraps next with exponential backoff
func NewRetryingReader(next ports.LedgerReader, maxRetries uint64, initial time.Duration) ports.LedgerReader {
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	return &RetryingReader{
		next:       next,
		maxRetries: maxRetries,
		initial:    initial,
		maxDelay:   5 * time.Second,
	}
}

func (r *RetryingReader) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = r.maxDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)
}

func retry[T any](ctx context.Context, r *RetryingReader, fn func() (T, error)) (T, error) {
	var out T
	op := func() error {
		v, err := fn()
		if err != nil {
			if !errors.Is(err, core.ErrLedgerUnreachable) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		out = v
		return nil
	}
	if err := backoff.Retry(op, r.backOff(ctx)); err != nil {
		if !errors.Is(err, core.ErrLedgerUnreachable) && !errors.Is(err, core.ErrEntityNotFound) && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", core.ErrLedgerUnreachable, err)
		}
		return out, err
	}
	return out, nil
}

func (r *RetryingReader) CountHackathons(ctx context.Context) (uint64, error) {
	return retry(ctx, r, func() (uint64, error) { return r.next.CountHackathons(ctx) })
}

func (r *RetryingReader) GetHackathon(ctx context.Context, id uint64) (*core.Hackathon, error) {
	return retry(ctx, r, func() (*core.Hackathon, error) { return r.next.GetHackathon(ctx, id) })
}

func (r *RetryingReader) GetPrizes(ctx context.Context, id uint64) ([]core.Prize, error) {
	return retry(ctx, r, func() ([]core.Prize, error) { return r.next.GetPrizes(ctx, id) })
}

func (r *RetryingReader) GetJudges(ctx context.Context, id uint64) ([]string, error) {
	return retry(ctx, r, func() ([]string, error) { return r.next.GetJudges(ctx, id) })
}

func (r *RetryingReader) GetProject(ctx context.Context, hackathonID, projectID uint64) (*core.Project, error) {
	return retry(ctx, r, func() (*core.Project, error) { return r.next.GetProject(ctx, hackathonID, projectID) })
}

func (r *RetryingReader) IsJudge(ctx context.Context, hackathonID uint64, address string) (bool, error) {
	return retry(ctx, r, func() (bool, error) { return r.next.IsJudge(ctx, hackathonID, address) })
}
