package ports

import (
	"context"

	"github.com/layer-3/hackledger/core"
)

// EventPublisher publishes domain events to other instances and consumers
type EventPublisher interface {
	PublishIdentityRegistered(ctx context.Context, identity *core.Identity) error
	PublishSyncCompleted(ctx context.Context, report *core.SyncReport) error
	PublishSyncRequested(ctx context.Context, hackathonID uint64) error
}
