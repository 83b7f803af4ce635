package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
)

const (
	TopicIdentityRegistered = "identity.registered"
	TopicSyncCompleted      = "ledger.synced"
	TopicSyncRequested      = "ledger.sync.requested"
)

// IdentityRegisteredEvent is published after a successful registration
type IdentityRegisteredEvent struct {
	IdentityID string    `json:"identity_id"`
	Address    string    `json:"address"`
	Role       core.Role `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// SyncCompletedEvent summarises a finished reconciliation run
type SyncCompletedEvent struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Hackathons int       `json:"hackathons"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Unchanged  int       `json:"unchanged"`
	Skipped    int       `json:"skipped"`
	Cancelled  bool      `json:"cancelled"`
}

// SyncRequestedEvent asks a sync worker to reconcile one hackathon, or all of
// them when HackathonID is zero
type SyncRequestedEvent struct {
	HackathonID uint64 `json:"hackathon_id,omitempty"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishIdentityRegistered publishes a registration event keyed by identity id
func (p *WatermillPublisher) PublishIdentityRegistered(ctx context.Context, identity *core.Identity) error {
	return p.publish(ctx, TopicIdentityRegistered, identity.ID, IdentityRegisteredEvent{
		IdentityID: identity.ID,
		Address:    identity.Address,
		Role:       identity.Role,
		CreatedAt:  identity.CreatedAt,
	})
}

// PublishSyncCompleted publishes the summary of a sync run
func (p *WatermillPublisher) PublishSyncCompleted(ctx context.Context, report *core.SyncReport) error {
	return p.publish(ctx, TopicSyncCompleted, watermill.NewUUID(), SyncCompletedEvent{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Hackathons: report.Hackathons,
		Created:    report.Created,
		Updated:    report.Updated,
		Unchanged:  report.Unchanged,
		Skipped:    report.SkippedCount(),
		Cancelled:  report.Cancelled,
	})
}

// PublishSyncRequested asks any sync worker to reconcile hackathonID
func (p *WatermillPublisher) PublishSyncRequested(ctx context.Context, hackathonID uint64) error {
	return p.publish(ctx, TopicSyncRequested, watermill.NewUUID(), SyncRequestedEvent{HackathonID: hackathonID})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, id string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
