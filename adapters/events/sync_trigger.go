package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/layer-3/hackledger/core"
)

// Syncer runs reconciliation on demand
type Syncer interface {
	SyncAll(ctx context.Context) (*core.SyncReport, error)
	SyncHackathon(ctx context.Context, id uint64) (*core.SyncReport, error)
}

// NewSyncTrigger builds a router that runs a sync for every message on
// TopicSyncRequested. Run it with router.Run(ctx).
func NewSyncTrigger(subscriber message.Subscriber, syncer Syncer, logger *slog.Logger) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, err
	}
	router.AddMiddleware(middleware.Recoverer)

	router.AddNoPublisherHandler(
		"ledger_sync_trigger",
		TopicSyncRequested,
		subscriber,
		func(msg *message.Message) error {
			var req SyncRequestedEvent
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				// Redelivery cannot fix a malformed request
				logger.Warn("dropping malformed sync request", "message_id", msg.UUID, "error", err)
				return nil
			}

			var report *core.SyncReport
			if req.HackathonID == 0 {
				report, err = syncer.SyncAll(msg.Context())
			} else {
				report, err = syncer.SyncHackathon(msg.Context(), req.HackathonID)
			}
			if err != nil {
				logger.Error("on-demand sync failed", "hackathon_id", req.HackathonID, "error", err)
				return nil
			}
			logger.Info("on-demand sync finished",
				"hackathon_id", req.HackathonID,
				"writes", report.Writes(),
				"skipped", report.SkippedCount(),
			)
			return nil
		},
	)
	return router, nil
}
