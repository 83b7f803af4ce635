package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/layer-3/hackledger/adapters/events"
	"github.com/layer-3/hackledger/adapters/ledger"
	"github.com/layer-3/hackledger/adapters/signature"
	"github.com/layer-3/hackledger/adapters/store"
	"github.com/layer-3/hackledger/adapters/tokenizer"
	"github.com/layer-3/hackledger/internal/config"
	"github.com/layer-3/hackledger/ports"
	"github.com/layer-3/hackledger/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const syncConsumerGroup = "hackledger-sync"

// app holds the wired services of one process
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry

	publisher  message.Publisher
	subscriber message.Subscriber
	eventPub   ports.EventPublisher

	auth  *service.AuthService
	authz *service.AuthzService
	sync  *service.SyncService

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	converter, err := cfg.Converter()
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	identities := store.NewIdentityStore(db)
	cache := store.NewCacheStore(db, converter)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		a.closers = append(a.closers, redisClient.Close)
	}

	if err := a.initEvents(redisClient); err != nil {
		return nil, err
	}

	reader, err := a.ledgerReader(ctx)
	if err != nil {
		return nil, err
	}

	var revocations ports.RevocationStore
	switch cfg.RevocationBackend {
	case config.RevocationMemory:
		revocations = store.NewMemoryRevocationStore()
	case config.RevocationRedis:
		revocations = store.NewRedisRevocationStore(redisClient)
	}

	key, err := tokenizer.LoadOrGenerateKey(cfg.SessionKeyFile)
	if err != nil {
		return nil, err
	}
	if cfg.SessionKeyFile == "" {
		logger.Warn("no session key file configured, sessions will not survive a restart")
	}

	freshness := service.NewFreshnessTracker()
	a.auth = service.NewAuthService(
		tokenizer.NewJWTTokenizer(key),
		signature.NewPersonalVerifier(),
		identities,
		revocations,
		a.eventPub,
		service.AuthOptions{
			ChallengeWindow:     cfg.ChallengeWindow,
			ChallengeFutureSkew: cfg.ChallengeFutureSkew,
			Logger:              logger,
		},
	)
	a.sync = service.NewSyncService(service.SyncConfig{
		Ledger:       reader,
		Cache:        cache,
		Events:       a.eventPub,
		Freshness:    freshness,
		Workers:      cfg.SyncWorkers,
		Logger:       logger,
		PromRegistry: a.registry,
	})
	a.authz = service.NewAuthzService(service.AuthzConfig{
		Ledger:       reader,
		Cache:        cache,
		Identities:   identities,
		Freshness:    freshness,
		Staleness:    cfg.AuthzStaleness,
		Logger:       logger,
		PromRegistry: a.registry,
	})
	return a, nil
}

func (a *app) initEvents(redisClient *redis.Client) error {
	wmLogger := watermill.NewSlogLogger(a.logger.With("component", "events"))
	switch a.cfg.EventsBackend {
	case config.EventsRedisStream:
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			return fmt.Errorf("failed to create redis publisher: %w", err)
		}
		a.closers = append(a.closers, publisher.Close)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        redisClient,
				ConsumerGroup: syncConsumerGroup,
			},
			wmLogger,
		)
		if err != nil {
			return fmt.Errorf("failed to create redis subscriber: %w", err)
		}
		a.closers = append(a.closers, subscriber.Close)
		a.publisher, a.subscriber = publisher, subscriber
	default:
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		a.closers = append(a.closers, pubSub.Close)
		a.publisher, a.subscriber = pubSub, pubSub
	}
	a.eventPub = events.NewWatermillPublisher(a.publisher)
	return nil
}

// ledgerReader dials the registry contract, or falls back to an empty
// in-process ledger when no RPC endpoint is configured
func (a *app) ledgerReader(ctx context.Context) (ports.LedgerReader, error) {
	var reader ports.LedgerReader
	if a.cfg.LedgerRPCURL == "" {
		a.logger.Warn("no ledger rpc url configured, using an empty in-memory ledger")
		reader = ledger.NewMemoryLedger()
	} else {
		if !common.IsHexAddress(a.cfg.LedgerContract) {
			return nil, fmt.Errorf("invalid ledger contract address %q", a.cfg.LedgerContract)
		}
		client, err := ethclient.DialContext(ctx, a.cfg.LedgerRPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial ledger: %w", err)
		}
		a.closers = append(a.closers, func() error {
			client.Close()
			return nil
		})
		reader, err = ledger.NewContractReader(client, common.HexToAddress(a.cfg.LedgerContract), a.cfg.LedgerTimeout)
		if err != nil {
			return nil, err
		}
	}
	// Every attempt, retries included, takes an in-flight slot and a token
	reader = ledger.NewBoundedReader(reader, a.cfg.LedgerMaxInFlight, a.cfg.LedgerRequestsPerSecond)
	return ledger.NewRetryingReader(reader, a.cfg.LedgerRetries, 0), nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
