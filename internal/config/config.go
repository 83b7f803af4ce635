package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/layer-3/hackledger/core"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "hackledger.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	EventsGoChannel   = "gochannel"
	EventsRedisStream = "redisstream"

	RevocationNone   = "none"
	RevocationMemory = "memory"
	RevocationRedis  = "redis"
)

type Config struct {
	BindAddr            string        `yaml:"bindAddr"            split_words:"true"`
	Port                uint          `yaml:"port"`
	DatabaseDriver      string        `yaml:"databaseDriver"      split_words:"true"`
	DatabaseDSN         string        `yaml:"databaseDsn"         envconfig:"DATABASE_DSN"`
	SessionKeyFile      string        `yaml:"sessionKeyFile"      split_words:"true"`
	ChallengeWindow     time.Duration `yaml:"challengeWindow"     split_words:"true"`
	ChallengeFutureSkew time.Duration `yaml:"challengeFutureSkew" split_words:"true"`

	LedgerRPCURL            string        `yaml:"ledgerRpcUrl"            envconfig:"LEDGER_RPC_URL"`
	LedgerContract          string        `yaml:"ledgerContract"          split_words:"true"`
	LedgerTimeout           time.Duration `yaml:"ledgerTimeout"           split_words:"true"`
	LedgerMaxInFlight       int64         `yaml:"ledgerMaxInFlight"       split_words:"true"`
	LedgerRequestsPerSecond float64       `yaml:"ledgerRequestsPerSecond" split_words:"true"`
	LedgerRetries           uint64        `yaml:"ledgerRetries"           split_words:"true"`

	SyncWorkers    int           `yaml:"syncWorkers"    split_words:"true"`
	SyncInterval   time.Duration `yaml:"syncInterval"   split_words:"true"`
	AuthzStaleness time.Duration `yaml:"authzStaleness" split_words:"true"`
	CurrencyScale  string        `yaml:"currencyScale"  split_words:"true"`

	RedisURL          string `yaml:"redisUrl"          envconfig:"REDIS_URL"`
	EventsBackend     string `yaml:"eventsBackend"     split_words:"true"`
	RevocationBackend string `yaml:"revocationBackend" split_words:"true"`

	Debug bool `yaml:"debug"`
}

func defaultConfig() *Config {
	return &Config{
		BindAddr:                "0.0.0.0",
		Port:                    9000,
		DatabaseDriver:          "sqlite",
		DatabaseDSN:             "hackledger.db",
		SessionKeyFile:          "",
		ChallengeWindow:         5 * time.Minute,
		ChallengeFutureSkew:     time.Minute,
		LedgerTimeout:           10 * time.Second,
		LedgerMaxInFlight:       8,
		LedgerRequestsPerSecond: 20,
		LedgerRetries:           3,
		SyncWorkers:             4,
		SyncInterval:            5 * time.Minute,
		AuthzStaleness:          2 * time.Minute,
		CurrencyScale:           "1000000000000000000",
		EventsBackend:           EventsGoChannel,
		RevocationBackend:       RevocationMemory,
	}
}

// LoadConfig reads configFile, or the first of ~/.hackledger/hackledger.yaml
// and /etc/hackledger/hackledger.yaml that exists, applies HACKLEDGER_*
// environment overrides and validates the result
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()

	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".hackledger", "hackledger.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		if configFile == "" {
			systemPath := "/etc/hackledger/hackledger.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process("hackledger", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot start with
func (c *Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("invalid databaseDriver: %q (must be 'sqlite' or 'postgres')", c.DatabaseDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("databaseDsn must be set"))
	}
	if c.ChallengeWindow <= 0 {
		errs = append(errs, errors.New("challengeWindow must be positive"))
	}
	if c.ChallengeFutureSkew < 0 {
		errs = append(errs, errors.New("challengeFutureSkew must not be negative"))
	}
	if c.LedgerRPCURL != "" && c.LedgerContract == "" {
		errs = append(errs, errors.New("ledgerContract is required with ledgerRpcUrl"))
	}
	if c.LedgerTimeout <= 0 {
		errs = append(errs, errors.New("ledgerTimeout must be positive"))
	}
	if c.LedgerMaxInFlight <= 0 {
		errs = append(errs, errors.New("ledgerMaxInFlight must be positive"))
	}
	if c.SyncWorkers <= 0 {
		errs = append(errs, errors.New("syncWorkers must be positive"))
	}
	if c.SyncInterval < 0 {
		errs = append(errs, errors.New("syncInterval must not be negative"))
	}
	if c.AuthzStaleness <= 0 {
		errs = append(errs, errors.New("authzStaleness must be positive"))
	}
	if _, err := c.Converter(); err != nil {
		errs = append(errs, err)
	}

	switch c.EventsBackend {
	case EventsGoChannel:
	case EventsRedisStream:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redisUrl is required for the redisstream events backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid eventsBackend: %q (must be '%s' or '%s')", c.EventsBackend, EventsGoChannel, EventsRedisStream))
	}

	switch c.RevocationBackend {
	case RevocationNone, RevocationMemory:
	case RevocationRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redisUrl is required for the redis revocation backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid revocationBackend: %q", c.RevocationBackend))
	}

	return errors.Join(errs...)
}

// Converter builds the currency converter for CurrencyScale
func (c *Config) Converter() (*core.Converter, error) {
	scale, err := core.ParseScale(c.CurrencyScale)
	if err != nil {
		return nil, err
	}
	return core.NewConverter(scale)
}

// ListenAddr is the HTTP listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}
