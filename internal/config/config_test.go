package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hackledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
bindAddr: "127.0.0.1"
port: 8080
databaseDriver: postgres
databaseDsn: "host=localhost dbname=hackledger"
challengeWindow: 2m
ledgerRpcUrl: "http://localhost:8545"
ledgerContract: "0x000000000000000000000000000000000000bEEF"
syncWorkers: 8
syncInterval: 30s
currencyScale: "1000000"
revocationBackend: none
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	expected := defaultConfig()
	expected.BindAddr = "127.0.0.1"
	expected.Port = 8080
	expected.DatabaseDriver = "postgres"
	expected.DatabaseDSN = "host=localhost dbname=hackledger"
	expected.ChallengeWindow = 2 * time.Minute
	expected.LedgerRPCURL = "http://localhost:8545"
	expected.LedgerContract = "0x000000000000000000000000000000000000bEEF"
	expected.SyncWorkers = 8
	expected.SyncInterval = 30 * time.Second
	expected.CurrencyScale = "1000000"
	expected.RevocationBackend = RevocationNone
	assert.Equal(t, expected, cfg)

	conv, err := cfg.Converter()
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), conv.Scale().Int64())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "port: 8080\nsyncWorkers: 8\n")
	t.Setenv("HACKLEDGER_PORT", "7000")
	t.Setenv("HACKLEDGER_SYNC_WORKERS", "2")
	t.Setenv("HACKLEDGER_AUTHZ_STALENESS", "45s")
	t.Setenv("HACKLEDGER_REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("HACKLEDGER_EVENTS_BACKEND", EventsRedisStream)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint(7000), cfg.Port)
	assert.Equal(t, 2, cfg.SyncWorkers)
	assert.Equal(t, 45*time.Second, cfg.AuthzStaleness)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, EventsRedisStream, cfg.EventsBackend)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"driver":         "databaseDriver: mysql\n",
		"scale":          "currencyScale: \"1e18\"\n",
		"zero scale":     "currencyScale: \"0\"\n",
		"workers":        "syncWorkers: 0\n",
		"contract":       "ledgerRpcUrl: \"http://localhost:8545\"\n",
		"events backend": "eventsBackend: kafka\n",
		"redis required": "revocationBackend: redis\n",
		"window":         "challengeWindow: 0s\n",
		"malformed yaml": "port: [\n",
		"bad duration":   "syncInterval: soon\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "error reading config file")
}

func TestContextRoundTrip(t *testing.T) {
	cfg := defaultConfig()
	ctx := WithContext(t.Context(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
	assert.Nil(t, FromContext(t.Context()))
}
