package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("inventory-sync-missing")
	require.NoError(t, err)

	assert.Equal(t, "inventory-sync", cfg.AppName)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 1000, cfg.Sync.BatchSize)
	assert.Equal(t, 2*time.Hour, cfg.Sync.StaleAfter)
	assert.Equal(t, 5*time.Minute, cfg.Sync.RetryProcessingAfter)
	assert.Equal(t, 10, cfg.Sync.ProgressEveryBatches)
	assert.Equal(t, "inventory-sync-commands", cfg.Kafka.CommandsTopic)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: memory
upstream:
  url: https://wms.example.com/graphql
  token: file-token
sync:
  batchSize: 250
  pollDelay: 2s
kafka:
  enabled: true
  brokers:
    - kafka-1:9092
    - kafka-2:9092
`), 0o600))

	t.Setenv("UPSTREAM_TOKEN", "env-token")
	t.Setenv("SYNC_STALE_AFTER", "90m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "https://wms.example.com/graphql", cfg.Upstream.URL)
	assert.Equal(t, "env-token", cfg.Upstream.Token)
	assert.Equal(t, 250, cfg.Sync.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Sync.PollDelay)
	assert.Equal(t, 90*time.Minute, cfg.Sync.StaleAfter)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.NoError(t, cfg.Upstream.Validate())
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestUpstreamValidate(t *testing.T) {
	err := UpstreamConfig{}.Validate()
	assert.True(t, pkgerrors.IsConfig(err))

	err = UpstreamConfig{URL: "https://wms.example.com/graphql"}.Validate()
	assert.True(t, pkgerrors.IsConfig(err))

	oauth := UpstreamConfig{
		URL:          "https://wms.example.com/graphql",
		TokenURL:     "https://auth.example.com/token",
		RefreshToken: "refresh",
	}
	assert.True(t, oauth.UsesOAuth2())
	assert.NoError(t, oauth.Validate())
}

func TestValidate(t *testing.T) {
	var cfg Config
	cfg.Storage.Driver = "sqlite"
	cfg.Sync.BatchSize = 10
	assert.True(t, pkgerrors.IsConfig(cfg.Validate()))

	cfg.Storage.Driver = StorageDriverMemory
	assert.NoError(t, cfg.Validate())

	cfg.Sync.BatchSize = 0
	assert.True(t, pkgerrors.IsConfig(cfg.Validate()))
}
