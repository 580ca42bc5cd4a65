package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWorkerConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *WorkerConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
database:
  host: localhost
  port: 5432
  user: testuser
  password: testpass
  dbname: testdb
  sslmode: require
redis:
  addr: "redis.example:6379"
  password: "secret"
  db: 2
chain:
  rpc_url: "http://localhost:8545"
subgraph:
  url: "http://localhost:8000/subgraphs/primary"
  external_url: "http://localhost:8000/subgraphs/secondary"
queue:
  max_attempts: 3
  retry_delay: "2s"
  job_timeout: "10s"
  pool_size: 4
  queue_size: 256
analytics:
  schedule: "30 22 * * *"
  batch_size: 50
  pool_size: 5
uri:
  ipfs_gateway: "https://gateway.example/ipfs/"
metadata:
  http_timeout: "15s"
`,
			expectError: false,
			validate: func(t *testing.T, cfg *WorkerConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, "redis.example:6379", cfg.Redis.Addr)
				assert.Equal(t, 2, cfg.Redis.DB)
				assert.Equal(t, "http://localhost:8545", cfg.Chain.RPCURL)
				assert.Equal(t, "http://localhost:8000/subgraphs/primary", cfg.Subgraph.URL)
				assert.Equal(t, "http://localhost:8000/subgraphs/secondary", cfg.Subgraph.ExternalURL)
				assert.Equal(t, 3, cfg.Queue.MaxAttempts)
				assert.Equal(t, 2*time.Second, cfg.Queue.RetryDelay)
				assert.Equal(t, 10*time.Second, cfg.Queue.JobTimeout)
				assert.Equal(t, 4, cfg.Queue.PoolSize)
				assert.Equal(t, 256, cfg.Queue.QueueSize)
				assert.Equal(t, "30 22 * * *", cfg.Analytics.Schedule)
				assert.Equal(t, 50, cfg.Analytics.BatchSize)
				assert.Equal(t, "https://gateway.example/ipfs/", cfg.URI.IPFSGateway)
				assert.Equal(t, 15*time.Second, cfg.Metadata.HTTPTimeout)
			},
		},
		{
			name: "defaults fill unset fields",
			configFile: `
database:
  host: localhost
  user: u
  password: p
  dbname: d
`,
			expectError: false,
			validate: func(t *testing.T, cfg *WorkerConfig) {
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, 5, cfg.Queue.MaxAttempts)
				assert.Equal(t, 5*time.Second, cfg.Queue.RetryDelay)
				assert.Equal(t, 5*time.Second, cfg.Queue.JobTimeout)
				assert.Equal(t, "0 23 * * *", cfg.Analytics.Schedule)
				assert.Equal(t, 100, cfg.Analytics.BatchSize)
				assert.Equal(t, "https://ipfs.io/ipfs/", cfg.URI.IPFSGateway)
				assert.Equal(t, 30*time.Second, cfg.Metadata.HTTPTimeout)
			},
		},
		{
			name:        "malformed yaml",
			configFile:  "database: [not a map",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.configFile)
			cfg, err := LoadWorkerConfig(path, t.TempDir())
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadWorkerConfig_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: from-file
  user: u
  password: p
  dbname: d
`)
	t.Setenv("NFT_INGEST_DATABASE_HOST", "from-env")
	t.Setenv("NFT_INGEST_QUEUE_MAX_ATTEMPTS", "7")

	cfg, err := LoadWorkerConfig(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 7, cfg.Queue.MaxAttempts)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "ingest",
		Password: "secret",
		DBName:   "nft",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=ingest password=secret dbname=nft sslmode=disable",
		cfg.DSN())
}
