package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds the notification channel transport configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChainConfig holds the RPC endpoint used for direct contract reads
type ChainConfig struct {
	RPCURL string `mapstructure:"rpc_url"`
}

// SubgraphConfig holds the indexer GraphQL endpoints
type SubgraphConfig struct {
	// URL is the primary subgraph endpoint with pre-aggregated contract stats
	URL string `mapstructure:"url"`
	// ExternalURL is the secondary endpoint used for extended-tracking
	// collections where holder and token data must be walked directly
	ExternalURL string `mapstructure:"external_url"`
}

// QueueConfig holds dispatch engine policy configuration
type QueueConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	PoolSize    int           `mapstructure:"pool_size"`
	QueueSize   int           `mapstructure:"queue_size"`
}

// AnalyticsConfig holds the daily aggregation configuration
type AnalyticsConfig struct {
	// Schedule is a cron expression; the default fires once daily at 23:00
	Schedule  string `mapstructure:"schedule"`
	BatchSize int    `mapstructure:"batch_size"`
	PoolSize  int    `mapstructure:"pool_size"`
}

// URIConfig holds URI resolver configuration
type URIConfig struct {
	IPFSGateway string `mapstructure:"ipfs_gateway"`
}

// MetadataConfig holds metadata fetcher configuration
type MetadataConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// WorkerConfig holds configuration for the ingest worker binary
type WorkerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Chain      ChainConfig     `mapstructure:"chain"`
	Subgraph   SubgraphConfig  `mapstructure:"subgraph"`
	Queue      QueueConfig     `mapstructure:"queue"`
	Analytics  AnalyticsConfig `mapstructure:"analytics"`
	URI        URIConfig       `mapstructure:"uri"`
	Metadata   MetadataConfig  `mapstructure:"metadata"`
}

// LoadWorkerConfig loads configuration for the ingest worker
func LoadWorkerConfig(configFile string, envPath string) (*WorkerConfig, error) {
	v := configureViper("ingest-worker", configFile, envPath)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.retry_delay", 5*time.Second)
	v.SetDefault("queue.job_timeout", 5*time.Second)
	v.SetDefault("queue.pool_size", 10)
	v.SetDefault("queue.queue_size", 1024)
	v.SetDefault("analytics.schedule", "0 23 * * *")
	v.SetDefault("analytics.batch_size", 100)
	v.SetDefault("analytics.pool_size", 10)
	v.SetDefault("uri.ipfs_gateway", "https://ipfs.io/ipfs/")
	v.SetDefault("metadata.http_timeout", 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config WorkerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("NFT_INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables.
// This is required for viper to map env vars to config struct fields when no
// config file exists.
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",
		// Chain
		"chain.rpc_url",
		// Subgraph
		"subgraph.url",
		"subgraph.external_url",
		// Queue
		"queue.max_attempts",
		"queue.retry_delay",
		"queue.job_timeout",
		"queue.pool_size",
		"queue.queue_size",
		// Analytics
		"analytics.schedule",
		"analytics.batch_size",
		"analytics.pool_size",
		// URI
		"uri.ipfs_gateway",
		// Metadata
		"metadata.http_timeout",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
