package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/u2u-labs/nft-ingest/internal/adapter"
	"github.com/u2u-labs/nft-ingest/internal/bridge"
	"github.com/u2u-labs/nft-ingest/internal/config"
	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/jobs"
	"github.com/u2u-labs/nft-ingest/internal/logger"
	"github.com/u2u-labs/nft-ingest/internal/metadata"
	"github.com/u2u-labs/nft-ingest/internal/providers/ethereum"
	"github.com/u2u-labs/nft-ingest/internal/providers/subgraph"
	"github.com/u2u-labs/nft-ingest/internal/store"
	"github.com/u2u-labs/nft-ingest/internal/uri"
	"github.com/u2u-labs/nft-ingest/internal/workers"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "", "Path to the directory holding .env files")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadWorkerConfig(*configPath, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags:      map[string]string{"service": "ingest-worker"},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.Info("Starting Ingest Worker")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	err = store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
		cfg.Database.ConnMaxIdleTime)
	if err != nil {
		logger.Fatal("Failed to configure connection pool", zap.Error(err))
	}
	logger.Info("Connected to database")

	dataStore := store.NewPGStore(db)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to redis
	redisClient := adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisClient.Ping(ctx); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
	}
	defer func() { _ = redisClient.Close() }()
	logger.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr))

	// Connect to the chain RPC endpoint
	ethClient, err := adapter.NewEthClientDialer().Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		logger.Fatal("Failed to connect to RPC endpoint", zap.Error(err), zap.String("url", cfg.Chain.RPCURL))
	}
	chainReader, err := ethereum.NewChainReader(ethClient)
	if err != nil {
		logger.Fatal("Failed to create chain reader", zap.Error(err))
	}
	defer chainReader.Close()
	logger.Info("Connected to RPC endpoint", zap.String("url", cfg.Chain.RPCURL))

	// Initialize adapters and providers
	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(cfg.Metadata.HTTPTimeout)
	subgraphClient := subgraph.NewClient(httpClient, cfg.Subgraph.URL, cfg.Subgraph.ExternalURL, jsonAdapter)
	uriResolver := uri.NewResolver(cfg.URI.IPFSGateway)
	fetcher := metadata.NewFetcher(httpClient, uriResolver)

	// Initialize workers
	statusWorker := workers.NewStatusWorker(dataStore, subgraphClient)
	crawlWorker := workers.NewCrawlWorker(dataStore, subgraphClient, chainReader, fetcher, cfg.Queue.PoolSize)
	analyticsWorker := workers.NewAnalyticsWorker(dataStore, subgraphClient, clock,
		cfg.Analytics.Schedule, cfg.Analytics.BatchSize, cfg.Analytics.PoolSize)

	// Create the dispatch engine and register job classes
	engine := jobs.NewEngine(clock)
	policy := jobs.Policy{
		MaxAttempts: cfg.Queue.MaxAttempts,
		Backoff:     jobs.BackoffFixed,
		BaseDelay:   cfg.Queue.RetryDelay,
		Timeout:     cfg.Queue.JobTimeout,
		Workers:     cfg.Queue.PoolSize,
		QueueSize:   cfg.Queue.QueueSize,
	}

	mintPolicy := policy
	mintPolicy.OnExhausted = statusWorker.MarkFailed()
	if err := engine.Register(domain.JobNFTCreate, mintPolicy, statusWorker.CheckMint); err != nil {
		logger.Fatal("Failed to register job class", zap.Error(err), zap.String("class", domain.JobNFTCreate))
	}

	crawlPolicy := policy
	crawlPolicy.OnExhausted = statusWorker.MarkFailed()
	if err := engine.Register(domain.JobNFTCrawlSingle, crawlPolicy, crawlWorker.CrawlSingle); err != nil {
		logger.Fatal("Failed to register job class", zap.Error(err), zap.String("class", domain.JobNFTCrawlSingle))
	}

	if err := engine.Register(domain.JobNFTCrawlCollection, policy, crawlWorker.CrawlCollection); err != nil {
		logger.Fatal("Failed to register job class", zap.Error(err), zap.String("class", domain.JobNFTCrawlCollection))
	}

	// Start the analytics schedule
	if err := analyticsWorker.Start(ctx); err != nil {
		logger.Fatal("Failed to start analytics worker", zap.Error(err))
	}
	logger.Info("Analytics worker started", zap.String("schedule", cfg.Analytics.Schedule))

	// Create the notification bridge
	notificationBridge := bridge.NewBridge(redisClient, engine, jsonAdapter)

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel for bridge errors
	errCh := make(chan error, 1)

	// Start the bridge
	go func() {
		if err := notificationBridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	logger.Info("Notification bridge started")

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.Error(err, zap.String("component", "bridge"))
		cancel()
	}

	// Drain in-flight work before exiting
	analyticsWorker.Stop()
	engine.Close()

	logger.Info("Ingest Worker stopped")
}
