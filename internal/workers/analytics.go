package workers

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/u2u-labs/nft-ingest/internal/adapter"
	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/logger"
	"github.com/u2u-labs/nft-ingest/internal/providers/subgraph"
	"github.com/u2u-labs/nft-ingest/internal/store"
	"github.com/u2u-labs/nft-ingest/internal/store/schema"
)

// AnalyticsWorker takes a daily statistics snapshot of every confirmed
// collection. Snapshots are immutable: one row per collection per calendar
// day, re-runs within the same day are no-ops.
type AnalyticsWorker struct {
	store     store.Store
	subgraph  subgraph.Client
	clock     adapter.Clock
	schedule  string
	batchSize int
	poolSize  int

	cron *cron.Cron
}

// NewAnalyticsWorker creates an analytics worker. schedule is a standard
// 5-field cron expression, batchSize bounds the collection page size and
// poolSize the concurrent snapshot fan-out within a page.
func NewAnalyticsWorker(st store.Store, sg subgraph.Client, clock adapter.Clock, schedule string, batchSize, poolSize int) *AnalyticsWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	if poolSize <= 0 {
		poolSize = 10
	}
	return &AnalyticsWorker{
		store:     st,
		subgraph:  sg,
		clock:     clock,
		schedule:  schedule,
		batchSize: batchSize,
		poolSize:  poolSize,
	}
}

// Start schedules the daily run and kicks off one eager run so a freshly
// deployed worker does not wait a day for its first snapshot.
func (w *AnalyticsWorker) Start(ctx context.Context) error {
	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.schedule, func() {
		if err := w.Run(ctx); err != nil {
			logger.Error(fmt.Errorf("scheduled analytics run failed: %w", err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule analytics run: %w", err)
	}
	w.cron.Start()

	go func() {
		if err := w.Run(ctx); err != nil {
			logger.Error(fmt.Errorf("initial analytics run failed: %w", err))
		}
	}()

	return nil
}

// Stop halts the schedule and waits for an in-flight scheduled run to finish
func (w *AnalyticsWorker) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// Run snapshots every confirmed collection once. Per-collection failures are
// contained: a collection whose stats cannot be fetched is logged and skipped,
// the rest of the batch proceeds.
func (w *AnalyticsWorker) Run(ctx context.Context) error {
	now := w.clock.Now()
	var processed int

	for offset := 0; ; offset += w.batchSize {
		collections, err := w.store.ListConfirmedCollections(ctx, w.batchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list collections: %w", err)
		}
		if len(collections) == 0 {
			break
		}

		pool := pond.NewPool(w.poolSize)
		for _, collection := range collections {
			collection := collection
			pool.Submit(func() {
				if err := w.snapshot(ctx, &collection, now); err != nil {
					logger.Error(fmt.Errorf("failed to snapshot collection %s: %w", collection.Address, err))
				}
			})
		}
		pool.StopAndWait()

		processed += len(collections)
		if len(collections) < w.batchSize {
			break
		}
	}

	logger.Info("analytics run finished",
		zap.Int("collections", processed),
		zap.String("day", schema.SnapshotDayKey(now)))
	return nil
}

// snapshot takes one collection's daily snapshot if it does not already exist
func (w *AnalyticsWorker) snapshot(ctx context.Context, collection *schema.Collection, now time.Time) error {
	id := schema.SnapshotID(collection.Address, now)

	existing, err := w.store.GetAnalysisSnapshot(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	stats, err := w.collectStats(ctx, collection)
	if err != nil {
		return err
	}

	floorPrice, _ := strconv.ParseFloat(collection.FloorPrice, 64)

	return w.store.CreateAnalysisSnapshot(ctx, &schema.AnalysisCollection{
		ID:           id,
		CollectionID: collection.ID,
		Address:      collection.Address,
		Type:         collection.Type,
		KeyTime:      schema.SnapshotDayKey(now),
		VolumeWei:    stats.Volume,
		Volume:       weiToEther(stats.Volume),
		Owner:        stats.HolderCount,
		Items:        stats.ItemCount,
		FloorPrice:   floorPrice,
		CreatedAt:    now,
	})
}

// collectStats fetches the statistics for one collection. Extended-tracking
// collections have no pre-aggregated contract stats on the secondary indexer,
// so their item and holder counts come from a full holdings walk while the
// traded volume still comes from the primary endpoint.
func (w *AnalyticsWorker) collectStats(ctx context.Context, collection *schema.Collection) (*domain.CollectionStats, error) {
	if collection.Address == "" {
		return &domain.CollectionStats{Volume: "0"}, nil
	}

	if collection.FlagExtended {
		items, owners, err := w.subgraph.GetCollectionHoldings(ctx, collection.Address)
		if err != nil {
			return nil, err
		}
		stats, err := w.subgraph.GetCollectionStats(ctx, collection.Type, collection.Address)
		if err != nil {
			return nil, err
		}
		return &domain.CollectionStats{
			ItemCount:   items,
			HolderCount: owners,
			Volume:      stats.Volume,
		}, nil
	}

	return w.subgraph.GetCollectionStats(ctx, collection.Type, collection.Address)
}

var weiPerEther = new(big.Float).SetFloat64(1e18)

// weiToEther scales a wei amount down to native units. A value that does not
// parse counts as zero.
func weiToEther(wei string) float64 {
	amount, ok := new(big.Float).SetString(wei)
	if !ok {
		return 0
	}
	result, _ := new(big.Float).Quo(amount, weiPerEther).Float64()
	return result
}
