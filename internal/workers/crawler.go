package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/logger"
	"github.com/u2u-labs/nft-ingest/internal/metadata"
	"github.com/u2u-labs/nft-ingest/internal/providers/ethereum"
	"github.com/u2u-labs/nft-ingest/internal/providers/subgraph"
	"github.com/u2u-labs/nft-ingest/internal/store"
	"github.com/u2u-labs/nft-ingest/internal/store/schema"
)

// CrawlWorker resolves token URIs on-chain, fetches off-chain metadata and
// persists NFT rows with their traits. Two job classes share the pipeline:
// nft-crawl-single for a confirmed mint, nft-crawl-collection for a backfill.
type CrawlWorker struct {
	store    store.Store
	subgraph subgraph.Client
	chain    ethereum.ChainReader
	fetcher  metadata.Fetcher
	poolSize int
}

// NewCrawlWorker creates a crawl worker. poolSize bounds the concurrent
// metadata fetches of a whole-collection crawl.
func NewCrawlWorker(st store.Store, sg subgraph.Client, chain ethereum.ChainReader, fetcher metadata.Fetcher, poolSize int) *CrawlWorker {
	if poolSize <= 0 {
		poolSize = 10
	}
	return &CrawlWorker{
		store:    st,
		subgraph: sg,
		chain:    chain,
		fetcher:  fetcher,
		poolSize: poolSize,
	}
}

// CrawlSingle handles one nft-crawl-single attempt. Any failure before the
// final write aborts the attempt with nothing persisted, so a retry starts
// from a clean slate; an NFT that already exists is a no-op.
func (w *CrawlWorker) CrawlSingle(ctx context.Context, payload json.RawMessage) error {
	var req NFTCrawlPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return backoff.Permanent(fmt.Errorf("malformed nft-crawl-single payload: %w", err))
	}

	tokens, err := w.subgraph.GetTokensByTxCreation(ctx, req.Type, req.TxCreation)
	if err != nil {
		return fmt.Errorf("failed to query indexer for tx %s: %w", req.TxCreation, err)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: tx %s", domain.ErrTokenNotYetIndexed, req.TxCreation)
	}
	token := tokens[0]

	collection, err := w.store.GetCollectionByAddress(ctx, strings.ToLower(token.Contract.ID))
	if err != nil {
		return err
	}
	if collection == nil {
		return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, token.Contract.ID))
	}

	existing, err := w.store.GetNFT(ctx, token.TokenID, collection.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Debug("nft already crawled",
			zap.String("token_id", token.TokenID),
			zap.String("collection", collection.Address))
		return nil
	}

	tokenURI, err := w.chain.TokenURI(ctx, collection.Type, collection.Address, token.TokenID)
	if err != nil {
		return fmt.Errorf("failed to resolve token uri for %s/%s: %w", collection.Address, token.TokenID, err)
	}

	meta, raw, err := w.fetcher.Fetch(ctx, tokenURI)
	if err != nil {
		return err
	}

	nft, traits := buildNFT(token, collection.ID, tokenURI, meta, raw)
	if err := w.store.CreateNFTWithTraits(ctx, nft, traits); err != nil {
		return err
	}

	logger.Info("nft crawled",
		zap.String("token_id", token.TokenID),
		zap.String("collection", collection.Address),
		zap.Int("traits", len(traits)))
	return nil
}

// crawlItem carries one token through the collection crawl pipeline
type crawlItem struct {
	token    domain.IndexedToken
	tokenURI string
	meta     *domain.TokenMetadata
	raw      json.RawMessage
}

// CrawlCollection handles one nft-crawl-collection attempt. Per-token
// failures are contained: a token that cannot be resolved or fetched is
// logged and skipped for this run, the rest of the batch proceeds.
func (w *CrawlWorker) CrawlCollection(ctx context.Context, payload json.RawMessage) error {
	var req NFTCrawlPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return backoff.Permanent(fmt.Errorf("malformed nft-crawl-collection payload: %w", err))
	}

	address := strings.ToLower(req.CollectionAddress)
	collection, err := w.store.GetCollectionByAddress(ctx, address)
	if err != nil {
		return err
	}
	if collection == nil {
		return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, address))
	}

	tokens, err := w.subgraph.GetTokensByCollection(ctx, collection.Type, address)
	if err != nil {
		return fmt.Errorf("failed to list tokens for %s: %w", address, err)
	}

	// Resolve URIs on-chain, best effort per token
	items := make([]*crawlItem, 0, len(tokens))
	for _, token := range tokens {
		tokenURI, err := w.chain.TokenURI(ctx, collection.Type, collection.Address, token.TokenID)
		if err != nil {
			logger.Warn("skipping token, uri resolution failed",
				zap.String("token_id", token.TokenID),
				zap.String("collection", address),
				zap.Error(err))
			continue
		}
		items = append(items, &crawlItem{token: token, tokenURI: tokenURI})
	}

	// Fetch metadata concurrently; every item settles, failures only void
	// their own item
	pool := pond.NewPool(w.poolSize)
	for _, item := range items {
		item := item
		pool.Submit(func() {
			meta, raw, err := w.fetcher.Fetch(ctx, item.tokenURI)
			if err != nil {
				logger.Warn("skipping token, metadata fetch failed",
					zap.String("token_id", item.token.TokenID),
					zap.String("uri", item.tokenURI),
					zap.Error(err))
				return
			}
			item.meta = meta
			item.raw = raw
		})
	}
	pool.StopAndWait()

	var created int
	for _, item := range items {
		if item.meta == nil {
			continue
		}

		existing, err := w.store.GetNFT(ctx, item.token.TokenID, collection.ID)
		if err != nil {
			logger.Error(err, zap.String("token_id", item.token.TokenID))
			continue
		}
		if existing != nil {
			continue
		}

		nft, traits := buildNFT(item.token, collection.ID, item.tokenURI, item.meta, item.raw)
		if err := w.store.CreateNFTWithTraits(ctx, nft, traits); err != nil {
			logger.Error(err, zap.String("token_id", item.token.TokenID))
			continue
		}
		created++
	}

	logger.Info("collection crawl finished",
		zap.String("collection", address),
		zap.Int("indexed_tokens", len(tokens)),
		zap.Int("created", created))
	return nil
}

// buildNFT maps an indexed token and its fetched metadata onto the persisted
// row and its trait children. Attribute values are coerced to text whatever
// their source JSON type.
func buildNFT(token domain.IndexedToken, collectionID, tokenURI string, meta *domain.TokenMetadata, raw json.RawMessage) (*schema.NFT, []schema.Trait) {
	nft := &schema.NFT{
		TokenID:        token.TokenID,
		CollectionID:   collectionID,
		Name:           meta.Name,
		Status:         domain.TxStatusSuccess,
		TokenURI:       tokenURI,
		TxCreationHash: token.TxCreation,
		ImageHash:      meta.Image,
		Description:    meta.Description,
		Metadata:       []byte(raw),
	}

	traits := make([]schema.Trait, 0, len(meta.Attributes))
	for _, attr := range meta.Attributes {
		traits = append(traits, schema.Trait{
			TokenID:      token.TokenID,
			CollectionID: collectionID,
			TraitType:    attr.TraitType,
			Value:        attr.ValueString(),
			DisplayType:  attr.DisplayType,
		})
	}

	return nft, traits
}
