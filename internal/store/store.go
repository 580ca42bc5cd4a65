package store

import (
	"context"

	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/store/schema"
)

// Store defines the interface for database operations
type Store interface {
	// GetCollectionByAddress retrieves a collection by its lowercased contract address
	GetCollectionByAddress(ctx context.Context, address string) (*schema.Collection, error)
	// ListConfirmedCollections pages through collections with status success
	ListConfirmedCollections(ctx context.Context, limit, offset int) ([]schema.Collection, error)
	// GetNFT retrieves an NFT by its (token id, collection id) natural key
	GetNFT(ctx context.Context, tokenID, collectionID string) (*schema.NFT, error)
	// CreateNFTWithTraits creates an NFT row and its trait children as a single
	// logical write. A duplicate natural key is a benign no-op.
	CreateNFTWithTraits(ctx context.Context, nft *schema.NFT, traits []schema.Trait) error
	// UpdateNFTStatusByTxHash transitions the status of the NFT created by the
	// given transaction
	UpdateNFTStatusByTxHash(ctx context.Context, txHash string, status domain.TxStatus) error
	// GetAnalysisSnapshot retrieves a daily snapshot by its deterministic identity
	GetAnalysisSnapshot(ctx context.Context, id string) (*schema.AnalysisCollection, error)
	// CreateAnalysisSnapshot creates a daily snapshot. A duplicate identity is a
	// benign no-op: snapshots are immutable once written.
	CreateAnalysisSnapshot(ctx context.Context, snapshot *schema.AnalysisCollection) error
}
