package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to reasonable defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// GetCollectionByAddress retrieves a collection by its lowercased contract address
func (s *pgStore) GetCollectionByAddress(ctx context.Context, address string) (*schema.Collection, error) {
	var collection schema.Collection
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &collection, nil
}

// ListConfirmedCollections pages through collections with status success
func (s *pgStore) ListConfirmedCollections(ctx context.Context, limit, offset int) ([]schema.Collection, error) {
	var collections []schema.Collection
	err := s.db.WithContext(ctx).
		Where("status = ?", domain.TxStatusSuccess).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&collections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return collections, nil
}

// GetNFT retrieves an NFT by its (token id, collection id) natural key
func (s *pgStore) GetNFT(ctx context.Context, tokenID, collectionID string) (*schema.NFT, error) {
	var nft schema.NFT
	err := s.db.WithContext(ctx).
		Where("token_id = ? AND collection_id = ?", tokenID, collectionID).
		First(&nft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get nft: %w", err)
	}
	return &nft, nil
}

// CreateNFTWithTraits creates an NFT row and its trait children as a single
// logical write. The composite primary key backs the idempotency guarantee:
// if another crawl won the race after our existence check, the insert is a
// no-op and no traits are written.
func (s *pgStore) CreateNFTWithTraits(ctx context.Context, nft *schema.NFT, traits []schema.Trait) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(nft)
		if res.Error != nil {
			return fmt.Errorf("failed to create nft: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Natural key already present, the earlier write stands
			return nil
		}

		if len(traits) == 0 {
			return nil
		}
		for i := range traits {
			traits[i].TokenID = nft.TokenID
			traits[i].CollectionID = nft.CollectionID
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&traits).Error; err != nil {
			return fmt.Errorf("failed to create traits: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// UpdateNFTStatusByTxHash transitions the status of the NFT created by the given transaction
func (s *pgStore) UpdateNFTStatusByTxHash(ctx context.Context, txHash string, status domain.TxStatus) error {
	err := s.db.WithContext(ctx).
		Model(&schema.NFT{}).
		Where("tx_creation_hash = ?", txHash).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to update nft status: %w", err)
	}
	return nil
}

// GetAnalysisSnapshot retrieves a daily snapshot by its deterministic identity
func (s *pgStore) GetAnalysisSnapshot(ctx context.Context, id string) (*schema.AnalysisCollection, error) {
	var snapshot schema.AnalysisCollection
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis snapshot: %w", err)
	}
	return &snapshot, nil
}

// CreateAnalysisSnapshot creates a daily snapshot; duplicates are no-ops
func (s *pgStore) CreateAnalysisSnapshot(ctx context.Context, snapshot *schema.AnalysisCollection) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(snapshot).Error
	if err != nil {
		return fmt.Errorf("failed to create analysis snapshot: %w", err)
	}
	return nil
}
