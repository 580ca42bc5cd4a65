package schema

import (
	"time"

	"github.com/u2u-labs/nft-ingest/internal/domain"
)

// Collection represents the collections table - an on-chain token contract
// tracked by the system. Identity is the contract address, stored lowercase.
type Collection struct {
	// ID is the internal identifier
	ID string `gorm:"column:id;primaryKey;type:text"`
	// Address is the contract address, case-normalized to lowercase
	Address string `gorm:"column:address;not null;uniqueIndex;type:text"`
	// Type is the contract standard (ERC721, ERC1155)
	Type domain.ContractType `gorm:"column:type;not null;type:text"`
	// Status tracks confirmation of the creation transaction
	Status domain.TxStatus `gorm:"column:status;not null;type:text;index:idx_collections_status"`
	// FlagExtended marks collections whose stats come from the slower
	// secondary indexer walk instead of pre-aggregated contract stats
	FlagExtended bool `gorm:"column:flag_extended;not null;default:false"`
	// FloorPrice is the current floor price in wei (string to support very large numbers)
	FloorPrice string `gorm:"column:floor_price;not null;default:'0';type:text"`
	// TxCreationHash is the transaction that deployed the contract
	TxCreationHash string `gorm:"column:tx_creation_hash;not null;uniqueIndex;type:text"`
	// CreatedAt is the timestamp when this record was first indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`

	// Associations
	NFTs []NFT `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Collection model
func (Collection) TableName() string {
	return "collections"
}
