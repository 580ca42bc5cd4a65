package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/u2u-labs/nft-ingest/internal/domain"
)

// NFT represents the nfts table. Identity is the (token id, collection id)
// composite; the primary key doubles as the idempotency guard for crawls.
type NFT struct {
	// TokenID is the token number within the contract (string to support very large numbers)
	TokenID string `gorm:"column:token_id;primaryKey;type:text"`
	// CollectionID references the owning collection
	CollectionID string `gorm:"column:collection_id;primaryKey;type:text"`
	// Name is the token name from its metadata document
	Name string `gorm:"column:name;type:text"`
	// Status tracks confirmation of the mint transaction
	Status domain.TxStatus `gorm:"column:status;not null;type:text"`
	// TokenURI is the resolved on-chain metadata URI
	TokenURI string `gorm:"column:token_uri;type:text"`
	// TxCreationHash is the mint transaction, the correlation key for status transitions
	TxCreationHash string `gorm:"column:tx_creation_hash;index:idx_nfts_tx_creation_hash;type:text"`
	// ImageHash is the image reference from the metadata document
	ImageHash string `gorm:"column:image_hash;type:text"`
	// Description is the token description from its metadata document
	Description string `gorm:"column:description;type:text"`
	// Metadata is the raw metadata document as fetched
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	// CreatedAt is the timestamp when this record was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`

	// Associations
	Traits []Trait `gorm:"foreignKey:TokenID,CollectionID;references:TokenID,CollectionID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the NFT model
func (NFT) TableName() string {
	return "nfts"
}

// Trait represents the traits table, one row per metadata attribute of an NFT.
// Values are stored as text regardless of the source JSON type.
type Trait struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TokenID references the owning NFT (composite with CollectionID)
	TokenID string `gorm:"column:token_id;not null;index:idx_traits_token,priority:1;type:text"`
	// CollectionID references the owning NFT's collection
	CollectionID string `gorm:"column:collection_id;not null;index:idx_traits_token,priority:2;type:text"`
	// TraitType is the attribute name (e.g. "Color")
	TraitType string `gorm:"column:trait_type;not null;type:text"`
	// Value is the attribute value coerced to text
	Value string `gorm:"column:value;not null;type:text"`
	// DisplayType is the optional rendering hint carried by some metadata documents
	DisplayType string `gorm:"column:display_type;type:text"`
}

// TableName specifies the table name for the Trait model
func (Trait) TableName() string {
	return "traits"
}
