package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/u2u-labs/nft-ingest/internal/domain"
)

// DayKeyLayout is the calendar-day bucket format used in snapshot identities
const DayKeyLayout = "02012006"

// AnalysisCollection represents the analysis_collections table - an immutable
// daily statistics snapshot. The row identity is derived from the lowercased
// collection address and the calendar day, so at most one snapshot can exist
// per collection per day.
type AnalysisCollection struct {
	// ID is "<address>_<DDMMYYYY>", the natural idempotency key
	ID string `gorm:"column:id;primaryKey;type:text"`
	// CollectionID references the snapshotted collection
	CollectionID string `gorm:"column:collection_id;not null;index:idx_analysis_collections_collection;type:text"`
	// Address is the collection contract address, lowercase
	Address string `gorm:"column:address;not null;type:text"`
	// Type is the contract standard at snapshot time
	Type domain.ContractType `gorm:"column:type;not null;type:text"`
	// KeyTime is the day bucket (DDMMYYYY)
	KeyTime string `gorm:"column:key_time;not null;index:idx_analysis_collections_key_time;type:text"`
	// VolumeWei is the traded volume in wei as reported by the indexer
	VolumeWei string `gorm:"column:volume_wei;not null;default:'0';type:text"`
	// Volume is the traded volume scaled to native units (wei / 1e18)
	Volume float64 `gorm:"column:volume;not null;default:0"`
	// Owner is the holder count
	Owner int64 `gorm:"column:owner;not null;default:0"`
	// Items is the token count
	Items int64 `gorm:"column:items;not null;default:0"`
	// FloorPrice is the collection floor price at snapshot time
	FloorPrice float64 `gorm:"column:floor_price;not null;default:0"`
	// CreatedAt is the timestamp when this snapshot was taken
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the AnalysisCollection model
func (AnalysisCollection) TableName() string {
	return "analysis_collections"
}

// SnapshotDayKey formats a calendar day as the DDMMYYYY bucket key
func SnapshotDayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// SnapshotID builds the deterministic snapshot identity for a collection
// address on a given day
func SnapshotID(address string, t time.Time) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(address), SnapshotDayKey(t))
}
