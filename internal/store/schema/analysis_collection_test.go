package schema_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/u2u-labs/nft-ingest/internal/store/schema"
)

func TestSnapshotID(t *testing.T) {
	day := time.Date(2024, time.March, 5, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, "0xabcdef_05032024", schema.SnapshotID("0xABCDEF", day))
	assert.Equal(t, "05032024", schema.SnapshotDayKey(day))

	// Same day, different time of day, same identity
	later := day.Add(30 * time.Minute)
	assert.Equal(t, schema.SnapshotID("0xabcdef", day), schema.SnapshotID("0xabcdef", later))

	// Next day gets a distinct identity
	tomorrow := day.Add(24 * time.Hour)
	assert.NotEqual(t, schema.SnapshotID("0xabcdef", day), schema.SnapshotID("0xabcdef", tomorrow))
}
