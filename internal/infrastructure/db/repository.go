package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/exaudio/exaudio/internal/device"
	"github.com/exaudio/exaudio/internal/format"
	"github.com/exaudio/exaudio/internal/logger"
)

// CachedFormat is one confirmed descriptor row. Rows for one endpoint are
// written and deleted as a group; Position preserves confirmation order
// across the round trip.
type CachedFormat struct {
	ID          uint   `gorm:"primaryKey"`
	DeviceKey   string `gorm:"not null"`
	Direction   string `gorm:"not null"`
	Position    int    `gorm:"not null"`
	Rate        int
	Channels    int
	ValidBits   int
	StoreBits   int
	ChannelMask uint32
	Variant     int
	CreatedAt   time.Time
}

// FormatRepository stores and recalls negotiated format tables keyed by
// endpoint. The key should survive reboots, so callers use the endpoint
// name rather than a collection index.
type FormatRepository struct {
	db *gorm.DB
}

func NewFormatRepository(d *Database) *FormatRepository {
	return &FormatRepository{db: d.DB()}
}

// Save replaces the cached table for the endpoint with the given one.
func (r *FormatRepository) Save(deviceKey string, dir device.Direction, table *format.Table) error {
	rows := make([]CachedFormat, 0, table.Len())
	for i, d := range table.Descriptors() {
		rows = append(rows, CachedFormat{
			DeviceKey:   deviceKey,
			Direction:   dir.String(),
			Position:    i,
			Rate:        d.Rate,
			Channels:    d.Channels,
			ValidBits:   d.ValidBits,
			StoreBits:   d.StoreBits,
			ChannelMask: d.ChannelMask,
			Variant:     int(d.Variant),
		})
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_key = ? AND direction = ?", deviceKey, dir.String()).
			Delete(&CachedFormat{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save format table: %w", err)
	}

	logger.Debug("Cached format table",
		logger.String("device", deviceKey),
		logger.String("direction", dir.String()),
		logger.Int("formats", len(rows)))
	return nil
}

// Load recalls the cached table for the endpoint. The second return value
// reports whether a cache entry existed. Empty tables are never cached,
// so a device that rejected everything gets re-probed on the next run.
func (r *FormatRepository) Load(deviceKey string, dir device.Direction) (*format.Table, bool, error) {
	var rows []CachedFormat
	err := r.db.Where("device_key = ? AND direction = ?", deviceKey, dir.String()).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to load format table: %w", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	table := format.NewTable()
	for _, row := range rows {
		table.Add(format.Descriptor{
			Rate:        row.Rate,
			Channels:    row.Channels,
			ValidBits:   row.ValidBits,
			StoreBits:   row.StoreBits,
			ChannelMask: row.ChannelMask,
			Variant:     format.Variant(row.Variant),
		})
	}
	return table, true, nil
}

// Invalidate drops the cached tables for one endpoint, both directions.
func (r *FormatRepository) Invalidate(deviceKey string) error {
	res := r.db.Where("device_key = ?", deviceKey).Delete(&CachedFormat{})
	if res.Error != nil {
		return fmt.Errorf("failed to invalidate format cache: %w", res.Error)
	}
	logger.Debug("Invalidated format cache",
		logger.String("device", deviceKey),
		logger.Uint64("rows", uint64(res.RowsAffected)))
	return nil
}

// InvalidateAll empties the cache.
func (r *FormatRepository) InvalidateAll() error {
	if err := r.db.Where("1 = 1").Delete(&CachedFormat{}).Error; err != nil {
		return fmt.Errorf("failed to clear format cache: %w", err)
	}
	return nil
}
