package models

import (
	"time"

	"gorm.io/datatypes"
)

// UsageSnapshot caches the last successfully fetched usage record per
// (user, provider) so the dashboard can show when data was last refreshed
// and fall back to stale data when an upstream is down.
type UsageSnapshot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID   uint64 `gorm:"not null;uniqueIndex:idx_usage_snapshots_user_provider"`                  // Owning user ID.
	Provider string `gorm:"type:varchar(64);not null;uniqueIndex:idx_usage_snapshots_user_provider"` // Provider name.

	Data datatypes.JSON `gorm:"type:jsonb"` // Normalized usage record payload.

	FetchedAt time.Time `gorm:"not null"` // When the upstream was last fetched.
}
