package models

import "time"

// Credential stores one encrypted upstream API key per (user, provider) pair.
// The ciphertext is opaque to every component except the credential codec.
type Credential struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID   uint64 `gorm:"not null;uniqueIndex:idx_credentials_user_provider"`                  // Owning user ID.
	Provider string `gorm:"type:varchar(64);not null;uniqueIndex:idx_credentials_user_provider"` // Provider name.

	EncryptedKey string `gorm:"type:text;not null"` // Codec ciphertext, never plaintext.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
