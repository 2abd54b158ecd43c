package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/token-tracker/tokentracker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound indicates no credential is stored for the (user, provider) pair.
var ErrNotFound = errors.New("credential not found")

// Store persists encrypted provider credentials, one per (user, provider).
// Ciphertext passes through opaquely; encryption and decryption happen in
// the security codec, never here.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get loads the credential for a (user, provider) pair.
func (s *Store) Get(ctx context.Context, userID uint64, provider string) (*models.Credential, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("credential store: not initialized")
	}
	provider = strings.TrimSpace(provider)
	if userID == 0 || provider == "" {
		return nil, ErrNotFound
	}

	var row models.Credential
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("credential store: get: %w", errFind)
	}
	return &row, nil
}

// Upsert stores ciphertext for a (user, provider) pair, replacing any
// existing row and bumping updated_at.
func (s *Store) Upsert(ctx context.Context, userID uint64, provider, ciphertext string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("credential store: not initialized")
	}
	provider = strings.TrimSpace(provider)
	if userID == 0 || provider == "" {
		return fmt.Errorf("credential store: missing user or provider")
	}
	if strings.TrimSpace(ciphertext) == "" {
		return fmt.Errorf("credential store: empty ciphertext")
	}

	now := time.Now().UTC()
	record := models.Credential{
		UserID:       userID,
		Provider:     provider,
		EncryptedKey: ciphertext,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_key", "updated_at"}),
	}).Create(&record).Error; errUpsert != nil {
		return fmt.Errorf("credential store: upsert: %w", errUpsert)
	}
	return nil
}

// Delete removes the credential for a (user, provider) pair.
func (s *Store) Delete(ctx context.Context, userID uint64, provider string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("credential store: not initialized")
	}
	provider = strings.TrimSpace(provider)
	if userID == 0 || provider == "" {
		return fmt.Errorf("credential store: missing user or provider")
	}

	if errDelete := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&models.Credential{}).Error; errDelete != nil {
		return fmt.Errorf("credential store: delete: %w", errDelete)
	}
	return nil
}

// List returns all credentials stored for a user, newest first.
func (s *Store) List(ctx context.Context, userID uint64) ([]models.Credential, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("credential store: not initialized")
	}
	if userID == 0 {
		return nil, nil
	}

	var rows []models.Credential
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("credential store: list: %w", errFind)
	}
	return rows, nil
}

// ListProviders returns the provider names a user has credentials for.
func (s *Store) ListProviders(ctx context.Context, userID uint64) ([]string, error) {
	rows, errList := s.List(ctx, userID)
	if errList != nil {
		return nil, errList
	}
	providers := make([]string, 0, len(rows))
	for _, row := range rows {
		providers = append(providers, row.Provider)
	}
	return providers, nil
}
