package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feelize/platform/internal/models"
)

// RevocationStore persists the per-subject instant before which sessions are invalid.
type RevocationStore interface {
	Revoke(ctx context.Context, subject string, at time.Time) error
	ValidAfter(ctx context.Context, subject string) (time.Time, bool, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormRevocationStore is the relational RevocationStore.
type GormRevocationStore struct {
	db *gorm.DB
}

// NewGormRevocationStore constructs a GormRevocationStore.
func NewGormRevocationStore(db *gorm.DB) (*GormRevocationStore, error) {
	if db == nil {
		return nil, errors.New("revocation store: db is required")
	}
	return &GormRevocationStore{db: db}, nil
}

// Revoke records at (second precision) as the subject's new validity floor.
func (s *GormRevocationStore) Revoke(ctx context.Context, subject string, at time.Time) error {
	row := models.IdentityRevocation{
		Subject:    subject,
		ValidAfter: at.UTC().Truncate(time.Second),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject"}},
		DoUpdates: clause.AssignmentColumns([]string{"valid_after", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("revocation store: revoke: %w", err)
	}
	return nil
}

// ValidAfter returns the subject's validity floor, if one was recorded.
func (s *GormRevocationStore) ValidAfter(ctx context.Context, subject string) (time.Time, bool, error) {
	var row models.IdentityRevocation
	err := s.db.WithContext(ctx).Where("subject = ?", subject).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("revocation store: lookup: %w", err)
	}
	return row.ValidAfter, true, nil
}

// PurgeBefore removes rows older than cutoff. Once every session minted before a floor has
// expired the floor no longer rejects anything.
func (s *GormRevocationStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("valid_after < ?", cutoff.UTC()).Delete(&models.IdentityRevocation{})
	if res.Error != nil {
		return 0, fmt.Errorf("revocation store: purge: %w", res.Error)
	}
	return res.RowsAffected, nil
}
