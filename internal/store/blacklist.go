package store

import (
	"context"
	"time"

	"github.com/authgate/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenBlacklist keeps revoked refresh-token identifiers in the database.
type TokenBlacklist struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewTokenBlacklist(db *gorm.DB) *TokenBlacklist {
	return &TokenBlacklist{DB: db, Now: time.Now}
}

func (b *TokenBlacklist) Revoke(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	entry := models.RevokedToken{
		JTI:       jti,
		UserID:    &userID,
		ExpiresAt: expiresAt,
	}
	return b.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).Error
}

func (b *TokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := b.DB.WithContext(ctx).Model(&models.RevokedToken{}).Where("jti = ?", jti).Count(&count).Error
	return count > 0, err
}

// PurgeExpired drops entries whose token would be rejected for expiry anyway.
func (b *TokenBlacklist) PurgeExpired(ctx context.Context) (int64, error) {
	result := b.DB.WithContext(ctx).Where("expires_at < ?", b.Now()).Delete(&models.RevokedToken{})
	return result.RowsAffected, result.Error
}
