package store

import (
	"context"
	"errors"
	"time"

	"github.com/authgate/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrResetTokenUsed     = errors.New("reset token already used")
)

type ResetTokenStore struct {
	DB *gorm.DB
}

func NewResetTokenStore(db *gorm.DB) *ResetTokenStore {
	return &ResetTokenStore{DB: db}
}

func (s *ResetTokenStore) Create(ctx context.Context, token *models.PasswordResetToken) error {
	return s.DB.WithContext(ctx).Create(token).Error
}

func (s *ResetTokenStore) FindByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	if err := s.DB.WithContext(ctx).First(&token, "token_hash = ?", tokenHash).Error; err != nil {
		return nil, notFound(err, ErrResetTokenNotFound)
	}
	return &token, nil
}

// ConsumeAndSetPassword marks the token used and writes the new password
// hash in one transaction. The is_used guard in the UPDATE makes the second
// of two concurrent consumers fail with ErrResetTokenUsed.
func (s *ResetTokenStore) ConsumeAndSetPassword(ctx context.Context, token *models.PasswordResetToken, passwordHash string, now time.Time) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markUsed(tx, token, now); err != nil {
			return err
		}
		return setPassword(tx, token.UserID, passwordHash, now)
	})
}

// MarkUsed retires a token without touching the password.
func (s *ResetTokenStore) MarkUsed(ctx context.Context, token *models.PasswordResetToken, now time.Time) error {
	return markUsed(s.DB.WithContext(ctx), token, now)
}

func markUsed(db *gorm.DB, token *models.PasswordResetToken, now time.Time) error {
	result := db.Model(&models.PasswordResetToken{}).
		Where("id = ? AND is_used = ?", token.ID, false).
		Updates(map[string]interface{}{
			"is_used": true,
			"used_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrResetTokenUsed
	}
	return nil
}
