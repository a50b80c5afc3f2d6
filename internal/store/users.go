package store

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/authgate/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxOptimisticRetries = 5

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrBackupCodeNotFound = errors.New("backup code not found")
	ErrTOTPSecretMissing  = errors.New("totp secret not set")
	ErrConcurrentUpdate   = errors.New("concurrent update, retries exhausted")
)

type UserStore struct {
	DB *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{DB: db}
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	db := s.DB.WithContext(ctx)

	if err := s.checkUnique(db, user.Email, user.Username); err != nil {
		return err
	}

	if err := db.Create(user).Error; err != nil {
		// Lost a race with another registration between the check and the
		// insert; report it the same way.
		if uniqueErr := s.checkUnique(db, user.Email, user.Username); uniqueErr != nil {
			return uniqueErr
		}
		return err
	}
	return nil
}

func (s *UserStore) checkUnique(db *gorm.DB, email, username string) error {
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrEmailTaken
	}
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUsernameTaken
	}
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

// FindByEmail matches the stored address exactly.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &user, nil
}

// UpdateProfile applies column updates and returns the refreshed row.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*models.User, error) {
	db := s.DB.WithContext(ctx)

	if username, ok := updates["username"].(string); ok {
		var count int64
		if err := db.Model(&models.User{}).Where("username = ? AND id <> ?", username, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrUsernameTaken
		}
	}

	if len(updates) > 0 {
		result := db.Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}
	return s.FindByID(ctx, id)
}

func (s *UserStore) SetPassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	return setPassword(s.DB.WithContext(ctx), id, hash, changedAt)
}

func setPassword(db *gorm.DB, id uuid.UUID, hash string, changedAt time.Time) error {
	result := db.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"password_hash":       hash,
		"password_changed_at": changedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SaveTOTPSecret stores secret only when the user has none yet and returns
// the secret that is stored afterwards, which is the earlier one if another
// request won the race.
func (s *UserStore) SaveTOTPSecret(ctx context.Context, id uuid.UUID, secret string) (string, error) {
	db := s.DB.WithContext(ctx)

	result := db.Model(&models.User{}).
		Where("id = ? AND (totp_secret IS NULL OR totp_secret = '')", id).
		Update("totp_secret", secret)
	if result.Error != nil {
		return "", result.Error
	}

	user, err := s.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !user.HasTOTPSecret() {
		return "", ErrTOTPSecretMissing
	}
	return *user.TOTPSecret, nil
}

// ReplaceBackupCodes swaps the whole digest set in one statement.
func (s *UserStore) ReplaceBackupCodes(ctx context.Context, id uuid.UUID, digests []string) error {
	result := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"backup_codes": models.CodeList(digests),
		"version":      gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ConsumeBackupCode removes digest from the user's set. The write is guarded
// by the row version, so of two concurrent consumers of the same code only
// one observes it present at commit time.
func (s *UserStore) ConsumeBackupCode(ctx context.Context, id uuid.UUID, digest string) (int, error) {
	db := s.DB.WithContext(ctx)

	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		var user models.User
		if err := db.Select("id", "backup_codes", "version").First(&user, "id = ?", id).Error; err != nil {
			return 0, notFound(err, ErrUserNotFound)
		}

		index := -1
		for i, stored := range user.BackupCodes {
			if subtle.ConstantTimeCompare([]byte(stored), []byte(digest)) == 1 {
				index = i
				break
			}
		}
		if index < 0 {
			return len(user.BackupCodes), ErrBackupCodeNotFound
		}

		remaining := make(models.CodeList, 0, len(user.BackupCodes)-1)
		remaining = append(remaining, user.BackupCodes[:index]...)
		remaining = append(remaining, user.BackupCodes[index+1:]...)

		result := db.Model(&models.User{}).
			Where("id = ? AND version = ?", id, user.Version).
			Updates(map[string]interface{}{
				"backup_codes": remaining,
				"version":      gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return 0, result.Error
		}
		if result.RowsAffected == 1 {
			return len(remaining), nil
		}
	}

	return 0, ErrConcurrentUpdate
}

// EnableTwoFactor refuses to set the flag for a user without a secret.
func (s *UserStore) EnableTwoFactor(ctx context.Context, id uuid.UUID) error {
	result := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND totp_secret IS NOT NULL AND totp_secret <> ''", id).
		Update("is_2fa_enabled", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTOTPSecretMissing
	}
	return nil
}

// DisableTwoFactor clears the flag, secret and backup codes together.
func (s *UserStore) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	result := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_2fa_enabled": false,
		"totp_secret":    nil,
		"backup_codes":   models.CodeList{},
		"version":        gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
