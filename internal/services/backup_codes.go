package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/authgate/backend/internal/store"
	"github.com/google/uuid"
)

const (
	DefaultBackupCodeCount = 10
	backupCodeBytes        = 4
)

// BackupCodeManager issues single-use recovery codes. Only user-bound
// SHA-256 digests are stored; the plaintext is shown once at issue time.
type BackupCodeManager struct {
	users *store.UserStore
	count int
}

func NewBackupCodeManager(users *store.UserStore, count int) *BackupCodeManager {
	if count <= 0 {
		count = DefaultBackupCodeCount
	}
	return &BackupCodeManager{users: users, count: count}
}

// GenerateBackupCodes returns n codes of eight uppercase hex characters.
func GenerateBackupCodes(n int) ([]string, error) {
	codes := make([]string, n)
	raw := make([]byte, backupCodeBytes)
	for i := range codes {
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		codes[i] = strings.ToUpper(hex.EncodeToString(raw))
	}
	return codes, nil
}

func CanonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

func BackupCodeDigest(userID uuid.UUID, canonicalCode string) string {
	id := userID.String()
	data := make([]byte, 0, len(id)+1+len(canonicalCode))
	data = append(data, id...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Replace discards any existing codes and returns a fresh set.
func (m *BackupCodeManager) Replace(ctx context.Context, userID uuid.UUID) ([]string, error) {
	codes, err := GenerateBackupCodes(m.count)
	if err != nil {
		return nil, internalError("generate backup codes", err)
	}

	digests := make([]string, len(codes))
	for i, code := range codes {
		digests[i] = BackupCodeDigest(userID, code)
	}

	if err := m.users.ReplaceBackupCodes(ctx, userID, digests); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("store backup codes", err)
	}
	return codes, nil
}

// Consume reports whether submitted matched an unused code, removing it if
// so. An unmatched code is (false, remaining, nil); errors are storage
// failures only.
func (m *BackupCodeManager) Consume(ctx context.Context, userID uuid.UUID, submitted string) (bool, int, error) {
	canonical := CanonicalizeBackupCode(submitted)
	if canonical == "" {
		return false, 0, nil
	}

	remaining, err := m.users.ConsumeBackupCode(ctx, userID, BackupCodeDigest(userID, canonical))
	switch {
	case err == nil:
		return true, remaining, nil
	case errors.Is(err, store.ErrBackupCodeNotFound):
		return false, remaining, nil
	case errors.Is(err, store.ErrUserNotFound):
		return false, 0, ErrNotFound
	default:
		return false, 0, internalError("consume backup code", err)
	}
}
