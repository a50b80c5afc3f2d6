package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/store"
)

const (
	DefaultResetTokenTTL = 24 * time.Hour
	resetTokenBytes      = 32
)

// ResetLedger issues and redeems password-reset tokens. The token text is
// only ever returned to the caller; rows hold its SHA-256.
type ResetLedger struct {
	tokens *store.ResetTokenStore
	ttl    time.Duration
	now    func() time.Time
}

func NewResetLedger(tokens *store.ResetTokenStore, ttl time.Duration) *ResetLedger {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetLedger{tokens: tokens, ttl: ttl, now: time.Now}
}

func hashResetToken(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Issue creates a fresh token for user. Earlier tokens stay valid until they
// expire or are used.
func (l *ResetLedger) Issue(ctx context.Context, user *models.User) (string, error) {
	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", internalError("generate reset token", err)
	}
	text := base64.RawURLEncoding.EncodeToString(raw)

	row := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hashResetToken(text),
	}
	row.CreatedAt = l.now().UTC()

	if err := l.tokens.Create(ctx, row); err != nil {
		return "", internalError("store reset token", err)
	}
	return text, nil
}

// Resolve looks the token up without judging its state.
func (l *ResetLedger) Resolve(ctx context.Context, text string) (*models.PasswordResetToken, error) {
	if text == "" {
		return nil, ErrTokenNotFound
	}
	row, err := l.tokens.FindByHash(ctx, hashResetToken(text))
	if err != nil {
		if errors.Is(err, store.ErrResetTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, internalError("load reset token", err)
	}
	return row, nil
}

// Check resolves the token and fails with TokenExpired or TokenAlreadyUsed,
// in that order, when it cannot be redeemed.
func (l *ResetLedger) Check(ctx context.Context, text string) (*models.PasswordResetToken, error) {
	row, err := l.Resolve(ctx, text)
	if err != nil {
		return nil, err
	}
	if row.IsExpired(l.now(), l.ttl) {
		return nil, ErrTokenExpired
	}
	if row.IsUsed {
		return nil, ErrTokenAlreadyUsed
	}
	return row, nil
}

// Consume redeems the token and stores passwordHash for its owner in one
// transaction. Only one of several concurrent callers succeeds.
func (l *ResetLedger) Consume(ctx context.Context, text, passwordHash string) (*models.PasswordResetToken, error) {
	row, err := l.Check(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := l.tokens.ConsumeAndSetPassword(ctx, row, passwordHash, l.now().UTC()); err != nil {
		switch {
		case errors.Is(err, store.ErrResetTokenUsed):
			return nil, ErrTokenAlreadyUsed
		case errors.Is(err, store.ErrUserNotFound):
			return nil, ErrTokenNotFound
		default:
			return nil, internalError("consume reset token", err)
		}
	}
	return row, nil
}

// Invalidate retires a token that was issued but never delivered.
func (l *ResetLedger) Invalidate(ctx context.Context, text string) error {
	row, err := l.Resolve(ctx, text)
	if err != nil {
		return err
	}
	if err := l.tokens.MarkUsed(ctx, row, l.now().UTC()); err != nil && !errors.Is(err, store.ErrResetTokenUsed) {
		return internalError("invalidate reset token", err)
	}
	return nil
}
