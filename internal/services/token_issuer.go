package services

import (
	"context"
	"errors"
	"time"

	"github.com/authgate/backend/internal/config"
	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Blacklist records revoked refresh tokens by jti until they expire.
type Blacklist interface {
	Revoke(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	now        func() time.Time
}

func NewTokenIssuer(cfg config.JWTConfig, blacklist Blacklist) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		blacklist:  blacklist,
		now:        time.Now,
	}
}

func (i *TokenIssuer) sign(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := utils.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return utils.SignToken(i.secret, claims)
}

func (i *TokenIssuer) IssuePair(user *models.User) (*TokenPair, error) {
	access, err := i.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, err := i.sign(user, utils.TokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return nil, internalError("sign refresh token", err)
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (i *TokenIssuer) IssueAccess(user *models.User) (string, error) {
	access, err := i.sign(user, utils.TokenTypeAccess, i.accessTTL)
	if err != nil {
		return "", internalError("sign access token", err)
	}
	return access, nil
}

func (i *TokenIssuer) parse(token, tokenType string) (*utils.Claims, error) {
	claims, err := utils.ParseToken(i.secret, token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseAccess validates a bearer token; refresh tokens are rejected.
func (i *TokenIssuer) ParseAccess(token string) (*utils.Claims, error) {
	return i.parse(token, utils.TokenTypeAccess)
}

// ParseRefresh validates a refresh token and checks the blacklist.
func (i *TokenIssuer) ParseRefresh(ctx context.Context, token string) (*utils.Claims, error) {
	claims, err := i.parse(token, utils.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	revoked, err := i.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, internalError("check token blacklist", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke blacklists a refresh token. Tokens that are malformed, expired or
// already revoked are ignored, so logout never fails on a bad token.
func (i *TokenIssuer) Revoke(ctx context.Context, token string) error {
	claims, err := i.ParseRefresh(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil
		}
		return err
	}

	if err := i.blacklist.Revoke(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time); err != nil {
		logger.ErrorWithUser(claims.UserID.String(), "token_revoke_failed", err, nil)
		return internalError("revoke refresh token", err)
	}
	return nil
}
