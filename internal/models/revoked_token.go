package models

import (
	"time"

	"github.com/google/uuid"
)

// RevokedToken is a blacklisted refresh token, keyed by its jti claim.
type RevokedToken struct {
	JTI       string     `gorm:"type:varchar(64);primaryKey"`
	UserID    *uuid.UUID `gorm:"type:uuid;index"`
	ExpiresAt time.Time  `gorm:"not null;index"`
	CreatedAt time.Time
}
