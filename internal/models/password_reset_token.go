package models

import (
	"time"

	"github.com/google/uuid"
)

// PasswordResetToken rows are never deleted while the owning user exists; a
// consumed or expired row stays behind so a replayed link is recognised.
type PasswordResetToken struct {
	BaseModel
	UserID    uuid.UUID  `json:"-" gorm:"type:uuid;not null;index"`
	TokenHash string     `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	IsUsed    bool       `json:"is_used" gorm:"not null;default:false"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	User      User       `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// IsExpired reports whether the token is at least ttl old at now.
func (t *PasswordResetToken) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.CreatedAt) >= ttl
}
