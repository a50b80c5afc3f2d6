package models

import "time"

type User struct {
	BaseModel
	Email             string     `json:"email" gorm:"type:varchar(254);uniqueIndex;not null"`
	Username          string     `json:"username" gorm:"type:varchar(150);uniqueIndex;not null"`
	FirstName         string     `json:"first_name" gorm:"type:varchar(150);not null"`
	LastName          string     `json:"last_name" gorm:"type:varchar(150);not null"`
	PasswordHash      string     `json:"-" gorm:"type:text;not null"`
	IsActive          bool       `json:"-" gorm:"not null;default:true"`
	Is2FAEnabled      bool       `json:"is_2fa_enabled" gorm:"column:is_2fa_enabled;not null;default:false"`
	TOTPSecret        *string    `json:"-" gorm:"column:totp_secret;type:text"`
	BackupCodes       CodeList   `json:"-" gorm:"column:backup_codes;type:text"`
	Version           int64      `json:"-" gorm:"not null;default:0"`
	PasswordChangedAt *time.Time `json:"-"`
}

// HasTOTPSecret reports whether two-factor setup has been started.
func (u *User) HasTOTPSecret() bool {
	return u.TOTPSecret != nil && *u.TOTPSecret != ""
}
