package api

import "time"

// User mirrors the server's user representation.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Is2FAEnabled bool      `json:"is_2fa_enabled"`
	CreatedAt    time.Time `json:"created_at"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AuthResponse is returned by register, login and the 2FA endpoints.
// Tokens is nil when login still needs a second factor.
type AuthResponse struct {
	Message     string     `json:"message"`
	User        *User      `json:"user"`
	Tokens      *TokenPair `json:"tokens,omitempty"`
	Requires2FA bool       `json:"requires_2fa,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RefreshResponse struct {
	Access string `json:"access"`
}

// TwoFactorSetup is returned by GET /2fa/setup/.
type TwoFactorSetup struct {
	QRCode      string   `json:"qr_code"`
	Secret      string   `json:"secret"`
	BackupCodes []string `json:"backup_codes"`
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

// ProfileUpdate sends only the fields that are set.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}
