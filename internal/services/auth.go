package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/authgate/backend/internal/metrics"
	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/google/uuid"
)

const (
	totpCodeLength   = 6
	backupCodeLength = 8
	maxNameLength    = 150
	maxEmailLength   = 254
	requiredField    = "This field is required."
)

type AuthOptions struct {
	// IssueTokensBefore2FA returns a token pair from Login even when a
	// second factor is still required.
	IssueTokensBefore2FA bool
	// ChangePasswordRequireCurrent makes ChangePassword check OldPassword.
	ChangePasswordRequireCurrent bool
	// RevokeSessionsOnPasswordChange makes Refresh reject refresh tokens
	// issued before the last password change or reset.
	RevokeSessionsOnPasswordChange bool
}

type AuthDeps struct {
	Users     *store.UserStore
	Issuer    *TokenIssuer
	TOTP      *TOTPEngine
	Backup    *BackupCodeManager
	Ledger    *ResetLedger
	Notifier  Notifier
	Policy    PasswordValidator
	SecretBox *utils.SecretBox
	Options   AuthOptions
}

// AuthService drives registration, login with an optional second factor,
// token refresh and the password-reset flow.
type AuthService struct {
	users     *store.UserStore
	issuer    *TokenIssuer
	totp      *TOTPEngine
	backup    *BackupCodeManager
	ledger    *ResetLedger
	notifier  Notifier
	policy    PasswordValidator
	secretBox *utils.SecretBox
	opts      AuthOptions
	now       func() time.Time
}

func NewAuthService(deps AuthDeps) *AuthService {
	policy := deps.Policy
	if policy == nil {
		policy = DefaultPasswordPolicy(DefaultPasswordMinLength)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &AuthService{
		users:     deps.Users,
		issuer:    deps.Issuer,
		totp:      deps.TOTP,
		backup:    deps.Backup,
		ledger:    deps.Ledger,
		notifier:  notifier,
		policy:    policy,
		secretBox: deps.SecretBox,
		opts:      deps.Options,
		now:       time.Now,
	}
}

type RegisterInput struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyLoginInput struct {
	Email        string `json:"email"`
	Token        string `json:"token"`
	IsBackupCode bool   `json:"is_backup_code"`
}

type ProfileUpdate struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type ChangePasswordInput struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

type ResetConfirmInput struct {
	Token              string `json:"token"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

// AuthResult is the outcome of a credential or second-factor check. Tokens
// is nil while a second factor is outstanding unless IssueTokensBefore2FA
// is set.
type AuthResult struct {
	User              *models.User
	Tokens            *TokenPair
	RequiresTwoFactor bool
}

type TwoFactorSetup struct {
	QRCode      string   `json:"qr_code"`
	Secret      string   `json:"secret"`
	BackupCodes []string `json:"backup_codes"`
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// equalizeTiming spends one bcrypt comparison when no user matched, so an
// unknown email costs about as much as a wrong password.
func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = utils.HashPassword(uuid.NewString())
	})
	utils.CheckPassword(password, dummyHash)
}

func validEmail(email string) bool {
	if len(email) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *AuthService) checkPassword(field, password string, user *models.User) error {
	if problems := s.policy.Validate(password, user); len(problems) > 0 {
		return &Error{
			Kind:    KindValidation,
			Message: problems[0],
			Fields:  map[string][]string{field: problems},
		}
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	fields := FieldErrors{}
	for field, value := range map[string]string{
		"email":            in.Email,
		"username":         in.Username,
		"password":         in.Password,
		"password_confirm": in.PasswordConfirm,
		"first_name":       in.FirstName,
		"last_name":        in.LastName,
	} {
		if value == "" {
			fields.Add(field, requiredField)
		}
	}
	if in.Email != "" && !validEmail(in.Email) {
		fields.Add("email", "Enter a valid email address.")
	}
	for field, value := range map[string]string{
		"username":   in.Username,
		"first_name": in.FirstName,
		"last_name":  in.LastName,
	} {
		if len(value) > maxNameLength {
			fields.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", maxNameLength))
		}
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	if in.Password != in.PasswordConfirm {
		return nil, ValidationError("non_field_errors", "Passwords don't match")
	}

	user := &models.User{
		Email:     in.Email,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		IsActive:  true,
	}
	if err := s.checkPassword("password", in.Password, user); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, internalError("hash password", err)
	}
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrEmailTaken):
			return nil, &Error{Kind: KindConflict, Message: "user with this email already exists.",
				Fields: map[string][]string{"email": {"user with this email already exists."}}}
		case errors.Is(err, store.ErrUsernameTaken):
			return nil, &Error{Kind: KindConflict, Message: "A user with that username already exists.",
				Fields: map[string][]string{"username": {"A user with that username already exists."}}}
		default:
			return nil, internalError("create user", err)
		}
	}

	tokens, err := s.issuer.IssuePair(user)
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{
		"email": logger.MaskEmail(user.Email),
	})
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Login checks credentials. Unknown email, wrong password and a disabled
// account all fail with the same InvalidCredentials error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	fields := FieldErrors{}
	if strings.TrimSpace(in.Email) == "" {
		fields.Add("email", requiredField)
	}
	if in.Password == "" {
		fields.Add("password", requiredField)
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			return nil, internalError("load user", err)
		}
		equalizeTiming(in.Password)
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	if !utils.CheckPassword(in.Password, user.PasswordHash) || !user.IsActive {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		logger.WarnWithUser(user.ID.String(), "login_failed", nil)
		return nil, ErrInvalidCredentials
	}

	if !user.Is2FAEnabled {
		tokens, err := s.issuer.IssuePair(user)
		if err != nil {
			return nil, err
		}
		metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
		logger.InfoWithUser(user.ID.String(), "user_login", nil)
		return &AuthResult{User: user, Tokens: tokens}, nil
	}

	result := &AuthResult{User: user, RequiresTwoFactor: true}
	if s.opts.IssueTokensBefore2FA {
		if result.Tokens, err = s.issuer.IssuePair(user); err != nil {
			return nil, err
		}
	}
	metrics.LoginAttemptsTotal.WithLabelValues("requires_2fa").Inc()
	logger.InfoWithUser(user.ID.String(), "user_login_awaiting_2fa", nil)
	return result, nil
}

func (s *AuthService) totpSecret(user *models.User) string {
	if !user.HasTOTPSecret() {
		return ""
	}
	return s.secretBox.OpenOrPlaintext(*user.TOTPSecret)
}

// checkSecondFactor verifies a TOTP code or consumes a backup code.
func (s *AuthService) checkSecondFactor(ctx context.Context, user *models.User, code string, isBackup bool) error {
	if isBackup {
		ok, remaining, err := s.backup.Consume(ctx, user.ID, code)
		if err != nil {
			return err
		}
		if !ok {
			metrics.SecondFactorTotal.WithLabelValues("backup", "failure").Inc()
			logger.WarnWithUser(user.ID.String(), "backup_code_rejected", nil)
			return ErrInvalidBackupCode
		}
		metrics.SecondFactorTotal.WithLabelValues("backup", "success").Inc()
		logger.InfoWithUser(user.ID.String(), "backup_code_used", map[string]interface{}{
			"remaining": remaining,
		})
		return nil
	}

	secret := s.totpSecret(user)
	if secret == "" || !s.totp.Verify(secret, code, s.now()) {
		metrics.SecondFactorTotal.WithLabelValues("totp", "failure").Inc()
		logger.WarnWithUser(user.ID.String(), "totp_rejected", nil)
		return ErrInvalidCode
	}
	metrics.SecondFactorTotal.WithLabelValues("totp", "success").Inc()
	return nil
}

// VerifyLogin completes a login that is awaiting its second factor.
func (s *AuthService) VerifyLogin(ctx context.Context, in VerifyLoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	code := strings.TrimSpace(in.Token)
	if email == "" || code == "" {
		return nil, newError(KindValidation, "Token and email are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("load user", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if !user.Is2FAEnabled {
		return nil, newError(KindValidation, "2FA is not enabled for this user")
	}

	if err := s.checkSecondFactor(ctx, user, code, in.IsBackupCode); err != nil {
		return nil, err
	}

	tokens, err := s.issuer.IssuePair(user)
	if err != nil {
		return nil, err
	}
	logger.InfoWithUser(user.ID.String(), "user_login_2fa", nil)
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// SetupTwoFactor creates a TOTP secret if the user has none and always
// issues a fresh set of backup codes.
func (s *AuthService) SetupTwoFactor(ctx context.Context, user *models.User) (*TwoFactorSetup, error) {
	secret := s.totpSecret(user)
	if secret == "" {
		generated, err := s.totp.GenerateSecret()
		if err != nil {
			return nil, internalError("generate totp secret", err)
		}
		sealed, err := s.secretBox.SealOrPlaintext(generated)
		if err != nil {
			return nil, internalError("encrypt totp secret", err)
		}
		stored, err := s.users.SaveTOTPSecret(ctx, user.ID, sealed)
		if err != nil {
			return nil, internalError("store totp secret", err)
		}
		user.TOTPSecret = &stored
		secret = s.secretBox.OpenOrPlaintext(stored)
	}

	uri, err := s.totp.ProvisioningURI(secret, user.Email)
	if err != nil {
		return nil, internalError("build provisioning uri", err)
	}
	qr, err := s.totp.RenderQR(uri)
	if err != nil {
		return nil, internalError("render qr code", err)
	}

	codes, err := s.backup.Replace(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "2fa_setup", nil)
	return &TwoFactorSetup{QRCode: qr, Secret: secret, BackupCodes: codes}, nil
}

// EnableTwoFactor turns 2FA on once the user proves possession of the
// secret created by SetupTwoFactor.
func (s *AuthService) EnableTwoFactor(ctx context.Context, user *models.User, code string, isBackup bool) (*models.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ValidationError("token", requiredField)
	}
	if isBackup {
		if len(CanonicalizeBackupCode(code)) != backupCodeLength {
			return nil, ValidationError("token", fmt.Sprintf("Ensure this field has %d characters.", backupCodeLength))
		}
	} else {
		if len(code) != totpCodeLength {
			return nil, ValidationError("token", fmt.Sprintf("Ensure this field has %d characters.", totpCodeLength))
		}
		if !isDigits(code) {
			return nil, ValidationError("token", "Enter a valid 6-digit code.")
		}
	}
	if !user.HasTOTPSecret() {
		return nil, newError(KindValidation, "2FA setup has not been started")
	}

	if err := s.checkSecondFactor(ctx, user, code, isBackup); err != nil {
		return nil, err
	}

	if err := s.users.EnableTwoFactor(ctx, user.ID); err != nil {
		if errors.Is(err, store.ErrTOTPSecretMissing) {
			return nil, newError(KindValidation, "2FA setup has not been started")
		}
		return nil, internalError("enable 2fa", err)
	}

	logger.InfoWithUser(user.ID.String(), "2fa_enabled", nil)
	return s.reload(ctx, user.ID)
}

// DisableTwoFactor requires the account password and clears the flag, the
// secret and the backup codes together.
func (s *AuthService) DisableTwoFactor(ctx context.Context, user *models.User, password string) (*models.User, error) {
	if password == "" {
		return nil, ValidationError("password", requiredField)
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		return nil, ValidationError("password", "Invalid password")
	}

	if err := s.users.DisableTwoFactor(ctx, user.ID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("disable 2fa", err)
	}

	logger.InfoWithUser(user.ID.String(), "2fa_disabled", nil)
	return s.reload(ctx, user.ID)
}

func (s *AuthService) ChangePassword(ctx context.Context, user *models.User, in ChangePasswordInput) error {
	fields := FieldErrors{}
	if s.opts.ChangePasswordRequireCurrent && in.OldPassword == "" {
		fields.Add("old_password", requiredField)
	}
	if in.NewPassword == "" {
		fields.Add("new_password", requiredField)
	}
	if in.NewPasswordConfirm == "" {
		fields.Add("new_password_confirm", requiredField)
	}
	if err := fields.Err(); err != nil {
		return err
	}

	if s.opts.ChangePasswordRequireCurrent && !utils.CheckPassword(in.OldPassword, user.PasswordHash) {
		return ValidationError("old_password", "Invalid password")
	}
	if in.NewPassword != in.NewPasswordConfirm {
		return ValidationError("non_field_errors", "Passwords don't match")
	}
	if err := s.checkPassword("new_password", in.NewPassword, user); err != nil {
		return err
	}

	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return internalError("hash password", err)
	}
	if err := s.users.SetPassword(ctx, user.ID, hash, s.now().UTC()); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return ErrNotFound
		}
		return internalError("store password", err)
	}

	logger.InfoWithUser(user.ID.String(), "password_changed", nil)
	return nil
}

// Logout revokes the refresh token when one is supplied. It reports
// success for missing, malformed or already revoked tokens.
func (s *AuthService) Logout(ctx context.Context, user *models.User, refresh string) {
	if refresh == "" {
		return
	}
	if err := s.issuer.Revoke(ctx, refresh); err != nil {
		logger.ErrorWithUser(user.ID.String(), "logout_revoke_failed", err, nil)
	}
}

// Refresh exchanges a refresh token for a new access token. Tokens for a
// disabled account are rejected, and so are tokens older than the last
// password change when RevokeSessionsOnPasswordChange is set.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (string, error) {
	if strings.TrimSpace(refresh) == "" {
		return "", ValidationError("refresh", requiredField)
	}

	claims, err := s.issuer.ParseRefresh(ctx, refresh)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
		return "", err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
			return "", ErrInvalidToken
		}
		return "", internalError("load user", err)
	}
	stale := false
	if s.opts.RevokeSessionsOnPasswordChange {
		stale = claims.IssuedAt == nil || issuedBeforeChange(claims.IssuedAt.Time, user.PasswordChangedAt)
	}
	if !user.IsActive || stale {
		metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
		return "", ErrInvalidToken
	}

	access, err := s.issuer.IssueAccess(user)
	if err != nil {
		return "", err
	}
	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	return access, nil
}

// issuedBeforeChange reports whether a token with the given iat may predate
// the change. iat has second precision, so a token from the same second as
// the change counts as older.
func issuedBeforeChange(issuedAt time.Time, changedAt *time.Time) bool {
	if changedAt == nil {
		return false
	}
	return !issuedAt.After(changedAt.Truncate(time.Second))
}

// RequestPasswordReset issues a reset token and mails a link built from
// baseURL. When delivery fails the token is retired before returning.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, baseURL string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError("email", requiredField)
	}
	if !validEmail(email) {
		return ValidationError("email", "Enter a valid email address.")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return ValidationError("email", "No user found with this email address")
		}
		return internalError("load user", err)
	}

	token, err := s.ledger.Issue(ctx, user)
	if err != nil {
		return err
	}

	resetURL := strings.TrimRight(baseURL, "/") + "/reset-password?token=" + token
	if err := s.notifier.SendPasswordReset(ctx, user, resetURL); err != nil {
		metrics.PasswordResetTotal.WithLabelValues("failed").Inc()
		logger.ErrorWithUser(user.ID.String(), "password_reset_email_failed", err, nil)
		// The request context may already be done; retire the token anyway.
		if invErr := s.ledger.Invalidate(context.WithoutCancel(ctx), token); invErr != nil {
			logger.ErrorWithUser(user.ID.String(), "password_reset_invalidate_failed", invErr, nil)
		}
		return &Error{Kind: KindUpstream, Message: "Failed to send email", Err: err}
	}

	metrics.PasswordResetTotal.WithLabelValues("requested").Inc()
	logger.InfoWithUser(user.ID.String(), "password_reset_requested", nil)
	return nil
}

func (s *AuthService) ConfirmPasswordReset(ctx context.Context, in ResetConfirmInput) error {
	fields := FieldErrors{}
	if in.Token == "" {
		fields.Add("token", requiredField)
	}
	if in.NewPassword == "" {
		fields.Add("new_password", requiredField)
	}
	if in.NewPasswordConfirm == "" {
		fields.Add("new_password_confirm", requiredField)
	}
	if err := fields.Err(); err != nil {
		return err
	}
	if in.NewPassword != in.NewPasswordConfirm {
		return ValidationError("non_field_errors", "Passwords don't match")
	}

	row, err := s.ledger.Check(ctx, in.Token)
	if err != nil {
		return err
	}

	owner, err := s.users.FindByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return ErrTokenNotFound
		}
		return internalError("load user", err)
	}
	if err := s.checkPassword("new_password", in.NewPassword, owner); err != nil {
		return err
	}

	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return internalError("hash password", err)
	}
	if _, err := s.ledger.Consume(ctx, in.Token, hash); err != nil {
		return err
	}

	metrics.PasswordResetTotal.WithLabelValues("completed").Inc()
	logger.InfoWithUser(owner.ID.String(), "password_reset_completed", nil)
	return nil
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.reload(ctx, userID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, in ProfileUpdate) (*models.User, error) {
	updates := map[string]interface{}{}
	fields := FieldErrors{}

	for _, f := range []struct {
		name  string
		value *string
	}{
		{"username", in.Username},
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
	} {
		if f.value == nil {
			continue
		}
		value := strings.TrimSpace(*f.value)
		switch {
		case value == "":
			fields.Add(f.name, "This field may not be blank.")
		case len(value) > maxNameLength:
			fields.Add(f.name, fmt.Sprintf("Ensure this field has no more than %d characters.", maxNameLength))
		default:
			updates[f.name] = value
		}
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, updates)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUsernameTaken):
			return nil, &Error{Kind: KindConflict, Message: "A user with that username already exists.",
				Fields: map[string][]string{"username": {"A user with that username already exists."}}}
		case errors.Is(err, store.ErrUserNotFound):
			return nil, ErrNotFound
		default:
			return nil, internalError("update profile", err)
		}
	}
	return updated, nil
}

func (s *AuthService) reload(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("load user", err)
	}
	return user, nil
}

// Authenticate resolves a bearer access token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, internalError("load user", err)
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}
