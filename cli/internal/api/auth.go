package api

// Register creates an account and returns its first token pair.
func (c *Client) Register(req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Post("/register/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Login(email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.Post("/login/", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyLogin completes a login that answered requires_2fa.
func (c *Client) VerifyLogin(email, code string, isBackupCode bool) (*AuthResponse, error) {
	var resp AuthResponse
	body := map[string]interface{}{"email": email, "token": code, "is_backup_code": isBackupCode}
	if err := c.Post("/2fa/verify-login/", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Refresh(refresh string) (string, error) {
	var resp RefreshResponse
	if err := c.Post("/refresh/", map[string]string{"refresh": refresh}, &resp); err != nil {
		return "", err
	}
	return resp.Access, nil
}

func (c *Client) Logout(refresh string) error {
	var body interface{}
	if refresh != "" {
		body = map[string]string{"refresh_token": refresh}
	}
	return c.Post("/logout/", body, nil)
}

func (c *Client) Profile() (*User, error) {
	var user User
	if err := c.Get("/profile/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateProfile(update ProfileUpdate) (*User, error) {
	var user User
	if err := c.Patch("/profile/", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SetupTwoFactor() (*TwoFactorSetup, error) {
	var setup TwoFactorSetup
	if err := c.Get("/2fa/setup/", nil, &setup); err != nil {
		return nil, err
	}
	return &setup, nil
}

func (c *Client) EnableTwoFactor(code string, isBackupCode bool) (*User, error) {
	var resp AuthResponse
	body := map[string]interface{}{"token": code, "is_backup_code": isBackupCode}
	if err := c.Post("/2fa/verify/", body, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) DisableTwoFactor(password string) (*User, error) {
	var resp AuthResponse
	if err := c.Post("/2fa/disable/", map[string]string{"password": password}, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) ChangePassword(oldPassword, newPassword, confirm string) error {
	body := map[string]string{
		"new_password":         newPassword,
		"new_password_confirm": confirm,
	}
	if oldPassword != "" {
		body["old_password"] = oldPassword
	}
	return c.Post("/change-password/", body, nil)
}

func (c *Client) RequestPasswordReset(email string) error {
	return c.Post("/password-reset/", map[string]string{"email": email}, nil)
}

func (c *Client) ConfirmPasswordReset(token, newPassword, confirm string) error {
	body := map[string]string{
		"token":                token,
		"new_password":         newPassword,
		"new_password_confirm": confirm,
	}
	return c.Post("/password-reset/confirm/", body, nil)
}
