package services

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretSize = 20
	totpPeriod     = 30
	totpQRSize     = 256
)

var base32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPEngine implements RFC 6238 codes: SHA-1, six digits, 30 second step.
type TOTPEngine struct {
	Issuer string
	Skew   uint
}

func NewTOTPEngine(issuer string, skew uint) *TOTPEngine {
	return &TOTPEngine{Issuer: issuer, Skew: skew}
}

// GenerateSecret returns 160 random bits as 32 base32 characters.
func (e *TOTPEngine) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32NoPadding.EncodeToString(raw), nil
}

func (e *TOTPEngine) ProvisioningURI(secret, accountName string) (string, error) {
	raw, err := base32NoPadding.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.Issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// RenderQR encodes uri as a PNG data URI suitable for an <img> src.
func (e *TOTPEngine) RenderQR(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", err
	}
	img, err := key.Image(totpQRSize, totpQRSize)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Verify accepts the code for now and for Skew steps either side of it.
func (e *TOTPEngine) Verify(secret, code string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != 6 || !isDigits(code) {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      e.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
