package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const encryptionSalt = "authgate-totp-encryption"

var ErrEncryptionNotConfigured = errors.New("encryption not configured")

// SecretBox seals short secrets (TOTP seeds) with AES-256-GCM under a key
// derived from the server secret.
type SecretBox struct {
	key []byte
}

func NewSecretBox(secret string) (*SecretBox, error) {
	if secret == "" {
		return &SecretBox{}, nil
	}
	reader := hkdf.New(sha256.New, []byte(secret), []byte(encryptionSalt), []byte("encryption-key"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}
	return &SecretBox{key: key}, nil
}

func (b *SecretBox) Enabled() bool {
	return b != nil && len(b.key) > 0
}

func (b *SecretBox) Seal(plaintext string) (string, error) {
	if !b.Enabled() {
		return "", ErrEncryptionNotConfigured
	}

	gcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (b *SecretBox) Open(encrypted string) (string, error) {
	if !b.Enabled() {
		return "", ErrEncryptionNotConfigured
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", err
	}

	gcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// OpenOrPlaintext returns value unchanged when it is not a sealed secret,
// so rows written before encryption was enabled keep working.
func (b *SecretBox) OpenOrPlaintext(value string) string {
	if value == "" {
		return ""
	}
	decrypted, err := b.Open(value)
	if err != nil {
		return value
	}
	return decrypted
}

// SealOrPlaintext stores plaintext when no key is configured.
func (b *SecretBox) SealOrPlaintext(value string) (string, error) {
	if !b.Enabled() {
		return value, nil
	}
	return b.Seal(value)
}

func (b *SecretBox) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
