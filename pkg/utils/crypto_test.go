package utils

import (
	"errors"
	"testing"
)

func TestNewSecretBox(t *testing.T) {
	tests := []struct {
		name        string
		secret      string
		wantEnabled bool
	}{
		{name: "empty secret leaves box disabled", secret: "", wantEnabled: false},
		{name: "non-empty secret derives a key", secret: "test-secret-key-32-bytes-long!!", wantEnabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := NewSecretBox(tt.secret)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if box.Enabled() != tt.wantEnabled {
				t.Fatalf("expected Enabled()=%v", tt.wantEnabled)
			}
		})
	}
}

func TestSecretBoxRoundTrip(t *testing.T) {
	box, err := NewSecretBox("test-encryption-secret-32-bytes-long!!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	sealed, err := box.Seal(secret)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if sealed == secret {
		t.Fatal("expected sealed value to differ from plaintext")
	}

	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if opened != secret {
		t.Fatalf("expected %q, got %q", secret, opened)
	}
}

func TestSecretBoxWrongKey(t *testing.T) {
	a, _ := NewSecretBox("key-a")
	b, _ := NewSecretBox("key-b")

	sealed, err := a.Seal("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if _, err := b.Open(sealed); err == nil {
		t.Fatal("expected open with a different key to fail")
	}
}

func TestSecretBoxDisabled(t *testing.T) {
	box, _ := NewSecretBox("")

	if _, err := box.Seal("x"); !errors.Is(err, ErrEncryptionNotConfigured) {
		t.Fatalf("expected ErrEncryptionNotConfigured, got %v", err)
	}

	stored, err := box.SealOrPlaintext("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("expected plaintext passthrough, got %q", stored)
	}
}

func TestOpenOrPlaintext(t *testing.T) {
	box, _ := NewSecretBox("test-secret")

	if got := box.OpenOrPlaintext(""); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	if got := box.OpenOrPlaintext("JBSWY3DPEHPK3PXP"); got != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("expected plaintext passthrough, got %q", got)
	}

	sealed, _ := box.Seal("JBSWY3DPEHPK3PXP")
	if got := box.OpenOrPlaintext(sealed); got != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("expected decrypted secret, got %q", got)
	}
}
