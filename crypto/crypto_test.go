package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func newTestSealer(t *testing.T) *AESSealer {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate random key: %v", err)
	}
	s, err := NewAESSealer(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewAESSealer() error = %v", err)
	}
	return s
}

func TestNewAESSealer(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		errorMsg string
	}{
		{name: "empty key", key: "", errorMsg: "encryption key is empty"},
		{name: "invalid base64", key: "not-valid-base64!@#$", errorMsg: "base64 decode failed"},
		{name: "key too short", key: base64.StdEncoding.EncodeToString(make([]byte, 16)), errorMsg: "must be 32 bytes"},
		{name: "key too long", key: base64.StdEncoding.EncodeToString(make([]byte, 64)), errorMsg: "must be 32 bytes"},
		{name: "valid 32-byte key", key: base64.StdEncoding.EncodeToString(make([]byte, 32))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewAESSealer(tt.key)
			if tt.errorMsg != "" {
				if err == nil {
					t.Fatalf("NewAESSealer() expected error but got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("NewAESSealer() error = %v, want error containing %q", err, tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAESSealer() unexpected error = %v", err)
			}
			if s == nil {
				t.Error("NewAESSealer() returned nil sealer")
			}
		})
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	s := newTestSealer(t)
	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "short string", plaintext: "hello"},
		{name: "oauth token", plaintext: "oauth:abcdef1234567890"},
		{name: "long string", plaintext: strings.Repeat("a", 1000)},
		{name: "unicode", plaintext: "Hello 世界 🌍"},
		{name: "special characters", plaintext: "!@#$%^&*()_+-={}[]|\\:;\"'<>,.?/~`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := s.Seal(tt.plaintext)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if sealed == tt.plaintext {
				t.Error("Seal() returned plaintext unchanged")
			}
			if _, err := base64.StdEncoding.DecodeString(sealed); err != nil {
				t.Errorf("Seal() result is not valid base64: %v", err)
			}
			opened, err := s.Open(sealed)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if opened != tt.plaintext {
				t.Errorf("Open() = %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestSealNonDeterministic(t *testing.T) {
	s := newTestSealer(t)
	first, err := s.Seal("test plaintext")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	second, err := s.Seal("test plaintext")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if first == second {
		t.Error("Seal() produced identical output for same plaintext; nonce not randomized")
	}
}

func TestOpen_InvalidInput(t *testing.T) {
	s := newTestSealer(t)
	tests := []struct {
		name     string
		sealed   string
		errorMsg string
	}{
		{name: "invalid base64", sealed: "not-valid-base64!@#", errorMsg: "base64 decode failed"},
		{name: "too short", sealed: base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), errorMsg: "too short"},
		{name: "random bytes", sealed: base64.StdEncoding.EncodeToString(make([]byte, 50)), errorMsg: "authentication or integrity check failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Open(tt.sealed)
			if err == nil {
				t.Fatal("Open() expected error but got nil")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Open() error = %v, want error containing %q", err, tt.errorMsg)
			}
		})
	}
}

func TestOpen_Tampered(t *testing.T) {
	s := newTestSealer(t)
	sealed, err := s.Seal("sensitive data")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)/2] ^= 0x01
	if _, err := s.Open(base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Error("Open() should fail for tampered ciphertext")
	}
}

func TestOpen_WrongKey(t *testing.T) {
	sealed, err := newTestSealer(t).Seal("secret message")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if _, err := newTestSealer(t).Open(sealed); err == nil {
		t.Error("Open() with wrong key should fail")
	}
}

func TestEmptyStringPassThrough(t *testing.T) {
	s := newTestSealer(t)
	sealed, err := s.Seal("")
	if err != nil || sealed != "" {
		t.Errorf("Seal(\"\") = %q, %v", sealed, err)
	}
	opened, err := s.Open("")
	if err != nil || opened != "" {
		t.Errorf("Open(\"\") = %q, %v", opened, err)
	}
}
