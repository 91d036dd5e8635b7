package hash

import (
	"errors"
	"strings"
	"testing"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "master password", password: "Tr0ub4dor&3", wantErr: nil},
		{name: "minimum length", password: "12345678", wantErr: nil},
		{name: "too short", password: "1234567", wantErr: ErrPasswordTooShort},
		{name: "empty", password: "", wantErr: ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed, err := Hash(tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Hash() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			if hashed == tt.password {
				t.Error("Hash() returned the plaintext")
			}
			if !strings.HasPrefix(hashed, "$2a$12$") {
				t.Errorf("Hash() unexpected bcrypt prefix in %q", hashed[:7])
			}
		})
	}
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	b, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if a == b {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestCompare(t *testing.T) {
	const password = "account-password-1"
	hashed, err := Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name     string
		hashed   string
		password string
		wantErr  error
	}{
		{name: "match", hashed: hashed, password: password},
		{name: "wrong password", hashed: hashed, password: "account-password-2", wantErr: ErrMismatch},
		{name: "different case", hashed: hashed, password: strings.ToUpper(password), wantErr: ErrMismatch},
		{name: "empty", hashed: hashed, password: "", wantErr: ErrMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Compare(tt.hashed, tt.password); !errors.Is(err, tt.wantErr) {
				t.Errorf("Compare() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := Compare("not-a-bcrypt-hash", password); err == nil || errors.Is(err, ErrMismatch) {
		t.Errorf("Compare() with malformed hash error = %v", err)
	}
}
