package auth

import (
	"errors"
	"testing"
)

func TestHashPasswordAndVerify(t *testing.T) {
	password := "Charg3Ease!"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if hash == password {
		t.Fatal("expected hash to differ from password")
	}

	if !VerifyPassword(hash, password) {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected password mismatch to fail")
	}
}

func TestVerifyPasswordWithInvalidHash(t *testing.T) {
	if VerifyPassword("not-a-valid-hash", "password") {
		t.Fatal("expected invalid hash to fail verification")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"Sh0rt", ErrPasswordTooShort},
		{"alllowercase1", ErrPasswordTooWeak},
		{"ALLUPPERCASE1", ErrPasswordTooWeak},
		{"NoDigitsHere", ErrPasswordTooWeak},
		{"Volt4geOK", nil},
	}
	for _, tt := range tests {
		if err := ValidatePassword(tt.password); !errors.Is(err, tt.want) {
			t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, err, tt.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	if !ValidEmail(NormalizeEmail("  Driver@Example.COM ")) {
		t.Fatal("expected normalized address to be valid")
	}
	for _, bad := range []string{"", "driver", "driver@example", "dri ver@example.com"} {
		if ValidEmail(bad) {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
