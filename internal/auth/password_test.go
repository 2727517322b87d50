package auth

import (
	"strings"
	"testing"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("hash %q does not look like bcrypt", hash)
	}
	if !CheckPassword("correct horse battery", hash) {
		t.Error("CheckPassword() = false for the right password")
	}
	if CheckPassword("wrong password", hash) {
		t.Error("CheckPassword() = true for a wrong password")
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	if _, err := HashPassword("short"); err != ErrWeakPassword {
		t.Errorf("HashPassword(short) error = %v, want ErrWeakPassword", err)
	}
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	if CheckPassword("anything", "not-a-hash") {
		t.Error("CheckPassword() = true for an invalid hash")
	}
}
