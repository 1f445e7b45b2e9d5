package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_VerifiesAndSalts(t *testing.T) {
	h1, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if h1 == h2 {
		t.Error("two hashes of the same password must differ")
	}
	if strings.Contains(h1, "correct horse") {
		t.Error("hash contains the plaintext")
	}
	for _, h := range []string{h1, h2} {
		if !CheckPassword("correct horse", h) {
			t.Errorf("CheckPassword(correct, %q) = false", h)
		}
		if CheckPassword("correct horsE", h) {
			t.Errorf("CheckPassword(wrong, %q) = true", h)
		}
	}
}

func TestHashPassword_Cost(t *testing.T) {
	h, err := HashPassword("p")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(h))
	if err != nil {
		t.Fatalf("bcrypt.Cost: %v", err)
	}
	if cost != PasswordCost {
		t.Errorf("cost = %d, want %d", cost, PasswordCost)
	}
}

func TestCheckPassword_EmptyHash(t *testing.T) {
	if CheckPassword("", "") {
		t.Error("empty hash must never verify")
	}
	if CheckPassword("anything", "") {
		t.Error("empty hash must never verify")
	}
}
