package user

import (
	"strings"
	"testing"
)

func TestHashPasswordNeverStoresPlaintext(t *testing.T) {
	const plain = "Secret123!"

	hashed, err := HashPassword(plain)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hashed == plain {
		t.Fatal("hashed password equals plaintext")
	}
	if strings.Contains(hashed, plain) {
		t.Fatal("hashed password contains plaintext")
	}
}

func TestVerifyPassword(t *testing.T) {
	hashed, err := HashPassword("Secret123!")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	if !VerifyPassword(hashed, "Secret123!") {
		t.Fatal("expected original password to verify")
	}
	if VerifyPassword(hashed, "secret123!") {
		t.Fatal("expected different password to fail verification")
	}
	if VerifyPassword(hashed, "") {
		t.Fatal("expected empty password to fail verification")
	}
}

func TestHashPasswordNotDeterministicButVerifiable(t *testing.T) {
	first, err := HashPassword("Secret123!")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	second, err := HashPassword("Secret123!")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	// bcryptはソルトにより毎回異なる表現になるが、どちらも検証は通る
	if first == second {
		t.Fatal("expected different salts to produce different hashes")
	}
	if !VerifyPassword(first, "Secret123!") || !VerifyPassword(second, "Secret123!") {
		t.Fatal("expected both hashes to verify the original password")
	}
}
