package utils

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct-horse" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !VerifyPassword(hash, "correct-horse") {
		t.Error("correct password should verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Error("wrong password should not verify")
	}
	if VerifyPassword("not-a-bcrypt-hash", "correct-horse") {
		t.Error("malformed hash should not verify")
	}
	if VerifyPassword("", "") {
		t.Error("empty hash should not verify")
	}
}
