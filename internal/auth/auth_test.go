package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	a := New("secret", time.Hour)

	hash, err := a.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("password stored in plaintext")
	}

	if !a.VerifyPassword(hash, "hunter2") {
		t.Error("correct password rejected")
	}
	if a.VerifyPassword(hash, "hunter3") {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := New("secret", time.Hour)

	token, err := a.IssueToken("alice")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	username, err := a.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if username != "alice" {
		t.Errorf("subject = %q, want alice", username)
	}
}

func TestTokenExpiry(t *testing.T) {
	a := New("secret", -time.Minute)

	token, err := a.IssueToken("alice")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	if _, err := a.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token verified: %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := New("secret-a", time.Hour)
	verifier := New("secret-b", time.Hour)

	token, err := issuer.IssueToken("alice")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	if _, err := verifier.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("forged token verified: %v", err)
	}
}

func TestGarbageToken(t *testing.T) {
	a := New("secret", time.Hour)

	if _, err := a.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token verified: %v", err)
	}
}
