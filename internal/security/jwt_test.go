package security

import (
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, errGen := GenerateToken("secret", 42, "alice", true, time.Hour)
	if errGen != nil {
		t.Fatalf("expected token, got error: %v", errGen)
	}

	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("expected parse to succeed, got %v", errParse)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected username alice, got %q", claims.Username)
	}
	if !claims.IsAdmin {
		t.Fatalf("expected admin claim to be set")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret", 1, "bob", false, time.Hour)
	if _, errParse := ParseToken("other-secret", token); errParse != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, _ := GenerateToken("secret", 1, "bob", false, -time.Minute)
	if _, errParse := ParseToken("secret", token); errParse != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, errHash := HashPassword("hunter2!")
	if errHash != nil {
		t.Fatalf("expected hash, got error: %v", errHash)
	}
	if !CheckPassword(hash, "hunter2!") {
		t.Fatalf("expected password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected wrong password to fail")
	}
}
