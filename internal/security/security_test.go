package security

import (
	"testing"
	"time"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "s3cret") {
		t.Fatalf("expected matching password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatalf("expected mismatched password to fail")
	}
}

func TestSignUserToken_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	raw, err := SignUserToken("secret", 42, true, time.Hour, now)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, errParse := ParseUserToken("secret", raw)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected uid=42, got %d", claims.UserID)
	}
	if !claims.IsAdmin {
		t.Fatalf("expected admin claim")
	}

	if _, errWrong := ParseUserToken("other", raw); errWrong == nil {
		t.Fatalf("expected wrong-secret token to fail")
	}
}

func TestParseUserToken_Expired(t *testing.T) {
	past := time.Now().UTC().Add(-2 * time.Hour)
	raw, err := SignUserToken("secret", 7, false, time.Hour, past)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, errParse := ParseUserToken("secret", raw); errParse == nil {
		t.Fatalf("expected expired token to fail")
	}
}
