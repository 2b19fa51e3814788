package httpapi

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenVerifier(t *testing.T) {
	verifier, err := NewTokenVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	subject, err := verifier.Verify(signToken(t, "user-1"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", subject)
	}
}

func TestTokenVerifierRejectsBadTokens(t *testing.T) {
	verifier, err := NewTokenVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	expiredStr, _ := expired.SignedString(testSecret)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	noSubjectStr, _ := noSubject.SignedString(testSecret)

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	wrongKeyStr, _ := wrongKey.SignedString([]byte("other-secret"))

	for name, token := range map[string]string{
		"garbage":    "not-a-token",
		"expired":    expiredStr,
		"no subject": noSubjectStr,
		"wrong key":  wrongKeyStr,
	} {
		if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: error = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	if _, err := extractBearerToken(""); err == nil {
		t.Fatal("expected error for empty header")
	}
	if _, err := extractBearerToken("Basic abc"); err == nil {
		t.Fatal("expected error for non-bearer scheme")
	}
	token, err := extractBearerToken("Bearer  abc123 ")
	if err != nil {
		t.Fatalf("extractBearerToken: %v", err)
	}
	if token != "abc123" {
		t.Fatalf("token = %q", token)
	}
}
