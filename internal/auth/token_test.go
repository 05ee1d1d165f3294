package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := IssueToken(42, "alice@example.com", secret, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	claims, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "alice@example.com")
	}
}

func TestParseExpired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := IssueToken(1, "a@example.com", secret, -time.Second)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	if _, err := ParseToken(tok, secret); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected token expired error, got %v", err)
	}
}

func TestParseWrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken(1, "a@example.com", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	if _, err := ParseToken(tok, []byte("wrong-secret")); err == nil {
		t.Fatal("expected error for invalid signature, got nil")
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	if _, err := ParseToken("not.a.jwt", []byte("k")); err == nil {
		t.Fatal("expected error for malformed token, got nil")
	}
}

func TestParseUnsignedRejected(t *testing.T) {
	t.Parallel()

	// alg=none tokens must never verify, whatever the payload says.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, Email: "a@example.com"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign unsigned token: %v", err)
	}

	if _, err := ParseToken(raw, []byte("secret")); err == nil {
		t.Fatal("expected error for unsigned token, got nil")
	}
}

func TestDefaultTTLApplied(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := IssueToken(7, "b@example.com", secret, 0)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	claims, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining < DefaultTokenTTL-time.Minute || remaining > DefaultTokenTTL {
		t.Errorf("expiry %v from now, want about %v", remaining, DefaultTokenTTL)
	}
}
