package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mamadbah2/stockboard/internal/domain/models"
)

func TestStaticVerifier(t *testing.T) {
	v, err := NewStaticVerifier("manager@walmart.com", "walmart123", models.User{ID: "1", Name: "Regional Manager"})
	if err != nil {
		t.Fatalf("NewStaticVerifier: %v", err)
	}

	user, err := v.Verify(context.Background(), models.Credentials{Username: "manager@walmart.com", Password: "walmart123"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.Username != "manager@walmart.com" {
		t.Fatalf("expected username to default to login name, got %q", user.Username)
	}

	if _, err := v.Verify(context.Background(), models.Credentials{Username: "manager@walmart.com", Password: "Walmart123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected case-sensitive password check, got %v", err)
	}
}

func TestJWTIssuerExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	issuer := NewJWTIssuer("secret", time.Hour, clock)

	token, err := issuer.Issue(models.User{ID: "1", Username: "manager@walmart.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Validate(token); err != nil {
		t.Fatalf("Validate fresh token: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := issuer.Validate(token); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestJWTIssuerRejectsGarbage(t *testing.T) {
	issuer := NewJWTIssuer("secret", time.Hour, nil)
	if _, err := issuer.Validate("not-a-token"); err == nil {
		t.Fatal("expected garbage token to fail validation")
	}
}
