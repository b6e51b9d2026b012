package httpapi

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/service"
)

type authenticatorStub struct {
	user  domain.SystemUser
	err   error
	calls int
}

func (s *authenticatorStub) Authenticate(_ context.Context, username string, password string) (domain.SystemUser, error) {
	s.calls++
	if s.err != nil {
		return domain.SystemUser{}, s.err
	}
	if username != s.user.Username || password != "right-pass" {
		return domain.SystemUser{}, service.ErrInvalidCredentials
	}
	return s.user, nil
}

func TestLoginIssuesTokenCarryingRole(t *testing.T) {
	stub := &authenticatorStub{user: domain.SystemUser{Username: "layla", Role: domain.RoleManager, Active: true}}
	manager := NewAuthManager("test-secret-key-test-secret-key!", time.Hour, stub)

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: " layla ", Password: "right-pass"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleManager {
		t.Fatalf("expected manager role, got %q", resp.Role)
	}
	if _, err := time.Parse(time.RFC3339, resp.ExpiresAt); err != nil {
		t.Fatalf("expires_at is not RFC3339: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "layla" || actor.Role != domain.RoleManager {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestLoginPassesThroughCredentialErrors(t *testing.T) {
	stub := &authenticatorStub{user: domain.SystemUser{Username: "layla", Role: domain.RoleCashier}}
	manager := NewAuthManager("secret", time.Hour, stub)

	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "layla", Password: "wrong"})
	if !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	stub.err = service.ErrInactiveAccount
	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "layla", Password: "right-pass"})
	if !errors.Is(err, service.ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func TestParseTokenRejectsForeignTokens(t *testing.T) {
	manager := NewAuthManager("first-secret", time.Hour, &authenticatorStub{})
	other := NewAuthManager("second-secret", time.Hour, &authenticatorStub{})

	foreign, err := other.sign("admin", domain.RoleAdmin, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(foreign); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	expired, err := manager.sign("admin", domain.RoleAdmin, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "admin", Issuer: tokenIssuer, ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             domain.RoleAdmin,
	})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := manager.ParseToken(raw); err == nil {
		t.Fatalf("expected alg=none token to be rejected")
	}
}

func TestParseTokenRequiresIssuerAndSubject(t *testing.T) {
	secret := "issuer-secret"
	manager := NewAuthManager(secret, time.Hour, &authenticatorStub{})

	for name, claims := range map[string]posCustomClaims{
		"wrong issuer": {RegisteredClaims: jwtlib.RegisteredClaims{Subject: "admin", Issuer: "elsewhere", ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour))}, Role: domain.RoleAdmin},
		"no subject":   {RegisteredClaims: jwtlib.RegisteredClaims{Issuer: tokenIssuer, ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour))}, Role: domain.RoleAdmin},
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if _, err := manager.ParseToken(raw); err == nil || !strings.Contains(err.Error(), "token") {
				t.Fatalf("expected token error, got %v", err)
			}
		})
	}
}
