package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/dmfellows/bidstreet-backend/pkg/config"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	"github.com/google/uuid"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "bidstreet",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	payload := AccessTokenPayload{
		UserID: userID,
		Role:   enums.RoleAdmin,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.RoleAdmin {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	now := time.Now().UTC()
	base := config.JWTConfig{Secret: "secret", Issuer: "bidstreet", ExpirationMinutes: 30}

	cases := []struct {
		name    string
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		{"missing secret", config.JWTConfig{Issuer: "bidstreet", ExpirationMinutes: 30}, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleBuyer}},
		{"missing issuer", config.JWTConfig{Secret: "secret", ExpirationMinutes: 30}, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleBuyer}},
		{"zero expiration", config.JWTConfig{Secret: "secret", Issuer: "bidstreet"}, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleBuyer}},
		{"invalid role", base, AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRole("superuser")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := MintAccessToken(tc.cfg, now, tc.payload); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	now := time.Now().UTC()
	token, err := MintAccessToken(config.JWTConfig{Secret: "secret", Issuer: "someone-else", ExpirationMinutes: 30}, now, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleBuyer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, err = ParseAccessToken(config.JWTConfig{Secret: "secret", Issuer: "bidstreet"}, token)
	if err == nil {
		t.Fatal("expected issuer validation error")
	}
	if !strings.Contains(err.Error(), "iss") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "bidstreet", ExpirationMinutes: 1}
	token, err := MintAccessToken(cfg, time.Now().UTC().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleBuyer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expiry error")
	}
}
