package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vendorhub/marketplace-backend/pkg/config"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "vendorhub"}

func TestMintAndParseVendorToken(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()
	vendorID := uuid.New()

	token, err := MintAccessToken(testCfg, now, 30*time.Minute, AccessTokenPayload{
		UserID:   userID,
		Role:     enums.ActorRoleVendor,
		VendorID: &vendorID,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(testCfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.ActorRoleVendor {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.VendorID == nil || *claims.VendorID != vendorID {
		t.Fatalf("vendor id not preserved")
	}
	if claims.Issuer != testCfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", testCfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be generated")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testCfg, token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestParseRejectsWrongSecretAndIssuer(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleAdmin})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(config.JWTConfig{Secret: "other", Issuer: testCfg.Issuer}, token); err == nil {
		t.Fatal("expected signature failure")
	}
	if _, err := ParseAccessToken(config.JWTConfig{Secret: testCfg.Secret, Issuer: "someone-else"}, token); err == nil {
		t.Fatal("expected issuer failure")
	}
}

func TestParseRejectsSystemRoleAndUnscopedVendor(t *testing.T) {
	now := time.Now()
	forge := func(claims AccessTokenClaims) string {
		claims.RegisteredClaims = jwt.RegisteredClaims{
			Issuer:    testCfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}
		signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(testCfg.Secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return signed
	}

	if _, err := ParseAccessToken(testCfg, forge(AccessTokenClaims{UserID: uuid.New(), Role: enums.ActorRoleSystem})); err == nil {
		t.Fatal("system role must be rejected")
	}
	if _, err := ParseAccessToken(testCfg, forge(AccessTokenClaims{UserID: uuid.New(), Role: enums.ActorRoleVendor})); !errors.Is(err, ErrVendorScopeMissing) {
		t.Fatalf("expected vendor scope error, got %v", err)
	}
	if _, err := MintAccessToken(testCfg, now, time.Hour, AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleSystem}); err == nil {
		t.Fatal("minting a system token must fail")
	}
}
