package auth

import (
	"testing"
	"time"

	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/models"
)

func testJWTConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-access-secret",
		JWTRefreshSecret: "test-refresh-secret",
		AccessTokenTTL:   time.Hour,
		RefreshTokenTTL:  24 * time.Hour,
	}
}

func TestTokenPairRoundTrip(t *testing.T) {
	cfg := testJWTConfig()

	access, refresh, err := GenerateTokenPair(cfg, 42, "trader@example.com", models.RoleTrader, 3)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	claims, err := ValidateAccessToken(cfg, access)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "trader@example.com" ||
		claims.Role != models.RoleTrader || claims.TokenVersion != 3 {
		t.Errorf("claims lost in round trip: %+v", claims)
	}
	if claims.ID == "" {
		t.Error("access token missing jti")
	}

	rc, err := ValidateRefreshToken(cfg, refresh)
	if err != nil {
		t.Fatalf("ValidateRefreshToken: %v", err)
	}
	if rc.ID == claims.ID {
		t.Error("access and refresh tokens must carry distinct jtis")
	}
}

func TestTokenTypeConfusion(t *testing.T) {
	cfg := testJWTConfig()
	access, refresh, err := GenerateTokenPair(cfg, 1, "a@b.c", models.RoleTrader, 1)
	if err != nil {
		t.Fatal(err)
	}

	// a refresh token must never pass access validation, and vice versa
	if _, err := ValidateAccessToken(cfg, refresh); err == nil {
		t.Error("refresh token accepted as access token")
	}
	if _, err := ValidateRefreshToken(cfg, access); err == nil {
		t.Error("access token accepted as refresh token")
	}
}

func TestTokenWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	access, _, err := GenerateTokenPair(cfg, 1, "a@b.c", models.RoleTrader, 1)
	if err != nil {
		t.Fatal(err)
	}

	other := testJWTConfig()
	other.JWTSecret = "a-different-secret"
	if _, err := ValidateAccessToken(other, access); err == nil {
		t.Error("token validated under the wrong secret")
	}
}

func TestExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessTokenTTL = -time.Minute

	access, _, err := GenerateTokenPair(cfg, 1, "a@b.c", models.RoleTrader, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateAccessToken(cfg, access); err == nil {
		t.Error("expired token accepted")
	}
}
