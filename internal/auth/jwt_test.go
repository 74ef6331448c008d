package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/auth"
	"github.com/nasser0p/digi-ai/internal/enum"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()
	restaurantID := uuid.New()

	token, err := auth.GenerateToken(secret, userID, restaurantID, enum.UserRoleFOH)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
	}
	if claims.RestaurantID != restaurantID {
		t.Errorf("restaurant ID: got %v, want %v", claims.RestaurantID, restaurantID)
	}
	if claims.Role != enum.UserRoleFOH {
		t.Errorf("role: got %v, want %v", claims.Role, enum.UserRoleFOH)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", uuid.New(), uuid.New(), enum.UserRoleFOH)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := auth.ValidateToken("secret-b", token); err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	if _, err := auth.ValidateToken("secret", "not-a-jwt"); err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestRefreshToken(t *testing.T) {
	userID := uuid.New()
	token, err := auth.GenerateRefreshToken("secret", userID)
	if err != nil {
		t.Fatal(err)
	}
	got, err := auth.ValidateRefreshToken("secret", token)
	if err != nil {
		t.Fatal(err)
	}
	if got != userID {
		t.Errorf("user ID: got %v, want %v", got, userID)
	}
	if _, err := auth.ValidateRefreshToken("other", token); err == nil {
		t.Error("expected error with wrong secret")
	}
}

func TestCanAccess(t *testing.T) {
	own := uuid.New()
	staff := &auth.Claims{RestaurantID: own, Role: enum.UserRoleManager}
	if !staff.CanAccess(own) || staff.CanAccess(uuid.New()) {
		t.Error("staff must only reach their own restaurant")
	}
	admin := &auth.Claims{Role: enum.UserRoleSuperAdmin}
	if !admin.CanAccess(uuid.New()) {
		t.Error("super admin must reach every restaurant")
	}
}
