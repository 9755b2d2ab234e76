package auth

import (
	"testing"

	"github.com/elloello/softphone/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	SetSecret("test-secret")
	user := &model.User{ID: 7, Username: "alice", Role: "admin"}

	token, err := GenerateToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 7 || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	SetSecret("secret-a")
	token, err := GenerateToken(&model.User{ID: 1, Role: "user"})
	if err != nil {
		t.Fatal(err)
	}

	SetSecret("secret-b")
	if _, err := ValidateToken(token); err == nil {
		t.Fatal("expected validation failure with rotated secret")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	SetSecret("test-secret")
	if _, err := ValidateToken("not.a.token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
