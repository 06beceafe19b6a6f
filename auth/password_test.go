package auth

import (
	"errors"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Sup3r$ecret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "Sup3r$ecret" {
		t.Fatal("password stored in the clear")
	}
	if !CheckPasswordHash("Sup3r$ecret", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("Sup3r$ecreT", hash) {
		t.Error("wrong password accepted")
	}
}

func TestValidatePassword(t *testing.T) {
	ok := []string{"Sup3r$ecret", "Abcdef1!", "xY9#long-enough"}
	for _, p := range ok {
		if err := ValidatePassword(p); err != nil {
			t.Errorf("ValidatePassword(%q) = %v, want nil", p, err)
		}
	}

	weak := []string{
		"alllowercase1!",  // no upper
		"ALLUPPERCASE1!",  // no lower
		"NoDigitsHere!",   // no digit
		"NoSpecials123Ab", // no special
		"Ab1!",            // too short
		"",
	}
	for _, p := range weak {
		if err := ValidatePassword(p); !errors.Is(err, ErrWeakPassword) {
			t.Errorf("ValidatePassword(%q) = %v, want ErrWeakPassword", p, err)
		}
	}

	// exactly 8 characters with every class present is the policy floor
	if err := ValidatePassword("short1!A"); err != nil {
		t.Errorf("8-char password meeting all classes should pass: %v", err)
	}
}
