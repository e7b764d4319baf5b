package auth

import (
	"errors"
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid bearer", "Bearer abc123", "abc123", false},
		{"lowercase bearer", "bearer abc123", "abc123", false},
		{"empty header", "", "", true},
		{"missing token", "Bearer ", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"no scheme", "abc123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestVerifyAccessToken(t *testing.T) {
	jwtAuth, err := NewJWTAuth("test-secret-key", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewJWTAuth() error = %v", err)
	}

	token, err := jwtAuth.GenerateToken("user-1", "user@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	user, err := jwtAuth.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if user.ID != "user-1" || user.Email != "user@example.com" || user.Role != "user" {
		t.Errorf("VerifyAccessToken() = %+v, want user-1/user@example.com/user", user)
	}
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	jwtAuth, _ := NewJWTAuth("test-secret-key", 15*time.Minute)

	// Sign a token that is already past its expiry
	expiredAuth, _ := NewJWTAuth("test-secret-key", -1*time.Hour)
	token, err := expiredAuth.GenerateToken("user-1", "user@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	_, err = jwtAuth.VerifyAccessToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyAccessToken(expired) error = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyAccessTokenWrongSecret(t *testing.T) {
	signer, _ := NewJWTAuth("secret-a", 15*time.Minute)
	verifier, _ := NewJWTAuth("secret-b", 15*time.Minute)

	token, err := signer.GenerateToken("user-1", "user@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	_, err = verifier.VerifyAccessToken(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifyAccessToken(bad signature) error = %v, want ErrTokenInvalid", err)
	}
	if errors.Is(err, ErrTokenExpired) {
		t.Errorf("bad signature must not map to ErrTokenExpired")
	}
}

func TestVerifyAccessTokenGarbage(t *testing.T) {
	jwtAuth, _ := NewJWTAuth("test-secret-key", 15*time.Minute)

	for _, token := range []string{"not-a-jwt", "a.b.c", ""} {
		if _, err := jwtAuth.VerifyAccessToken(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("VerifyAccessToken(%q) error = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestNewJWTAuthEmptySecret(t *testing.T) {
	if _, err := NewJWTAuth("", time.Minute); err == nil {
		t.Error("NewJWTAuth(\"\") expected error, got nil")
	}
}
