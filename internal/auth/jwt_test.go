package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJWTManagerRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret-key-of-reasonable-length", time.Hour)

	token, err := m.Generate("user-1", "ali@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "ali@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTManagerRejects(t *testing.T) {
	m := NewJWTManager("secret-a", time.Hour)
	other := NewJWTManager("secret-b", time.Hour)

	foreign, err := other.Generate("user-1", "a@b.c")
	if err != nil {
		t.Fatal(err)
	}

	expiredMgr := NewJWTManager("secret-a", time.Minute)
	expiredMgr.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredMgr.Generate("user-1", "a@b.c")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Validate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{"Bearer abc.def", "abc.def", nil},
		{"bearer abc", "abc", nil},
		{"", "", ErrMissingToken},
		{"Basic abc", "", ErrInvalidToken},
		{"Bearer", "", ErrInvalidToken},
		{"Bearer   ", "", ErrInvalidToken},
	}
	for _, tt := range tests {
		token, err := BearerToken(tt.header)
		if !errors.Is(err, tt.err) || token != tt.token {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, token, err, tt.token, tt.err)
		}
	}
}

func TestClaimsContext(t *testing.T) {
	ctx := context.Background()
	if UserID(ctx) != "" {
		t.Fatal("expected empty user id")
	}
	ctx = WithClaims(ctx, &Claims{UserID: "u1"})
	if UserID(ctx) != "u1" {
		t.Fatalf("UserID = %q", UserID(ctx))
	}
}
