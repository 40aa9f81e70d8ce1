package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"venuely/internal/shared/config"
	"venuely/internal/users"
	"venuely/pkg/cache"
	"venuely/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*service, RevocationStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&users.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{JWT: config.JWTConfig{
		Secret:           "test-secret",
		JWTExpiresIn:     15 * time.Minute,
		RefreshExpiresIn: 24 * time.Hour,
	}}
	revocations := NewRevocationStore(cache.NewMemoryService())
	return NewService(NewRepository(db), revocations, cfg, logger.Nop()).(*service), revocations
}

func register(t *testing.T, s *service, email, role string) *AuthResponse {
	t.Helper()
	resp, err := s.Register(context.Background(), &RegisterRequest{
		FirstName: "Sita",
		LastName:  "Sharma",
		Email:     email,
		Password:  "secret123",
		Role:      role,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	resp := register(t, s, "  Sita@Example.com ", "owner")
	if resp.User.Email != "sita@example.com" {
		t.Fatalf("got email %q, want normalized", resp.User.Email)
	}
	if resp.User.Role != string(users.RoleOwner) {
		t.Fatalf("got role %q, want OWNER", resp.User.Role)
	}

	claims, err := s.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Type != TokenTypeAccess || claims.ID == "" || claims.UserID != resp.User.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := s.Login(ctx, &LoginRequest{Email: "sita@example.com", Password: "secret123"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := s.Login(ctx, &LoginRequest{Email: "sita@example.com", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
	if _, err := s.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "secret123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials for unknown email", err)
	}
}

func TestRegisterRejectsDuplicateAndDowngradesAdmin(t *testing.T) {
	s, _ := newTestService(t)

	resp := register(t, s, "ram@example.com", "ADMIN")
	if resp.User.Role != string(users.RoleUser) {
		t.Fatalf("got role %q, want self-registration capped at USER", resp.User.Role)
	}

	_, err := s.Register(context.Background(), &RegisterRequest{
		FirstName: "Ram", LastName: "Thapa", Email: "RAM@example.com", Password: "secret123",
	})
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("got %v, want ErrUserAlreadyExists", err)
	}
}

func TestRefreshRotatesAndRevokes(t *testing.T) {
	s, revocations := newTestService(t)
	ctx := context.Background()
	resp := register(t, s, "hari@example.com", "")

	if _, err := s.RefreshToken(ctx, resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken for an access token", err)
	}

	pair, err := s.RefreshToken(ctx, resp.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if pair.RefreshToken == resp.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	if _, err := s.RefreshToken(ctx, resp.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("got %v, want ErrTokenRevoked on reuse", err)
	}

	claims, err := s.ValidateToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if err := s.Logout(ctx, claims.ID, claims.ExpiresAt.Time, pair.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	revoked, err := revocations.IsRevoked(ctx, claims.ID)
	if err != nil || !revoked {
		t.Fatalf("got revoked=%v err=%v, want the access token revoked", revoked, err)
	}
	if _, err := s.RefreshToken(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("got %v, want the refresh token revoked by logout", err)
	}
}

func TestChangePassword(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	resp := register(t, s, "gita@example.com", "")

	err := s.ChangePassword(ctx, uuid.MustParse(resp.User.ID), &ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "newsecret"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
	if err := s.ChangePassword(ctx, uuid.MustParse(resp.User.ID), &ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "newsecret"}); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := s.Login(ctx, &LoginRequest{Email: "gita@example.com", Password: "newsecret"}); err != nil {
		t.Fatalf("Login with new password: %v", err)
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	s, _ := newTestService(t)
	resp := register(t, s, "bina@example.com", "")

	other, _ := newTestService(t)
	other.config.JWT.Secret = "another-secret"
	if _, err := other.ValidateToken(resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}
