// Package auth handles account registration, credential verification, and
// token issuance. The engine itself never sees credentials; it trusts the
// Principal this package extracts from a verified token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/opinix/trading-engine/internal/model"
	"github.com/opinix/trading-engine/internal/store"
)

// Principal identifies a verified caller.
type Principal struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool { return p.Role == model.RoleAdmin }

// Result is returned from Register and Login.
type Result struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Service issues and verifies tokens against the user store.
type Service struct {
	store    store.Store
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates an auth service. tokenTTL bounds issued token validity.
func NewService(st store.Store, secret string, tokenTTL time.Duration) *Service {
	return &Service{store: st, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Register creates an account with the starting balance and returns a signed
// token. Duplicate emails fail with model.ErrEmailTaken.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Result, error) {
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email, and password are required", model.ErrValidation)
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, model.ErrEmailTaken
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     email,
		Password:  string(hash),
		Balance:   model.StartingBalance,
		Role:      model.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.sign(user)
	if err != nil {
		return nil, err
	}
	return &Result{User: user, Token: token}, nil
}

// Login verifies credentials and returns a signed token. Both an unknown
// email and a wrong password fail with model.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, model.ErrInvalidCredentials
	}

	token, err := s.sign(user)
	if err != nil {
		return nil, err
	}
	return &Result{User: user, Token: token}, nil
}

// ListUsers returns every account. Intended for administrative use; the
// HTTP layer gates it behind the admin role.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.store.ListUsers(ctx)
}

// GetUser resolves a single account by id.
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.store.GetUser(ctx, id)
}

// ChangePassword replaces a user's password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return model.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, userID, string(hash))
}

// VerifyToken validates a signed token and resolves its principal against
// the store, so a deleted user's token stops working immediately.
func (s *Service) VerifyToken(ctx context.Context, token string) (Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, model.ErrInvalidCredentials
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, model.ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, model.ErrInvalidCredentials
	}

	user, err := s.store.GetUser(ctx, sub)
	if err != nil {
		return Principal{}, model.ErrInvalidCredentials
	}
	return Principal{UserID: user.ID, Role: user.Role}, nil
}

func (s *Service) sign(user *model.User) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
