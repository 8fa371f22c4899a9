package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opinix/trading-engine/internal/auth"
	"github.com/opinix/trading-engine/internal/model"
	"github.com/opinix/trading-engine/internal/store"
)

func newTestService(t *testing.T) (*auth.Service, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	return auth.NewService(ms, "test-secret", time.Hour), ms
}

func TestRegister_CreatesFundedAccount(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if res.Token == "" {
		t.Error("expected a signed token")
	}
	if !res.User.Balance.Equal(model.StartingBalance) {
		t.Errorf("expected starting balance %s, got %s", model.StartingBalance, res.User.Balance)
	}
	if res.User.Role != model.RoleUser {
		t.Errorf("expected role user, got %s", res.User.Role)
	}
	if res.User.Password == "hunter2" {
		t.Error("password must be stored hashed")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter2"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := svc.Register(context.Background(), "alice2", "alice@example.com", "other")
	if !errors.Is(err, model.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegister_RequiresAllFields(t *testing.T) {
	svc, _ := newTestService(t)

	cases := [][3]string{
		{"", "a@example.com", "pw"},
		{"alice", "", "pw"},
		{"alice", "a@example.com", ""},
	}
	for _, c := range cases {
		if _, err := svc.Register(context.Background(), c[0], c[1], c[2]); !errors.Is(err, model.ErrValidation) {
			t.Errorf("Register(%q,%q,%q): expected ErrValidation, got %v", c[0], c[1], c[2], err)
		}
	}
}

func TestLogin_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	reg, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res, err := svc.Login(context.Background(), "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.User.ID != reg.User.ID {
		t.Errorf("login resolved wrong user")
	}

	p, err := svc.VerifyToken(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if p.UserID != reg.User.ID || p.Role != model.RoleUser {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter2"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := svc.Login(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "hunter2"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	svc, _ := newTestService(t)

	for _, token := range []string{"", "not-a-token", "aaa.bbb.ccc"} {
		if _, err := svc.VerifyToken(context.Background(), token); !errors.Is(err, model.ErrInvalidCredentials) {
			t.Errorf("token %q: expected ErrInvalidCredentials, got %v", token, err)
		}
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := auth.NewService(ms, "test-secret", -time.Minute)

	res, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := svc.VerifyToken(context.Background(), res.Token); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("expired token: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	ms := store.NewMemoryStore()
	issuer := auth.NewService(ms, "secret-a", time.Hour)
	verifier := auth.NewService(ms, "secret-b", time.Hour)

	res, err := issuer.Register(context.Background(), "alice", "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := verifier.VerifyToken(context.Background(), res.Token); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("foreign token: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), res.User.ID, "wrong", "new"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("wrong old password: expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), res.User.ID, "hunter2", "newpass"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := svc.Login(context.Background(), "alice@example.com", "hunter2"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Error("old password must stop working")
	}
	if _, err := svc.Login(context.Background(), "alice@example.com", "newpass"); err != nil {
		t.Errorf("new password must work, got %v", err)
	}
}

func TestAllow(t *testing.T) {
	admin := auth.Principal{UserID: "a1", Role: model.RoleAdmin}
	owner := auth.Principal{UserID: "u1", Role: model.RoleUser}
	other := auth.Principal{UserID: "u2", Role: model.RoleUser}

	cases := []struct {
		name    string
		p       auth.Principal
		ownerID string
		policy  auth.Policy
		want    bool
	}{
		{"admin passes AdminOnly", admin, "u1", auth.AdminOnly, true},
		{"user fails AdminOnly", owner, "u1", auth.AdminOnly, false},
		{"owner passes OwnerOnly", owner, "u1", auth.OwnerOnly, true},
		{"admin fails OwnerOnly", admin, "u1", auth.OwnerOnly, false},
		{"other fails OwnerOnly", other, "u1", auth.OwnerOnly, false},
		{"owner passes OwnerOrAdmin", owner, "u1", auth.OwnerOrAdmin, true},
		{"admin passes OwnerOrAdmin", admin, "u1", auth.OwnerOrAdmin, true},
		{"other fails OwnerOrAdmin", other, "u1", auth.OwnerOrAdmin, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := auth.Allow(tc.p, tc.ownerID, tc.policy); got != tc.want {
				t.Errorf("Allow = %v, want %v", got, tc.want)
			}
		})
	}
}
