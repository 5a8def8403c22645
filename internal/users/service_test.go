package users

import (
	"context"
	"errors"
	"testing"

	"moneyman/internal/core"
	"moneyman/internal/storage/memory"
)

func TestRegister(t *testing.T) {
	store := memory.New()
	svc := NewService(store, store)
	ctx := context.Background()

	u, err := svc.Register(ctx, "ravi", "ravi@example.com", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID == "" {
		t.Fatal("registered user has no id")
	}
	if u.PasswordHash == "hunter22" {
		t.Error("password stored in plaintext")
	}

	accounts, err := store.AccountsByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("seeded %d accounts, want 2", len(accounts))
	}
	want := map[string]core.AccountType{
		"Cash":         core.AccountCash,
		"Bank Account": core.AccountBank,
	}
	for _, acc := range accounts {
		typ, ok := want[acc.Name]
		if !ok {
			t.Errorf("unexpected account %q", acc.Name)
			continue
		}
		if acc.Type != typ {
			t.Errorf("account %q type = %q, want %q", acc.Name, acc.Type, typ)
		}
		if !acc.Balance.IsZero() {
			t.Errorf("account %q balance = %s, want 0", acc.Name, acc.Balance)
		}
		delete(want, acc.Name)
	}
}

func TestRegisterValidation(t *testing.T) {
	store := memory.New()
	svc := NewService(store, store)
	ctx := context.Background()

	tests := []struct {
		name                      string
		username, email, password string
	}{
		{"empty username", "", "a@example.com", "pw"},
		{"blank username", "   ", "a@example.com", "pw"},
		{"empty email", "ravi", "", "pw"},
		{"empty password", "ravi", "a@example.com", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.username, tc.email, tc.password)
			if !errors.Is(err, ErrMissingFields) {
				t.Errorf("got %v, want ErrMissingFields", err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := memory.New()
	svc := NewService(store, store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ravi", "ravi@example.com", "pw"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, "other", "RAVI@example.com", "pw2")
	if !errors.Is(err, core.ErrUserExists) {
		t.Errorf("got %v, want ErrUserExists", err)
	}
}

func TestAuthenticate(t *testing.T) {
	store := memory.New()
	svc := NewService(store, store)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "ravi", "ravi@example.com", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := svc.Authenticate(ctx, "ravi@example.com", "hunter22")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.ID != registered.ID {
		t.Errorf("authenticated user %s, want %s", u.ID, registered.ID)
	}

	if _, err := svc.Authenticate(ctx, "ravi@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}
