package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"moneyman/internal/core"
	"moneyman/internal/ledger"
)

func TestPortsAreImplemented(t *testing.T) {
	var s any = New()
	if _, ok := s.(ledger.AccountStore); !ok {
		t.Error("Store does not implement ledger.AccountStore")
	}
	if _, ok := s.(ledger.TransactionStore); !ok {
		t.Error("Store does not implement ledger.TransactionStore")
	}
	if _, ok := s.(ledger.UserStore); !ok {
		t.Error("Store does not implement ledger.UserStore")
	}
}

func TestCreatedAtPreserved(t *testing.T) {
	s := New()
	ctx := context.Background()
	created := time.Date(2025, 5, 31, 20, 0, 0, 0, time.UTC)

	tx, err := s.CreateTransaction(ctx, core.Transaction{
		User: "u1", Type: core.Income, Amount: decimal.NewFromInt(10),
		Division: core.Personal, Date: created, CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.Transaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// a caller-supplied CreatedAt must survive, the mutability window
	// depends on it
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestTransactionsOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }

	for _, d := range []int{2, 5, 1, 3} {
		_, err := s.CreateTransaction(ctx, core.Transaction{
			User: "u1", Type: core.Income, Amount: decimal.NewFromInt(1),
			Division: core.Personal, Date: day(d), CreatedAt: day(d),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.Transactions(ctx, ledger.Filter{User: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []int{5, 3, 2, 1}
	for i, tx := range got {
		if tx.Date.Day() != want[i] {
			t.Errorf("position %d: day %d, want %d", i, tx.Date.Day(), want[i])
		}
	}
}

func TestUserEmailCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, core.User{Username: "ravi", Email: "Ravi@Example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.UserByEmail(ctx, "ravi@example.COM")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("found %s, want %s", got.ID, u.ID)
	}

	if _, err := s.CreateUser(ctx, core.User{Username: "other", Email: "RAVI@example.com"}); !errors.Is(err, core.ErrUserExists) {
		t.Errorf("duplicate email: got %v, want ErrUserExists", err)
	}
}
