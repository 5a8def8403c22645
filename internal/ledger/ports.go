package ledger

import (
	"context"
	"time"

	"moneyman/internal/core"
)

// AccountStore holds per-user named accounts with a signed balance.
type AccountStore interface {
	AccountsByUser(ctx context.Context, userID string) ([]core.Account, error)
	Account(ctx context.Context, id string) (core.Account, error)
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	SaveAccount(ctx context.Context, a core.Account) error
}

// TransactionStore holds transaction records. CreatedAt is assigned by the
// caller and never changed by the store.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Transaction(ctx context.Context, id string) (core.Transaction, error)
	Transactions(ctx context.Context, f Filter) ([]core.Transaction, error)
	SaveTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

// UserStore resolves users, including p2p recipients by contact email.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	User(ctx context.Context, id string) (core.User, error)
	UserByEmail(ctx context.Context, email string) (core.User, error)
}

// Filter selects transactions. Zero fields match everything; DateFrom and
// DateTo bound the user-supplied logical date, inclusive on both ends.
type Filter struct {
	User     string
	Types    []core.TransactionType
	Division core.Division
	Category string
	PairID   string
	DateFrom time.Time
	DateTo   time.Time
}

// Matches reports whether tx satisfies the filter. Stores that cannot push
// the predicate down (the in-memory backend) evaluate it directly.
func (f Filter) Matches(tx core.Transaction) bool {
	if f.User != "" && tx.User != f.User {
		return false
	}
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if tx.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Division != "" && tx.Division != f.Division {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if f.PairID != "" && tx.PairID != f.PairID {
		return false
	}
	if !f.DateFrom.IsZero() && tx.Date.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && tx.Date.After(f.DateTo) {
		return false
	}
	return true
}
