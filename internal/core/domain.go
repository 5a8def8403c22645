package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountBank   AccountType = "Bank"
	AccountCash   AccountType = "Cash"
	AccountWallet AccountType = "Wallet"
	AccountOther  AccountType = "Other"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
	Deposit  TransactionType = "deposit"
	P2P      TransactionType = "p2p"
)

const (
	Personal Division = "Personal"
	Office   Division = "Office"
)

type (
	AccountType     string
	TransactionType string
	Division        string

	// Account is a named balance bucket owned by a user. Balances are signed:
	// reversal paths (deleting a deposit that was already spent) may drive an
	// account below zero, so no floor is enforced here.
	Account struct {
		ID        string          `json:"id"`
		User      string          `json:"user"`
		Name      string          `json:"name"`
		Type      AccountType     `json:"type"`
		Balance   decimal.Decimal `json:"balance"`
		CreatedAt time.Time       `json:"createdAt"`
		UpdatedAt time.Time       `json:"updatedAt"`
	}

	// Transaction is a single recorded financial event touching zero, one or
	// two accounts. CreatedAt is server-assigned and immutable; it drives the
	// edit/delete mutability window.
	Transaction struct {
		ID          string          `json:"id"`
		User        string          `json:"user"`
		Type        TransactionType `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category,omitempty"`
		Division    Division        `json:"division"`
		Description string          `json:"description,omitempty"`
		Date        time.Time       `json:"date"`
		AccountFrom string          `json:"accountFrom,omitempty"`
		AccountTo   string          `json:"accountTo,omitempty"`
		// PairID links the expense and deposit legs of a p2p payment so that
		// deleting one side can find and reverse the other.
		PairID    string    `json:"pairId,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	User struct {
		ID           string    `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

var (
	ErrInvalidAmount        = errors.New("amount must be a positive number")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidDivision      = errors.New("invalid division")
	ErrInvalidAccountType   = errors.New("invalid account type")
	ErrMissingSourceAccount = errors.New("source account required")
	ErrMissingTargetAccount = errors.New("target account required")
	ErrSameAccountTransfer  = errors.New("cannot transfer to the same account")

	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")

	ErrMutabilityWindowExpired = errors.New("cannot modify a transaction after 12 hours")
)

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer, Deposit, P2P:
		return true
	}
	return false
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCash, AccountWallet, AccountOther:
		return true
	}
	return false
}

func (d Division) Valid() bool {
	return d == Personal || d == Office
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.User) == "" {
		return errors.New("account owner required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("account name required")
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.User) == "" {
		return errors.New("transaction owner required")
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Division.Valid() {
		return ErrInvalidDivision
	}
	switch t.Type {
	case Expense, P2P:
		if t.AccountFrom == "" {
			return ErrMissingSourceAccount
		}
	case Deposit:
		if t.AccountTo == "" {
			return ErrMissingTargetAccount
		}
	case Transfer:
		if t.AccountFrom == "" {
			return ErrMissingSourceAccount
		}
		if t.AccountTo == "" {
			return ErrMissingTargetAccount
		}
		if t.AccountFrom == t.AccountTo {
			return ErrSameAccountTransfer
		}
	}
	return nil
}
