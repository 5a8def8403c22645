package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"moneyman/internal/core"
)

// ValidationError is a rejection with a human-readable reason. No mutation has
// been performed when one is returned.
type ValidationError struct {
	Reason string
	err    error
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return e.err }

func rejectf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// reject wraps a sentinel so callers can still match it with errors.Is.
func reject(err error) *ValidationError {
	return &ValidationError{Reason: err.Error(), err: err}
}

// checkIncomeCeiling rejects an income entry that would push total recorded
// income above the sum of the user's account balances. Income entries
// represent money that must already exist in some account.
func checkIncomeCeiling(agg Aggregates, amount decimal.Decimal) error {
	recorded := agg.TotalIncome.Add(amount)
	if recorded.GreaterThan(agg.RealBalance) {
		return rejectf("income mismatch: real balance is %s, cannot record income totalling %s",
			agg.RealBalance, recorded)
	}
	return nil
}

// checkBudget rejects an expense or p2p payment whose amount exceeds the
// remaining budget (total income minus total spend).
func checkBudget(agg Aggregates, amount decimal.Decimal) error {
	budget := agg.RemainingBudget()
	if amount.GreaterThan(budget) {
		return rejectf("budget exceeded: only %s remaining from your total income", budget)
	}
	return nil
}

// sourceAccount loads the paying account and verifies it can cover the
// amount. This is a per-account funds check, independent of the budget cap.
func (s *Service) sourceAccount(ctx context.Context, id string, amount decimal.Decimal) (core.Account, error) {
	acc, err := s.accounts.Account(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if acc.Balance.LessThan(amount) {
		return core.Account{}, rejectf("insufficient funds in %s: balance is %s", acc.Name, acc.Balance)
	}
	return acc, nil
}
