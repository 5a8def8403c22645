package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"moneyman/internal/core"
)

// Aggregates is a consistent snapshot of a user's financial totals taken at
// validation time.
type Aggregates struct {
	RealBalance decimal.Decimal
	TotalIncome decimal.Decimal
	TotalSpend  decimal.Decimal
}

// RemainingBudget is cumulative income minus cumulative expense+p2p; spending
// is capped by it.
func (a Aggregates) RemainingBudget() decimal.Decimal {
	return a.TotalIncome.Sub(a.TotalSpend)
}

// Aggregator computes per-user totals. Income and spend are maintained as
// incrementally updated running totals: loaded from the transaction store the
// first time a user is seen, then folded forward alongside every accepted
// write instead of rescanning the whole collection. The balance sum is read
// fresh from the account store on every snapshot.
type Aggregator struct {
	accounts     AccountStore
	transactions TransactionStore

	mu     sync.Mutex
	totals map[string]*runningTotals
}

type runningTotals struct {
	income decimal.Decimal
	spend  decimal.Decimal
}

func NewAggregator(accounts AccountStore, transactions TransactionStore) *Aggregator {
	return &Aggregator{
		accounts:     accounts,
		transactions: transactions,
		totals:       make(map[string]*runningTotals),
	}
}

// Snapshot returns the user's aggregates as of the latest committed state.
func (a *Aggregator) Snapshot(ctx context.Context, userID string) (Aggregates, error) {
	accounts, err := a.accounts.AccountsByUser(ctx, userID)
	if err != nil {
		return Aggregates{}, fmt.Errorf("load accounts: %w", err)
	}
	balance := decimal.Zero
	for _, acc := range accounts {
		balance = balance.Add(acc.Balance)
	}

	totals, err := a.userTotals(ctx, userID)
	if err != nil {
		return Aggregates{}, err
	}
	return Aggregates{
		RealBalance: balance,
		TotalIncome: totals.income,
		TotalSpend:  totals.spend,
	}, nil
}

// Record folds an accepted write into the cached running totals. Callers hold
// the per-user lock, so the cache cannot race with validation snapshots. If
// the user has never been loaded this is a no-op: the next snapshot reads the
// store, which already contains the write.
func (a *Aggregator) Record(userID string, incomeDelta, spendDelta decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.totals[userID]
	if !ok {
		return
	}
	t.income = t.income.Add(incomeDelta)
	t.spend = t.spend.Add(spendDelta)
}

func (a *Aggregator) userTotals(ctx context.Context, userID string) (runningTotals, error) {
	a.mu.Lock()
	if t, ok := a.totals[userID]; ok {
		a.mu.Unlock()
		return *t, nil
	}
	a.mu.Unlock()

	income, err := a.sum(ctx, userID, core.Income)
	if err != nil {
		return runningTotals{}, err
	}
	spend, err := a.sum(ctx, userID, core.Expense, core.P2P)
	if err != nil {
		return runningTotals{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.totals[userID]; ok {
		return *t, nil
	}
	t := &runningTotals{income: income, spend: spend}
	a.totals[userID] = t
	return *t, nil
}

func (a *Aggregator) sum(ctx context.Context, userID string, types ...core.TransactionType) (decimal.Decimal, error) {
	txs, err := a.transactions.Transactions(ctx, Filter{User: userID, Types: types})
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions: %w", err)
	}
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total, nil
}
