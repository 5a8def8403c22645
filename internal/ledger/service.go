// Package ledger implements the transaction-processing engine: aggregate
// validation, atomic-in-intent balance mutation and the time-bounded
// edit/delete path.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneyman/internal/amqp"
	"moneyman/internal/core"
	applog "moneyman/internal/log"
)

// Service orchestrates validation and balance mutation against the stores.
// All mutations for a user are serialized through per-user locks; p2p
// payments lock both parties.
type Service struct {
	accounts     AccountStore
	transactions TransactionStore
	users        UserStore
	agg          *Aggregator
	events       *amqp.Client
	locks        *userLocks
	now          func() time.Time
}

// NewService wires the engine. events may be nil; audit publishing is then
// skipped.
func NewService(accounts AccountStore, transactions TransactionStore, users UserStore, events *amqp.Client) *Service {
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		users:        users,
		agg:          NewAggregator(accounts, transactions),
		events:       events,
		locks:        newUserLocks(),
		now:          time.Now,
	}
}

// AddRequest is a proposed transaction. RecipientEmail is only read for p2p
// payments.
type AddRequest struct {
	User           string
	Type           core.TransactionType
	Amount         decimal.Decimal
	Category       string
	Division       core.Division
	Description    string
	Date           time.Time
	AccountFrom    string
	AccountTo      string
	RecipientEmail string
}

// AddTransaction validates the request against the user's aggregates, applies
// the balance deltas for its type and persists the record(s).
func (s *Service) AddTransaction(ctx context.Context, req AddRequest) (core.Transaction, error) {
	now := s.now()
	tx := core.Transaction{
		ID:          uuid.NewString(),
		User:        req.User,
		Type:        req.Type,
		Amount:      req.Amount,
		Category:    req.Category,
		Division:    req.Division,
		Description: req.Description,
		Date:        req.Date,
		AccountFrom: req.AccountFrom,
		AccountTo:   req.AccountTo,
		CreatedAt:   now,
	}
	if tx.Division == "" {
		tx.Division = core.Personal
	}
	if tx.Date.IsZero() {
		tx.Date = now
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, reject(err)
	}

	if tx.Type == core.P2P {
		return s.addP2P(ctx, tx, req.RecipientEmail)
	}

	release := s.locks.acquire(tx.User)
	defer release()

	var created core.Transaction
	var err error
	switch tx.Type {
	case core.Income:
		created, err = s.addIncome(ctx, tx)
	case core.Expense:
		created, err = s.addExpense(ctx, tx)
	case core.Deposit:
		created, err = s.addDeposit(ctx, tx)
	case core.Transfer:
		created, err = s.addTransfer(ctx, tx)
	}
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, amqp.ActionRecorded, created)
	slog.InfoContext(ctx, "Transaction recorded",
		applog.FieldTxID, created.ID,
		applog.FieldTxType, created.Type,
		applog.FieldUserID, created.User,
		applog.FieldAmount, created.Amount.String())
	return created, nil
}

// Income touches no account; it is capped so that total recorded income never
// exceeds the money actually sitting in the user's accounts.
func (s *Service) addIncome(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	agg, err := s.agg.Snapshot(ctx, tx.User)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := checkIncomeCeiling(agg, tx.Amount); err != nil {
		return core.Transaction{}, err
	}
	created, err := s.transactions.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.agg.Record(tx.User, tx.Amount, decimal.Zero)
	return created, nil
}

func (s *Service) addExpense(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	agg, err := s.agg.Snapshot(ctx, tx.User)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := checkBudget(agg, tx.Amount); err != nil {
		return core.Transaction{}, err
	}
	source, err := s.sourceAccount(ctx, tx.AccountFrom, tx.Amount)
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.applyDelta(ctx, source, tx.Amount.Neg()); err != nil {
		return core.Transaction{}, err
	}
	created, err := s.transactions.CreateTransaction(ctx, tx)
	if err != nil {
		s.compensate(ctx, source.ID, tx.Amount)
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.agg.Record(tx.User, decimal.Zero, tx.Amount)
	return created, nil
}

func (s *Service) addDeposit(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	target, err := s.accounts.Account(ctx, tx.AccountTo)
	if err != nil {
		return core.Transaction{}, err
	}

	tx.Category = "Deposit"
	tx.Division = core.Personal
	if tx.Description == "" {
		tx.Description = "Money Added"
	}

	if err := s.applyDelta(ctx, target, tx.Amount); err != nil {
		return core.Transaction{}, err
	}
	created, err := s.transactions.CreateTransaction(ctx, tx)
	if err != nil {
		s.compensate(ctx, target.ID, tx.Amount.Neg())
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return created, nil
}

func (s *Service) addTransfer(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	from, err := s.sourceAccount(ctx, tx.AccountFrom, tx.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	to, err := s.accounts.Account(ctx, tx.AccountTo)
	if err != nil {
		return core.Transaction{}, err
	}

	tx.Category = "Transfer"
	if tx.Description == "" {
		tx.Description = fmt.Sprintf("Transfer: %s to %s", from.Name, to.Name)
	}

	if err := s.applyDelta(ctx, from, tx.Amount.Neg()); err != nil {
		return core.Transaction{}, err
	}
	if err := s.applyDelta(ctx, to, tx.Amount); err != nil {
		s.compensate(ctx, from.ID, tx.Amount)
		return core.Transaction{}, err
	}
	created, err := s.transactions.CreateTransaction(ctx, tx)
	if err != nil {
		s.compensate(ctx, to.ID, tx.Amount.Neg())
		s.compensate(ctx, from.ID, tx.Amount)
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return created, nil
}

// addP2P resolves the recipient, debits the sender's account, credits the
// recipient's Bank account and writes two records linked by a shared PairID:
// an expense for the sender and a deposit for the recipient.
func (s *Service) addP2P(ctx context.Context, tx core.Transaction, recipientEmail string) (core.Transaction, error) {
	if strings.TrimSpace(recipientEmail) == "" {
		return core.Transaction{}, rejectf("recipient email required for p2p payments")
	}
	sender, err := s.users.User(ctx, tx.User)
	if err != nil {
		return core.Transaction{}, err
	}
	recipient, err := s.users.UserByEmail(ctx, recipientEmail)
	if err != nil {
		return core.Transaction{}, err
	}
	if recipient.ID == sender.ID {
		return core.Transaction{}, rejectf("cannot send a p2p payment to yourself")
	}

	release := s.locks.acquire(sender.ID, recipient.ID)
	defer release()

	recipientBank, err := s.bankAccount(ctx, recipient.ID)
	if err != nil {
		return core.Transaction{}, err
	}

	agg, err := s.agg.Snapshot(ctx, sender.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := checkBudget(agg, tx.Amount); err != nil {
		return core.Transaction{}, err
	}
	source, err := s.sourceAccount(ctx, tx.AccountFrom, tx.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	// debit and credit are applied to separate copies; the same account on
	// both sides would lose the debit when the credit overwrites it
	if source.ID == recipientBank.ID {
		return core.Transaction{}, rejectf("source and recipient accounts must differ")
	}

	if err := s.applyDelta(ctx, source, tx.Amount.Neg()); err != nil {
		return core.Transaction{}, err
	}
	if err := s.applyDelta(ctx, recipientBank, tx.Amount); err != nil {
		s.compensate(ctx, source.ID, tx.Amount)
		return core.Transaction{}, err
	}

	pairID := uuid.NewString()
	senderTx := core.Transaction{
		ID:          uuid.NewString(),
		User:        sender.ID,
		Type:        core.Expense,
		Amount:      tx.Amount,
		Category:    "Transfer",
		Division:    core.Personal,
		Description: fmt.Sprintf("Sent to %s (%s)", recipient.Username, recipient.Email),
		Date:        tx.Date,
		AccountFrom: source.ID,
		PairID:      pairID,
		CreatedAt:   tx.CreatedAt,
	}
	created, err := s.transactions.CreateTransaction(ctx, senderTx)
	if err != nil {
		s.compensate(ctx, recipientBank.ID, tx.Amount.Neg())
		s.compensate(ctx, source.ID, tx.Amount)
		return core.Transaction{}, fmt.Errorf("create sender record: %w", err)
	}

	recipientTx := core.Transaction{
		ID:          uuid.NewString(),
		User:        recipient.ID,
		Type:        core.Deposit,
		Amount:      tx.Amount,
		Category:    "Transfer",
		Division:    core.Personal,
		Description: fmt.Sprintf("Received from %s", sender.Username),
		Date:        tx.Date,
		AccountTo:   recipientBank.ID,
		PairID:      pairID,
		CreatedAt:   tx.CreatedAt,
	}
	counterpart, err := s.transactions.CreateTransaction(ctx, recipientTx)
	if err != nil {
		// roll the saga back: drop the sender record, undo both deltas
		if derr := s.transactions.DeleteTransaction(ctx, created.ID); derr != nil {
			slog.ErrorContext(ctx, "Rollback failed to remove sender record",
				applog.FieldTxID, created.ID, applog.FieldError, derr)
		}
		s.compensate(ctx, recipientBank.ID, tx.Amount.Neg())
		s.compensate(ctx, source.ID, tx.Amount)
		return core.Transaction{}, fmt.Errorf("create recipient record: %w", err)
	}

	s.agg.Record(sender.ID, decimal.Zero, tx.Amount)
	s.publish(ctx, amqp.ActionRecorded, created)
	s.publish(ctx, amqp.ActionRecorded, counterpart)
	slog.InfoContext(ctx, "P2P payment recorded",
		applog.FieldTxID, created.ID,
		applog.FieldPairID, pairID,
		applog.FieldUserID, sender.ID,
		applog.FieldAmount, tx.Amount.String())
	return created, nil
}

func (s *Service) bankAccount(ctx context.Context, userID string) (core.Account, error) {
	accounts, err := s.accounts.AccountsByUser(ctx, userID)
	if err != nil {
		return core.Account{}, fmt.Errorf("load recipient accounts: %w", err)
	}
	for _, acc := range accounts {
		if acc.Type == core.AccountBank {
			return acc, nil
		}
	}
	return core.Account{}, rejectf("recipient needs a bank account")
}

// EditRequest carries replacement fields for an existing transaction. A zero
// Amount leaves the amount unchanged; empty strings and zero dates leave the
// corresponding fields unchanged.
type EditRequest struct {
	User        string
	Amount      decimal.Decimal
	Category    string
	Division    core.Division
	Description string
	Date        time.Time
}

// EditTransaction mutates a transaction within its 12-hour window. Amount
// changes are revalidated as if the replacement had been recorded originally:
// the old amount is subtracted and the new one added before comparing against
// the budget and balance limits. Amounts of transfer, deposit and p2p records
// are locked.
func (s *Service) EditTransaction(ctx context.Context, id string, req EditRequest) (core.Transaction, error) {
	// first read only resolves the owner to lock; all decisions are made on
	// the re-read below, so a concurrent delete cannot slip between the
	// checks and the mutation
	tx, err := s.transactions.Transaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if req.User != "" && tx.User != req.User {
		return core.Transaction{}, core.ErrTransactionNotFound
	}

	release := s.locks.acquire(tx.User)
	defer release()

	tx, err = s.transactions.Transaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if req.User != "" && tx.User != req.User {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if !core.IsMutable(tx.CreatedAt, s.now()) {
		return core.Transaction{}, core.ErrMutabilityWindowExpired
	}

	var incomeDelta, spendDelta decimal.Decimal
	var undoBalance func()

	if req.Amount.IsPositive() && !req.Amount.Equal(tx.Amount) {
		old, next := tx.Amount, req.Amount
		switch {
		case tx.PairID != "":
			return core.Transaction{}, rejectf("amount is locked for p2p payment records")
		case tx.Type == core.Income:
			agg, err := s.agg.Snapshot(ctx, tx.User)
			if err != nil {
				return core.Transaction{}, err
			}
			if agg.TotalIncome.Sub(old).Add(next).GreaterThan(agg.RealBalance) {
				return core.Transaction{}, rejectf("cannot edit income: result exceeds your actual balance")
			}
			incomeDelta = next.Sub(old)
			tx.Amount = next
		case tx.Type == core.Expense:
			agg, err := s.agg.Snapshot(ctx, tx.User)
			if err != nil {
				return core.Transaction{}, err
			}
			if agg.TotalSpend.Sub(old).Add(next).GreaterThan(agg.TotalIncome) {
				return core.Transaction{}, rejectf("cannot edit expense: budget exceeded")
			}
			acc, err := s.accounts.Account(ctx, tx.AccountFrom)
			if err != nil {
				return core.Transaction{}, err
			}
			// the old amount is credited back before the new one is covered
			if acc.Balance.Add(old).LessThan(next) {
				return core.Transaction{}, rejectf("insufficient funds in %s for the new amount", acc.Name)
			}
			if err := s.applyDelta(ctx, acc, old.Sub(next)); err != nil {
				return core.Transaction{}, err
			}
			undoBalance = func() { s.compensate(ctx, acc.ID, next.Sub(old)) }
			spendDelta = next.Sub(old)
			tx.Amount = next
		default:
			return core.Transaction{}, rejectf("amount is locked for %s transactions", tx.Type)
		}
	}

	if req.Category != "" {
		tx.Category = req.Category
	}
	if req.Division != "" {
		if !req.Division.Valid() {
			return core.Transaction{}, reject(core.ErrInvalidDivision)
		}
		tx.Division = req.Division
	}
	if req.Description != "" {
		tx.Description = req.Description
	}
	if !req.Date.IsZero() {
		tx.Date = req.Date
	}

	if err := s.transactions.SaveTransaction(ctx, tx); err != nil {
		if undoBalance != nil {
			undoBalance()
		}
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.agg.Record(tx.User, incomeDelta, spendDelta)

	s.publish(ctx, amqp.ActionEdited, tx)
	slog.InfoContext(ctx, "Transaction edited",
		applog.FieldTxID, tx.ID,
		applog.FieldTxType, tx.Type,
		applog.FieldUserID, tx.User,
		applog.FieldAmount, tx.Amount.String())
	return tx, nil
}

// DeleteTransaction reverses the original balance mutation and removes the
// record, within the 12-hour window. A p2p record drags its counterpart leg
// along: both sides are reversed and removed.
func (s *Service) DeleteTransaction(ctx context.Context, id, userID string) error {
	// resolve the owner(s) to lock, then re-read and re-check under the
	// lock: of two concurrent deletes only the first may reverse balances
	tx, err := s.transactions.Transaction(ctx, id)
	if err != nil {
		return err
	}
	if userID != "" && tx.User != userID {
		return core.ErrTransactionNotFound
	}

	if tx.PairID != "" {
		return s.deletePair(ctx, tx)
	}

	release := s.locks.acquire(tx.User)
	defer release()

	tx, err = s.transactions.Transaction(ctx, id)
	if err != nil {
		return err
	}
	if userID != "" && tx.User != userID {
		return core.ErrTransactionNotFound
	}
	if !core.IsMutable(tx.CreatedAt, s.now()) {
		return core.ErrMutabilityWindowExpired
	}

	return s.removeOne(ctx, tx)
}

func (s *Service) removeOne(ctx context.Context, tx core.Transaction) error {
	if err := s.reverse(ctx, tx); err != nil {
		return err
	}
	if err := s.transactions.DeleteTransaction(ctx, tx.ID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.recordRemoval(tx)
	s.publish(ctx, amqp.ActionDeleted, tx)
	slog.InfoContext(ctx, "Transaction deleted",
		applog.FieldTxID, tx.ID,
		applog.FieldTxType, tx.Type,
		applog.FieldUserID, tx.User)
	return nil
}

func (s *Service) deletePair(ctx context.Context, tx core.Transaction) error {
	pair, err := s.transactions.Transactions(ctx, Filter{PairID: tx.PairID})
	if err != nil {
		return fmt.Errorf("load pair: %w", err)
	}
	var counterpart *core.Transaction
	for i := range pair {
		if pair[i].ID != tx.ID {
			counterpart = &pair[i]
			break
		}
	}

	owners := []string{tx.User}
	if counterpart != nil {
		owners = append(owners, counterpart.User)
	}
	release := s.locks.acquire(owners...)
	defer release()

	// re-read under the locks; a concurrent delete of either leg may have won
	tx, err = s.transactions.Transaction(ctx, tx.ID)
	if err != nil {
		return err
	}
	if !core.IsMutable(tx.CreatedAt, s.now()) {
		return core.ErrMutabilityWindowExpired
	}

	if err := s.removeOne(ctx, tx); err != nil {
		return err
	}
	if counterpart == nil {
		slog.WarnContext(ctx, "P2P counterpart record missing; reversed one leg only",
			applog.FieldTxID, tx.ID, applog.FieldPairID, tx.PairID)
		return nil
	}
	cp, err := s.transactions.Transaction(ctx, counterpart.ID)
	if errors.Is(err, core.ErrTransactionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.removeOne(ctx, cp)
}

// reverse applies the exact inverse of the balance mutation the transaction
// performed when it was recorded. Accounts that have since disappeared are
// skipped with a warning.
func (s *Service) reverse(ctx context.Context, tx core.Transaction) error {
	switch tx.Type {
	case core.Deposit:
		return s.reverseDelta(ctx, tx.AccountTo, tx.Amount.Neg())
	case core.Expense:
		return s.reverseDelta(ctx, tx.AccountFrom, tx.Amount)
	case core.Transfer:
		from, errFrom := s.accounts.Account(ctx, tx.AccountFrom)
		to, errTo := s.accounts.Account(ctx, tx.AccountTo)
		if errors.Is(errFrom, core.ErrAccountNotFound) || errors.Is(errTo, core.ErrAccountNotFound) {
			// a transfer is reversed only when both sides still exist
			slog.WarnContext(ctx, "Transfer account missing, skipping reversal",
				applog.FieldTxID, tx.ID)
			return nil
		}
		if errFrom != nil {
			return errFrom
		}
		if errTo != nil {
			return errTo
		}
		if err := s.applyDelta(ctx, from, tx.Amount); err != nil {
			return err
		}
		if err := s.applyDelta(ctx, to, tx.Amount.Neg()); err != nil {
			s.compensate(ctx, from.ID, tx.Amount.Neg())
			return err
		}
	}
	return nil
}

func (s *Service) reverseDelta(ctx context.Context, accountID string, delta decimal.Decimal) error {
	acc, err := s.accounts.Account(ctx, accountID)
	if errors.Is(err, core.ErrAccountNotFound) {
		slog.WarnContext(ctx, "Account missing, skipping reversal", applog.FieldAccountID, accountID)
		return nil
	}
	if err != nil {
		return err
	}
	return s.applyDelta(ctx, acc, delta)
}

func (s *Service) recordRemoval(tx core.Transaction) {
	switch tx.Type {
	case core.Income:
		s.agg.Record(tx.User, tx.Amount.Neg(), decimal.Zero)
	case core.Expense, core.P2P:
		s.agg.Record(tx.User, decimal.Zero, tx.Amount.Neg())
	}
}

// ListTransactions returns the user's transactions matching the filter, most
// recent logical date first.
func (s *Service) ListTransactions(ctx context.Context, f Filter) ([]core.Transaction, error) {
	return s.transactions.Transactions(ctx, f)
}

// Accounts returns all accounts owned by the user.
func (s *Service) Accounts(ctx context.Context, userID string) ([]core.Account, error) {
	return s.accounts.AccountsByUser(ctx, userID)
}

// Aggregates exposes the user's current totals snapshot.
func (s *Service) Aggregates(ctx context.Context, userID string) (Aggregates, error) {
	return s.agg.Snapshot(ctx, userID)
}

func (s *Service) applyDelta(ctx context.Context, acc core.Account, delta decimal.Decimal) error {
	acc.Balance = acc.Balance.Add(delta)
	acc.UpdatedAt = s.now()
	if err := s.accounts.SaveAccount(ctx, acc); err != nil {
		return fmt.Errorf("save account %s: %w", acc.ID, err)
	}
	return nil
}

// compensate re-applies the inverse delta after a partial failure. Best
// effort: a failure here leaves the ledger inconsistent and is logged for
// manual repair.
func (s *Service) compensate(ctx context.Context, accountID string, delta decimal.Decimal) {
	acc, err := s.accounts.Account(ctx, accountID)
	if err == nil {
		err = s.applyDelta(ctx, acc, delta)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Compensation failed, account balance inconsistent",
			applog.FieldAccountID, accountID,
			"delta", delta.String(),
			applog.FieldError, err)
	}
}

func (s *Service) publish(ctx context.Context, action string, tx core.Transaction) {
	if s.events == nil {
		return
	}
	ev := &amqp.TransactionEvent{
		Action:        action,
		TransactionID: tx.ID,
		User:          tx.User,
		Type:          string(tx.Type),
		Amount:        tx.Amount.String(),
		PairID:        tx.PairID,
		Timestamp:     s.now(),
	}
	if err := s.events.PublishTransactionEvent(ctx, ev); err != nil {
		// the write already committed; the audit trail catches up later
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			applog.FieldError, err, applog.FieldTxID, tx.ID)
	}
}
