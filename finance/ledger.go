/*
ledger.go - Debits, credits, budgets and payments

PURPOSE:
  The financial allocation engine. Every mutation is a read-check-write
  sequence under the involved account's or department's mutex, so a
  rejected debit leaves the balance untouched and a budget's spent and
  total are always read from one consistent write.

INVARIANTS:
  - A balance never goes negative. Debits exceeding the balance are
    rejected with the balance unchanged.
  - Amounts are strictly positive for every operation.
  - Every balance mutation appends exactly one transaction record.
*/
package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/metrics"
)

type Ledger struct {
	store Store
	locks *core.KeyedMutex
	log   zerolog.Logger
	now   func() time.Time
}

func NewLedger(store Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		locks: core.NewKeyedMutex(),
		log:   log.With().Str("component", "ledger").Logger(),
		now:   time.Now,
	}
}

// WithNow overrides the ledger's wall clock. Test hook.
func (l *Ledger) WithNow(now func() time.Time) *Ledger {
	if now != nil {
		l.now = now
	}
	return l
}

// =============================================================================
// BALANCE OPERATIONS
// =============================================================================

// Debit withdraws from an account. Fails without mutating when the
// amount exceeds the balance.
func (l *Ledger) Debit(accountID string, amount decimal.Decimal, category, department, description string) (Transaction, error) {
	if err := validAmount(amount); err != nil {
		metrics.LedgerOperationsTotal.WithLabelValues("debit", "invalid_input").Inc()
		return Transaction{}, err
	}

	unlock := l.locks.Lock(core.OwnerID("account:" + accountID))
	defer unlock()

	account, ok := l.store.Account(accountID)
	if !ok {
		metrics.LedgerOperationsTotal.WithLabelValues("debit", "not_found").Inc()
		return Transaction{}, fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	if amount.GreaterThan(account.Balance) {
		metrics.LedgerOperationsTotal.WithLabelValues("debit", "insufficient_funds").Inc()
		return Transaction{}, &core.InsufficientFundsError{
			Account:   core.OwnerID(accountID),
			Balance:   account.Balance,
			Requested: amount,
		}
	}

	account.Balance = account.Balance.Sub(amount)
	account.LastUpdated = l.now()
	if err := l.store.SetBalance(accountID, account); err != nil {
		return Transaction{}, err
	}
	entry := l.append(TransactionExpense, accountID, amount, category, department, description)

	metrics.LedgerOperationsTotal.WithLabelValues("debit", "ok").Inc()
	l.log.Info().
		Str("account", accountID).
		Str("amount", amount.String()).
		Str("balance", account.Balance.String()).
		Msg("debit committed")
	return entry, nil
}

// Credit deposits into an account. Never fails on balance.
func (l *Ledger) Credit(accountID string, amount decimal.Decimal, category, department, description string) (Transaction, error) {
	if err := validAmount(amount); err != nil {
		metrics.LedgerOperationsTotal.WithLabelValues("credit", "invalid_input").Inc()
		return Transaction{}, err
	}

	unlock := l.locks.Lock(core.OwnerID("account:" + accountID))
	defer unlock()

	account, ok := l.store.Account(accountID)
	if !ok {
		metrics.LedgerOperationsTotal.WithLabelValues("credit", "not_found").Inc()
		return Transaction{}, fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}

	account.Balance = account.Balance.Add(amount)
	account.LastUpdated = l.now()
	if err := l.store.SetBalance(accountID, account); err != nil {
		return Transaction{}, err
	}
	entry := l.append(TransactionIncome, accountID, amount, category, department, description)

	metrics.LedgerOperationsTotal.WithLabelValues("credit", "ok").Inc()
	l.log.Info().
		Str("account", accountID).
		Str("amount", amount.String()).
		Str("balance", account.Balance.String()).
		Msg("credit committed")
	return entry, nil
}

// Balance returns the current account snapshot.
func (l *Ledger) Balance(accountID string) (Account, error) {
	account, ok := l.store.Account(accountID)
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	return account, nil
}

// =============================================================================
// BUDGET OPERATIONS
// =============================================================================

// ApplyToBudget adds spend to a department's budget as one atomic step.
// A reader never observes spent updated without the derived remaining
// following, because remaining is computed from the written snapshot.
func (l *Ledger) ApplyToBudget(department string, amount decimal.Decimal) (Budget, error) {
	if err := validAmount(amount); err != nil {
		metrics.LedgerOperationsTotal.WithLabelValues("budget", "invalid_input").Inc()
		return Budget{}, err
	}

	unlock := l.locks.Lock(core.OwnerID("budget:" + department))
	defer unlock()

	budget, ok := l.store.Budget(department)
	if !ok {
		metrics.LedgerOperationsTotal.WithLabelValues("budget", "not_found").Inc()
		return Budget{}, fmt.Errorf("budget for %s: %w", department, core.ErrNotFound)
	}

	budget.Spent = budget.Spent.Add(amount)
	if err := l.store.SetBudget(department, budget); err != nil {
		return Budget{}, err
	}

	metrics.LedgerOperationsTotal.WithLabelValues("budget", "ok").Inc()
	event := l.log.Info()
	if budget.OverBudget() {
		event = l.log.Warn().Str("overspend", budget.Remaining().Neg().String())
	}
	event.
		Str("department", department).
		Str("amount", amount.String()).
		Str("remaining", budget.Remaining().String()).
		Msg("budget spend applied")
	return budget, nil
}

// BudgetStatus returns the department's budget snapshot.
func (l *Ledger) BudgetStatus(department string) (Budget, error) {
	budget, ok := l.store.Budget(department)
	if !ok {
		return Budget{}, fmt.Errorf("budget for %s: %w", department, core.ErrNotFound)
	}
	return budget, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// SchedulePayment records a pending payment. Nothing is debited until
// completion.
func (l *Ledger) SchedulePayment(amount decimal.Decimal, recipient, purpose string, due core.Date) (Payment, error) {
	if err := validAmount(amount); err != nil {
		return Payment{}, err
	}
	if recipient == "" {
		return Payment{}, fmt.Errorf("recipient is required: %w", core.ErrInvalidInput)
	}
	payment := Payment{
		ID:        uuid.NewString(),
		Amount:    amount,
		Recipient: recipient,
		Purpose:   purpose,
		DueDate:   due,
		Status:    core.PaymentPending,
	}
	l.store.AppendPayment(payment)
	metrics.LedgerOperationsTotal.WithLabelValues("schedule_payment", "ok").Inc()
	return payment, nil
}

// CompletePayment debits the funding account and marks the payment
// completed. A completed payment cannot run twice.
func (l *Ledger) CompletePayment(paymentID, accountID string) (Payment, error) {
	unlock := l.locks.Lock(core.OwnerID("payment:" + paymentID))
	defer unlock()

	payment, ok := l.store.Payment(paymentID)
	if !ok {
		return Payment{}, fmt.Errorf("payment %s: %w", paymentID, core.ErrNotFound)
	}
	if payment.Status == core.PaymentCompleted {
		return Payment{}, fmt.Errorf("payment %s is already completed: %w", paymentID, core.ErrConflict)
	}

	if _, err := l.Debit(accountID, payment.Amount, "payment", "", payment.Purpose); err != nil {
		return Payment{}, err
	}

	at := l.now()
	payment.Status = core.PaymentCompleted
	payment.PaymentDate = &at
	if err := l.store.SetPayment(payment); err != nil {
		return Payment{}, err
	}
	metrics.LedgerOperationsTotal.WithLabelValues("complete_payment", "ok").Inc()
	l.log.Info().
		Str("payment", payment.ID).
		Str("recipient", payment.Recipient).
		Str("amount", payment.Amount.String()).
		Msg("payment completed")
	return payment, nil
}

// =============================================================================
// REPORTING
// =============================================================================

// ExpenseSummary aggregates the trailing window of transactions.
// Period "week" covers 7 days, anything else 30. Department filters
// when non-empty.
type ExpenseSummary struct {
	Period           string          `json:"period"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TransactionCount int             `json:"transaction_count"`
}

func (l *Ledger) Summarize(period, department string) ExpenseSummary {
	days := 30
	if period == "week" {
		days = 7
	}
	cutoff := l.now().AddDate(0, 0, -days)

	summary := ExpenseSummary{
		Period:      period,
		TotalSpent:  decimal.Zero,
		TotalIncome: decimal.Zero,
	}
	for _, t := range l.store.Transactions() {
		if t.Date.Before(cutoff) {
			continue
		}
		if department != "" && t.Department != department {
			continue
		}
		switch t.Type {
		case TransactionExpense:
			summary.TotalSpent = summary.TotalSpent.Add(t.Amount)
		case TransactionIncome:
			summary.TotalIncome = summary.TotalIncome.Add(t.Amount)
		}
		summary.TransactionCount++
	}
	return summary
}

// =============================================================================
// HELPERS
// =============================================================================

func (l *Ledger) append(kind TransactionType, accountID string, amount decimal.Decimal, category, department, description string) Transaction {
	entry := Transaction{
		ID:          uuid.NewString(),
		Amount:      amount,
		Type:        kind,
		Category:    category,
		Department:  department,
		Account:     accountID,
		Description: description,
		Date:        l.now(),
	}
	l.store.AppendTransaction(entry)
	return entry
}

func validAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be positive, got %s: %w", amount, core.ErrInvalidInput)
	}
	return nil
}
