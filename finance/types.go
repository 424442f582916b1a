/*
types.go - Accounts, budgets, transactions and payments

PURPOSE:
  The quantity-sliced side of the resource model. An account balance is
  a pool of currency that must never go negative; a budget tracks spend
  against a fixed total for one department and period.

KEY CONCEPTS:
  - Amounts are decimals, never floats. Balance arithmetic uses
    shopspring/decimal throughout.
  - Budget.Remaining is derived from Total and Spent on every read. It
    is not stored, so it cannot drift.
  - Transactions and payments are append-only history. A payment's only
    mutable field is its status transition to completed.
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hospital-engine/core"
)

// AccountType classifies an account's purpose.
type AccountType string

const (
	AccountOperating  AccountType = "operating"
	AccountEmergency  AccountType = "emergency"
	AccountInvestment AccountType = "investment"
)

// Account is a currency pool. Balance never goes below zero.
type Account struct {
	ID          string
	Name        string
	Type        AccountType
	Balance     decimal.Decimal
	LastUpdated time.Time
}

// BudgetPeriod names the span a budget covers.
type BudgetPeriod string

const (
	PeriodMonthly   BudgetPeriod = "monthly"
	PeriodQuarterly BudgetPeriod = "quarterly"
	PeriodAnnual    BudgetPeriod = "annual"
)

// Budget tracks one department's spend against a fixed total.
type Budget struct {
	Department string
	Period     BudgetPeriod
	Total      decimal.Decimal
	Spent      decimal.Decimal
	StartDate  core.Date
	EndDate    core.Date
}

// Remaining is always Total - Spent. Negative when overspent.
func (b Budget) Remaining() decimal.Decimal {
	return b.Total.Sub(b.Spent)
}

// OverBudget reports whether spend exceeds the budget total.
func (b Budget) OverBudget() bool {
	return b.Spent.GreaterThan(b.Total)
}

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Transaction is one committed ledger entry.
type Transaction struct {
	ID          string
	Amount      decimal.Decimal
	Type        TransactionType
	Category    string
	Department  string
	Account     string
	Description string
	Date        time.Time
}

// Payment is a scheduled outgoing payment. It debits its funding
// account only on completion.
type Payment struct {
	ID          string
	Amount      decimal.Decimal
	Recipient   string
	Purpose     string
	DueDate     core.Date
	Status      core.PaymentStatus
	PaymentDate *time.Time
}
