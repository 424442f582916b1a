package finance

import (
	"fmt"
	"sync"

	"github.com/warp/hospital-engine/core"
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store owns accounts, budgets and the append-only transaction and
// payment history. Individual calls are atomic; the ledger's per-owner
// locks serialize read-check-then-write sequences.
type Store interface {
	RegisterAccount(a Account) error
	RegisterBudget(b Budget) error
	Account(id string) (Account, bool)
	Accounts() []Account
	Budget(department string) (Budget, bool)
	Budgets() []Budget
	SetBalance(id string, a Account) error
	SetBudget(department string, b Budget) error
	AppendTransaction(t Transaction)
	Transactions() []Transaction
	AppendPayment(p Payment)
	Payment(id string) (Payment, bool)
	Payments() []Payment
	SetPayment(p Payment) error
}

// =============================================================================
// IN-MEMORY STORE
// =============================================================================

type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]Account
	accountOrder []string
	budgets      map[string]Budget
	budgetOrder  []string
	transactions []Transaction
	payments     []Payment
	paymentIndex map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]Account),
		budgets:      make(map[string]Budget),
		paymentIndex: make(map[string]int),
	}
}

func (s *MemoryStore) RegisterAccount(a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.ID]; exists {
		return fmt.Errorf("account %s already registered: %w", a.ID, core.ErrConflict)
	}
	s.accounts[a.ID] = a
	s.accountOrder = append(s.accountOrder, a.ID)
	return nil
}

func (s *MemoryStore) RegisterBudget(b Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.budgets[b.Department]; exists {
		return fmt.Errorf("budget for %s already registered: %w", b.Department, core.ErrConflict)
	}
	s.budgets[b.Department] = b
	s.budgetOrder = append(s.budgetOrder, b.Department)
	return nil
}

func (s *MemoryStore) Account(id string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *MemoryStore) Accounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accountOrder))
	for _, id := range s.accountOrder {
		out = append(out, s.accounts[id])
	}
	return out
}

func (s *MemoryStore) Budget(department string) (Budget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[department]
	return b, ok
}

func (s *MemoryStore) Budgets() []Budget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Budget, 0, len(s.budgetOrder))
	for _, dept := range s.budgetOrder {
		out = append(out, s.budgets[dept])
	}
	return out
}

func (s *MemoryStore) SetBalance(id string, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	s.accounts[id] = a
	return nil
}

func (s *MemoryStore) SetBudget(department string, b Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[department]; !ok {
		return fmt.Errorf("budget for %s: %w", department, core.ErrNotFound)
	}
	s.budgets[department] = b
	return nil
}

func (s *MemoryStore) AppendTransaction(t Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, t)
}

func (s *MemoryStore) Transactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Transaction(nil), s.transactions...)
}

func (s *MemoryStore) AppendPayment(p Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentIndex[p.ID] = len(s.payments)
	s.payments = append(s.payments, p)
}

func (s *MemoryStore) Payment(id string) (Payment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.paymentIndex[id]
	if !ok {
		return Payment{}, false
	}
	return s.payments[i], true
}

func (s *MemoryStore) Payments() []Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Payment(nil), s.payments...)
}

func (s *MemoryStore) SetPayment(p Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.paymentIndex[p.ID]
	if !ok {
		return fmt.Errorf("payment %s: %w", p.ID, core.ErrNotFound)
	}
	s.payments[i] = p
	return nil
}
