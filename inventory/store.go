package inventory

import (
	"fmt"
	"sync"

	"github.com/warp/hospital-engine/core"
)

// Store owns the item pool. Reads return copies; the usage-history
// slice is never shared with callers.
type Store interface {
	RegisterItem(i Item) error
	Item(id string) (Item, bool)
	Items() []Item
	SetQuantity(id string, quantity int) error
	RecordUsage(id string, used int) (Item, error)
}

type MemoryStore struct {
	mu        sync.RWMutex
	items     map[string]*Item
	itemOrder []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Item)}
}

func (s *MemoryStore) RegisterItem(i Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[i.ID]; exists {
		return fmt.Errorf("item %s already registered: %w", i.ID, core.ErrConflict)
	}
	clone := i
	clone.UsageHistory = append([]int(nil), i.UsageHistory...)
	s.items[i.ID] = &clone
	s.itemOrder = append(s.itemOrder, i.ID)
	return nil
}

func (s *MemoryStore) Item(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, false
	}
	return copyItem(item), true
}

// Items returns copies in registration order.
func (s *MemoryStore) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.itemOrder))
	for _, id := range s.itemOrder {
		out = append(out, copyItem(s.items[id]))
	}
	return out
}

func (s *MemoryStore) SetQuantity(id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, core.ErrNotFound)
	}
	item.Quantity = quantity
	return nil
}

// RecordUsage subtracts from stock and appends to the usage series as
// one atomic step. Usage exceeding stock is rejected unchanged.
func (s *MemoryStore) RecordUsage(id string, used int) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, fmt.Errorf("item %s: %w", id, core.ErrNotFound)
	}
	if used > item.Quantity {
		return Item{}, &InsufficientStockError{Item: id, Available: item.Quantity, Requested: used}
	}
	item.Quantity -= used
	item.UsageHistory = append(item.UsageHistory, used)
	return copyItem(item), nil
}

func copyItem(i *Item) Item {
	clone := *i
	clone.UsageHistory = append([]int(nil), i.UsageHistory...)
	return clone
}

// InsufficientStockError reports usage that would drive stock negative.
type InsufficientStockError struct {
	Item      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("item %s has %d units, %d requested", e.Item, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return core.ErrConflict }
