/*
locks.go - Per-owner mutual exclusion

PURPOSE:
  Every read-check-then-write sequence (reserve, cancel, transfer, debit,
  applyToBudget) must see a stable view of one owner's pool, or two callers
  could both observe "slot free" and both commit. A single mutex per owner
  gives the reservation path that critical section without serializing
  unrelated owners.

CROSS-OWNER OPERATIONS:
  A ward transfer touches two owners. LockAll acquires the set in
  lexicographic id order so two concurrent transfers in opposite
  directions cannot deadlock.
*/
package core

import (
	"sort"
	"sync"
)

// KeyedMutex maintains one mutex per owner id, created on first use.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[OwnerID]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[OwnerID]*sync.Mutex)}
}

func (k *KeyedMutex) get(id OwnerID) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	return m
}

// Lock acquires the mutex for a single owner and returns the unlock func.
func (k *KeyedMutex) Lock(id OwnerID) func() {
	m := k.get(id)
	m.Lock()
	return m.Unlock
}

// LockAll acquires every listed owner's mutex in lexicographic order and
// returns one unlock func releasing them all (reverse order). Duplicate
// ids are acquired once.
func (k *KeyedMutex) LockAll(ids ...OwnerID) func() {
	unique := make([]OwnerID, 0, len(ids))
	seen := make(map[OwnerID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	held := make([]*sync.Mutex, 0, len(unique))
	for _, id := range unique {
		m := k.get(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
