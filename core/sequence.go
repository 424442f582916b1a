package core

import (
	"fmt"
	"sync"
)

// =============================================================================
// SEQUENCE - Monotonic zero-padded record ids (APT0001, PAY0002, ...)
// =============================================================================

// Sequence hands out record ids in arrival order. Ids are never reused,
// even after the record they name is cancelled.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	width  int
	next   int
}

// NewSequence creates a sequence producing prefix + zero-padded counter,
// starting at 1.
func NewSequence(prefix string, width int) *Sequence {
	return &Sequence{prefix: prefix, width: width, next: 1}
}

// Next returns the next id in the sequence.
func (s *Sequence) Next() RecordID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("%s%0*d", s.prefix, s.width, s.next)
	s.next++
	return RecordID(id)
}
