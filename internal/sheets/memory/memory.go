package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
)

// Store is an in-memory LedgerWriter for tests and local development.
type Store struct {
	mu    sync.Mutex
	items []core.Transaction

	// FailWith makes every Append return this error when set.
	FailWith error
}

func New() *Store {
	return &Store{}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if s.FailWith != nil {
		return "", s.FailWith
	}
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, tx)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Appended returns a copy of everything written so far.
func (s *Store) Appended() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...)
}
