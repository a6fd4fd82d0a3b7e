package memory

import (
	"context"
	"fmt"
	"sync"

	"bills/internal/core"
	ports "bills/internal/sheets"
)

var _ ports.LedgerSink = (*Store)(nil)

// Store keeps the last published ledger in memory.
type Store struct {
	mu        sync.Mutex
	items     []core.Transaction
	publishes int
	err       error
}

func New() *Store {
	return &Store{}
}

// FailWith makes every following PublishLedger call return err.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// PublishLedger validates and stores a copy of records.
func (s *Store) PublishLedger(_ context.Context, records []core.Transaction) (string, error) {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return "", fmt.Errorf("record %d: %w", i+1, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.items = append(s.items[:0:0], records...)
	s.publishes++
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Ledger returns a copy of the last published records.
func (s *Store) Ledger() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...)
}

// Publishes returns how many times PublishLedger succeeded.
func (s *Store) Publishes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishes
}
