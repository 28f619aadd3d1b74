package memory

import (
	"context"
	"sync"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// Store keeps expenses in a map. It is meant for tests and local development;
// nothing survives a restart.
type Store struct {
	mu    sync.RWMutex
	items map[string]core.Expense
}

var _ storage.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[string]core.Expense)}
}

// ListAll returns a copy of every stored expense, newest date first.
func (s *Store) ListAll(_ context.Context) ([]core.Expense, error) {
	s.mu.RLock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, clone(e))
	}
	s.mu.RUnlock()

	storage.SortByDateDesc(out)
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Expense, error) {
	oid, err := core.ParseID(id)
	if err != nil {
		return core.Expense{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[oid.Hex()]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return clone(e), nil
}

func (s *Store) Create(_ context.Context, p core.Payload) (core.Expense, error) {
	e, err := p.NewExpense(core.NewID())
	if err != nil {
		return core.Expense{}, err
	}

	s.mu.Lock()
	s.items[e.ID] = e
	s.mu.Unlock()
	return clone(e), nil
}

func (s *Store) UpdatePartial(_ context.Context, id string, p core.Payload) (core.Expense, error) {
	oid, err := core.ParseID(id)
	if err != nil {
		return core.Expense{}, err
	}
	if p.IsEmpty() {
		return core.Expense{}, core.ErrEmptyPayload
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[oid.Hex()]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	e = p.Apply(e)
	s.items[e.ID] = e
	return clone(e), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	oid, err := core.ParseID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[oid.Hex()]; !ok {
		return core.ErrNotFound
	}
	delete(s.items, oid.Hex())
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close(_ context.Context) error { return nil }

// Len returns the number of stored expenses.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// clone copies the category so callers cannot mutate stored state.
func clone(e core.Expense) core.Expense {
	if e.Category != nil {
		c := *e.Category
		e.Category = &c
	}
	return e
}
