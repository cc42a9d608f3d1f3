package workouts

import (
	"context"
	"fmt"
	"sync"
)

// Factory builds an unloaded Store for a user.
type Factory func(userID int) (*Store, error)

// Manager hands out one loaded Store per user. A user's state is only loaded
// once they are identified and make their first request.
type Manager struct {
	mu      sync.Mutex
	stores  map[int]*Store
	factory Factory
}

func NewManager(factory Factory) *Manager {
	return &Manager{stores: make(map[int]*Store), factory: factory}
}

// For returns the user's store, loading it on first use. A store whose load
// fails is not cached, so the next call retries.
func (m *Manager) For(ctx context.Context, userID int) (*Store, error) {
	m.mu.Lock()
	st, ok := m.stores[userID]
	if !ok {
		var err error
		st, err = m.factory(userID)
		if err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("creating store for user %d: %w", userID, err)
		}
		m.stores[userID] = st
	}
	m.mu.Unlock()

	if err := st.Load(ctx); err != nil {
		m.mu.Lock()
		if m.stores[userID] == st {
			delete(m.stores, userID)
		}
		m.mu.Unlock()
		return nil, err
	}
	return st, nil
}

// Forget drops a user's cached store. The next For reloads it.
func (m *Manager) Forget(userID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, userID)
}
