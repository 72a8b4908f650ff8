package store

import (
	"context"
	"sync"

	"cheerpup/apps/backend/internal/domain"
)

// Memory keeps users in process. Callers always receive clones, so mutations
// only land through Save.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// SaveHook, when set, runs before every Save and may fail it. Tests use it
	// to simulate store outages and interleaved writers.
	SaveHook func(user *domain.User) error
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]*domain.User)}
}

func (m *Memory) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.ID]; exists {
		return ErrDuplicate
	}
	if m.contactTakenLocked(user) {
		return ErrDuplicate
	}
	user.Version = 1
	m.users[user.ID] = user.Clone()
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user.Clone(), nil
}

func (m *Memory) FindByLogin(_ context.Context, email, phone *string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if matchesLogin(user, email, phone) {
			return user.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Save(_ context.Context, user *domain.User) error {
	if m.SaveHook != nil {
		if err := m.SaveHook(user); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != user.Version {
		return ErrConflict
	}
	if m.contactTakenLocked(user) {
		return ErrDuplicate
	}
	stored := user.Clone()
	stored.Version++
	m.users[user.ID] = stored
	user.Version = stored.Version
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

// Len reports how many users are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *Memory) contactTakenLocked(user *domain.User) bool {
	for id, other := range m.users {
		if id == user.ID {
			continue
		}
		if sameString(user.Email, other.Email) || sameString(user.PhoneNumber, other.PhoneNumber) {
			return true
		}
	}
	return false
}

func matchesLogin(user *domain.User, email, phone *string) bool {
	if email != nil {
		return sameString(user.Email, email)
	}
	return sameString(user.PhoneNumber, phone)
}

func sameString(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}
