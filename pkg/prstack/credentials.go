package prstack

import (
	"strings"
	"sync"
)

// CredentialStore holds an optional GitHub token and notifies subscribers
// when its availability changes.
type CredentialStore interface {
	Token() (string, bool)
	SetToken(token string) error
	Subscribe(fn func(available bool)) (cancel func())
}

// MemoryCredentials is an in-process CredentialStore.
type MemoryCredentials struct {
	subs   map[int]func(bool)
	token  string
	nextID int
	mu     sync.Mutex
}

// NewMemoryCredentials returns a store seeded with token, which may be empty.
func NewMemoryCredentials(token string) *MemoryCredentials {
	return &MemoryCredentials{
		token: strings.TrimSpace(token),
		subs:  make(map[int]func(bool)),
	}
}

// Token returns the current token and whether one is set.
func (m *MemoryCredentials) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != ""
}

// SetToken replaces the token and notifies subscribers if it changed.
// An empty token clears the credential.
func (m *MemoryCredentials) SetToken(token string) error {
	token = strings.TrimSpace(token)

	m.mu.Lock()
	if token == m.token {
		m.mu.Unlock()
		return nil
	}
	m.token = token
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	// Subscribers run outside the lock so they may call back into the store.
	for _, fn := range subs {
		fn(token != "")
	}
	return nil
}

// Subscribe registers fn for change notifications.
func (m *MemoryCredentials) Subscribe(fn func(available bool)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Available reports whether store currently holds a credential.
func Available(store CredentialStore) bool {
	if store == nil {
		return false
	}
	_, ok := store.Token()
	return ok
}
