package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrDuplicateEmail = errors.New("email already registered")

// MemoryStore backs the mock auth server when no DATABASE_URL is set.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	sessions map[string]RefreshSession
	codes    map[string]ResetCode
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: map[string]Account{},
		sessions: map[string]RefreshSession{},
		codes:    map[string]ResetCode{},
	}
}

func (m *MemoryStore) AccountByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (m *MemoryStore) AccountByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) CreateAccount(_ context.Context, account Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return ErrDuplicateEmail
		}
	}
	account.Email = strings.ToLower(account.Email)
	m.accounts[account.ID] = account
	return nil
}

func (m *MemoryStore) UpdatePassword(_ context.Context, accountID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = hash
	m.accounts[accountID] = a
	return nil
}

func (m *MemoryStore) UpdateLastLogin(_ context.Context, accountID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[accountID]; ok {
		a.LastLogin = &at
		m.accounts[accountID] = a
	}
	return nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s RefreshSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) SessionByID(_ context.Context, id string) (RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return RefreshSession{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) SessionByToken(_ context.Context, tokenHash string) (RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TokenHash == tokenHash {
			return s, nil
		}
	}
	return RefreshSession{}, ErrNotFound
}

func (m *MemoryStore) RotateSession(_ context.Context, id, newHash string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	s.TokenHash = newHash
	s.ExpiresAt = expires
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) RevokeSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.RevokedAt == nil {
		s.RevokedAt = &at
		m.sessions[id] = s
	}
	return nil
}

func (m *MemoryStore) RevokeAccountSessions(_ context.Context, accountID, keepID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.AccountID == accountID && id != keepID && s.RevokedAt == nil {
			s.RevokedAt = &at
			m.sessions[id] = s
		}
	}
	return nil
}

func (m *MemoryStore) SaveResetCode(_ context.Context, code ResetCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code.AccountID] = code
	return nil
}

func (m *MemoryStore) ResetCodeFor(_ context.Context, accountID string) (ResetCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[accountID]
	if !ok {
		return ResetCode{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) DeleteResetCode(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, accountID)
	return nil
}

func (m *MemoryStore) PurgeExpired(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(before) || (s.RevokedAt != nil && s.RevokedAt.Before(before)) {
			delete(m.sessions, id)
			purged++
		}
	}
	for id, c := range m.codes {
		if c.ExpiresAt.Before(before) {
			delete(m.codes, id)
			purged++
		}
	}
	return purged, nil
}
