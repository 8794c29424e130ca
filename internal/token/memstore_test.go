package token

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// memStore is an in-memory Store with the same conditional-update semantics
// as PostgresStore.
type memStore struct {
	mu     sync.Mutex
	seq    int
	codes  []*Code
	resets []*ResetToken
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) nextID() string {
	m.seq++
	return strconv.Itoa(m.seq)
}

func (m *memStore) ReplaceCode(_ context.Context, c *Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, old := range m.codes {
		if old.Identifier == c.Identifier && old.Purpose == c.Purpose && old.ConsumedAt == nil {
			at := c.CreatedAt
			old.ConsumedAt = &at
		}
	}
	cp := *c
	if cp.ID == "" {
		cp.ID = m.nextID()
	}
	m.codes = append(m.codes, &cp)
	return nil
}

func (m *memStore) ConsumeCode(_ context.Context, identifier string, purpose Purpose, codeHash string, now time.Time) (*Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Identifier == identifier && c.Purpose == purpose && c.CodeHash == codeHash &&
			c.ConsumedAt == nil && c.ExpiresAt.After(now) && c.Attempts < c.MaxAttempts {
			at := now
			c.ConsumedAt = &at
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) RecordFailedAttempt(_ context.Context, identifier string, purpose Purpose, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	hit := false
	for _, c := range m.codes {
		if c.Identifier == identifier && c.Purpose == purpose && c.ConsumedAt == nil &&
			c.ExpiresAt.After(now) && c.Attempts < c.MaxAttempts {
			c.Attempts++
			hit = true
		}
	}
	if !hit {
		return ErrNotFound
	}
	return nil
}

func (m *memStore) FindCode(_ context.Context, identifier string, purpose Purpose, codeHash string) (*Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		c := m.codes[i]
		if c.Identifier == identifier && c.Purpose == purpose && c.CodeHash == codeHash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ReplaceResetToken(_ context.Context, t *ResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, old := range m.resets {
		if old.UserID == t.UserID && old.ConsumedAt == nil {
			at := t.CreatedAt
			old.ConsumedAt = &at
		}
	}
	cp := *t
	if cp.ID == "" {
		cp.ID = m.nextID()
	}
	m.resets = append(m.resets, &cp)
	return nil
}

func (m *memStore) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time) (*ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.resets {
		if t.TokenHash == tokenHash && t.ConsumedAt == nil && t.ExpiresAt.After(now) {
			at := now
			t.ConsumedAt = &at
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindResetToken(_ context.Context, tokenHash string) (*ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.resets {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
