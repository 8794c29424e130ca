package session

import (
	"context"
	"sync"
	"time"
)

// Provider records session revocations.
//
// RevokeSession marks one session family revoked for ttl. RevokeUser records
// a not-before instant: every session of the user issued strictly before it
// is revoked. Implementations must be safe for concurrent use.
type Provider interface {
	RevokeSession(ctx context.Context, sid string, ttl time.Duration) error
	RevokeUser(ctx context.Context, userID string, notBefore time.Time, ttl time.Duration) error
	IsRevoked(ctx context.Context, sid, userID string, issuedAt time.Time) (bool, error)
}

// MemoryProvider keeps revocations in process memory. It is only correct for
// a single API instance.
type MemoryProvider struct {
	mu        sync.RWMutex
	sessions  map[string]time.Time
	notBefore map[string]time.Time
	now       func() time.Time
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		sessions:  make(map[string]time.Time),
		notBefore: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (p *MemoryProvider) RevokeSession(_ context.Context, sid string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sid] = p.now().Add(ttl)
	return nil
}

func (p *MemoryProvider) RevokeUser(_ context.Context, userID string, notBefore time.Time, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.notBefore[userID]; !ok || notBefore.After(prev) {
		p.notBefore[userID] = notBefore
	}
	return nil
}

func (p *MemoryProvider) IsRevoked(_ context.Context, sid, userID string, issuedAt time.Time) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if until, ok := p.sessions[sid]; ok && p.now().Before(until) {
		return true, nil
	}
	if nbf, ok := p.notBefore[userID]; ok && issuedAt.Before(nbf) {
		return true, nil
	}
	return false, nil
}
