package flow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultAttemptTTL  = 15 * time.Minute
	defaultMaxAttempts = 4096
)

// Attempt tracks one in-progress authorization request from the moment the
// browser is redirected until the callback returns. The state value keys the
// attempt; the nonce and verifier are bound to it and checked on completion.
type Attempt struct {
	State       string
	Nonce       string
	Verifier    *CodeVerifier
	RedirectURI string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the attempt's deadline has passed.
func (a Attempt) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// AttemptStore persists pending attempts between the redirect and the
// callback. Consume removes the attempt so a state value can complete at most
// one flow.
type AttemptStore interface {
	Save(ctx context.Context, attempt Attempt) error
	Consume(ctx context.Context, state string) (Attempt, error)
}

// MemoryAttemptStore is the default single-process AttemptStore. Entries are
// pruned on save once the store is at capacity; expired entries are dropped
// first.
type MemoryAttemptStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]Attempt
}

// NewMemoryAttemptStore builds a store with the given attempt TTL. A
// non-positive ttl falls back to the default.
func NewMemoryAttemptStore(ttl time.Duration) *MemoryAttemptStore {
	if ttl <= 0 {
		ttl = defaultAttemptTTL
	}
	return &MemoryAttemptStore{
		ttl:        ttl,
		maxEntries: defaultMaxAttempts,
		entries:    map[string]Attempt{},
	}
}

func (s *MemoryAttemptStore) Save(_ context.Context, attempt Attempt) error {
	if s == nil {
		return fmt.Errorf("flow: attempt store is not configured")
	}
	state := strings.TrimSpace(attempt.State)
	if state == "" {
		return fmt.Errorf("flow: attempt state is required")
	}

	now := time.Now().UTC()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	if attempt.ExpiresAt.IsZero() {
		attempt.ExpiresAt = attempt.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxEntries {
		s.pruneExpiredLocked(now)
	}
	if len(s.entries) >= s.maxEntries {
		return fmt.Errorf("flow: attempt store is full")
	}
	s.entries[state] = attempt
	return nil
}

func (s *MemoryAttemptStore) Consume(_ context.Context, state string) (Attempt, error) {
	if s == nil {
		return Attempt{}, fmt.Errorf("flow: attempt store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return Attempt{}, fmt.Errorf("flow: attempt state is required")
	}

	s.mu.Lock()
	attempt, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok {
		return Attempt{}, fmt.Errorf("flow: attempt not found")
	}
	if attempt.Expired(time.Now().UTC()) {
		return Attempt{}, fmt.Errorf("flow: attempt expired")
	}
	return attempt, nil
}

func (s *MemoryAttemptStore) pruneExpiredLocked(now time.Time) {
	for state, attempt := range s.entries {
		if attempt.Expired(now) {
			delete(s.entries, state)
		}
	}
}

// GenerateState returns an opaque high-entropy state value.
func GenerateState() (string, error) {
	return generateOpaque("st")
}

// GenerateNonce returns an opaque high-entropy nonce value.
func GenerateNonce() (string, error) {
	return generateOpaque("n")
}

func generateOpaque(prefix string) (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("flow: generate %s value: %w", prefix, err)
	}
	return prefix + "_" + base64.RawURLEncoding.EncodeToString(raw), nil
}
