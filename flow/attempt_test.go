package flow

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAttemptStore_SaveConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAttemptStore(time.Minute)

	verifier, err := NewCodeVerifier()
	if err != nil {
		t.Fatalf("new code verifier: %v", err)
	}
	if err := store.Save(ctx, Attempt{
		State:    "st_1",
		Nonce:    "n_1",
		Verifier: verifier,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	attempt, err := store.Consume(ctx, "st_1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if attempt.Nonce != "n_1" {
		t.Fatalf("expected nonce n_1, got %q", attempt.Nonce)
	}
	if attempt.Verifier == nil || attempt.Verifier.Verifier() != verifier.Verifier() {
		t.Fatalf("expected the saved verifier back")
	}
	if attempt.ExpiresAt.IsZero() {
		t.Fatalf("expected save to stamp an expiry")
	}

	if _, err := store.Consume(ctx, "st_1"); err == nil {
		t.Fatalf("a state must complete at most one flow")
	}
}

func TestMemoryAttemptStore_ExpiredAttemptRejected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAttemptStore(time.Minute)

	past := time.Now().UTC().Add(-time.Minute)
	if err := store.Save(ctx, Attempt{
		State:     "st_old",
		CreatedAt: past.Add(-time.Minute),
		ExpiresAt: past,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := store.Consume(ctx, "st_old"); err == nil {
		t.Fatalf("expected expired attempt to be rejected")
	}
	// the reject consumed it too
	if _, err := store.Consume(ctx, "st_old"); err == nil {
		t.Fatalf("expected expired attempt to be gone")
	}
}

func TestMemoryAttemptStore_RequiresState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAttemptStore(time.Minute)

	if err := store.Save(ctx, Attempt{State: "  "}); err == nil {
		t.Fatalf("expected state requirement error on save")
	}
	if _, err := store.Consume(ctx, ""); err == nil {
		t.Fatalf("expected state requirement error on consume")
	}
}

func TestMemoryAttemptStore_PrunesExpiredAtCapacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAttemptStore(time.Minute)
	store.maxEntries = 2

	past := time.Now().UTC().Add(-time.Minute)
	for _, state := range []string{"st_a", "st_b"} {
		if err := store.Save(ctx, Attempt{State: state, ExpiresAt: past}); err != nil {
			t.Fatalf("save %s: %v", state, err)
		}
	}

	// at capacity, but both entries are expired and should be pruned
	if err := store.Save(ctx, Attempt{State: "st_c"}); err != nil {
		t.Fatalf("save at capacity: %v", err)
	}
	if _, err := store.Consume(ctx, "st_c"); err != nil {
		t.Fatalf("consume fresh attempt: %v", err)
	}
}
