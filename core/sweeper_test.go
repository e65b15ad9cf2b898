package core

import (
	"context"
	"testing"
	"time"
)

func TestExpirySweeper_SweepPurgesExpiredRecords(t *testing.T) {
	ctx := context.Background()
	// backdate the clock so the code's expiry lands in the real past; Sweep
	// purges against wall time
	now := time.Now().UTC().Add(-2 * time.Minute)
	engine := newTestEngine(&now)

	if _, err := engine.Put(ctx, KindAuthorizationCode, "code_1", Payload{}, time.Minute); err != nil {
		t.Fatalf("put code: %v", err)
	}
	if _, err := engine.Put(ctx, KindClient, "web", Payload{}, 0); err != nil {
		t.Fatalf("put client: %v", err)
	}

	sweeper, err := NewExpirySweeper(engine, time.Minute, nil)
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}

	purged, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one purged record, got %d", purged)
	}
	if _, found, _ := engine.Get(ctx, KindClient, "web"); !found {
		t.Fatalf("expected unexpiring client to survive")
	}
}

func TestExpirySweeper_StartStop(t *testing.T) {
	now := time.Now().UTC()
	sweeper, err := NewExpirySweeper(newTestEngine(&now), 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}

	sweeper.Start(context.Background())
	sweeper.Start(context.Background()) // second start is a no-op
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
	sweeper.Stop() // second stop is a no-op
}

func TestExpirySweeper_RequiresEngine(t *testing.T) {
	if _, err := NewExpirySweeper(nil, time.Minute, nil); err == nil {
		t.Fatalf("expected engine requirement error")
	}
}
