package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const defaultSweepInterval = time.Minute

// ExpirySweeper periodically purges expired records from a StorageEngine.
// Reads already hide expired rows, so the sweeper changes no observable
// behavior; it only reclaims storage.
type ExpirySweeper struct {
	engine   StorageEngine
	interval time.Duration
	logger   Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpirySweeper builds a sweeper over the engine. A non-positive interval
// falls back to one minute.
func NewExpirySweeper(engine StorageEngine, interval time.Duration, logger Logger) (*ExpirySweeper, error) {
	if engine == nil {
		return nil, fmt.Errorf("core: sweeper requires a storage engine")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		_, logger = glog.Resolve("oidc-store", nil, nil)
	}
	return &ExpirySweeper{
		engine:   engine,
		interval: interval,
		logger:   logger,
	}, nil
}

// Interval reports the effective sweep interval.
func (s *ExpirySweeper) Interval() time.Duration {
	if s == nil {
		return 0
	}
	return s.interval
}

// Start launches the sweep loop. Calling Start on a running sweeper is a
// no-op.
func (s *ExpirySweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(ctx, done)
}

// Stop halts the loop and waits for the in-flight sweep, if any, to finish.
func (s *ExpirySweeper) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Sweep runs a single purge pass.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	if s == nil || s.engine == nil {
		return 0, fmt.Errorf("core: sweeper is not configured")
	}
	purged, err := s.engine.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err.Error())
		return 0, backendError(err, "core: expiry sweep failed")
	}
	if purged > 0 {
		s.logger.Info("expiry sweep purged records", "count", purged)
	}
	return purged, nil
}

func (s *ExpirySweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		}
	}
}
