// Package trigger runs periodic sync and collection ticks.
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/service"
	"github.com/rs/zerolog"
)

// Trigger owns two tickers: one pushes pending staged reports, the other queues a
// bulk collection.
type Trigger struct {
	sync            service.SyncService
	collect         service.CollectService
	syncInterval    time.Duration
	collectInterval time.Duration
	log             zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped trigger
func New(syncSvc service.SyncService, collectSvc service.CollectService, syncInterval, collectInterval time.Duration, log zerolog.Logger) *Trigger {
	return &Trigger{
		sync:            syncSvc,
		collect:         collectSvc,
		syncInterval:    syncInterval,
		collectInterval: collectInterval,
		log:             log.With().Str("component", "trigger").Logger(),
	}
}

// Start launches both tickers. Calling it while running does nothing.
func (t *Trigger) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}

	ctx, t.cancel = context.WithCancel(ctx)

	t.wg.Add(2)
	go t.loop(ctx, "sync", t.syncInterval, t.runSync)
	go t.loop(ctx, "collect", t.collectInterval, t.runCollect)

	t.log.Info().
		Dur("sync_interval", t.syncInterval).
		Dur("collect_interval", t.collectInterval).
		Msg("Periodic trigger started")
}

// Stop cancels both tickers and waits for any tick in progress
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel == nil {
		return
	}

	t.cancel()
	t.wg.Wait()
	t.cancel = nil
	t.log.Info().Msg("Periodic trigger stopped")
}

// Running reports whether the tickers are active
func (t *Trigger) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Trigger) loop(ctx context.Context, name string, interval time.Duration, tick func(context.Context)) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.safeTick(ctx, name, tick)
		}
	}
}

func (t *Trigger) safeTick(ctx context.Context, name string, tick func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error().Interface("panic", r).Str("tick", name).Msg("Tick panicked - recovered")
		}
	}()
	tick(ctx)
}

func (t *Trigger) runSync(ctx context.Context) {
	result, err := t.sync.SyncPending(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("Scheduled sync failed")
		return
	}
	t.log.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Int("skipped", len(result.Skipped)).
		Msg("Scheduled sync finished")
}

func (t *Trigger) runCollect(ctx context.Context) {
	jobs, err := t.collect.CollectAll(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("Scheduled collection had errors")
	}
	t.log.Info().Int("jobs", len(jobs)).Msg("Scheduled collection queued")
}
