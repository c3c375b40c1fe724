// Package sweep runs the retention sweeper: a background task that
// periodically purges killmails older than the deletion horizon.
package sweep

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zkb-tools/zkbinfo/pkg/store"
)

// Config controls the sweeper. Horizon and Interval default to 90 days
// and 48 hours, matching the product defaults.
type Config struct {
	Horizon  time.Duration
	Interval time.Duration
}

// DefaultConfig returns the standard retention policy.
func DefaultConfig() Config {
	return Config{
		Horizon:  90 * 24 * time.Hour,
		Interval: 48 * time.Hour,
	}
}

// Worker owns the sweep loop. It shares the store handle with the
// request path; each sweep is a single bounded write transaction.
type Worker struct {
	store  *store.Store
	mu     sync.RWMutex
	config Config
}

func NewWorker(st *store.Store, cfg Config) *Worker {
	if cfg.Horizon <= 0 {
		cfg.Horizon = 90 * 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 48 * time.Hour
	}
	return &Worker{store: st, config: cfg}
}

// UpdateConfig swaps the retention policy for subsequent sweeps.
func (w *Worker) UpdateConfig(cfg Config) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = cfg
}

// Run sweeps once immediately and then on every interval tick until the
// context is cancelled. A failed sweep is logged and retried on the
// next tick; it is never fatal.
func (w *Worker) Run(ctx context.Context) {
	w.mu.RLock()
	interval := w.config.Interval
	w.mu.RUnlock()

	log.Printf("Starting retention sweeper (interval: %v)", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Retention sweeper stopping")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs one purge pass. Exported so operators can trigger it
// from tests and the daemon can run it at boot.
func (w *Worker) Sweep(ctx context.Context) {
	w.mu.RLock()
	horizon := w.config.Horizon
	w.mu.RUnlock()

	participants, killmails, err := w.store.Sweep(ctx, horizon)
	if err != nil {
		log.Printf("Sweep error: %v", err)
		sweepFailures.Inc()
		return
	}
	sweepRuns.Inc()
	sweptRows.WithLabelValues("participants").Add(float64(participants))
	sweptRows.WithLabelValues("killmails").Add(float64(killmails))
	if participants > 0 || killmails > 0 {
		log.Printf("Swept %d participants and %d killmails older than %v", participants, killmails, horizon)
	}
}
