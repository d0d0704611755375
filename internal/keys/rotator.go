// Package keys hands out API credentials round-robin from a pool shared by
// every process serving questions.
package keys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"studypartner/internal/apperr"
	"studypartner/internal/metrics"
)

// ErrEmpty is returned by a Store whose pool holds no keys.
var ErrEmpty = errors.New("key pool is empty")

// Store is the shared ordered pool. Both operations must be atomic in the
// backing store.
type Store interface {
	// Seed fills the pool with keys only if it is currently empty and reports
	// whether it did.
	Seed(ctx context.Context, keys []string) (bool, error)
	// Rotate moves the front key to the back and returns it.
	Rotate(ctx context.Context) (string, error)
	// List returns the pool in rotation order.
	List(ctx context.Context) ([]string, error)
}

// Rotator supplies the next API key for a generation call.
type Rotator struct {
	store      Store
	configured []string
	metrics    *metrics.Metrics

	mu     sync.Mutex
	seeded bool
}

func NewRotator(store Store, configured []string, m *metrics.Metrics) *Rotator {
	return &Rotator{store: store, configured: configured, metrics: m}
}

// NextKey seeds the pool from configuration on first use, then rotates it.
// Seeding is retried on later calls until it succeeds once.
func (r *Rotator) NextKey(ctx context.Context) (string, error) {
	if err := r.ensureSeeded(ctx); err != nil {
		r.metrics.RecordRotation("error")
		return "", err
	}

	key, err := r.store.Rotate(ctx)
	if err != nil {
		if errors.Is(err, ErrEmpty) {
			r.metrics.RecordRotation("empty")
			return "", fmt.Errorf("%w: %v", apperr.ErrNoKeysAvailable, err)
		}
		r.metrics.RecordRotation("error")
		return "", fmt.Errorf("rotate api key: %w", err)
	}
	r.metrics.RecordRotation("ok")
	return key, nil
}

func (r *Rotator) ensureSeeded(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seeded {
		return nil
	}
	if _, err := r.Seed(ctx); err != nil {
		return err
	}
	r.seeded = true
	return nil
}

// Seed loads the configured keys into an empty pool. A pool that already holds
// keys is left alone, so concurrent cold starts seed it exactly once.
func (r *Rotator) Seed(ctx context.Context) (bool, error) {
	if len(r.configured) == 0 {
		return false, nil
	}
	seeded, err := r.store.Seed(ctx, r.configured)
	if err != nil {
		return false, fmt.Errorf("seed key pool: %w", err)
	}
	if seeded {
		slog.InfoContext(ctx, "seeded api key pool", "keys", len(r.configured))
	}
	return seeded, nil
}

// Pool returns the current rotation order.
func (r *Rotator) Pool(ctx context.Context) ([]string, error) {
	return r.store.List(ctx)
}

// Mask hides all but the last four characters of a key for display.
func Mask(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
