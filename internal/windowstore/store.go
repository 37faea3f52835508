// Package windowstore holds the windowed aggregates written by the revenue
// pipeline and read by the summary query. Windows are keyed by start time at
// millisecond resolution.
package windowstore

import (
	"fmt"
	"time"

	"pizzastream/internal/config"
	"pizzastream/internal/constants"
	apperrors "pizzastream/pkg/errors"
	"pizzastream/pkg/models"
)

// ErrNotReady is returned by the Registry until the store has been opened
// and restored.
var ErrNotReady = apperrors.ErrStateNotReady

// Store is safe for one writer and any number of concurrent readers.
// Readers see the latest committed Put or PutAll.
type Store interface {
	Get(start time.Time) (models.WindowedMetric, bool, error)
	Put(metric models.WindowedMetric) error
	// PutAll writes every metric or none of them.
	PutAll(metrics []models.WindowedMetric) error
	// Fetch returns the windows whose start lies in [from, to), ascending by start.
	Fetch(from, to time.Time) ([]models.WindowedMetric, error)
	// EvictThrough removes every window whose start is at or before start and
	// reports how many were removed.
	EvictThrough(start time.Time) (int, error)
	Len() (int, error)
	Close() error
}

// Open builds the backend selected in cfg.
func Open(cfg config.StateConfig) (Store, error) {
	switch cfg.Backend {
	case "", constants.StateBackendMemory:
		return NewMemoryStore(), nil
	case constants.StateBackendPebble:
		return NewPebbleStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown state backend: %s", cfg.Backend)
	}
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
