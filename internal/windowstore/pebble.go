package windowstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble"

	"pizzastream/pkg/models"
)

const windowKeyPrefix = 'w'

// PebbleStore persists windows so a restarted process can serve queries for
// windows that are still inside their grace period.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
		WALBytesPerSync:       1 << 20,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// windowKey orders keys by start time, including starts before the epoch.
func windowKey(start time.Time) []byte {
	k := make([]byte, 9)
	k[0] = windowKeyPrefix
	binary.BigEndian.PutUint64(k[1:], uint64(millis(start))^(1<<63))
	return k
}

func (p *PebbleStore) Get(start time.Time) (models.WindowedMetric, bool, error) {
	v, closer, err := p.db.Get(windowKey(start))
	if errors.Is(err, pebble.ErrNotFound) {
		return models.WindowedMetric{}, false, nil
	}
	if err != nil {
		return models.WindowedMetric{}, false, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	m, err := decodeMetric(v)
	if err != nil {
		return models.WindowedMetric{}, false, err
	}
	return m, true, nil
}

func (p *PebbleStore) Put(metric models.WindowedMetric) error {
	b, err := json.Marshal(metric)
	if err != nil {
		return fmt.Errorf("encode window: %w", err)
	}
	// WAL covers durability; no fsync per window update.
	if err := p.db.Set(windowKey(metric.WindowStart), b, pebble.NoSync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (p *PebbleStore) PutAll(metrics []models.WindowedMetric) error {
	batch := p.db.NewBatch()
	defer batch.Close()

	for _, m := range metrics {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode window: %w", err)
		}
		if err := batch.Set(windowKey(m.WindowStart), b, nil); err != nil {
			return fmt.Errorf("pebble batch set: %w", err)
		}
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("pebble commit: %w", err)
	}
	return nil
}

func (p *PebbleStore) Fetch(from, to time.Time) ([]models.WindowedMetric, error) {
	if !from.Before(to) {
		return nil, nil
	}
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: windowKey(from),
		UpperBound: windowKey(to),
	})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	var out []models.WindowedMetric
	for it.First(); it.Valid(); it.Next() {
		m, err := decodeMetric(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, it.Error()
}

func (p *PebbleStore) EvictThrough(start time.Time) (int, error) {
	lower := []byte{windowKeyPrefix}
	upper := windowKey(start.Add(time.Millisecond))

	n, err := p.count(lower, upper)
	if err != nil || n == 0 {
		return 0, err
	}
	if err := p.db.DeleteRange(lower, upper, pebble.NoSync); err != nil {
		return 0, fmt.Errorf("pebble delete range: %w", err)
	}
	return n, nil
}

func (p *PebbleStore) Len() (int, error) {
	return p.count([]byte{windowKeyPrefix}, []byte{windowKeyPrefix + 1})
}

func (p *PebbleStore) count(lower, upper []byte) (int, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	n := 0
	for it.First(); it.Valid(); it.Next() {
		n++
	}
	return n, it.Error()
}

// Close flushes the memtable and closes the database.
func (p *PebbleStore) Close() error {
	if err := p.db.Flush(); err != nil {
		_ = p.db.Close()
		return fmt.Errorf("pebble flush: %w", err)
	}
	return p.db.Close()
}

func decodeMetric(v []byte) (models.WindowedMetric, error) {
	var m models.WindowedMetric
	if err := json.Unmarshal(v, &m); err != nil {
		return models.WindowedMetric{}, fmt.Errorf("decode window: %w", err)
	}
	return m, nil
}
