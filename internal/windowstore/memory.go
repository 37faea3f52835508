package windowstore

import (
	"slices"
	"sync"
	"time"

	apperrors "pizzastream/pkg/errors"
	"pizzastream/pkg/models"
)

type MemoryStore struct {
	mu      sync.RWMutex
	starts  []int64 // sorted
	windows map[int64]models.WindowedMetric
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[int64]models.WindowedMetric)}
}

func (s *MemoryStore) Get(start time.Time) (models.WindowedMetric, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return models.WindowedMetric{}, false, apperrors.ErrStoreClosed
	}
	m, ok := s.windows[millis(start)]
	return m, ok, nil
}

func (s *MemoryStore) Put(metric models.WindowedMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apperrors.ErrStoreClosed
	}
	s.put(metric)
	return nil
}

func (s *MemoryStore) PutAll(metrics []models.WindowedMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apperrors.ErrStoreClosed
	}
	for _, m := range metrics {
		s.put(m)
	}
	return nil
}

func (s *MemoryStore) put(metric models.WindowedMetric) {
	key := millis(metric.WindowStart)
	if _, ok := s.windows[key]; !ok {
		i, _ := slices.BinarySearch(s.starts, key)
		s.starts = slices.Insert(s.starts, i, key)
	}
	s.windows[key] = metric
}

func (s *MemoryStore) Fetch(from, to time.Time) ([]models.WindowedMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, apperrors.ErrStoreClosed
	}
	lo, _ := slices.BinarySearch(s.starts, millis(from))
	hi, _ := slices.BinarySearch(s.starts, millis(to))
	if lo >= hi {
		return nil, nil
	}

	out := make([]models.WindowedMetric, 0, hi-lo)
	for _, key := range s.starts[lo:hi] {
		out = append(out, s.windows[key])
	}
	return out, nil
}

func (s *MemoryStore) EvictThrough(start time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, apperrors.ErrStoreClosed
	}
	n, found := slices.BinarySearch(s.starts, millis(start))
	if found {
		n++
	}
	for _, key := range s.starts[:n] {
		delete(s.windows, key)
	}
	s.starts = slices.Delete(s.starts, 0, n)
	return n, nil
}

func (s *MemoryStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.starts), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.windows = nil
	s.starts = nil
	return nil
}
