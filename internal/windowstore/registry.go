package windowstore

import (
	"sync"

	"pizzastream/pkg/metrics"
)

// Registry hands out the window store once it is ready. Until then Store
// returns ErrNotReady and Ready stays open.
type Registry struct {
	mu    sync.RWMutex
	store Store
	ready chan struct{}
	once  sync.Once
}

func NewRegistry() *Registry {
	metrics.SetWindowStoreReady(false)
	return &Registry{ready: make(chan struct{})}
}

// MarkReady publishes store. Only the first call has an effect.
func (r *Registry) MarkReady(store Store) {
	r.once.Do(func() {
		r.mu.Lock()
		r.store = store
		r.mu.Unlock()
		close(r.ready)
		metrics.SetWindowStoreReady(true)
	})
}

// Ready is closed once MarkReady has been called.
func (r *Registry) Ready() <-chan struct{} {
	return r.ready
}

func (r *Registry) Store() (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.store == nil {
		return nil, ErrNotReady
	}
	return r.store, nil
}
