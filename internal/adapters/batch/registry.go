package batch

import (
	"sync"

	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// Backends is a name-keyed set of batch backend implementations, so a
// deployment can select its workflow flavor from configuration.
type Backends struct {
	mu       sync.RWMutex
	backends map[string]ports.BatchBackend
}

func NewBackends() *Backends {
	return &Backends{backends: make(map[string]ports.BatchBackend)}
}

func (r *Backends) Register(backend ports.BatchBackend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[backend.Name()] = backend
}

func (r *Backends) Resolve(name string) (ports.BatchBackend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	backend, ok := r.backends[name]
	if !ok {
		return nil, domain.NewConfigError("unknown batch backend: " + name)
	}
	return backend, nil
}
