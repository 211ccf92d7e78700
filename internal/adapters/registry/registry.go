package registry

import (
	"log/slog"
	"sync"

	"github.com/drover-io/drover/internal/adapters/expander"
	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// Registry maps capability identifiers from persisted configuration to
// behavior implementations. The identifier travels with the node's resolved
// template, so behavior stays pluggable at run time.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]ports.Handler
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]ports.Handler),
		logger:   logger.With("component", "handler-registry"),
	}
}

func (r *Registry) Register(id string, handler ports.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = handler
	r.logger.Debug("handler registered", "id", id)
}

func (r *Registry) Resolve(id string) (ports.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[id]
	if !ok {
		return nil, domain.NewConfigError("unknown handler: " + id)
	}
	return handler, nil
}

// NewDefault builds a registry with the built-in kind handlers installed.
func NewDefault(exp *expander.Expander, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register("campaign", &CampaignHandler{expander: exp})
	r.Register("element", &ElementHandler{expander: exp})
	r.Register("job", &JobHandler{expander: exp})
	r.Register("batch_script", &BatchScriptHandler{})
	r.Register("chain_script", &ChainScriptHandler{})
	r.Register("tag_script", &TagScriptHandler{})
	return r
}
