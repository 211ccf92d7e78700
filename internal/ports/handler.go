package ports

import (
	"context"

	"github.com/drover-io/drover/internal/domain"
)

// Toolkit bundles the collaborators a handler may touch while executing one
// transition. Handlers never reach around it to shared state.
type Toolkit struct {
	Store    NodeStore
	Queue    WorkQueue
	Resolver TemplateResolver
	Batch    BatchBackend
	Catalog  Catalog
	Template *domain.Template
	Retry    domain.RetryConfig
}

// Outcome is the result of one FSM step. Status is the proposed next status;
// NewChildren are nodes the handler created and wants enqueued; Requeue keeps
// the node's queue entry alive for another poll cycle.
type Outcome struct {
	Status      domain.Status
	Blocked     bool
	Diagnostic  string
	NewChildren []*domain.Node
	Requeue     bool
}

// Handler is the per-kind behavior contract. The engine calls exactly one
// method per transition: Prepare for ready->prepared, Advance for
// prepared->running, Check for running->terminal polling. Handlers must be
// idempotent: a crashed daemon's claim is re-processed after lease expiry.
type Handler interface {
	Prepare(ctx context.Context, node *domain.Node, tk *Toolkit) (Outcome, error)
	Advance(ctx context.Context, node *domain.Node, tk *Toolkit) (Outcome, error)
	Check(ctx context.Context, node *domain.Node, tk *Toolkit) (Outcome, error)
}

// HandlerRegistry maps a capability identifier from persisted configuration
// to a behavior implementation. Unknown identifiers fail the node into
// Failed with a configuration diagnostic.
type HandlerRegistry interface {
	Register(id string, handler Handler)
	Resolve(id string) (Handler, error)
}

// TemplateResolver produces fully merged templates. Resolution is
// deterministic for a given specification and bindings, so implementations
// cache by campaign namespace.
type TemplateResolver interface {
	// Campaign resolves the campaign-level template for a specification.
	Campaign(spec string, bindings map[string]string) (*domain.Template, error)
	// Block resolves one spec block within a campaign's namespace.
	Block(campaign, spec string, bindings map[string]string, block string) (*domain.Template, error)
}
