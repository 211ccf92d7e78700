package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/drover-io/drover/internal/adapters/expander"
	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// Engine advances one node by exactly one transition per invocation. It owns
// the shared FSM skeleton — prerequisite gating, transition legality, error
// classification, retry budgets — and delegates the kind-specific side
// effects to the handler resolved from the node's template.
type Engine struct {
	store    ports.NodeStore
	queue    ports.WorkQueue
	resolver ports.TemplateResolver
	registry ports.HandlerRegistry
	batch    ports.BatchBackend
	catalog  ports.Catalog
	expander *expander.Expander
	retry    domain.RetryConfig
	logger   *slog.Logger
}

func New(store ports.NodeStore, queue ports.WorkQueue, resolver ports.TemplateResolver, registry ports.HandlerRegistry, batch ports.BatchBackend, catalog ports.Catalog, exp *expander.Expander, retry domain.RetryConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		queue:    queue,
		resolver: resolver,
		registry: registry,
		batch:    batch,
		catalog:  catalog,
		expander: exp,
		retry:    retry,
		logger:   logger.With("component", "fsm-engine"),
	}
}

// StepResult tells the scheduler what to do with the queue entry after one
// FSM step: delete it (Done), or release it for a later cycle, bumping the
// retry counter first when a transient failure was absorbed.
type StepResult struct {
	Node      *domain.Node
	Done      bool
	RetryBump bool
}

// Step executes one transition for the node behind a claimed queue entry.
// It never returns an error for anything a node can absorb: handler failures
// are classified into the node's own status and diagnostics, and a lost
// optimistic write simply releases the entry for re-reading.
func (e *Engine) Step(ctx context.Context, entry *domain.QueueEntry) (StepResult, error) {
	node, err := e.store.Get(entry.NodeID)
	if err != nil {
		if err == domain.ErrNodeNotFound {
			return StepResult{Done: true}, nil
		}
		return StepResult{}, err
	}

	if node.Superseded || node.Status == domain.StatusArchived {
		return StepResult{Node: node, Done: true}, nil
	}

	switch node.Status {
	case domain.StatusWaiting:
		return e.stepWaiting(node)
	case domain.StatusReady, domain.StatusPrepared, domain.StatusRunning:
		return e.stepHandled(ctx, node, entry)
	default:
		// Reviewable and the terminal states hold no scheduler work;
		// operator actions re-enqueue as needed.
		return StepResult{Node: node, Done: true}, nil
	}
}

// stepWaiting gates the node on its prerequisites. A node with unsatisfied
// prerequisites stays waiting no matter how many times it is claimed.
func (e *Engine) stepWaiting(node *domain.Node) (StepResult, error) {
	met, err := e.prerequisitesMet(node)
	if err != nil {
		return StepResult{}, err
	}
	if !met {
		return StepResult{Node: node}, nil
	}
	return e.persist(node, ports.Outcome{Status: domain.StatusReady, Requeue: true})
}

func (e *Engine) stepHandled(ctx context.Context, node *domain.Node, entry *domain.QueueEntry) (StepResult, error) {
	tmpl, err := e.resolveTemplate(node)
	if err != nil {
		return e.absorb(node, entry, err)
	}

	handlerID := node.Handler
	if handlerID == "" {
		handlerID = tmpl.Handler
	}
	handler, err := e.registry.Resolve(handlerID)
	if err != nil {
		return e.absorb(node, entry, err)
	}

	tk := &ports.Toolkit{
		Store:    e.store,
		Queue:    e.queue,
		Resolver: e.resolver,
		Batch:    e.batch,
		Catalog:  e.catalog,
		Template: tmpl,
		Retry:    e.retry,
	}

	outcome, err := e.invoke(ctx, handler, node, tk)
	if err != nil {
		return e.absorb(node, entry, err)
	}
	return e.persist(node, outcome)
}

// invoke dispatches to the handler method matching the node's position in
// the lifecycle, converting a panic into an error at the task boundary so a
// misbehaving handler can never take the scheduler down.
func (e *Engine) invoke(ctx context.Context, handler ports.Handler, node *domain.Node, tk *ports.Toolkit) (outcome ports.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic on %s: %v", node.Fullname, r)
		}
	}()

	switch node.Status {
	case domain.StatusReady:
		return handler.Prepare(ctx, node, tk)
	case domain.StatusPrepared:
		return handler.Advance(ctx, node, tk)
	case domain.StatusRunning:
		return handler.Check(ctx, node, tk)
	}
	return ports.Outcome{}, fmt.Errorf("no handler method for status %s", node.Status)
}

// absorb classifies a handler error into the node's own state per the error
// taxonomy. Only storage-level failures propagate to the scheduler.
func (e *Engine) absorb(node *domain.Node, entry *domain.QueueEntry, cause error) (StepResult, error) {
	switch {
	case domain.IsConfigError(cause):
		return e.fail(node, "configuration: "+cause.Error())

	case domain.IsTransient(cause):
		budget := node.ChildConfig.MaxRetries
		if budget == 0 {
			budget = e.retry.DefaultBudget
		}
		if entry.Retries < budget {
			e.logger.Warn("transient failure, will retry",
				"fullname", node.Fullname,
				"retries", entry.Retries,
				"budget", budget,
				"error", cause)
			return StepResult{Node: node, RetryBump: true}, nil
		}
		return e.fail(node, fmt.Sprintf("retry budget (%d) exhausted: %v", budget, cause))

	case domain.IsStall(cause):
		return e.persist(node, ports.Outcome{
			Status:     domain.StatusRunning,
			Blocked:    true,
			Diagnostic: cause.Error(),
			Requeue:    true,
		})

	case domain.IsWorkFailure(cause):
		return e.fail(node, cause.Error())

	default:
		return e.fail(node, "unexpected handler error: "+cause.Error())
	}
}

func (e *Engine) fail(node *domain.Node, diagnostic string) (StepResult, error) {
	return e.persist(node, ports.Outcome{Status: domain.StatusFailed, Diagnostic: diagnostic})
}

// persist applies an outcome to the node under optimistic concurrency. A
// version mismatch means another daemon moved the node first; the entry is
// released unchanged and the next claim re-reads.
func (e *Engine) persist(node *domain.Node, outcome ports.Outcome) (StepResult, error) {
	if outcome.Status != node.Status && !domain.CanTransition(node.Status, outcome.Status) {
		diag := fmt.Sprintf("illegal transition %s -> %s proposed by handler", node.Status, outcome.Status)
		e.logger.Error("illegal transition", "fullname", node.Fullname, "from", node.Status, "to", outcome.Status)
		outcome = ports.Outcome{Status: domain.StatusFailed, Diagnostic: diag}
		if !domain.CanTransition(node.Status, domain.StatusFailed) {
			return StepResult{Node: node, Done: true}, nil
		}
	}

	from := node.Status
	node.Status = outcome.Status
	node.Blocked = outcome.Blocked

	if err := e.store.Update(node); err != nil {
		if domain.IsVersionMismatch(err) {
			e.logger.Debug("lost optimistic update, releasing entry", "fullname", node.Fullname)
			return StepResult{Node: node}, nil
		}
		return StepResult{}, err
	}

	if outcome.Diagnostic != "" {
		if err := e.store.AppendDiagnostic(node, outcome.Diagnostic); err != nil {
			e.logger.Error("failed to record diagnostic", "fullname", node.Fullname, "error", err)
		}
	}

	if from != node.Status {
		e.logger.Info("node transitioned",
			"fullname", node.Fullname,
			"from", from.String(),
			"to", node.Status.String(),
			"blocked", node.Blocked,
			"children", len(outcome.NewChildren))
	}

	done := !outcome.Requeue
	return StepResult{Node: node, Done: done}, nil
}

// prerequisitesMet reports whether every prerequisite resolves to a sibling
// in terminal success. Prerequisites are sibling-only, so each reference is
// resolved against the node's own parent to the newest non-superseded attempt
// of that short name; a dependent whose prerequisite was replaced follows the
// replacement automatically.
func (e *Engine) prerequisitesMet(node *domain.Node) (bool, error) {
	for _, prereq := range node.Prerequisites {
		dep, err := e.store.ActiveByName(node.ParentID, domain.ShortName(prereq))
		if err != nil {
			if err == domain.ErrNodeNotFound {
				return false, nil
			}
			return false, err
		}
		if dep.Status != domain.StatusAccepted && dep.Status != domain.StatusArchived {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) resolveTemplate(node *domain.Node) (*domain.Template, error) {
	root := node
	if node.Kind != domain.KindCampaign {
		var err error
		root, err = e.store.GetByFullname(domain.CampaignName(node.Fullname))
		if err != nil {
			return nil, domain.NewTransientError("load campaign root", err)
		}
	}

	spec, bindings, err := domain.CampaignOrigin(root)
	if err != nil {
		return nil, err
	}

	if node.Kind == domain.KindCampaign {
		return e.resolver.Campaign(spec, bindings)
	}
	return e.resolver.Block(domain.CampaignName(node.Fullname), spec, bindings, node.Block)
}
