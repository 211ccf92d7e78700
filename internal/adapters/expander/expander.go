package expander

import (
	"fmt"
	"log/slog"

	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// Expander creates, splits, retries, and replaces child nodes. It persists
// what it creates and enqueues it for scheduling; the graph itself is the
// record of what happened, so nothing here is ever deleted.
type Expander struct {
	store  ports.NodeStore
	queue  ports.WorkQueue
	logger *slog.Logger
}

func New(store ports.NodeStore, queue ports.WorkQueue, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{
		store:  store,
		queue:  queue,
		logger: logger.With("component", "expander"),
	}
}

// Split expands one element node into children according to its child
// config: no_split creates exactly one child, split_by_vals one child per
// value, split_by_query min_groups children each owning a distinct slice of
// the parent's data selector. Each child gets a distinct query fragment and a
// distinct collections-namespace segment.
func (e *Expander) Split(parent *domain.Node, block string, tmpl *domain.Template) ([]*domain.Node, error) {
	kind := parent.Kind.ChildKind()
	if kind == "" {
		return nil, domain.NewConfigError("node kind " + string(parent.Kind) + " cannot have children")
	}

	cfg := parent.ChildConfig
	var fragments []string
	switch cfg.SplitMethod {
	case domain.SplitNone, "":
		fragments = []string{cfg.SplitQuery}
	case domain.SplitByVals:
		if len(cfg.SplitVals) == 0 {
			return nil, domain.NewConfigError("split_by_vals requires split_vals on " + parent.Fullname)
		}
		fragments = append(fragments, cfg.SplitVals...)
	case domain.SplitByQuery:
		n := cfg.MinGroups
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			fragments = append(fragments, fmt.Sprintf("(%s) AND (slice = %d OF %d)", cfg.SplitQuery, i, n))
		}
	default:
		return nil, domain.NewConfigError(fmt.Sprintf("unknown split_method %q on %s", cfg.SplitMethod, parent.Fullname))
	}

	children := make([]*domain.Node, 0, len(fragments))
	for i, fragment := range fragments {
		name := fmt.Sprintf("%s%02d", shortPrefix(kind), i)
		child, err := e.createChild(parent, kind, name, block, tmpl, nil)
		if err != nil {
			return nil, err
		}
		if child == nil {
			continue
		}
		if fragment != "" {
			if child.Data == nil {
				child.Data = make(map[string]any)
			}
			child.Data["query"] = fragment
			if err := e.store.Update(child); err != nil {
				return nil, err
			}
		}
		children = append(children, child)
	}
	return children, nil
}

// Scripts creates one script child per declaration, in order. Declared
// prerequisites reference sibling short names and are stored as fullnames.
func (e *Expander) Scripts(parent *domain.Node, tmpl *domain.Template, decls []domain.ScriptDecl) ([]*domain.Node, error) {
	children := make([]*domain.Node, 0, len(decls))
	for _, decl := range decls {
		prereqs := make([]string, 0, len(decl.Prerequisites))
		for _, sibling := range decl.Prerequisites {
			prereqs = append(prereqs, domain.JoinPath(parent.Fullname, sibling))
		}
		child, err := e.createChild(parent, domain.KindScript, decl.Name, tmpl.Block, tmpl, prereqs)
		if err != nil {
			return nil, err
		}
		if child == nil {
			continue
		}
		if decl.Handler != "" {
			child.Handler = decl.Handler
			if err := e.store.Update(child); err != nil {
				return nil, err
			}
		}
		children = append(children, child)
	}
	return children, nil
}

// Steps creates campaign step children from the specification's ordered
// declarations, carrying each step's declared prerequisites.
func (e *Expander) Steps(parent *domain.Node, tmpl *domain.Template, resolve func(block string) (*domain.Template, error)) ([]*domain.Node, error) {
	children := make([]*domain.Node, 0, len(tmpl.Steps))
	for _, decl := range tmpl.Steps {
		stepTmpl, err := resolve(decl.Block)
		if err != nil {
			return nil, err
		}
		prereqs := make([]string, 0, len(decl.Prerequisites))
		for _, sibling := range decl.Prerequisites {
			prereqs = append(prereqs, domain.JoinPath(parent.Fullname, sibling))
		}
		child, err := e.createChild(parent, domain.KindStep, decl.Name, decl.Block, stepTmpl, prereqs)
		if err != nil {
			return nil, err
		}
		if child == nil {
			continue
		}
		children = append(children, child)
	}
	return children, nil
}

// Retry resets a failed node to waiting for re-execution in place. Valid
// only for idempotent effects; the caller enforces the retry budget.
func (e *Expander) Retry(node *domain.Node) error {
	if node.Status != domain.StatusFailed {
		return domain.ErrInvalidTransition
	}
	node.Status = domain.StatusWaiting
	node.Blocked = false
	if err := e.store.Update(node); err != nil {
		return err
	}
	e.logger.Info("node reset for retry", "fullname", node.Fullname, "attempt", node.Attempt)
	return e.queue.Enqueue(node.ID, node.Fullname)
}

// Replace creates a fresh sibling with the same short name and role, marks
// the failed node superseded, and enqueues the replacement in waiting. The
// failed attempt keeps its record and diagnostics; dependents that name the
// old short name resolve to the replacement because prerequisite lookups
// always follow the newest non-superseded sibling.
func (e *Expander) Replace(failed *domain.Node) (*domain.Node, error) {
	if failed.Status != domain.StatusFailed && failed.Status != domain.StatusRejected {
		return nil, domain.ErrInvalidTransition
	}

	failed.Superseded = true
	if err := e.store.Update(failed); err != nil {
		return nil, err
	}

	fresh := &domain.Node{
		Kind:          failed.Kind,
		Name:          failed.Name,
		Fullname:      failed.Fullname,
		ParentID:      failed.ParentID,
		Status:        domain.StatusWaiting,
		Attempt:       failed.Attempt + 1,
		Handler:       failed.Handler,
		Block:         failed.Block,
		Collections:   cloneStringMap(failed.Collections),
		Data:          cloneDataMap(failed.Data),
		ChildConfig:   failed.ChildConfig,
		Prerequisites: append([]string(nil), failed.Prerequisites...),
	}
	// Runtime residue from the failed attempt must not leak into the
	// replacement.
	delete(fresh.Data, "batch_handle")

	if err := e.store.Create(fresh); err != nil {
		return nil, err
	}

	// The failed attempt's surviving children carry real state and issued
	// work; the replacement adopts them instead of re-creating the subtree.
	// Its own preparation then skips their fullnames and aggregation finds
	// them under the new parent.
	children, err := e.store.Children(failed.ID)
	if err != nil {
		return nil, err
	}
	adopted := 0
	for _, child := range children {
		if child.Superseded {
			continue
		}
		if err := e.store.Reparent(child, fresh.ID); err != nil {
			return nil, err
		}
		adopted++
	}

	if err := e.queue.Enqueue(fresh.ID, fresh.Fullname); err != nil {
		return nil, err
	}

	e.logger.Info("node replaced",
		"fullname", failed.Fullname,
		"old_id", failed.ID,
		"new_id", fresh.ID,
		"attempt", fresh.Attempt,
		"adopted_children", adopted)
	return fresh, nil
}

// createChild persists and enqueues one child node. If a child with the same
// fullname already exists the existing node is honored and nil is returned,
// keeping handler preparation idempotent under at-least-once re-processing.
func (e *Expander) createChild(parent *domain.Node, kind domain.NodeKind, name, block string, tmpl *domain.Template, prereqs []string) (*domain.Node, error) {
	fullname := domain.JoinPath(parent.Fullname, name)
	if existing, err := e.store.GetByFullname(fullname); err == nil && existing != nil {
		return nil, nil
	}

	child := &domain.Node{
		Kind:          kind,
		Name:          name,
		Fullname:      fullname,
		ParentID:      parent.ID,
		Status:        domain.StatusWaiting,
		Handler:       tmpl.Handler,
		Block:         block,
		Collections:   cloneStringMap(tmpl.Collections),
		Data:          cloneDataMap(tmpl.Data),
		ChildConfig:   tmpl.ChildConfig,
		Prerequisites: prereqs,
	}
	if child.Collections == nil {
		child.Collections = make(map[string]string)
	}
	// Each level publishes its own name under its kind and extends the
	// cumulative segment, so descendants of different split branches resolve
	// distinct collection names.
	child.Collections[string(kind)] = name
	segment := name
	if parentSegment := parent.Collections["segment"]; parentSegment != "" {
		segment = domain.JoinPath(parentSegment, name)
	}
	child.Collections["segment"] = segment

	if err := e.store.Create(child); err != nil {
		return nil, err
	}
	if err := e.queue.Enqueue(child.ID, child.Fullname); err != nil {
		return nil, err
	}
	return child, nil
}

func shortPrefix(kind domain.NodeKind) string {
	switch kind {
	case domain.KindStep:
		return "step"
	case domain.KindGroup:
		return "group"
	case domain.KindJob:
		return "job"
	case domain.KindScript:
		return "script"
	}
	return "n"
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneDataMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
