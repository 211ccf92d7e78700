package engine

import (
	"github.com/drover-io/drover/internal/domain"
)

// Operator actions are the only mutations that come from outside a node's
// own handler. They act on the newest attempt behind a fullname and re-enter
// the scheduling loop by enqueueing whatever they made runnable again.

// Accept resolves a reviewable node into acceptance.
func (e *Engine) Accept(fullname string) (*domain.Node, error) {
	return e.operatorTransition(fullname, domain.StatusReviewable, domain.StatusAccepted, "accepted by operator")
}

// Reject resolves a reviewable node into failure. A node that has not yet
// started running may also be rejected outright, which is terminal and never
// auto-retried.
func (e *Engine) Reject(fullname, reason string) (*domain.Node, error) {
	node, err := e.load(fullname)
	if err != nil {
		return nil, err
	}

	diag := "rejected by operator"
	if reason != "" {
		diag += ": " + reason
	}

	switch {
	case node.Status == domain.StatusReviewable:
		node.Status = domain.StatusFailed
	case node.Status.BeforeRunning():
		node.Status = domain.StatusRejected
	default:
		return nil, domain.ErrInvalidTransition
	}

	if err := e.store.Update(node); err != nil {
		return nil, err
	}
	if err := e.store.AppendDiagnostic(node, diag); err != nil {
		return nil, err
	}
	e.logger.Info("node rejected", "fullname", node.Fullname, "status", node.Status.String())
	return node, nil
}

// Reset returns a failed node to waiting for re-execution in place.
func (e *Engine) Reset(fullname string) (*domain.Node, error) {
	node, err := e.load(fullname)
	if err != nil {
		return nil, err
	}
	if err := e.expander.Retry(node); err != nil {
		return nil, err
	}
	return node, nil
}

// Replace supersedes a failed node with a fresh attempt under the same name.
func (e *Engine) Replace(fullname string) (*domain.Node, error) {
	node, err := e.load(fullname)
	if err != nil {
		return nil, err
	}
	return e.expander.Replace(node)
}

// Unblock acknowledges a stalled node. With fail=false the blocked flag is
// cleared and polling resumes; with fail=true the node is marked failed.
func (e *Engine) Unblock(fullname string, fail bool) (*domain.Node, error) {
	node, err := e.load(fullname)
	if err != nil {
		return nil, err
	}
	if !node.Blocked || node.Status != domain.StatusRunning {
		return nil, domain.ErrInvalidTransition
	}

	if fail {
		node.Status = domain.StatusFailed
		node.Blocked = false
		if err := e.store.Update(node); err != nil {
			return nil, err
		}
		if err := e.store.AppendDiagnostic(node, "stalled work marked failed by operator"); err != nil {
			return nil, err
		}
		return node, nil
	}

	node.Blocked = false
	if err := e.store.Update(node); err != nil {
		return nil, err
	}
	return node, e.queue.Enqueue(node.ID, node.Fullname)
}

// Archive freezes a finished node permanently.
func (e *Engine) Archive(fullname string) (*domain.Node, error) {
	node, err := e.load(fullname)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(node.Status, domain.StatusArchived) {
		return nil, domain.ErrInvalidTransition
	}
	node.Status = domain.StatusArchived
	if err := e.store.Update(node); err != nil {
		return nil, err
	}
	return node, nil
}

// Diagnostics lists a node's accumulated failure records, oldest first.
func (e *Engine) Diagnostics(fullname string) ([]*domain.Diagnostic, error) {
	node, err := e.load(fullname)
	if err != nil {
		return nil, err
	}
	return e.store.Diagnostics(node.ID)
}

func (e *Engine) operatorTransition(fullname string, from, to domain.Status, diag string) (*domain.Node, error) {
	node, err := e.load(fullname)
	if err != nil {
		return nil, err
	}
	if node.Status != from {
		return nil, domain.ErrInvalidTransition
	}
	node.Status = to
	if err := e.store.Update(node); err != nil {
		return nil, err
	}
	if diag != "" {
		if err := e.store.AppendDiagnostic(node, diag); err != nil {
			return nil, err
		}
	}
	e.logger.Info("operator transition", "fullname", fullname, "from", from.String(), "to", to.String())
	return node, nil
}

func (e *Engine) load(fullname string) (*domain.Node, error) {
	node, err := e.store.GetByFullname(fullname)
	if err != nil {
		return nil, err
	}
	return node, nil
}
