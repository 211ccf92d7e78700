package registry

import (
	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// checkChildren rolls child status up into the parent's own transition. The
// parent stays running while any non-superseded child is unfinished and
// becomes accepted only when every one of them is. A failed or blocked child
// never fails the parent; it surfaces as a needs-attention count and the
// unrelated branches keep advancing.
func checkChildren(node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	children, err := tk.Store.Children(node.ID)
	if err != nil {
		return ports.Outcome{}, domain.NewTransientError("list children", err)
	}

	active := activeChildren(children)
	if len(active) == 0 {
		// Children are created on the first productive transition; a
		// running parent without any is a configuration defect.
		return ports.Outcome{
			Status:     domain.StatusFailed,
			Diagnostic: "running element has no children",
		}, nil
	}

	accepted := 0
	attention := 0
	for _, child := range active {
		switch {
		case child.Status == domain.StatusAccepted || child.Status == domain.StatusArchived:
			accepted++
		case child.Status == domain.StatusFailed || child.Status == domain.StatusRejected:
			attention++
		case child.Blocked:
			attention++
		}
	}

	if node.Data == nil {
		node.Data = make(map[string]any)
	}
	node.Data["needs_attention"] = attention

	if accepted == len(active) {
		return ports.Outcome{Status: domain.StatusAccepted}, nil
	}
	return ports.Outcome{Status: domain.StatusRunning, Requeue: true}, nil
}

func activeChildren(children []*domain.Node) []*domain.Node {
	active := children[:0:0]
	for _, child := range children {
		if !child.Superseded {
			active = append(active, child)
		}
	}
	return active
}

// collectionsChain walks the ancestor chain root-first and returns each
// node's collections map, ready for placeholder resolution.
func collectionsChain(node *domain.Node, tk *ports.Toolkit) ([]map[string]string, error) {
	var chain []map[string]string
	current := node
	for {
		chain = append([]map[string]string{current.Collections}, chain...)
		if current.ParentID == 0 {
			return chain, nil
		}
		parent, err := tk.Store.Get(current.ParentID)
		if err != nil {
			return nil, domain.NewTransientError("load ancestor", err)
		}
		current = parent
	}
}

// resolveNodeCollections materializes the node's collections against its
// ancestor chain and persists them, so the external names a node worked with
// stay queryable after the fact.
func resolveNodeCollections(node *domain.Node, tk *ports.Toolkit) error {
	chain, err := collectionsChain(node, tk)
	if err != nil {
		return err
	}
	resolved, err := domain.ResolveCollections(chain)
	if err != nil {
		return err
	}
	node.Collections = resolved
	return nil
}
