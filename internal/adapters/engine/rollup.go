package engine

import (
	"github.com/drover-io/drover/internal/domain"
)

// Rollup is a recursive status summary of one subtree, for monitoring
// clients. Superseded attempts are excluded; how a UI colors the numbers is
// policy, not the engine's concern.
type Rollup struct {
	Fullname       string         `json:"fullname"`
	Status         domain.Status  `json:"status"`
	StatusName     string         `json:"status_name"`
	Blocked        bool           `json:"blocked,omitempty"`
	Counts         map[string]int `json:"counts"`
	NeedsAttention int            `json:"needs_attention"`
	Children       []*Rollup      `json:"children,omitempty"`
}

// Status summarizes the subtree rooted at fullname.
func (e *Engine) Status(fullname string) (*Rollup, error) {
	node, err := e.load(fullname)
	if err != nil {
		return nil, err
	}
	return e.rollup(node)
}

// Campaigns lists a summary for every campaign root.
func (e *Engine) Campaigns() ([]*Rollup, error) {
	roots, err := e.store.Roots()
	if err != nil {
		return nil, err
	}
	summaries := make([]*Rollup, 0, len(roots))
	for _, root := range roots {
		if root.Superseded {
			continue
		}
		summary, err := e.rollup(root)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (e *Engine) rollup(node *domain.Node) (*Rollup, error) {
	summary := &Rollup{
		Fullname:   node.Fullname,
		Status:     node.Status,
		StatusName: node.Status.String(),
		Blocked:    node.Blocked,
		Counts:     map[string]int{node.Status.String(): 1},
	}
	if needsAttention(node) {
		summary.NeedsAttention = 1
	}

	children, err := e.store.Children(node.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if child.Superseded {
			continue
		}
		sub, err := e.rollup(child)
		if err != nil {
			return nil, err
		}
		for status, count := range sub.Counts {
			summary.Counts[status] += count
		}
		summary.NeedsAttention += sub.NeedsAttention
		summary.Children = append(summary.Children, sub)
	}
	return summary, nil
}

func needsAttention(node *domain.Node) bool {
	if node.Blocked {
		return true
	}
	return node.Status == domain.StatusFailed || node.Status == domain.StatusRejected
}
