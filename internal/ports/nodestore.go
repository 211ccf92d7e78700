package ports

import (
	"github.com/drover-io/drover/internal/domain"
)

// NodeStore is the durable graph boundary. Update is optimistic: it succeeds
// only if the stored version still matches node.Version, then bumps it.
// Nodes are never deleted; replacement marks the old attempt superseded.
type NodeStore interface {
	Create(node *domain.Node) error
	Get(id int64) (*domain.Node, error)
	GetByFullname(fullname string) (*domain.Node, error)
	Update(node *domain.Node) error

	Children(parentID int64) ([]*domain.Node, error)
	// ActiveByName returns the newest non-superseded sibling of parentID's
	// children carrying the given short name. Prerequisite gating resolves
	// through this lookup, so a dependent whose prerequisite was replaced
	// follows the replacement automatically.
	ActiveByName(parentID int64, name string) (*domain.Node, error)
	// Reparent atomically moves a child under a new parent, rewriting the
	// child index alongside the node record.
	Reparent(child *domain.Node, newParentID int64) error
	Roots() ([]*domain.Node, error)

	AppendDiagnostic(node *domain.Node, message string) error
	Diagnostics(nodeID int64) ([]*domain.Diagnostic, error)
}
