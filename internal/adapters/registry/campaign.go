package registry

import (
	"context"

	"github.com/drover-io/drover/internal/adapters/expander"
	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// CampaignHandler drives the root of the graph. Its first productive
// transition materializes the specification's step declarations as step
// nodes; afterwards it only aggregates.
type CampaignHandler struct {
	expander *expander.Expander
}

func (h *CampaignHandler) Prepare(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	spec, bindings, err := domain.CampaignOrigin(node)
	if err != nil {
		return ports.Outcome{}, err
	}

	if len(tk.Template.Steps) == 0 {
		return ports.Outcome{}, domain.NewConfigError("specification " + spec + " declares no steps")
	}

	children, err := h.expander.Steps(node, tk.Template, func(block string) (*domain.Template, error) {
		return tk.Resolver.Block(domain.CampaignName(node.Fullname), spec, bindings, block)
	})
	if err != nil {
		return ports.Outcome{}, err
	}

	return ports.Outcome{Status: domain.StatusPrepared, NewChildren: children, Requeue: true}, nil
}

func (h *CampaignHandler) Advance(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	return ports.Outcome{Status: domain.StatusRunning, Requeue: true}, nil
}

func (h *CampaignHandler) Check(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	return checkChildren(node, tk)
}
