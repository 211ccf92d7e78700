package registry

import (
	"context"

	"github.com/drover-io/drover/internal/adapters/expander"
	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// ElementHandler drives intermediate element nodes (steps and groups). On
// preparation it splits into children of the next kind down according to the
// node's child config; from then on it aggregates child status.
type ElementHandler struct {
	expander *expander.Expander
}

func (h *ElementHandler) Prepare(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	root, err := rootOf(node, tk)
	if err != nil {
		return ports.Outcome{}, err
	}
	spec, bindings, err := domain.CampaignOrigin(root)
	if err != nil {
		return ports.Outcome{}, err
	}

	childRole := string(node.Kind.ChildKind())
	childTmpl, err := tk.Resolver.Block(domain.CampaignName(node.Fullname), spec, bindings, childRole)
	if err != nil {
		return ports.Outcome{}, err
	}

	children, err := h.expander.Split(node, childTmpl.Block, childTmpl)
	if err != nil {
		return ports.Outcome{}, err
	}
	return ports.Outcome{Status: domain.StatusPrepared, NewChildren: children, Requeue: true}, nil
}

func (h *ElementHandler) Advance(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	return ports.Outcome{Status: domain.StatusRunning, Requeue: true}, nil
}

func (h *ElementHandler) Check(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	return checkChildren(node, tk)
}

// JobHandler drives job nodes, whose children are the scripts declared on
// the job's resolved template rather than a split.
type JobHandler struct {
	expander *expander.Expander
}

func (h *JobHandler) Prepare(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	root, err := rootOf(node, tk)
	if err != nil {
		return ports.Outcome{}, err
	}
	spec, bindings, err := domain.CampaignOrigin(root)
	if err != nil {
		return ports.Outcome{}, err
	}

	if len(tk.Template.Scripts) == 0 {
		return ports.Outcome{}, domain.NewConfigError("job block " + node.Block + " declares no scripts")
	}

	scriptTmpl := tk.Template
	if role, ok := root.Data["script_role"].(string); ok && role != "" {
		scriptTmpl, err = tk.Resolver.Block(domain.CampaignName(node.Fullname), spec, bindings, role)
		if err != nil {
			return ports.Outcome{}, err
		}
	} else if tmpl, err := tk.Resolver.Block(domain.CampaignName(node.Fullname), spec, bindings, "script"); err == nil {
		scriptTmpl = tmpl
	}

	children, err := h.expander.Scripts(node, scriptTmpl, tk.Template.Scripts)
	if err != nil {
		return ports.Outcome{}, err
	}
	return ports.Outcome{Status: domain.StatusPrepared, NewChildren: children, Requeue: true}, nil
}

func (h *JobHandler) Advance(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	return ports.Outcome{Status: domain.StatusRunning, Requeue: true}, nil
}

func (h *JobHandler) Check(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	return checkChildren(node, tk)
}

func rootOf(node *domain.Node, tk *ports.Toolkit) (*domain.Node, error) {
	root, err := tk.Store.GetByFullname(domain.CampaignName(node.Fullname))
	if err != nil {
		return nil, domain.NewTransientError("load campaign root", err)
	}
	return root, nil
}
