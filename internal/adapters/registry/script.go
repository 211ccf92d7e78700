package registry

import (
	"context"

	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

const batchHandleKey = "batch_handle"

// BatchScriptHandler runs a script by submitting rendered work to the batch
// workflow backend and polling it to completion. Submission is guarded by
// the recorded handle, so re-processing a claim after a daemon crash never
// issues the same work twice.
type BatchScriptHandler struct{}

func (h *BatchScriptHandler) Prepare(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	if err := resolveNodeCollections(node, tk); err != nil {
		return ports.Outcome{}, err
	}

	if query, ok := node.Data["input_query"].(string); ok && query != "" {
		if input, ok := node.Collections["input"]; ok {
			if err := tk.Catalog.CreateTagged(ctx, input, query); err != nil {
				return ports.Outcome{}, domain.NewTransientError("create tagged input collection", err)
			}
		}
	}
	return ports.Outcome{Status: domain.StatusPrepared, Requeue: true}, nil
}

func (h *BatchScriptHandler) Advance(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	if handle, ok := node.Data[batchHandleKey].(string); ok && handle != "" {
		// Work was already issued by a previous attempt at this claim.
		return ports.Outcome{Status: domain.StatusRunning, Requeue: true}, nil
	}

	handle, err := tk.Batch.Submit(ctx, ports.SubmitDescription{
		Fullname:    node.Fullname,
		Payload:     node.Data,
		Collections: node.Collections,
	})
	if err != nil {
		return ports.Outcome{}, domain.NewTransientError("batch submit", err)
	}

	if node.Data == nil {
		node.Data = make(map[string]any)
	}
	node.Data[batchHandleKey] = handle
	return ports.Outcome{Status: domain.StatusRunning, Requeue: true}, nil
}

func (h *BatchScriptHandler) Check(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	handle, _ := node.Data[batchHandleKey].(string)
	if handle == "" {
		return ports.Outcome{}, domain.NewConfigError("running batch script has no recorded handle")
	}

	report, err := tk.Batch.Report(ctx, handle)
	if err != nil {
		return ports.Outcome{}, domain.NewTransientError("batch report", err)
	}

	switch {
	case report.Held > 0:
		return ports.Outcome{
			Status:     domain.StatusRunning,
			Blocked:    true,
			Diagnostic: "batch run has held tasks",
			Requeue:    true,
		}, nil
	case !report.Done:
		return ports.Outcome{Status: domain.StatusRunning, Requeue: true}, nil
	case report.FinalSucceeded && report.Failed == 0:
		return ports.Outcome{Status: domain.StatusAccepted}, nil
	case report.FinalSucceeded:
		// The final aggregation succeeded over partial task failures;
		// acceptance needs an operator's eye.
		return ports.Outcome{
			Status:     domain.StatusReviewable,
			Diagnostic: "batch run finished with failed tasks under a successful final aggregation",
		}, nil
	default:
		return ports.Outcome{}, domain.NewWorkFailureError(handle, "batch run failed")
	}
}

// ChainScriptHandler creates a chained collection out of member collections.
// The effect is purely local, so preparation resolves names and advancement
// performs the chaining synchronously and lands terminal.
type ChainScriptHandler struct{}

func (h *ChainScriptHandler) Prepare(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	if err := resolveNodeCollections(node, tk); err != nil {
		return ports.Outcome{}, err
	}
	return ports.Outcome{Status: domain.StatusPrepared, Requeue: true}, nil
}

func (h *ChainScriptHandler) Advance(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	output, ok := node.Collections["output"]
	if !ok {
		return ports.Outcome{}, domain.NewConfigError("chain script " + node.Fullname + " has no output collection")
	}

	members := memberCollections(node)
	if err := tk.Catalog.CreateChained(ctx, output, members); err != nil {
		return ports.Outcome{}, domain.NewTransientError("create chained collection", err)
	}
	return ports.Outcome{Status: domain.StatusAccepted}, nil
}

func (h *ChainScriptHandler) Check(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	return ports.Outcome{Status: domain.StatusAccepted}, nil
}

// TagScriptHandler materializes a tagged collection from a data query,
// another purely local effect.
type TagScriptHandler struct{}

func (h *TagScriptHandler) Prepare(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	if err := resolveNodeCollections(node, tk); err != nil {
		return ports.Outcome{}, err
	}
	return ports.Outcome{Status: domain.StatusPrepared, Requeue: true}, nil
}

func (h *TagScriptHandler) Advance(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	output, ok := node.Collections["output"]
	if !ok {
		return ports.Outcome{}, domain.NewConfigError("tag script " + node.Fullname + " has no output collection")
	}
	query, _ := node.Data["query"].(string)

	if err := tk.Catalog.CreateTagged(ctx, output, query); err != nil {
		return ports.Outcome{}, domain.NewTransientError("create tagged collection", err)
	}
	return ports.Outcome{Status: domain.StatusAccepted}, nil
}

func (h *TagScriptHandler) Check(ctx context.Context, node *domain.Node, tk *ports.Toolkit) (ports.Outcome, error) {
	return ports.Outcome{Status: domain.StatusAccepted}, nil
}

func memberCollections(node *domain.Node) []string {
	var members []string
	if raw, ok := node.Data["members"].([]any); ok {
		for _, member := range raw {
			if s, ok := member.(string); ok {
				members = append(members, s)
			}
		}
	}
	if len(members) == 0 {
		if run, ok := node.Collections["run"]; ok {
			members = append(members, run)
		}
	}
	return members
}
