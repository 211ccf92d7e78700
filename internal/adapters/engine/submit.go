package engine

import (
	"context"

	"github.com/drover-io/drover/internal/domain"
)

// SubmitCampaign turns an operator submission document into one campaign
// node plus its resolved template. Resolution failures are fatal: no node is
// created for a specification that cannot be merged.
func (e *Engine) SubmitCampaign(ctx context.Context, doc *domain.SubmissionDoc) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := domain.ValidateName(doc.Campaign); err != nil {
		return nil, err
	}

	tmpl, err := e.resolver.Campaign(doc.Specification, doc.Bindings)
	if err != nil {
		return nil, err
	}
	if tmpl.Handler == "" {
		return nil, domain.NewConfigError("specification " + doc.Specification + " resolves to no campaign handler")
	}
	if _, err := e.registry.Resolve(tmpl.Handler); err != nil {
		return nil, err
	}

	data := make(map[string]any, len(tmpl.Data)+len(doc.Data)+2)
	for k, v := range tmpl.Data {
		data[k] = v
	}
	for k, v := range doc.Data {
		data[k] = v
	}
	data["specification"] = doc.Specification
	if len(doc.Bindings) > 0 {
		bindings := make(map[string]any, len(doc.Bindings))
		for k, v := range doc.Bindings {
			bindings[k] = v
		}
		data["bindings"] = bindings
	}

	collections := make(map[string]string, len(tmpl.Collections)+1)
	for k, v := range tmpl.Collections {
		collections[k] = v
	}
	collections["campaign"] = doc.Campaign

	node := &domain.Node{
		Kind:        domain.KindCampaign,
		Name:        doc.Campaign,
		Fullname:    doc.Campaign,
		Status:      domain.StatusWaiting,
		Handler:     tmpl.Handler,
		Block:       tmpl.Block,
		Collections: collections,
		Data:        data,
		ChildConfig: tmpl.ChildConfig,
	}

	if err := e.store.Create(node); err != nil {
		return nil, err
	}
	if err := e.queue.Enqueue(node.ID, node.Fullname); err != nil {
		return nil, err
	}

	e.logger.Info("campaign submitted",
		"campaign", doc.Campaign,
		"specification", doc.Specification,
		"steps", len(tmpl.Steps))
	return node, nil
}
