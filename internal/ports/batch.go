package ports

import "context"

// SubmitDescription is the rendered description of one batch submission,
// produced from node data. The engine treats it as opaque apart from the
// identifying fields.
type SubmitDescription struct {
	Fullname    string            `json:"fullname"`
	Payload     map[string]any    `json:"payload,omitempty"`
	Collections map[string]string `json:"collections,omitempty"`
}

// BatchReport is the per-task census of one submitted run.
type BatchReport struct {
	Unknown   int `json:"unknown"`
	Unready   int `json:"unready"`
	Ready     int `json:"ready"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Held      int `json:"held"`
	Pruned    int `json:"pruned"`

	// Done reports whether the workflow has stopped making progress.
	Done bool `json:"done"`
	// FinalSucceeded reports whether the final aggregation task succeeded,
	// which counts as acceptance pending downstream verification even when
	// some tasks failed.
	FinalSucceeded bool `json:"final_succeeded"`
}

func (r BatchReport) Active() int {
	return r.Unready + r.Ready + r.Pending + r.Running
}

// BatchBackend is the external workflow collaborator. Submit returns an
// opaque handle; Report is polled until the run resolves. Implementations are
// selected by name from configuration.
type BatchBackend interface {
	Name() string
	Submit(ctx context.Context, desc SubmitDescription) (handle string, err error)
	Report(ctx context.Context, handle string) (BatchReport, error)
}
