package domain

// ScriptDecl declares one script a job runs, in execution order. Prerequisites
// reference sibling script names declared earlier in the same list.
type ScriptDecl struct {
	Name          string   `json:"name" yaml:"name"`
	Handler       string   `json:"handler,omitempty" yaml:"handler,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
}

// SpecBlock is a named, inheritable configuration template. Includes are
// merged depth-first, left to right, with the block's own fields applied last.
type SpecBlock struct {
	Name        string            `json:"name" yaml:"name"`
	Handler     string            `json:"handler,omitempty" yaml:"handler,omitempty"`
	Includes    []string          `json:"includes,omitempty" yaml:"includes,omitempty"`
	Collections map[string]string `json:"collections,omitempty" yaml:"collections,omitempty"`
	Data        map[string]any    `json:"data,omitempty" yaml:"data,omitempty"`
	ChildConfig ChildConfig       `json:"child_config,omitempty" yaml:"child_config,omitempty"`
	Scripts     []ScriptDecl      `json:"scripts,omitempty" yaml:"scripts,omitempty"`
}

// StepDecl names one step of a campaign specification, in declaration order.
type StepDecl struct {
	Name          string   `json:"name" yaml:"name"`
	Block         string   `json:"block" yaml:"block"`
	Prerequisites []string `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
}

// Specification bundles the spec blocks for one campaign flavor. Aliases map
// generic roles ("campaign", "step", "script") to concrete block names so a
// backend flavor can be swapped without touching block definitions.
type Specification struct {
	Name    string            `json:"name" yaml:"name"`
	Aliases map[string]string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Steps   []StepDecl        `json:"steps,omitempty" yaml:"steps,omitempty"`
	Overlay *SpecBlock        `json:"overlay,omitempty" yaml:"overlay,omitempty"`
}

// SpecLibrary is a loaded document set: every specification and block known
// to this installation, keyed by name.
type SpecLibrary struct {
	Specifications map[string]*Specification
	Blocks         map[string]*SpecBlock
}

// Template is a fully merged per-node configuration: alias resolved, includes
// flattened, overlays applied, load-time bindings substituted. Collection
// values may still carry {placeholder} references, resolved per node.
type Template struct {
	Block       string            `json:"block"`
	Handler     string            `json:"handler"`
	Collections map[string]string `json:"collections,omitempty"`
	Data        map[string]any    `json:"data,omitempty"`
	ChildConfig ChildConfig       `json:"child_config"`
	Scripts     []ScriptDecl      `json:"scripts,omitempty"`
	Steps       []StepDecl        `json:"steps,omitempty"`
}

// SubmissionDoc is the operator-supplied document that creates a campaign.
type SubmissionDoc struct {
	Campaign      string            `json:"campaign" yaml:"campaign"`
	Specification string            `json:"specification" yaml:"specification"`
	Bindings      map[string]string `json:"bindings,omitempty" yaml:"bindings,omitempty"`
	Data          map[string]any    `json:"data,omitempty" yaml:"data,omitempty"`
}
