package template

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"dario.cat/mergo"

	"github.com/drover-io/drover/internal/domain"
)

// Resolver merges specification inheritance into concrete per-node templates.
// Resolution is deterministic for a given specification and bindings, so
// merged templates are memoized under the owning campaign's namespace; short
// block names from different campaigns never collide.
type Resolver struct {
	library *domain.SpecLibrary
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*domain.Template
}

func NewResolver(library *domain.SpecLibrary, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		library: library,
		logger:  logger.With("component", "template-resolver"),
		cache:   make(map[string]*domain.Template),
	}
}

// Campaign resolves the campaign-level template for a specification. The
// campaign role alias selects the root block; the specification's step list
// and overlay ride along on the result.
func (r *Resolver) Campaign(spec string, bindings map[string]string) (*domain.Template, error) {
	specification, err := r.specification(spec)
	if err != nil {
		return nil, err
	}

	tmpl, err := r.Block(namespaceFor(spec, bindings), spec, bindings, "campaign")
	if err != nil {
		return nil, err
	}

	out := cloneTemplate(tmpl)
	out.Steps = make([]domain.StepDecl, len(specification.Steps))
	copy(out.Steps, specification.Steps)
	return out, nil
}

// Block resolves one block (or role alias) within a campaign namespace.
func (r *Resolver) Block(campaign, spec string, bindings map[string]string, block string) (*domain.Template, error) {
	specification, err := r.specification(spec)
	if err != nil {
		return nil, err
	}

	name := block
	if concrete, ok := specification.Aliases[block]; ok {
		name = concrete
	}

	cacheKey := campaign + domain.PathSep + name
	r.mu.Lock()
	if cached, ok := r.cache[cacheKey]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	visiting := make(map[string]bool)
	memo := make(map[string]*domain.Template)
	merged, err := r.resolveBlock(specification, name, visiting, memo)
	if err != nil {
		return nil, err
	}

	out := cloneTemplate(merged)
	if specification.Overlay != nil {
		if err := mergeBlock(out, specification.Overlay); err != nil {
			return nil, err
		}
	}
	applyBindings(out, bindings)
	out.Block = name

	r.mu.Lock()
	r.cache[cacheKey] = out
	r.mu.Unlock()

	r.logger.Debug("resolved block template",
		"campaign", campaign,
		"block", name,
		"handler", out.Handler)
	return out, nil
}

// resolveBlock walks includes depth-first, left to right, later sources
// winning, the block's own fields last. Re-visiting an already-merged block
// through a diamond is idempotent via the memo; a block seen while still in
// flight is an includes cycle and fails resolution outright.
func (r *Resolver) resolveBlock(spec *domain.Specification, name string, visiting map[string]bool, memo map[string]*domain.Template) (*domain.Template, error) {
	if tmpl, ok := memo[name]; ok {
		return tmpl, nil
	}
	if visiting[name] {
		return nil, domain.NewConfigError("includes cycle through block " + name)
	}

	block, ok := r.library.Blocks[name]
	if !ok {
		return nil, domain.NewConfigError("unknown spec block: " + name)
	}

	visiting[name] = true
	defer delete(visiting, name)

	merged := &domain.Template{}
	for _, include := range block.Includes {
		target := include
		if concrete, ok := spec.Aliases[include]; ok {
			target = concrete
		}
		sub, err := r.resolveBlock(spec, target, visiting, memo)
		if err != nil {
			return nil, err
		}
		if err := mergeTemplate(merged, sub); err != nil {
			return nil, err
		}
	}
	if err := mergeBlock(merged, block); err != nil {
		return nil, err
	}

	memo[name] = merged
	return merged, nil
}

func (r *Resolver) specification(name string) (*domain.Specification, error) {
	spec, ok := r.library.Specifications[name]
	if !ok {
		return nil, domain.NewConfigError("unknown specification: " + name)
	}
	return spec, nil
}

// mergeBlock layers a block's own fields over dst, src winning.
func mergeBlock(dst *domain.Template, src *domain.SpecBlock) error {
	return mergeTemplate(dst, &domain.Template{
		Handler:     src.Handler,
		Collections: src.Collections,
		Data:        src.Data,
		ChildConfig: src.ChildConfig,
		Scripts:     src.Scripts,
	})
}

// mergeTemplate is a shallow union: maps merge key-by-key with src
// overriding, scalar fields override only when set in src, and a non-empty
// script list replaces the whole list.
func mergeTemplate(dst, src *domain.Template) error {
	if src.Handler != "" {
		dst.Handler = src.Handler
	}

	if len(src.Collections) > 0 {
		if dst.Collections == nil {
			dst.Collections = make(map[string]string)
		}
		if err := mergo.Merge(&dst.Collections, src.Collections, mergo.WithOverride); err != nil {
			return err
		}
	}
	if len(src.Data) > 0 {
		if dst.Data == nil {
			dst.Data = make(map[string]any)
		}
		if err := mergo.Merge(&dst.Data, src.Data, mergo.WithOverride); err != nil {
			return err
		}
	}

	if src.ChildConfig.SplitMethod != "" {
		dst.ChildConfig.SplitMethod = src.ChildConfig.SplitMethod
	}
	if src.ChildConfig.SplitQuery != "" {
		dst.ChildConfig.SplitQuery = src.ChildConfig.SplitQuery
	}
	if len(src.ChildConfig.SplitVals) > 0 {
		dst.ChildConfig.SplitVals = append([]string(nil), src.ChildConfig.SplitVals...)
	}
	if src.ChildConfig.MinGroups != 0 {
		dst.ChildConfig.MinGroups = src.ChildConfig.MinGroups
	}
	if src.ChildConfig.MaxRetries != 0 {
		dst.ChildConfig.MaxRetries = src.ChildConfig.MaxRetries
	}

	if len(src.Scripts) > 0 {
		dst.Scripts = append([]domain.ScriptDecl(nil), src.Scripts...)
	}
	return nil
}

// applyBindings substitutes load-time {var} bindings into string values.
// Placeholders that do not name a binding are left for per-node collection
// resolution, where values like the owning step or group exist.
func applyBindings(tmpl *domain.Template, bindings map[string]string) {
	if len(bindings) == 0 {
		return
	}
	for name, value := range tmpl.Collections {
		tmpl.Collections[name] = substitute(value, bindings)
	}
	for name, value := range tmpl.Data {
		if s, ok := value.(string); ok {
			tmpl.Data[name] = substitute(s, bindings)
		}
	}
	tmpl.ChildConfig.SplitQuery = substitute(tmpl.ChildConfig.SplitQuery, bindings)
}

func substitute(value string, bindings map[string]string) string {
	for key, binding := range bindings {
		value = strings.ReplaceAll(value, "{"+key+"}", binding)
	}
	return value
}

// namespaceFor derives a stable identifier for the campaign-level cache
// entry before a concrete campaign name exists.
func namespaceFor(spec string, bindings map[string]string) string {
	if len(bindings) == 0 {
		return spec
	}
	keys := make([]string, 0, len(bindings))
	for key := range bindings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(spec)
	for _, key := range keys {
		fmt.Fprintf(&b, ",%s=%s", key, bindings[key])
	}
	return b.String()
}

func cloneTemplate(tmpl *domain.Template) *domain.Template {
	out := &domain.Template{
		Block:       tmpl.Block,
		Handler:     tmpl.Handler,
		ChildConfig: tmpl.ChildConfig,
	}
	if tmpl.Collections != nil {
		out.Collections = make(map[string]string, len(tmpl.Collections))
		for k, v := range tmpl.Collections {
			out.Collections[k] = v
		}
	}
	if tmpl.Data != nil {
		out.Data = make(map[string]any, len(tmpl.Data))
		for k, v := range tmpl.Data {
			out.Data[k] = v
		}
	}
	out.ChildConfig.SplitVals = append([]string(nil), tmpl.ChildConfig.SplitVals...)
	out.Scripts = append([]domain.ScriptDecl(nil), tmpl.Scripts...)
	out.Steps = append([]domain.StepDecl(nil), tmpl.Steps...)
	return out
}
