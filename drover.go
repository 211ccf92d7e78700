// Package drover provides a campaign execution engine: a persistent,
// hierarchical finite-state-machine scheduler for large multi-stage
// data-processing campaigns executed by external batch backends.
//
// A campaign is a four-level graph (Campaign -> Step -> Group -> Job ->
// Script) expanded from a layered specification. Drover walks the graph
// forward through its lifecycle:
//   - per-node configuration is merged from inheritable spec blocks
//   - node behavior is dispatched through a capability-keyed handler registry
//   - runnable nodes are discovered through a durable work queue with
//     claim/lease arbitration, safe under concurrent daemons
//   - failures are contained per subtree and recovered by operator
//     reset/replace without discarding history
//
// Basic usage:
//
//	cfg := drover.DefaultConfig()
//	cfg.DataDir = "./data"
//	cfg.SpecDir = "./specs"
//	mgr, err := drover.Open(cfg)
//	if err != nil { ... }
//	defer mgr.Close()
//
//	node, err := mgr.Submit(ctx, &drover.SubmissionDoc{
//	    Campaign:      "dr1",
//	    Specification: "survey-wide",
//	    Bindings:      map[string]string{"era": "2026"},
//	})
//	go mgr.Run(ctx)
package drover

import (
	"github.com/drover-io/drover/internal/adapters/batch"
	"github.com/drover-io/drover/internal/adapters/engine"
	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// Config carries daemon identity, storage location, the spec library
// directory, and scheduler tuning.
type Config = domain.Config

// SubmissionDoc is the operator document that creates one campaign.
type SubmissionDoc = domain.SubmissionDoc

// Node is one vertex of a campaign graph.
type Node = domain.Node

// Status is the ordered node lifecycle state.
type Status = domain.Status

// Diagnostic is one recorded failure message on a node.
type Diagnostic = domain.Diagnostic

// Rollup is a recursive status summary of one subtree.
type Rollup = engine.Rollup

// BatchBackend is the external workflow collaborator contract.
type BatchBackend = ports.BatchBackend

// BatchReport is the per-task census of one submitted run.
type BatchReport = ports.BatchReport

// Catalog is the data-catalog collaborator contract.
type Catalog = ports.Catalog

// LocalBackend is the in-process batch simulator.
type LocalBackend = batch.LocalBackend

// DefaultConfig returns a config with generated daemon identity and sane
// scheduler defaults.
func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	return domain.LoadConfig(path)
}
