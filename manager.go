package drover

import (
	"context"

	"github.com/drover-io/drover/internal/adapters/batch"
	"github.com/drover-io/drover/internal/adapters/catalog"
	"github.com/drover-io/drover/internal/adapters/engine"
	"github.com/drover-io/drover/internal/adapters/expander"
	"github.com/drover-io/drover/internal/adapters/queue"
	"github.com/drover-io/drover/internal/adapters/registry"
	"github.com/drover-io/drover/internal/adapters/scheduler"
	"github.com/drover-io/drover/internal/adapters/storage"
	"github.com/drover-io/drover/internal/adapters/store"
	"github.com/drover-io/drover/internal/adapters/template"
	"github.com/drover-io/drover/internal/ports"
)

// Option customizes Manager construction.
type Option func(*options)

type options struct {
	backends []ports.BatchBackend
}

// WithBackend installs an additional batch backend implementation, selected
// via Config.Backend.Name.
func WithBackend(backend BatchBackend) Option {
	return func(o *options) {
		o.backends = append(o.backends, backend)
	}
}

// Manager wires storage, queue, resolver, registry, engine, and scheduler
// into one runnable instance sharing a single node store.
type Manager struct {
	cfg      *Config
	storage  *storage.BadgerStorage
	engine   *engine.Engine
	daemon   *scheduler.Daemon
	backends *batch.Backends
}

// Open builds a Manager from configuration. The spec library is loaded once;
// unresolvable specification documents fail here rather than at submission.
func Open(cfg *Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := cfg.Logger

	kv, err := storage.Open(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}

	library, err := template.LoadLibrary(cfg.SpecDir)
	if err != nil {
		kv.Close()
		return nil, err
	}

	nodes := store.NewNodeStore(kv, logger)
	work := queue.NewWorkQueue(kv, logger)
	resolver := template.NewResolver(library, logger)
	exp := expander.New(nodes, work, logger)
	handlers := registry.NewDefault(exp, logger)

	backends := batch.NewBackends()
	backends.Register(batch.NewLocalBackend(logger))
	for _, extra := range o.backends {
		backends.Register(extra)
	}
	backend, err := backends.Resolve(cfg.Backend.Name)
	if err != nil {
		kv.Close()
		return nil, err
	}

	cat := catalog.NewRecorder(kv, logger)
	eng := engine.New(nodes, work, resolver, handlers, backend, cat, exp, cfg.Retry, logger)
	daemon := scheduler.NewDaemon(cfg.DaemonID, eng, work, cfg.Scheduler, logger)

	return &Manager{
		cfg:      cfg,
		storage:  kv,
		engine:   eng,
		daemon:   daemon,
		backends: backends,
	}, nil
}

// Submit creates one campaign node plus its resolved template.
func (m *Manager) Submit(ctx context.Context, doc *SubmissionDoc) (*Node, error) {
	return m.engine.SubmitCampaign(ctx, doc)
}

// Run starts the scheduling loop and blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	return m.daemon.Run(ctx)
}

// Status summarizes the subtree rooted at fullname.
func (m *Manager) Status(fullname string) (*Rollup, error) {
	return m.engine.Status(fullname)
}

// Campaigns summarizes every campaign root.
func (m *Manager) Campaigns() ([]*Rollup, error) {
	return m.engine.Campaigns()
}

// Accept resolves a reviewable node into acceptance.
func (m *Manager) Accept(fullname string) (*Node, error) {
	return m.engine.Accept(fullname)
}

// Reject resolves a reviewable node into failure, or rejects a node that has
// not yet started running.
func (m *Manager) Reject(fullname, reason string) (*Node, error) {
	return m.engine.Reject(fullname, reason)
}

// Reset returns a failed node to waiting for re-execution in place.
func (m *Manager) Reset(fullname string) (*Node, error) {
	return m.engine.Reset(fullname)
}

// Replace supersedes a failed node with a fresh attempt under the same name.
func (m *Manager) Replace(fullname string) (*Node, error) {
	return m.engine.Replace(fullname)
}

// Unblock acknowledges a stalled node, either resuming or failing it.
func (m *Manager) Unblock(fullname string, fail bool) (*Node, error) {
	return m.engine.Unblock(fullname, fail)
}

// Archive freezes a finished node permanently.
func (m *Manager) Archive(fullname string) (*Node, error) {
	return m.engine.Archive(fullname)
}

// Diagnostics lists a node's accumulated failure records.
func (m *Manager) Diagnostics(fullname string) ([]*Diagnostic, error) {
	return m.engine.Diagnostics(fullname)
}

func (m *Manager) Close() error {
	return m.storage.Close()
}

var (
	_ ports.BatchBackend     = (*batch.LocalBackend)(nil)
	_ ports.Catalog          = (*catalog.Recorder)(nil)
	_ ports.NodeStore        = (*store.NodeStore)(nil)
	_ ports.WorkQueue        = (*queue.WorkQueue)(nil)
	_ ports.HandlerRegistry  = (*registry.Registry)(nil)
	_ ports.TemplateResolver = (*template.Resolver)(nil)
	_ ports.StoragePort      = (*storage.BadgerStorage)(nil)
)
