package expander

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drover-io/drover/internal/adapters/queue"
	"github.com/drover-io/drover/internal/adapters/storage"
	"github.com/drover-io/drover/internal/adapters/store"
	"github.com/drover-io/drover/internal/domain"
)

type fixture struct {
	store    *store.NodeStore
	queue    *queue.WorkQueue
	expander *Expander
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, err := storage.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	nodes := store.NewNodeStore(kv, nil)
	work := queue.NewWorkQueue(kv, nil)
	return &fixture{
		store:    nodes,
		queue:    work,
		expander: New(nodes, work, nil),
	}
}

func (f *fixture) createStep(t *testing.T, cfg domain.ChildConfig) *domain.Node {
	t.Helper()
	root := &domain.Node{
		Kind:     domain.KindCampaign,
		Name:     "camp",
		Fullname: "camp",
		Status:   domain.StatusRunning,
		Handler:  "campaign",
	}
	require.NoError(t, f.store.Create(root))

	step := &domain.Node{
		Kind:        domain.KindStep,
		Name:        "isr",
		Fullname:    "camp/isr",
		ParentID:    root.ID,
		Status:      domain.StatusReady,
		Handler:     "element",
		ChildConfig: cfg,
	}
	require.NoError(t, f.store.Create(step))
	return step
}

func groupTemplate() *domain.Template {
	return &domain.Template{
		Block:       "element-base",
		Handler:     "element",
		Collections: map[string]string{"out": "{campaign}/{segment}"},
	}
}

func TestSplitNone(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{SplitMethod: domain.SplitNone})

	children, err := f.expander.Split(step, "element-base", groupTemplate())
	require.NoError(t, err)
	require.Len(t, children, 1)

	child := children[0]
	assert.Equal(t, domain.KindGroup, child.Kind)
	assert.Equal(t, "group00", child.Name)
	assert.Equal(t, "camp/isr/group00", child.Fullname)
	assert.Equal(t, domain.StatusWaiting, child.Status)
	assert.Equal(t, "group00", child.Collections["group"])
	assert.Equal(t, "group00", child.Collections["segment"])

	pending, err := f.queue.Pending()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestSplitByVals(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{
		SplitMethod: domain.SplitByVals,
		SplitVals:   []string{"band = 'g'", "band = 'r'", "band = 'i'"},
	})

	children, err := f.expander.Split(step, "element-base", groupTemplate())
	require.NoError(t, err)
	require.Len(t, children, 3)

	assert.Equal(t, "group00", children[0].Name)
	assert.Equal(t, "group02", children[2].Name)
	assert.Equal(t, "band = 'g'", children[0].Data["query"])
	assert.Equal(t, "band = 'i'", children[2].Data["query"])
}

func TestSplitSegmentsExtendParentNamespace(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{
		SplitMethod: domain.SplitByVals,
		SplitVals:   []string{"band = 'g'", "band = 'r'"},
	})
	step.Collections = map[string]string{"segment": "isr"}
	require.NoError(t, f.store.Update(step))

	children, err := f.expander.Split(step, "element-base", groupTemplate())
	require.NoError(t, err)
	require.Len(t, children, 2)

	// Each branch extends the parent's segment, so descendants of different
	// branches never resolve the same collection name.
	assert.Equal(t, "isr/group00", children[0].Collections["segment"])
	assert.Equal(t, "isr/group01", children[1].Collections["segment"])
	assert.Equal(t, "group00", children[0].Collections["group"])
	assert.Equal(t, "group01", children[1].Collections["group"])
}

func TestSplitByValsRequiresVals(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{SplitMethod: domain.SplitByVals})

	_, err := f.expander.Split(step, "element-base", groupTemplate())
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
}

func TestSplitByQuery(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{
		SplitMethod: domain.SplitByQuery,
		SplitQuery:  "visit > 100",
		MinGroups:   3,
	})

	children, err := f.expander.Split(step, "element-base", groupTemplate())
	require.NoError(t, err)
	require.Len(t, children, 3)

	// Each child owns a distinct slice of the parent's selector.
	seen := make(map[string]bool)
	for _, child := range children {
		query := child.Data["query"].(string)
		assert.Contains(t, query, "visit > 100")
		assert.False(t, seen[query], "duplicate slice %q", query)
		seen[query] = true
	}
}

func TestSplitUnknownMethod(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{SplitMethod: "chunk"})

	_, err := f.expander.Split(step, "element-base", groupTemplate())
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
}

func TestSplitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{SplitMethod: domain.SplitNone})

	first, err := f.expander.Split(step, "element-base", groupTemplate())
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Re-processing the same claim after a crash must not duplicate.
	second, err := f.expander.Split(step, "element-base", groupTemplate())
	require.NoError(t, err)
	assert.Empty(t, second)

	children, err := f.store.Children(step.ID)
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestScripts(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{})

	job := &domain.Node{
		Kind:     domain.KindJob,
		Name:     "job00",
		Fullname: "camp/isr/group00/job00",
		ParentID: step.ID,
		Status:   domain.StatusReady,
	}
	require.NoError(t, f.store.Create(job))

	tmpl := &domain.Template{Block: "script-base", Handler: "batch_script"}
	decls := []domain.ScriptDecl{
		{Name: "run"},
		{Name: "chain", Handler: "chain_script", Prerequisites: []string{"run"}},
	}

	children, err := f.expander.Scripts(job, tmpl, decls)
	require.NoError(t, err)
	require.Len(t, children, 2)

	run, chain := children[0], children[1]
	assert.Equal(t, domain.KindScript, run.Kind)
	assert.Equal(t, "batch_script", run.Handler)
	assert.Equal(t, "script-base", run.Block)
	assert.Empty(t, run.Prerequisites)

	// The handler override lands on the node; the block stays the template
	// identity so later resolution still succeeds.
	assert.Equal(t, "chain_script", chain.Handler)
	assert.Equal(t, "script-base", chain.Block)
	assert.Equal(t, []string{"camp/isr/group00/job00/run"}, chain.Prerequisites)
}

func TestRetryInPlace(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{})
	step.Status = domain.StatusFailed
	require.NoError(t, f.store.Update(step))

	require.NoError(t, f.expander.Retry(step))

	got, err := f.store.Get(step.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, got.Status)
	assert.Equal(t, 0, got.Attempt)

	entries, err := f.queue.ClaimBatch("d1", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, step.ID, entries[0].NodeID)
}

func TestRetryRequiresFailed(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{})

	assert.ErrorIs(t, f.expander.Retry(step), domain.ErrInvalidTransition)
}

func TestReplace(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{})
	step.Status = domain.StatusFailed
	step.Data = map[string]any{"batch_handle": "run-123", "pipeline": "isr"}
	require.NoError(t, f.store.Update(step))

	fresh, err := f.expander.Replace(step)
	require.NoError(t, err)

	assert.Equal(t, "camp/isr", fresh.Fullname)
	assert.Equal(t, 1, fresh.Attempt)
	assert.Equal(t, domain.StatusWaiting, fresh.Status)
	assert.Equal(t, "isr", fresh.Data["pipeline"])
	// Runtime residue never leaks into the replacement.
	assert.NotContains(t, fresh.Data, "batch_handle")

	old, err := f.store.Get(step.ID)
	require.NoError(t, err)
	assert.True(t, old.Superseded)

	// Dependents naming the fullname now resolve to the replacement.
	active, err := f.store.GetByFullname("camp/isr")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, active.ID)
}

func TestReplaceAdoptsSurvivingChildren(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{SplitMethod: domain.SplitNone})

	children, err := f.expander.Split(step, "element-base", groupTemplate())
	require.NoError(t, err)
	require.Len(t, children, 1)
	group := children[0]

	step.Status = domain.StatusFailed
	require.NoError(t, f.store.Update(step))

	fresh, err := f.expander.Replace(step)
	require.NoError(t, err)

	// The surviving group now hangs off the replacement.
	adopted, err := f.store.Children(fresh.ID)
	require.NoError(t, err)
	require.Len(t, adopted, 1)
	assert.Equal(t, group.ID, adopted[0].ID)
	assert.Equal(t, fresh.ID, adopted[0].ParentID)

	orphans, err := f.store.Children(step.ID)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	// Re-preparing the replacement honors the adopted child's fullname and
	// creates nothing new.
	again, err := f.expander.Split(fresh, "element-base", groupTemplate())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestReplaceRequiresTerminalFailure(t *testing.T) {
	f := newFixture(t)
	step := f.createStep(t, domain.ChildConfig{})

	_, err := f.expander.Replace(step)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
