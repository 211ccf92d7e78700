package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drover-io/drover/internal/domain"
)

func testLibrary() *domain.SpecLibrary {
	return &domain.SpecLibrary{
		Specifications: map[string]*domain.Specification{
			"resample": {
				Name: "resample",
				Aliases: map[string]string{
					"campaign": "campaign-base",
					"step":     "element-base",
				},
				Steps: []domain.StepDecl{
					{Name: "isr", Block: "step-isr"},
					{Name: "calibrate", Block: "step-calibrate", Prerequisites: []string{"isr"}},
				},
			},
		},
		Blocks: map[string]*domain.SpecBlock{
			"defaults": {
				Name:        "defaults",
				Collections: map[string]string{"root": "data/{instrument}"},
				Data:        map[string]any{"memory": "2048", "site": "main"},
			},
			"campaign-base": {
				Name:     "campaign-base",
				Handler:  "campaign",
				Includes: []string{"defaults"},
			},
			"element-base": {
				Name:     "element-base",
				Handler:  "element",
				Includes: []string{"defaults"},
				ChildConfig: domain.ChildConfig{
					SplitMethod: domain.SplitNone,
				},
			},
			"step-isr": {
				Name:     "step-isr",
				Includes: []string{"step"},
				Data:     map[string]any{"pipeline": "isr"},
			},
			"step-calibrate": {
				Name:     "step-calibrate",
				Includes: []string{"step", "big-memory"},
				Data:     map[string]any{"pipeline": "calibrate"},
			},
			"big-memory": {
				Name: "big-memory",
				Data: map[string]any{"memory": "8192"},
			},
		},
	}
}

func TestCampaignResolution(t *testing.T) {
	r := NewResolver(testLibrary(), nil)

	tmpl, err := r.Campaign("resample", nil)
	require.NoError(t, err)
	assert.Equal(t, "campaign", tmpl.Handler)
	assert.Equal(t, "campaign-base", tmpl.Block)
	require.Len(t, tmpl.Steps, 2)
	assert.Equal(t, "isr", tmpl.Steps[0].Name)
	assert.Equal(t, []string{"isr"}, tmpl.Steps[1].Prerequisites)
}

func TestUnknownSpecification(t *testing.T) {
	r := NewResolver(testLibrary(), nil)
	_, err := r.Campaign("nope", nil)
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
}

func TestIncludesMergeIntoBlock(t *testing.T) {
	r := NewResolver(testLibrary(), nil)

	tmpl, err := r.Block("camp", "resample", nil, "step-isr")
	require.NoError(t, err)
	// Inherited through step -> element-base -> defaults.
	assert.Equal(t, "element", tmpl.Handler)
	assert.Equal(t, "2048", tmpl.Data["memory"])
	assert.Equal(t, "main", tmpl.Data["site"])
	// Own fields win.
	assert.Equal(t, "isr", tmpl.Data["pipeline"])
}

func TestLaterIncludeWins(t *testing.T) {
	r := NewResolver(testLibrary(), nil)

	tmpl, err := r.Block("camp", "resample", nil, "step-calibrate")
	require.NoError(t, err)
	// big-memory comes after step in the includes list, so its value
	// overrides the inherited default.
	assert.Equal(t, "8192", tmpl.Data["memory"])
	assert.Equal(t, "main", tmpl.Data["site"])
	assert.Equal(t, "calibrate", tmpl.Data["pipeline"])
}

func TestDiamondInclusionIsIdempotent(t *testing.T) {
	lib := testLibrary()
	lib.Blocks["diamond"] = &domain.SpecBlock{
		Name:     "diamond",
		Includes: []string{"step-isr", "step-calibrate"},
	}
	r := NewResolver(lib, nil)

	tmpl, err := r.Block("camp", "resample", nil, "diamond")
	require.NoError(t, err)
	// defaults is reached through both arms exactly once; the right arm's
	// override still lands.
	assert.Equal(t, "8192", tmpl.Data["memory"])
	assert.Equal(t, "calibrate", tmpl.Data["pipeline"])
}

func TestIncludesCycleFails(t *testing.T) {
	lib := testLibrary()
	lib.Blocks["a"] = &domain.SpecBlock{Name: "a", Includes: []string{"b"}}
	lib.Blocks["b"] = &domain.SpecBlock{Name: "b", Includes: []string{"a"}}
	r := NewResolver(lib, nil)

	_, err := r.Block("camp", "resample", nil, "a")
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	assert.Contains(t, err.Error(), "cycle")
}

func TestUnknownBlockFails(t *testing.T) {
	r := NewResolver(testLibrary(), nil)
	_, err := r.Block("camp", "resample", nil, "nope")
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
}

func TestRoleAliasResolution(t *testing.T) {
	r := NewResolver(testLibrary(), nil)

	tmpl, err := r.Block("camp", "resample", nil, "step")
	require.NoError(t, err)
	assert.Equal(t, "element-base", tmpl.Block)
	assert.Equal(t, "element", tmpl.Handler)
}

func TestBindingsSubstitution(t *testing.T) {
	r := NewResolver(testLibrary(), nil)

	tmpl, err := r.Block("camp", "resample", map[string]string{"instrument": "wide"}, "step-isr")
	require.NoError(t, err)
	assert.Equal(t, "data/wide", tmpl.Collections["root"])
}

func TestUnboundPlaceholderSurvives(t *testing.T) {
	r := NewResolver(testLibrary(), nil)

	tmpl, err := r.Block("camp", "resample", nil, "step-isr")
	require.NoError(t, err)
	// Unbound placeholders are left for per-node resolution.
	assert.Equal(t, "data/{instrument}", tmpl.Collections["root"])
}

func TestOverlayAppliesLast(t *testing.T) {
	lib := testLibrary()
	lib.Specifications["resample"].Overlay = &domain.SpecBlock{
		Data: map[string]any{"site": "backup"},
	}
	r := NewResolver(lib, nil)

	tmpl, err := r.Block("camp", "resample", nil, "step-calibrate")
	require.NoError(t, err)
	assert.Equal(t, "backup", tmpl.Data["site"])
	assert.Equal(t, "8192", tmpl.Data["memory"])
}

func TestResolutionIsDeterministicAndCached(t *testing.T) {
	r := NewResolver(testLibrary(), nil)

	first, err := r.Block("camp", "resample", nil, "step-isr")
	require.NoError(t, err)
	second, err := r.Block("camp", "resample", nil, "step-isr")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, first.Data, second.Data)
}

func TestDistinctCampaignNamespaces(t *testing.T) {
	r := NewResolver(testLibrary(), nil)

	a, err := r.Block("camp-a", "resample", nil, "step-isr")
	require.NoError(t, err)
	b, err := r.Block("camp-b", "resample", nil, "step-isr")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, a.Handler, b.Handler)
}
