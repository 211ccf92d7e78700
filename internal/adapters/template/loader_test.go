package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drover-io/drover/internal/domain"
)

func writeSpec(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadLibrary(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "base.yaml", `
blocks:
  - name: defaults
    data:
      memory: "2048"
  - name: campaign-base
    handler: campaign
    includes: [defaults]
`)
	writeSpec(t, dir, "resample.yaml", `
specifications:
  - name: resample
    aliases:
      campaign: campaign-base
    steps:
      - name: isr
        block: defaults
      - name: calibrate
        block: defaults
        prerequisites: [isr]
`)
	writeSpec(t, dir, "notes.txt", "ignored")

	library, err := LoadLibrary(dir)
	require.NoError(t, err)

	assert.Len(t, library.Blocks, 2)
	require.Contains(t, library.Specifications, "resample")

	spec := library.Specifications["resample"]
	assert.Equal(t, "campaign-base", spec.Aliases["campaign"])
	require.Len(t, spec.Steps, 2)
	assert.Equal(t, []string{"isr"}, spec.Steps[1].Prerequisites)
	assert.Equal(t, "2048", library.Blocks["defaults"].Data["memory"])
}

func TestLoadLibraryDuplicateBlock(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "a.yaml", "blocks:\n  - name: defaults\n")
	writeSpec(t, dir, "b.yaml", "blocks:\n  - name: defaults\n")

	_, err := LoadLibrary(dir)
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadLibraryUnnamedBlock(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "a.yaml", "blocks:\n  - handler: campaign\n")

	_, err := LoadLibrary(dir)
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
}

func TestLoadLibraryMissingDir(t *testing.T) {
	_, err := LoadLibrary(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
}

func TestParseSubmission(t *testing.T) {
	doc, err := ParseSubmission([]byte(`
campaign: run-2026a
specification: resample
bindings:
  instrument: wide
data:
  priority: high
`))
	require.NoError(t, err)
	assert.Equal(t, "run-2026a", doc.Campaign)
	assert.Equal(t, "resample", doc.Specification)
	assert.Equal(t, "wide", doc.Bindings["instrument"])
	assert.Equal(t, "high", doc.Data["priority"])
}

func TestParseSubmissionValidation(t *testing.T) {
	_, err := ParseSubmission([]byte("specification: resample\n"))
	assert.Error(t, err)

	_, err = ParseSubmission([]byte("campaign: x\n"))
	assert.Error(t, err)

	_, err = ParseSubmission([]byte("campaign: a/b\nspecification: resample\n"))
	assert.Error(t, err)

	_, err = ParseSubmission([]byte("{not yaml"))
	assert.Error(t, err)
}
