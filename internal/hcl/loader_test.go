package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/stagemake/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDescriptor drops a stagemake.hcl with the given body into a
// fresh temp directory.
func writeDescriptor(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DescriptorFileName), []byte(body), 0o644))
	return dir
}

func TestLoadFullDescriptor(t *testing.T) {
	dir := writeDescriptor(t, `
inherit = {
  CC  = "gcc"
  REV = "shell:git rev-parse HEAD"
}
disregard_unless = "test -e configure"
subdirs = {
  vendor = "ignore"
  legacy = "make all"
}
naming = { "0" = "generate", "1" = "compile" }

stage "0" {
  source      = "gen.sh"
  destination = "out.c"
  transform   = "sh gen.sh > {out}"
  onlyonce    = true
}

stage "1" {
  source      = "shell:ls *.c"
  destination = "object"
  transform   = "cc -c {in} -o {out}"
  parallel    = 4
}
`)

	descriptor, err := NewLoader().Load(context.Background(), dir, "")
	require.NoError(t, err)

	want := &config.Descriptor{
		Inherit:         map[string]string{"CC": "gcc", "REV": "shell:git rev-parse HEAD"},
		DisregardUnless: "test -e configure",
		Subdirs: map[string]config.SubdirPolicy{
			"vendor": {Ignore: true},
			"legacy": {MakeCommand: "make all"},
		},
		Naming: map[int]string{0: "generate", 1: "compile"},
		Stages: map[int][]*config.TransformSection{
			0: {{Source: "gen.sh", Destination: "out.c", Transform: "sh gen.sh > {out}", OnlyOnce: true}},
			1: {{Source: "shell:ls *.c", Destination: "object", Transform: "cc -c {in} -o {out}", Parallel: 4}},
		},
	}
	if diff := cmp.Diff(want, descriptor); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRepeatedStageBlocksKeepOrder(t *testing.T) {
	dir := writeDescriptor(t, `
stage "0" {
  source      = "a.txt"
  destination = "a.out"
  transform   = "first"
}
stage "0" {
  source      = "b.txt"
  destination = "b.out"
  transform   = "second"
}
`)

	descriptor, err := NewLoader().Load(context.Background(), dir, "")
	require.NoError(t, err)
	sections := descriptor.Stages[0]
	require.Len(t, sections, 2)
	assert.Equal(t, "first", sections[0].Transform)
	assert.Equal(t, "second", sections[1].Transform)
}

func TestLoadMissingFileYieldsEmptyDescriptor(t *testing.T) {
	descriptor, err := NewLoader().Load(context.Background(), t.TempDir(), "")
	require.NoError(t, err)
	assert.True(t, descriptor.Empty())
}

func TestLoadMalformedFileWarnsAndYieldsEmpty(t *testing.T) {
	dir := writeDescriptor(t, `stage "0" { this is not hcl `)

	descriptor, err := NewLoader().Load(context.Background(), dir, "")
	require.NoError(t, err)
	assert.True(t, descriptor.Empty())
}

func TestLoadUnknownAttributeWarnsAndYieldsEmpty(t *testing.T) {
	dir := writeDescriptor(t, `bogus_setting = true`)

	descriptor, err := NewLoader().Load(context.Background(), dir, "")
	require.NoError(t, err)
	assert.True(t, descriptor.Empty())
}

func TestLoadTargetSelectsAlternateBody(t *testing.T) {
	dir := writeDescriptor(t, `
stage "0" {
  source      = "main.c"
  destination = "object"
  transform   = "cc -c {in} -o {out}"
}

target "docs" {
  stage "0" {
    source      = "main.md"
    destination = "main.html"
    transform   = "markdown {in} > {out}"
  }
}
`)
	loader := NewLoader()

	descriptor, err := loader.Load(context.Background(), dir, "docs")
	require.NoError(t, err)
	require.Len(t, descriptor.Stages[0], 1)
	assert.Equal(t, "main.md", descriptor.Stages[0][0].Source)
}

func TestLoadMissingTargetIsFatal(t *testing.T) {
	dir := writeDescriptor(t, `
stage "0" {
  source      = "main.c"
  destination = "object"
  transform   = "cc -c {in} -o {out}"
}
`)

	_, err := NewLoader().Load(context.Background(), dir, "docs")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrTargetNotFound)
}

func TestLoadTargetWithNoDescriptorFile(t *testing.T) {
	// Directories without a descriptor cannot fail target resolution:
	// they have nothing to resolve against.
	descriptor, err := NewLoader().Load(context.Background(), t.TempDir(), "docs")
	require.NoError(t, err)
	assert.True(t, descriptor.Empty())
}

func TestLoadNonNumericStageLabelDropped(t *testing.T) {
	dir := writeDescriptor(t, `
stage "first" {
  source      = "a"
  destination = "b"
  transform   = "c"
}
stage "2" {
  source      = "a.txt"
  destination = "a.out"
  transform   = "cp {in} {out}"
}
`)

	descriptor, err := NewLoader().Load(context.Background(), dir, "")
	require.NoError(t, err)
	assert.NotContains(t, descriptor.Stages, 0)
	assert.Contains(t, descriptor.Stages, 2)
	assert.Equal(t, 2, descriptor.MaxStage())
}

func TestLoadCachesPerRun(t *testing.T) {
	dir := writeDescriptor(t, `
stage "0" {
  source      = "a.txt"
  destination = "a.out"
  transform   = "cp {in} {out}"
}
`)
	loader := NewLoader()

	first, err := loader.Load(context.Background(), dir, "")
	require.NoError(t, err)
	second, err := loader.Load(context.Background(), dir, "")
	require.NoError(t, err)
	assert.Same(t, first, second)
}
