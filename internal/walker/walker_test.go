package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/stagemake/internal/config"
	"github.com/specialistvlad/stagemake/internal/envstack"
	"github.com/specialistvlad/stagemake/internal/hcl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func walk(t *testing.T, root, target string) (*Result, error) {
	t.Helper()
	w := New(hcl.NewLoader(), target)
	return w.Walk(context.Background(), root, envstack.NewRoot(nil))
}

func rels(result *Result) []string {
	var out []string
	for _, node := range result.Nodes {
		out = append(out, node.Rel)
	}
	return out
}

func TestWalkCollectsAllDirectoriesPostOrder(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a/keep":   "",
		"a/b/keep": "",
		"c/keep":   "",
	})

	result, err := walk(t, root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b", "a", "c", "."}, rels(result))
}

func TestWalkGatingExcludesSubtree(t *testing.T) {
	root := writeTree(t, map[string]string{
		"gated/" + config.DescriptorFileName: `disregard_unless = "test -e enable-me"`,
		"gated/sub/keep":                     "",
		"open/keep":                          "",
	})

	result, err := walk(t, root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "."}, rels(result))
}

func TestWalkGatingPasses(t *testing.T) {
	root := writeTree(t, map[string]string{
		"gated/" + config.DescriptorFileName: `disregard_unless = "test -e enable-me"`,
		"gated/enable-me":                    "",
	})

	result, err := walk(t, root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"gated", "."}, rels(result))
}

func TestWalkSubdirIgnore(t *testing.T) {
	root := writeTree(t, map[string]string{
		config.DescriptorFileName: `subdirs = { vendor = "ignore" }`,
		"vendor/keep":             "",
		"src/keep":                "",
	})

	result, err := walk(t, root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"src", "."}, rels(result))
}

func TestWalkForcedMakeEmitsJobWithoutRecursing(t *testing.T) {
	root := writeTree(t, map[string]string{
		config.DescriptorFileName: `
inherit = { CC = "gcc" }
subdirs = { legacy = "make all" }
`,
		"legacy/deep/keep": "",
	})

	result, err := walk(t, root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"."}, rels(result))

	require.Len(t, result.ForcedJobs, 1)
	job := result.ForcedJobs[0]
	assert.Equal(t, "legacy", job.DirRel)
	assert.Equal(t, "make forced", job.Reason)
	assert.Equal(t, "make all", job.Script)
	assert.Equal(t, `CC='gcc' make all`, job.Command)
	assert.Empty(t, job.Destination)
}

func TestWalkNamingLastWriterWins(t *testing.T) {
	root := writeTree(t, map[string]string{
		config.DescriptorFileName:        `naming = { "0" = "rootname" }`,
		"a/" + config.DescriptorFileName: `naming = { "0" = "childname", "1" = "compile" }`,
	})

	result, err := walk(t, root, "")
	require.NoError(t, err)
	// Children are processed before the root appends itself, so the
	// root's entry lands last.
	assert.Equal(t, map[int]string{0: "rootname", 1: "compile"}, result.StageNames)
}

func TestWalkEnvironmentLayering(t *testing.T) {
	root := writeTree(t, map[string]string{
		config.DescriptorFileName:        `inherit = { CC = "gcc", ROOTVAR = "r" }`,
		"a/" + config.DescriptorFileName: `inherit = { CC = "clang" }`,
	})

	result, err := walk(t, root, "")
	require.NoError(t, err)

	byRel := make(map[string]*Node)
	for _, node := range result.Nodes {
		byRel[node.Rel] = node
	}

	value, err := byRel["a"].Env.Value(context.Background(), "CC")
	require.NoError(t, err)
	assert.Equal(t, "clang", value)

	value, err = byRel["a"].Env.Value(context.Background(), "ROOTVAR")
	require.NoError(t, err)
	assert.Equal(t, "r", value)

	value, err = byRel["."].Env.Value(context.Background(), "CC")
	require.NoError(t, err)
	assert.Equal(t, "gcc", value)
}

func TestWalkMissingTargetFailsRun(t *testing.T) {
	root := writeTree(t, map[string]string{
		config.DescriptorFileName: `inherit = { CC = "gcc" }`,
	})

	_, err := walk(t, root, "release")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrTargetNotFound)
}

func TestMaxStage(t *testing.T) {
	root := writeTree(t, map[string]string{
		config.DescriptorFileName: `
stage "0" {
  source      = "a"
  destination = "b"
  transform   = "c"
}
`,
		"x/" + config.DescriptorFileName: `
stage "3" {
  source      = "a"
  destination = "b"
  transform   = "c"
}
`,
	})

	result, err := walk(t, root, "")
	require.NoError(t, err)
	assert.Equal(t, 3, MaxStage(result.Nodes))
}

func TestMaxStageEmptyTree(t *testing.T) {
	root := writeTree(t, map[string]string{"empty/keep": ""})
	result, err := walk(t, root, "")
	require.NoError(t, err)
	assert.Equal(t, -1, MaxStage(result.Nodes))
}
