package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func cachePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "cache.yaml")
}

func TestObserveFirstSightingIsChanged(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "x.c", "int main() {}\n")
	c := Load(context.Background(), cachePath(t))

	changed, err := c.Observe(0, ".", "x.c", source)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, c.Len())
}

func TestPersistAndReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "x.c", "int main() {}\n")
	path := cachePath(t)

	first := Load(context.Background(), path)
	_, err := first.Observe(0, ".", "x.c", source)
	require.NoError(t, err)
	require.NoError(t, first.Persist(context.Background()))

	second := Load(context.Background(), path)
	changed, err := second.Observe(0, ".", "x.c", source)
	require.NoError(t, err)
	assert.False(t, changed, "unchanged content must not read as changed after reload")
}

func TestObserveDetectsContentChange(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "x.c", "one\n")
	path := cachePath(t)

	first := Load(context.Background(), path)
	_, err := first.Observe(0, ".", "x.c", source)
	require.NoError(t, err)
	require.NoError(t, first.Persist(context.Background()))

	writeFile(t, dir, "x.c", "two\n")
	second := Load(context.Background(), path)
	changed, err := second.Observe(0, ".", "x.c", source)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestKeysAreStageAndDirScoped(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "x.c", "content\n")
	path := cachePath(t)

	first := Load(context.Background(), path)
	_, err := first.Observe(0, "a", "x.c", source)
	require.NoError(t, err)
	require.NoError(t, first.Persist(context.Background()))

	second := Load(context.Background(), path)

	// Same source under a different stage or directory key is a fresh
	// observation.
	changed, err := second.Observe(1, "a", "x.c", source)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = second.Observe(0, "b", "x.c", source)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = second.Observe(0, "a", "x.c", source)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRollbackRemovesOnlyTheJobsSources(t *testing.T) {
	dir := t.TempDir()
	x := writeFile(t, dir, "x.c", "x\n")
	y := writeFile(t, dir, "y.c", "y\n")
	path := cachePath(t)

	c := Load(context.Background(), path)
	_, err := c.Observe(0, ".", "x.c", x)
	require.NoError(t, err)
	_, err = c.Observe(0, ".", "y.c", y)
	require.NoError(t, err)

	c.Rollback(0, ".", []string{"x.c"})
	assert.Equal(t, 1, c.Len())
	require.NoError(t, c.Persist(context.Background()))

	reloaded := Load(context.Background(), path)
	changed, err := reloaded.Observe(0, ".", "x.c", x)
	require.NoError(t, err)
	assert.True(t, changed, "rolled-back source must be re-detected as changed")

	changed, err = reloaded.Observe(0, ".", "y.c", y)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestLoadMissingFileYieldsEmptyCache(t *testing.T) {
	c := Load(context.Background(), cachePath(t))
	assert.Equal(t, 0, c.Len())
}

func TestLoadCorruptFileYieldsEmptyCache(t *testing.T) {
	path := cachePath(t)
	require.NoError(t, os.WriteFile(path, []byte("{{{ not yaml"), 0o644))

	c := Load(context.Background(), path)
	assert.Equal(t, 0, c.Len())

	// And the run can still persist over the corrupt file.
	require.NoError(t, c.Persist(context.Background()))
}

func TestObserveUnreadableSource(t *testing.T) {
	c := Load(context.Background(), cachePath(t))
	_, err := c.Observe(0, ".", "ghost.c", filepath.Join(t.TempDir(), "ghost.c"))
	assert.Error(t, err)
}

func TestHashFileStable(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", "same content")
	b := writeFile(t, dir, "b", "same content")
	c := writeFile(t, dir, "c", "different content")

	hashA, err := HashFile(a)
	require.NoError(t, err)
	hashB, err := HashFile(b)
	require.NoError(t, err)
	hashC, err := HashFile(c)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
	assert.NotEqual(t, hashA, hashC)
	assert.Len(t, hashA, 64)
}
