// Package cache persists content hashes of source files between runs
// and answers the one question the engine asks: does this destination
// need rebuilding? Two tables coexist during a run: the previous run's
// table (read-only) and the table being accumulated now, persisted at
// process exit whether the run succeeded or not.
package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/specialistvlad/stagemake/internal/ctxlog"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// Key identifies one observed source file. The directory is stored
// relative to the invocation root so the cache file survives the tree
// being moved or checked out elsewhere.
type Key struct {
	Stage  int
	Dir    string
	Source string
}

// entry is the YAML serialization of one cache row.
type entry struct {
	Stage  int    `yaml:"stage"`
	Dir    string `yaml:"dir"`
	Source string `yaml:"source"`
	Hash   string `yaml:"hash"`
}

// snapshot is the on-disk document shape.
type snapshot struct {
	Entries []entry `yaml:"entries"`
}

// Cache holds both hash tables for a run.
type Cache struct {
	path string
	old  map[Key]string
	next map[Key]string
}

// Load reads the persisted cache at path. A missing or corrupt file is
// not fatal: the engine warns and proceeds with an empty table, which
// simply means a full rebuild.
func Load(ctx context.Context, path string) *Cache {
	logger := ctxlog.FromContext(ctx)
	c := &Cache{
		path: path,
		old:  make(map[Key]string),
		next: make(map[Key]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Cache file unreadable, starting with an empty cache.", "path", path, "error", err)
		}
		return c
	}

	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		logger.Warn("Cache file corrupt, starting with an empty cache.", "path", path, "error", err)
		return c
	}
	for _, e := range snap.Entries {
		c.old[Key{Stage: e.Stage, Dir: e.Dir, Source: e.Source}] = e.Hash
	}
	logger.Debug("Cache loaded.", "path", path, "entries", len(c.old))
	return c
}

// HashFile computes the hex-encoded BLAKE3 digest of the file's bytes.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Observe hashes one source file, records the result in the new table,
// and reports whether its content changed since the previously
// persisted run. sourcePath must be resolvable from the current
// working directory; the key uses the root-relative dir.
//
// Recording happens for every observed source, stale destination or
// not, so the persisted table always reflects the latest content seen
// and a clean destination is not falsely rebuilt next run.
func (c *Cache) Observe(stage int, dirRel, source, sourcePath string) (changed bool, err error) {
	hash, err := HashFile(sourcePath)
	if err != nil {
		return false, err
	}
	key := Key{Stage: stage, Dir: dirRel, Source: source}
	c.next[key] = hash
	previous, seen := c.old[key]
	return !seen || previous != hash, nil
}

// Rollback removes a failed job's contributing sources from the new
// table. Their hashes were computed this run, but persisting them
// would make the next run believe the failed destinations are up to
// date.
func (c *Cache) Rollback(stage int, dirRel string, sources []string) {
	for _, source := range sources {
		delete(c.next, Key{Stage: stage, Dir: dirRel, Source: source})
	}
}

// Len returns the number of entries accumulated this run.
func (c *Cache) Len() int {
	return len(c.next)
}

// Persist writes the accumulated table to disk, replacing the previous
// file atomically via a rename. Called unconditionally at the end of a
// run so partial progress survives failures.
func (c *Cache) Persist(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	entries := make([]entry, 0, len(c.next))
	for key, hash := range c.next {
		entries = append(entries, entry{Stage: key.Stage, Dir: key.Dir, Source: key.Source, Hash: hash})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.Dir != b.Dir {
			return a.Dir < b.Dir
		}
		return a.Source < b.Source
	})

	data, err := yaml.Marshal(snapshot{Entries: entries})
	if err != nil {
		return fmt.Errorf("serializing cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".stagemake-cache-*")
	if err != nil {
		return fmt.Errorf("persisting cache: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persisting cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persisting cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persisting cache: %w", err)
	}
	logger.Debug("Cache persisted.", "path", c.path, "entries", len(entries))
	return nil
}
