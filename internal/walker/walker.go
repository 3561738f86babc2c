// Package walker discovers the build-participating directories of a
// tree. It loads each directory's descriptor, applies disregard_unless
// gating and subdirs overrides, layers the environment down the tree,
// and collects stage naming — all into an explicit Result that later
// phases consume; there is no process-wide registry.
package walker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/specialistvlad/stagemake/internal/config"
	"github.com/specialistvlad/stagemake/internal/ctxlog"
	"github.com/specialistvlad/stagemake/internal/envstack"
	"github.com/specialistvlad/stagemake/internal/fsutil"
	"github.com/specialistvlad/stagemake/internal/scheduler"
	"github.com/specialistvlad/stagemake/internal/shellexec"
)

// Node is one participating directory with its resolved descriptor and
// effective environment layer.
type Node struct {
	Path       string // as joined from the invocation root argument
	Rel        string // root-relative; "." for the root itself
	Descriptor *config.Descriptor
	Env        *envstack.Layer
}

// Result is everything the walk phase produces. It is treated as
// read-only by the stage loop.
type Result struct {
	// Nodes lists participating directories in post-order. Their
	// relative order only matters for deterministic job emission.
	Nodes []*Node

	// ForcedJobs are the standalone jobs emitted for subdirs entries
	// with a forced-make override, in walk order. They run before any
	// stage.
	ForcedJobs []*scheduler.Job

	// StageNames maps stage numbers to human labels collected from
	// naming entries across the tree. Last writer wins on collisions.
	StageNames map[int]string
}

// Walker traverses a directory tree through a descriptor loader.
type Walker struct {
	loader config.Loader
	target string
}

// New creates a Walker. target, when non-empty, selects the named
// alternate descriptor in every directory that has a descriptor file.
func New(loader config.Loader, target string) *Walker {
	return &Walker{loader: loader, target: target}
}

// Walk traverses root with the given inherited environment and returns
// the flat directory list plus forced jobs and stage names.
func (w *Walker) Walk(ctx context.Context, root string, rootEnv *envstack.Layer) (*Result, error) {
	result := &Result{StageNames: make(map[int]string)}
	if err := w.visit(ctx, result, root, ".", rootEnv); err != nil {
		return nil, err
	}
	return result, nil
}

// visit processes one directory and recurses into its children,
// appending the directory itself post-order.
func (w *Walker) visit(ctx context.Context, result *Result, path, rel string, inherited *envstack.Layer) error {
	logger := ctxlog.FromContext(ctx)

	descriptor, err := w.loader.Load(ctx, path, w.target)
	if err != nil {
		return err
	}

	for stage, label := range descriptor.Naming {
		result.StageNames[stage] = label
	}

	if descriptor.DisregardUnless != "" {
		environ, err := inherited.Environ(ctx)
		if err != nil {
			return err
		}
		if !shellexec.Succeeds(ctx, path, environ, descriptor.DisregardUnless) {
			logger.Debug("Directory gated out, skipping subtree.", "dir", rel, "condition", descriptor.DisregardUnless)
			return nil
		}
	}

	env := inherited.Extend(path, descriptor.Inherit)

	children, err := fsutil.ListSubdirectories(path)
	if err != nil {
		return fmt.Errorf("listing %s: %w", path, err)
	}
	for _, name := range children {
		childPath := filepath.Join(path, name)
		childRel := filepath.Join(rel, name)

		if policy, ok := descriptor.Subdirs[name]; ok {
			if policy.Ignore {
				logger.Debug("Subdirectory ignored by policy.", "dir", childRel)
				continue
			}
			if policy.MakeCommand != "" {
				job, err := forcedJob(ctx, childPath, childRel, env, policy.MakeCommand)
				if err != nil {
					return err
				}
				result.ForcedJobs = append(result.ForcedJobs, job)
				logger.Debug("Forced-make override, not recursing.", "dir", childRel, "command", policy.MakeCommand)
				continue
			}
		}

		if err := w.visit(ctx, result, childPath, childRel, env); err != nil {
			return err
		}
	}

	result.Nodes = append(result.Nodes, &Node{Path: path, Rel: rel, Descriptor: descriptor, Env: env})
	return nil
}

// forcedJob materializes the standalone job replacing recursion into a
// forced-make subdirectory. It inherits the parent's effective
// environment, since the child's own descriptor is never loaded.
func forcedJob(ctx context.Context, path, rel string, env *envstack.Layer, command string) (*scheduler.Job, error) {
	prefix, err := env.Prefix(ctx)
	if err != nil {
		return nil, err
	}
	return &scheduler.Job{
		Dir:     path,
		DirRel:  rel,
		Script:  command,
		Command: prefix + command,
		Reason:  "make forced",
	}, nil
}

// MaxStage scans every node's descriptor for the highest stage number
// present. A tree with no stage blocks at all reports -1, which the
// stage loop treats as nothing to do.
func MaxStage(nodes []*Node) int {
	max := -1
	for _, node := range nodes {
		if n := node.Descriptor.MaxStage(); n > max {
			max = n
		}
	}
	return max
}
