package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/stagemake/internal/cache"
	"github.com/specialistvlad/stagemake/internal/ctxlog"
	"github.com/specialistvlad/stagemake/internal/envstack"
	"github.com/specialistvlad/stagemake/internal/resolver"
	"github.com/specialistvlad/stagemake/internal/scheduler"
	"github.com/specialistvlad/stagemake/internal/walker"
)

// Run executes one full build: walk the tree, run forced-make jobs,
// then process every stage in ascending order. The cache is persisted
// on the way out no matter how the run ended, so partial progress
// always survives.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	cfg := a.config

	cachePath := cfg.CachePath
	if cachePath == "" {
		cachePath = filepath.Join(cfg.RootDir, CacheFileName)
	}
	buildCache := cache.Load(ctx, cachePath)
	defer func() {
		if err := buildCache.Persist(ctx); err != nil {
			a.logger.Error("Failed to persist cache.", "path", cachePath, "error", err)
		}
	}()

	rootEnv := envstack.NewRoot(cfg.EnvOverrides)
	treeWalker := walker.New(a.loader, cfg.Target)
	a.logger.Debug("Walking directory tree.", "root", cfg.RootDir, "target", cfg.Target)
	result, err := treeWalker.Walk(ctx, cfg.RootDir, rootEnv)
	if err != nil {
		return fmt.Errorf("walking %s: %w", cfg.RootDir, err)
	}
	a.logger.Debug("Walk finished.", "directories", len(result.Nodes), "forced_jobs", len(result.ForcedJobs))

	// Post-order from the walk is fine for correctness, but job
	// emission should not depend on readdir quirks across platforms.
	nodes := append([]*walker.Node(nil), result.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Rel < nodes[j].Rel })

	sched := scheduler.New(buildCache, a.outW)

	if len(result.ForcedJobs) > 0 {
		a.logger.Info("▶️ Running forced-make jobs.", "count", len(result.ForcedJobs))
		if err := sched.Run(ctx, result.ForcedJobs); err != nil {
			return err
		}
	}

	maxStage := walker.MaxStage(nodes)
	if maxStage < 0 {
		a.logger.Info("No stages declared anywhere in the tree, nothing to build.")
		return nil
	}

	total := 0
	for stage := 0; stage <= maxStage; stage++ {
		jobs, err := a.enumerateStage(ctx, buildCache, nodes, stage)
		if err != nil {
			return err
		}
		a.logger.Info("▶️ Stage starting.", "stage", stageLabel(result.StageNames, stage), "jobs", len(jobs))
		if err := sched.Run(ctx, jobs); err != nil {
			return err
		}
		total += len(jobs)
	}

	a.logger.Info("🏁 Build finished.", "stages", maxStage+1, "jobs", total)
	return nil
}

// stageLabel renders a stage number with its human name, when one was
// registered anywhere in the tree.
func stageLabel(names map[int]string, stage int) string {
	if name, ok := names[stage]; ok {
		return fmt.Sprintf("%d (%s)", stage, name)
	}
	return fmt.Sprintf("%d", stage)
}

// enumerateStage builds the ordered job list for one stage: directories
// in sorted order, sections in descriptor order, destinations sorted
// within a section. Every examined source is hashed into the new cache
// table here, whether or not its destination turns out stale.
func (a *App) enumerateStage(ctx context.Context, buildCache *cache.Cache, nodes []*walker.Node, stage int) ([]*scheduler.Job, error) {
	logger := ctxlog.FromContext(ctx)
	var jobs []*scheduler.Job

	for _, node := range nodes {
		sections := node.Descriptor.Stages[stage]
		if len(sections) == 0 {
			continue
		}

		prefix, err := node.Env.Prefix(ctx)
		if err != nil {
			return nil, err
		}

		for _, section := range sections {
			mapping, err := a.rules.Resolve(ctx, node.Path, node.Env, section)
			if err != nil {
				return nil, err
			}

			targets := append([]*resolver.Target(nil), mapping.Targets...)
			sort.Slice(targets, func(i, j int) bool { return targets[i].Destination < targets[j].Destination })

			emitted := false
			for _, target := range targets {
				var changed []string
				for _, source := range target.Sources {
					sourcePath := source
					if !filepath.IsAbs(source) {
						sourcePath = filepath.Join(node.Path, source)
					}
					sourceChanged, err := buildCache.Observe(stage, node.Rel, source, sourcePath)
					if err != nil {
						return nil, err
					}
					if sourceChanged {
						changed = append(changed, displayPath(node.Rel, source))
					}
				}

				// onlyonce: sources above are still hashed, but only
				// the first stale destination of the section may emit.
				if section.OnlyOnce && emitted {
					continue
				}

				destPath := target.Destination
				if !filepath.IsAbs(destPath) {
					destPath = filepath.Join(node.Path, destPath)
				}
				_, statErr := os.Stat(destPath)
				absent := statErr != nil
				if !absent && len(changed) == 0 {
					logger.Debug("Destination up to date.", "stage", stage, "destination", displayPath(node.Rel, target.Destination))
					continue
				}

				reason := "destination absent"
				if !absent {
					reason = fmt.Sprintf("source changed (%s)", strings.Join(changed, ", "))
				}

				script, err := scheduler.RenderCommand(section.Transform, target.Inputs, target.Destination, node.Path)
				if err != nil {
					return nil, err
				}

				jobs = append(jobs, &scheduler.Job{
					Stage:               stage,
					Dir:                 node.Path,
					DirRel:              node.Rel,
					Destination:         displayPath(node.Rel, target.Destination),
					Script:              script,
					Command:             prefix + script,
					Reason:              reason,
					ContributingSources: target.Sources,
					ParallelWidth:       section.Parallel,
				})
				emitted = true
			}
		}
	}
	return jobs, nil
}

// displayPath renders a directory-relative path for narration, keeping
// absolute paths (system headers from dependency extraction) as-is.
func displayPath(dirRel, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dirRel, path)
}
