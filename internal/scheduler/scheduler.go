// Package scheduler executes the enumerated jobs of a stage: strictly
// one at a time by default, or as bounded concurrent batches of
// sibling child processes when a section declares a parallel width.
// Any failing child aborts the run with its exit code after the failed
// job's cache contributions are rolled back.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/specialistvlad/stagemake/internal/cache"
	"github.com/specialistvlad/stagemake/internal/ctxlog"
	"github.com/specialistvlad/stagemake/internal/shellexec"
	"golang.org/x/sync/errgroup"
)

// JobError reports a failed job together with the exit code the whole
// process should terminate with.
type JobError struct {
	Job  *Job
	Code int
	Err  error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job for %s failed: %v", e.Job.label(), e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Scheduler runs job queues against a shared cache. The cache is only
// ever touched from the calling goroutine; children report back solely
// through their exit status, so no locking is needed.
type Scheduler struct {
	cache *cache.Cache
	out   io.Writer
}

// New creates a Scheduler narrating to out.
func New(c *cache.Cache, out io.Writer) *Scheduler {
	return &Scheduler{cache: c, out: out}
}

// Run drains the queue in order. A job declaring a parallel width
// pulls compatible siblings off the front of the queue and runs them
// as one concurrent batch; everything else runs synchronously. The
// first failure stops the queue.
func (s *Scheduler) Run(ctx context.Context, jobs []*Job) error {
	queue := jobs
	for len(queue) > 0 {
		job := queue[0]
		queue = queue[1:]

		if job.ParallelWidth > 1 {
			batch := []*Job{job}
			for len(queue) > 0 && len(batch) < job.ParallelWidth && compatible(job, queue[0]) {
				batch = append(batch, queue[0])
				queue = queue[1:]
			}
			if err := s.runBatch(ctx, batch); err != nil {
				return err
			}
			continue
		}

		if err := s.runOne(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// compatible reports whether next may join a batch led by lead: same
// stage, same directory, same declared width.
func compatible(lead, next *Job) bool {
	return next.Stage == lead.Stage &&
		next.Dir == lead.Dir &&
		next.ParallelWidth == lead.ParallelWidth
}

// runOne executes a single job synchronously, rolling back its cache
// contributions on failure.
func (s *Scheduler) runOne(ctx context.Context, job *Job) error {
	if !s.prepare(ctx, job) {
		return nil
	}
	if err := s.runCommand(ctx, job); err != nil {
		s.cache.Rollback(job.Stage, job.DirRel, job.ContributingSources)
		return &JobError{Job: job, Code: shellexec.ExitCode(err), Err: err}
	}
	return nil
}

// runBatch runs all jobs concurrently and waits for every one of them
// before judging the batch. All failed members are rolled back; the
// first failure's exit code wins.
func (s *Scheduler) runBatch(ctx context.Context, batch []*Job) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running parallel batch.", "size", len(batch), "dir", batch[0].DirRel, "stage", batch[0].Stage)

	// Narration happens here, before any child starts: the narration
	// writer is only ever touched from the control goroutine.
	pending := make([]*Job, 0, len(batch))
	for _, job := range batch {
		if s.prepare(ctx, job) {
			pending = append(pending, job)
		}
	}

	var group errgroup.Group
	errs := make([]error, len(pending))
	for i, job := range pending {
		group.Go(func() error {
			errs[i] = s.runCommand(ctx, job)
			return errs[i]
		})
	}
	if group.Wait() == nil {
		return nil
	}

	var failed *JobError
	for i, err := range errs {
		if err == nil {
			continue
		}
		job := pending[i]
		s.cache.Rollback(job.Stage, job.DirRel, job.ContributingSources)
		if failed == nil {
			failed = &JobError{Job: job, Code: shellexec.ExitCode(err), Err: err}
		}
	}
	return failed
}

// prepare narrates one job and reports whether it has a real command
// to run. Empty and display-only jobs are fully handled here. Always
// called from the control goroutine, never from a batch member.
func (s *Scheduler) prepare(ctx context.Context, job *Job) bool {
	logger := ctxlog.FromContext(ctx)

	script := strings.TrimSpace(job.Script)
	if script == "" {
		logger.Warn("Job has an empty command, skipping.", "destination", job.label(), "dir", job.DirRel)
		return false
	}
	if script == "pwd" {
		// Display-only pseudo-command, not a real transformation.
		fmt.Fprintf(s.out, "%s\n", job.Dir)
		return false
	}

	fmt.Fprintf(s.out, "%s: %s\n", job.label(), job.Reason)
	logger.Debug("Executing job.", "stage", job.Stage, "dir", job.DirRel, "command", job.Command)
	return true
}

// runCommand executes one prepared job's command. It never writes to
// the narration writer, so batch members may call it concurrently; the
// logger's handler serializes its own output.
func (s *Scheduler) runCommand(ctx context.Context, job *Job) error {
	logger := ctxlog.FromContext(ctx)
	if err := shellexec.Run(ctx, job.Dir, os.Environ(), job.Command); err != nil {
		logger.Error("Job command failed.", "command", job.Command, "error", err)
		return err
	}
	return nil
}
