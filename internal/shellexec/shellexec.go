// Package shellexec is the single place the engine spawns child
// processes. Every shell-delegated spec (gating conditions, source
// expansion, destination rules, lazy environment values, transform
// commands) funnels through here, always as `sh -c <script>` with an
// explicit working directory and environment.
package shellexec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// command builds the sh invocation without starting it.
func command(ctx context.Context, dir string, env []string, script string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = dir
	cmd.Env = env
	return cmd
}

// Run executes script in dir, streaming its output to the parent's
// stdout and stderr. Used for transform commands and forced-make jobs,
// whose narration belongs on the user's terminal.
func Run(ctx context.Context, dir string, env []string, script string) error {
	cmd := command(ctx, dir, env, script)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Output executes script in dir and returns its captured stdout.
// Stderr passes through to the parent so diagnostics from the child
// stay visible.
func Output(ctx context.Context, dir string, env []string, script string) (string, error) {
	cmd := command(ctx, dir, env, script)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), err
	}
	return stdout.String(), nil
}

// Succeeds executes script in dir with all output discarded and
// reports whether it exited zero. Used for disregard_unless gating,
// where the exit status is the answer and the output is noise.
func Succeeds(ctx context.Context, dir string, env []string, script string) bool {
	cmd := command(ctx, dir, env, script)
	return cmd.Run() == nil
}

// ExitCode extracts a child's exit status from a Run error. A child
// killed by a signal has no exit status; it maps to 1 so the engine
// still terminates nonzero through the same path.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
	}
	return 1
}
