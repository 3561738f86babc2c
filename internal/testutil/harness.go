// Package testutil provides the shared harness for integration-style
// tests: build a temp directory tree from literal file contents, run
// the whole app against it, and hand back everything there is to
// assert on.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/stagemake/internal/app"
	"github.com/specialistvlad/stagemake/internal/hcl"
	"github.com/stretchr/testify/require"
)

// HarnessResult captures one app run.
type HarnessResult struct {
	Err    error
	Root   string
	App    *app.App
	Stdout string
	Logs   string
}

// WriteTree materializes files (path → content) under a fresh temp
// directory and returns its path. Parent directories are created as
// needed.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

// Option mutates the app configuration before a harness run.
type Option func(*app.Config)

// WithTarget selects a named alternate descriptor.
func WithTarget(target string) Option {
	return func(cfg *app.Config) { cfg.Target = target }
}

// WithEnvOverride adds a command-line environment override.
func WithEnvOverride(name, value string) Option {
	return func(cfg *app.Config) {
		if cfg.EnvOverrides == nil {
			cfg.EnvOverrides = make(map[string]string)
		}
		cfg.EnvOverrides[name] = value
	}
}

// RunApp drives a full build of root with debug logging captured.
func RunApp(t *testing.T, root string, opts ...Option) *HarnessResult {
	t.Helper()

	cfg, err := app.NewConfig(app.Config{RootDir: root, Debug: true})
	require.NoError(t, err)
	for _, opt := range opts {
		opt(cfg)
	}

	var stdout, logs bytes.Buffer
	buildApp := app.NewApp(&stdout, &logs, cfg, hcl.NewLoader())
	runErr := buildApp.Run(t.Context())

	return &HarnessResult{
		Err:    runErr,
		Root:   root,
		App:    buildApp,
		Stdout: stdout.String(),
		Logs:   logs.String(),
	}
}

// RunTree combines WriteTree and RunApp for the common case.
func RunTree(t *testing.T, files map[string]string, opts ...Option) *HarnessResult {
	t.Helper()
	return RunApp(t, WriteTree(t, files), opts...)
}
