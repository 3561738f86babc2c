// Package envstack implements environment layering for the directory
// tree: each directory's effective variable set is its parent's layer
// merged with the local inherit block, while command-line overrides
// win at every depth. Values prefixed "shell:" are computed by the
// shell the first time they are read and memoized for the rest of the
// run.
package envstack

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/specialistvlad/stagemake/internal/ctxlog"
	"github.com/specialistvlad/stagemake/internal/shellexec"
)

// shellPrefix marks a variable value as lazily shell-computed.
const shellPrefix = "shell:"

// value is one variable binding. Lazy values memoize their result, and
// because child layers share bindings they did not override, a lazy
// value computes at most once per run no matter how many directories
// see it.
type value struct {
	raw      string
	dir      string // working directory for lazy resolution
	lazy     bool
	resolved bool
	result   string
}

// Layer is the effective environment for one directory. Layers are
// immutable after construction; Extend builds a child layer without
// touching the parent.
type Layer struct {
	values map[string]*value
	forced map[string]bool
}

// NewRoot builds the top layer from command-line overrides. Every name
// given here is marked forced: no descriptor at any depth may shadow it.
func NewRoot(overrides map[string]string) *Layer {
	layer := &Layer{
		values: make(map[string]*value, len(overrides)),
		forced: make(map[string]bool, len(overrides)),
	}
	for name, raw := range overrides {
		layer.values[name] = newValue(raw, ".")
		layer.forced[name] = true
	}
	return layer
}

// Extend merges a directory's inherit block over this layer. Local
// keys shadow inherited ones, except forced names, which keep their
// command-line value.
func (l *Layer) Extend(dir string, inherit map[string]string) *Layer {
	if len(inherit) == 0 {
		return l
	}
	child := &Layer{
		values: make(map[string]*value, len(l.values)+len(inherit)),
		forced: l.forced,
	}
	for name, v := range l.values {
		child.values[name] = v
	}
	for name, raw := range inherit {
		if l.forced[name] {
			continue
		}
		child.values[name] = newValue(raw, dir)
	}
	return child
}

func newValue(raw, dir string) *value {
	if rest, ok := strings.CutPrefix(raw, shellPrefix); ok {
		return &value{raw: rest, dir: dir, lazy: true}
	}
	return &value{raw: raw, resolved: true, result: raw}
}

// Value resolves one variable, running its shell command on first use.
// A lazy command's own environment is the plain process environment;
// layered variables are deliberately not visible to it, which keeps
// resolution free of ordering cycles.
func (l *Layer) Value(ctx context.Context, name string) (string, error) {
	v, ok := l.values[name]
	if !ok {
		return "", fmt.Errorf("environment variable %q not defined in this layer", name)
	}
	return l.resolve(ctx, name, v)
}

// Lookup is Value for optional variables: the second result reports
// whether the name is defined at all.
func (l *Layer) Lookup(ctx context.Context, name string) (string, bool, error) {
	v, ok := l.values[name]
	if !ok {
		return "", false, nil
	}
	resolved, err := l.resolve(ctx, name, v)
	return resolved, true, err
}

func (l *Layer) resolve(ctx context.Context, name string, v *value) (string, error) {
	if v.resolved {
		return v.result, nil
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Resolving shell-computed environment value.", "name", name, "command", v.raw, "dir", v.dir)
	out, err := shellexec.Output(ctx, v.dir, os.Environ(), v.raw)
	if err != nil {
		return "", fmt.Errorf("computing environment variable %q: %w", name, err)
	}
	v.result = strings.TrimRight(out, "\n")
	v.resolved = true
	return v.result, nil
}

// Names returns the defined variable names in sorted order, so every
// materialization of the layer is deterministic.
func (l *Layer) Names() []string {
	names := make([]string, 0, len(l.values))
	for name := range l.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Environ returns the process environment extended with this layer's
// bindings, resolving any pending lazy values. Layered bindings come
// last, so they win over the ambient environment under exec semantics.
func (l *Layer) Environ(ctx context.Context) ([]string, error) {
	env := os.Environ()
	for _, name := range l.Names() {
		resolved, err := l.resolve(ctx, name, l.values[name])
		if err != nil {
			return nil, err
		}
		env = append(env, name+"="+resolved)
	}
	return env, nil
}

// Prefix renders the layer as shell variable assignments suitable for
// prefixing a command line, e.g. `CC='gcc' REV='1a2b' `. Returns the
// empty string for an empty layer.
func (l *Layer) Prefix(ctx context.Context) (string, error) {
	names := l.Names()
	if len(names) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, name := range names {
		resolved, err := l.resolve(ctx, name, l.values[name])
		if err != nil {
			return "", err
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(Quote(resolved))
		sb.WriteByte(' ')
	}
	return sb.String(), nil
}

// Quote wraps s in single quotes for the shell, escaping embedded
// single quotes, so values copy-paste cleanly from debug output.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
