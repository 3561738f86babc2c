package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/stagemake/internal/ctxlog"
	"github.com/specialistvlad/stagemake/internal/envstack"
	"github.com/specialistvlad/stagemake/internal/shellexec"
)

// SourceEnvVar exposes the current source file to shell-delegated
// destination rules.
const SourceEnvVar = "STAGEMAKE_SOURCE"

// Derived is one destination produced for a source file. Inputs are
// the files substituted into the transform's {in} placeholder; Sources
// are the contributing files whose content decides staleness. For most
// rules they are the same; dependency extraction widens Sources with
// headers while keeping Inputs at just the translation unit.
type Derived struct {
	Destination string
	Inputs      []string
	Sources     []string
}

// Request carries the per-source context a deriver needs.
type Request struct {
	Dir    string // working directory, as joined from the invocation root
	Source string // source path relative to Dir
	Env    *envstack.Layer
}

// Deriver derives the destinations for one source file.
type Deriver interface {
	Derive(ctx context.Context, req Request) ([]Derived, error)
}

// Registry maps rule tags to derivers. The built-in rules are
// registered at construction; hosts add custom "func:" rules on top.
type Registry struct {
	derivers map[string]Deriver
}

// NewRegistry returns a registry pre-populated with the built-in rules.
func NewRegistry() *Registry {
	r := &Registry{derivers: make(map[string]Deriver)}
	r.Register("object", suffixRule{from: ".c", to: ".o"})
	r.Register("object-deps", objectDepsRule{})
	r.Register("class", suffixRule{from: ".java", to: ".class"})
	return r
}

// Register adds or replaces a deriver under the given tag.
func (r *Registry) Register(tag string, d Deriver) {
	r.derivers[tag] = d
}

// Lookup returns the deriver registered under tag, if any.
func (r *Registry) Lookup(tag string) (Deriver, bool) {
	d, ok := r.derivers[tag]
	return d, ok
}

// suffixRule swaps a filename suffix, keeping the stem: .c → .o,
// .java → .class. The source itself is the sole dependency.
type suffixRule struct {
	from, to string
}

func (s suffixRule) Derive(ctx context.Context, req Request) ([]Derived, error) {
	destination, ok := swapSuffix(req.Source, s.from, s.to)
	if !ok {
		return nil, fmt.Errorf("source %q does not end in %q", req.Source, s.from)
	}
	return []Derived{{
		Destination: destination,
		Inputs:      []string{req.Source},
		Sources:     []string{req.Source},
	}}, nil
}

// objectDepsRule is the compiled-language variant of the object rule:
// it asks the compiler for the full include closure and uses that as
// the contributing-source set, so editing a header rebuilds every
// object that includes it.
type objectDepsRule struct{}

func (objectDepsRule) Derive(ctx context.Context, req Request) ([]Derived, error) {
	logger := ctxlog.FromContext(ctx)
	destination, ok := swapSuffix(req.Source, ".c", ".o")
	if !ok {
		return nil, fmt.Errorf("source %q does not end in \".c\"", req.Source)
	}

	sources := []string{req.Source}
	deps, err := listDependencies(ctx, req)
	if err != nil {
		// Dependency listing is best effort: without it the object
		// still rebuilds when its own translation unit changes.
		logger.Warn("Dependency listing failed, falling back to the source alone.",
			"source", req.Source, "dir", req.Dir, "error", err)
	} else if len(deps) > 0 {
		sources = deps
	}

	return []Derived{{
		Destination: destination,
		Inputs:      []string{req.Source},
		Sources:     sources,
	}}, nil
}

// shellRule runs a user-supplied command once per source, with the
// source exposed via SourceEnvVar; each stdout line is one destination.
type shellRule struct {
	command string
}

func (s shellRule) Derive(ctx context.Context, req Request) ([]Derived, error) {
	environ, err := req.Env.Environ(ctx)
	if err != nil {
		return nil, err
	}
	environ = append(environ, SourceEnvVar+"="+req.Source)

	out, err := shellexec.Output(ctx, req.Dir, environ, s.command)
	if err != nil {
		return nil, fmt.Errorf("destination command %q failed for %s: %w", s.command, req.Source, err)
	}

	var derived []Derived
	for _, line := range strings.Split(out, "\n") {
		destination := strings.TrimSpace(line)
		if destination == "" {
			continue
		}
		derived = append(derived, Derived{
			Destination: destination,
			Inputs:      []string{req.Source},
			Sources:     []string{req.Source},
		})
	}
	return derived, nil
}

// literalRule maps every source onto a fixed list of destinations.
type literalRule struct {
	destinations []string
}

func (l literalRule) Derive(ctx context.Context, req Request) ([]Derived, error) {
	derived := make([]Derived, 0, len(l.destinations))
	for _, destination := range l.destinations {
		derived = append(derived, Derived{
			Destination: destination,
			Inputs:      []string{req.Source},
			Sources:     []string{req.Source},
		})
	}
	return derived, nil
}

// swapSuffix replaces suffix from with to, reporting whether the name
// actually carried the expected suffix.
func swapSuffix(name, from, to string) (string, bool) {
	stem, ok := strings.CutSuffix(name, from)
	if !ok {
		return "", false
	}
	return stem + to, true
}
