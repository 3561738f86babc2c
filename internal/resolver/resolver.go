// Package resolver expands a transform section's source selector and
// derives the destination → contributing-sources mapping through a
// registry of destination rules. Built-in rules cover C objects (with
// and without compiler dependency extraction) and Java classes; hosts
// can register custom derivers, and descriptors can delegate to the
// shell or list destinations literally.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/stagemake/internal/config"
	"github.com/specialistvlad/stagemake/internal/ctxlog"
	"github.com/specialistvlad/stagemake/internal/envstack"
	"github.com/specialistvlad/stagemake/internal/shellexec"
)

const (
	shellSpecPrefix = "shell:"
	funcSpecPrefix  = "func:"
)

// Target is one destination with its merged contributions. Several
// sources may land on the same destination; their input and source
// lists are concatenated in derivation order.
type Target struct {
	Destination string
	Inputs      []string
	Sources     []string
}

// Mapping is the resolved output of one section, preserving the order
// destinations were first derived in.
type Mapping struct {
	Targets []*Target
	byDest  map[string]*Target
}

func (m *Mapping) add(d Derived) {
	target, ok := m.byDest[d.Destination]
	if !ok {
		target = &Target{Destination: d.Destination}
		m.byDest[d.Destination] = target
		m.Targets = append(m.Targets, target)
	}
	target.Inputs = appendMissing(target.Inputs, d.Inputs)
	target.Sources = appendMissing(target.Sources, d.Sources)
}

// Resolve expands the section's sources and derives all destinations.
// A source path that does not name an existing readable file is fatal
// for the whole run: the dependency mapping cannot be trusted without
// it.
func (r *Registry) Resolve(ctx context.Context, dir string, env *envstack.Layer, section *config.TransformSection) (*Mapping, error) {
	sources, err := r.expandSources(ctx, dir, env, section.Source)
	if err != nil {
		return nil, err
	}

	deriver, err := r.deriverFor(section.Destination)
	if err != nil {
		return nil, err
	}

	mapping := &Mapping{byDest: make(map[string]*Target)}
	for _, source := range sources {
		// Shell expansions may emit absolute paths; only relative ones
		// are anchored to the directory.
		sourcePath := source
		if !filepath.IsAbs(source) {
			sourcePath = filepath.Join(dir, source)
		}
		if err := checkReadable(sourcePath); err != nil {
			return nil, fmt.Errorf("required source file: %w", err)
		}
		derived, err := deriver.Derive(ctx, Request{Dir: dir, Source: source, Env: env})
		if err != nil {
			return nil, err
		}
		for _, d := range derived {
			mapping.add(d)
		}
	}
	return mapping, nil
}

// expandSources turns the section's source selector into a file list:
// a shell command producing one file per line, or a literal
// whitespace-separated list.
func (r *Registry) expandSources(ctx context.Context, dir string, env *envstack.Layer, spec string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	command, ok := strings.CutPrefix(spec, shellSpecPrefix)
	if !ok {
		return strings.Fields(spec), nil
	}

	environ, err := env.Environ(ctx)
	if err != nil {
		return nil, err
	}
	out, err := shellexec.Output(ctx, dir, environ, command)
	if err != nil {
		return nil, fmt.Errorf("source command %q in %s: %w", command, dir, err)
	}

	var sources []string
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			sources = append(sources, trimmed)
		}
	}
	logger.Debug("Expanded shell source list.", "dir", dir, "command", command, "count", len(sources))
	return sources, nil
}

// deriverFor picks the deriver for a destination spec: a shell
// delegation, a registered func: rule, a built-in rule tag, or a
// literal destination list.
func (r *Registry) deriverFor(spec string) (Deriver, error) {
	if command, ok := strings.CutPrefix(spec, shellSpecPrefix); ok {
		return shellRule{command: command}, nil
	}
	if name, ok := strings.CutPrefix(spec, funcSpecPrefix); ok {
		deriver, registered := r.Lookup(name)
		if !registered {
			return nil, fmt.Errorf("destination rule %q is not registered", name)
		}
		return deriver, nil
	}
	if deriver, ok := r.Lookup(spec); ok && !strings.ContainsAny(spec, " \t\n") {
		return deriver, nil
	}
	return literalRule{destinations: strings.Fields(spec)}, nil
}

// checkReadable verifies the file exists and can actually be opened.
func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func appendMissing(list []string, additions []string) []string {
	for _, add := range additions {
		seen := false
		for _, have := range list {
			if have == add {
				seen = true
				break
			}
		}
		if !seen {
			list = append(list, add)
		}
	}
	return list
}
