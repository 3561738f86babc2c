package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/stagemake/internal/envstack"
	"github.com/specialistvlad/stagemake/internal/shellexec"
)

// listDependencies asks the compiler for the include closure of one
// translation unit and parses its GNU-make-style `target: dep dep`
// output. The compiler command comes from the directory's CC variable,
// defaulting to cc.
func listDependencies(ctx context.Context, req Request) ([]string, error) {
	compiler, defined, err := req.Env.Lookup(ctx, "CC")
	if err != nil {
		return nil, err
	}
	if !defined || strings.TrimSpace(compiler) == "" {
		compiler = "cc"
	}

	environ, err := req.Env.Environ(ctx)
	if err != nil {
		return nil, err
	}

	command := compiler + " -MM " + envstack.Quote(req.Source)
	out, err := shellexec.Output(ctx, req.Dir, environ, command)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}
	return parseMakeDeps(out)
}

// parseMakeDeps extracts the dependency list from make-rule text of
// the form `x.o: x.c a.h \` with backslash-continued lines. The rule
// target itself is dropped; only the dependencies matter.
func parseMakeDeps(out string) ([]string, error) {
	joined := strings.ReplaceAll(out, "\\\n", " ")
	joined = strings.ReplaceAll(joined, "\\\r\n", " ")

	colon := strings.Index(joined, ":")
	if colon < 0 {
		return nil, fmt.Errorf("no rule target in dependency output %q", strings.TrimSpace(out))
	}

	deps := strings.Fields(joined[colon+1:])
	if len(deps) == 0 {
		return nil, fmt.Errorf("empty dependency list in output %q", strings.TrimSpace(out))
	}
	return deps, nil
}
