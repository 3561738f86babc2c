package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/stagemake/internal/app"
	"github.com/spf13/pflag"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated
// app.Config, a boolean indicating the program should exit cleanly
// (help was requested), or an ExitError for usage mistakes.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := pflag.NewFlagSet("stagemake", pflag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
stagemake - an incremental, staged build orchestrator.

Usage:
  stagemake [options] [ROOT_DIR]

Arguments:
  ROOT_DIR
    Directory tree to build. Defaults to the current directory.

Options:
`)
		fmt.Fprintln(output, flagSet.FlagUsages())
	}

	terseFlag := flagSet.Bool("terse", false, "Print only per-job narration; suppress reasoning output.")
	debugFlag := flagSet.Bool("debug", false, "Print full reasoning and every materialized command.")
	envFlags := flagSet.StringArrayP("env", "e", nil, "Environment override as NAME=VALUE; repeatable, wins at every depth.")
	targetFlag := flagSet.StringP("target", "t", "", "Named alternate top-level descriptor to build.")
	cacheFlag := flagSet.String("cache", "", "Path of the persisted hash cache. Defaults to ROOT_DIR/"+app.CacheFileName+".")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: "at most one ROOT_DIR argument is accepted"}
	}
	root := ""
	if flagSet.NArg() == 1 {
		root = flagSet.Arg(0)
	}

	overrides, err := parseOverrides(*envFlags)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	config, err := app.NewConfig(app.Config{
		RootDir:      root,
		Target:       *targetFlag,
		EnvOverrides: overrides,
		CachePath:    *cacheFlag,
		Terse:        *terseFlag,
		Debug:        *debugFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return config, false, nil
}

// parseOverrides splits repeated --env values into a name→value map.
func parseOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --env value %q: expected NAME=VALUE", pair)
		}
		overrides[name] = value
	}
	return overrides, nil
}
