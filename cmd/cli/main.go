package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/specialistvlad/stagemake/internal/app"
	"github.com/specialistvlad/stagemake/internal/cli"
	"github.com/specialistvlad/stagemake/internal/hcl"
	"github.com/specialistvlad/stagemake/internal/scheduler"
)

// main is the entrypoint for the stagemake binary.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		// A failed child job terminates the whole run with the
		// child's own exit code.
		var jobErr *scheduler.JobError
		if errors.As(err, &jobErr) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(jobErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and
// error handling.
func run(outW, errW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	loader := hcl.NewLoader()
	buildApp := app.NewApp(outW, errW, appConfig, loader)
	return buildApp.Run(context.Background())
}
