package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/markpact/internal/app"
	"github.com/vk/markpact/internal/cli"
	"github.com/vk/markpact/internal/hcl"
)

// main is the entrypoint for the markpact application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()

	if err != nil {
		code := exitCode(err)
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
		} else if code != app.ExitInterrupted {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(code)
	}
}

// exitCode maps an error returned by run to the process exit status.
func exitCode(err error) int {
	var exitErr *cli.ExitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, app.ErrInterrupted), errors.Is(err, context.Canceled):
		return app.ExitInterrupted
	default:
		return 1
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on programming errors; surface them as a clean error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	markpact, err := app.NewApp(outW, appConfig, hcl.NewLoader())
	if err != nil {
		return err
	}
	defer markpact.Close()

	return markpact.Run(ctx)
}
