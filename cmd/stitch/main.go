// Command stitch reconciles split part files, fetches assets with bounded
// concurrency and publishes the results to object storage.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitSourceNotAccess  = 3
	ExitStorageError     = 5
	ExitValidationFailed = 7
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := newCLI(stdout, stderr)
	cli.root.SetArgs(args)

	err := cli.root.ExecuteContext(ctx)
	cli.syncLogger()
	if err != nil {
		code := exitCode(err)
		if code != ExitValidationFailed {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return code
	}
	return ExitSuccess
}

// exitError attaches a process exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitGeneralError
}
