// File: cmd/shelfcheck/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/shelfcheck/cmd"
	"github.com/xkilldash9x/shelfcheck/internal/observability"
)

const panicLogFile = "panic.log"

// Exit codes.
const (
	exitOK        = 0
	exitFailed    = 1
	exitError     = 2
	exitCancelled = 130
)

// Function variables swapped in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	// SIGINT and SIGTERM cancel the run; teardown steps still execute.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := exitCode(cmd.Execute(ctx), ctx.Err())
	observability.Shutdown()
	osExit(code)
}

// exitCode maps the command result onto the process status. Scenario failures exit 1,
// everything else that went wrong exits 2. A run interrupted by a signal exits 130.
func exitCode(err, ctxErr error) int {
	switch {
	case err == nil:
		return exitOK
	case ctxErr != nil || errors.Is(err, context.Canceled):
		return exitCancelled
	case errors.Is(err, cmd.ErrScenariosFailed):
		return exitFailed
	default:
		return exitError
	}
}

// handlePanic writes the stack to panic.log before exiting.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(exitError)
		return
	}
	fmt.Fprintf(os.Stderr, "shelfcheck crashed; details logged to %s\n", panicLogFile)
	osExit(exitError)
}
