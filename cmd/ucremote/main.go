// UC Remote Core - Unfolded Circle Remote hub client
//
// This is the main entry point for the ucremote command. It talks to a
// Remote Two / Remote 3 hub over its local REST API: discovery, API key
// management, state queries and commands. `ucremote serve` runs the
// long-lived bridge that mirrors hub state to MQTT, InfluxDB and a local
// REST/WebSocket API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/uc-remote-core/internal/hub"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Exit codes. Scripts can tell a bad credential from a sleeping hub.
const (
	exitOK          = 0
	exitError       = 1
	exitAuth        = 3
	exitUnreachable = 4
	exitNotFound    = 5
)

func main() {
	// Cancel on Ctrl+C and SIGTERM so serve can shut down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCmd(newApp(os.Stdout, os.Stderr))
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(exitCode(err))
	}
}

// exitCode maps an engine error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, hub.ErrAuthInvalid), errors.Is(err, hub.ErrAuthRejected):
		return exitAuth
	case errors.Is(err, hub.ErrUnreachable), errors.Is(err, hub.ErrTimeout):
		return exitUnreachable
	case errors.Is(err, hub.ErrNotFound):
		return exitNotFound
	default:
		return exitError
	}
}
