package cli

import (
	"log"
	"log/slog"
	"os"
)

// stdout/stderr carry startup/shutdown banner lines; request-scoped
// logging goes through the structured *slog.Logger built by NewLogger
// instead.
var stdout = log.New(os.Stdout, "[transferd] ", 0)
var stderr = log.New(os.Stderr, "[transferd] ", 0)

// NewLogger builds the base slog.Logger every request/background-task
// logger is derived from, honoring the verbosity toggle -verbose
// exposes on Flags.VerboseOutput.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	if Flags.VerboseOutput {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
