package pathfit

import (
	"log/slog"

	"github.com/pathfit/pathfit/internal/logx"
)

// SetLogger configures the logger for pathfit and all its sub-packages.
// By default, pathfit produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by pathfit:
//   - [slog.LevelDebug]: per-iteration diagnostics (loss, learning rates)
//   - [slog.LevelInfo]: stage lifecycle events (shapes placed, stage finished)
//   - [slog.LevelWarn]: non-fatal issues (artifact write failures)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	pathfit.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	pathfit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logx.Set(l)
}

// Logger returns the current logger used by pathfit.
// Sub-packages (render/, optimize/, diag/) call this to share the same
// logger configuration without introducing import cycles.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logx.Logger()
}
