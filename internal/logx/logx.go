// Package logx holds the process-wide logger shared by all pathfit
// packages. The root package's SetLogger forwards here so subpackages
// can log through the same configuration without import cycles.
package logx

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all records. Enabled returns false so callers
// skip attribute formatting entirely when logging is off.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNop() *slog.Logger { return slog.New(nopHandler{}) }

// ptr stores the active logger. Accessed atomically so Set can race
// with logging from any goroutine.
var ptr atomic.Pointer[slog.Logger]

func init() {
	ptr.Store(newNop())
}

// Set installs l as the shared logger. nil restores the silent default.
func Set(l *slog.Logger) {
	if l == nil {
		l = newNop()
	}
	ptr.Store(l)
}

// Logger returns the current shared logger.
func Logger() *slog.Logger {
	return ptr.Load()
}
