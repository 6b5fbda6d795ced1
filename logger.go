package celltrie

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/celltrie/cell"
)

// Logger wraps slog.Logger with celltrie-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithOp adds an operation name field to the logger.
func (l *Logger) WithOp(op string) *Logger {
	return &Logger{
		Logger: l.Logger.With("op", op),
	}
}

// WithCell adds a cell field to the logger.
func (l *Logger) WithCell(c cell.Cell) *Logger {
	return &Logger{
		Logger: l.Logger.With("cell", c.String()),
	}
}

// WithOwner adds an owner field to the logger.
func (l *Logger) WithOwner(owner any) *Logger {
	return &Logger{
		Logger: l.Logger.With("owner", owner),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogSnapshot logs the creation of a snapshot.
func (l *Logger) LogSnapshot(ctx context.Context, readOnly bool) {
	l.DebugContext(ctx, "snapshot created",
		"read_only", readOnly,
	)
}

// LogClear logs a clear operation.
func (l *Logger) LogClear(ctx context.Context) {
	l.DebugContext(ctx, "map cleared")
}

// LogEncode logs writing a map to a stream.
func (l *Logger) LogEncode(ctx context.Context, entries int, written int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "encode failed",
			"entries", entries,
			"error", err,
		)

		return
	}

	l.DebugContext(ctx, "encode completed",
		"entries", entries,
		"bytes", written,
	)
}

// LogDecode logs reading a map from a stream.
func (l *Logger) LogDecode(ctx context.Context, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "decode failed",
			"entries_replayed", entries,
			"error", err,
		)

		return
	}

	l.DebugContext(ctx, "decode completed",
		"entries_replayed", entries,
	)
}

// LogCheckpoint logs a checkpoint save or load.
func (l *Logger) LogCheckpoint(ctx context.Context, action, name string, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint "+action+" failed",
			"name", name,
			"error", err,
		)

		return
	}

	l.InfoContext(ctx, "checkpoint "+action+" completed",
		"name", name,
		"entries", entries,
	)
}

// LogTrack logs the start or end of tracking an entity.
func (l *Logger) LogTrack(ctx context.Context, action string, owner any, c cell.Cell, err error) {
	if err != nil {
		l.ErrorContext(ctx, action+" failed",
			"owner", owner,
			"cell", c.String(),
			"error", err,
		)

		return
	}

	l.DebugContext(ctx, action+" completed",
		"owner", owner,
		"cell", c.String(),
	)
}

// LogMove logs an entity moving between cells.
func (l *Logger) LogMove(ctx context.Context, owner any, from, to cell.Cell, err error) {
	if err != nil {
		l.ErrorContext(ctx, "move failed",
			"owner", owner,
			"from", from.String(),
			"to", to.String(),
			"error", err,
		)

		return
	}

	l.DebugContext(ctx, "move completed",
		"owner", owner,
		"from", from.String(),
		"to", to.String(),
	)
}
