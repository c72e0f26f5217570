package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON output so log pipelines
// can index token ids and tx hashes from reconciliation warnings.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
