package logging

import (
	"context"
	"log/slog"

	"upapasta/internal/services"
)

// WithContext decorates the logger with run and stage identifiers carried by
// the context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	if id, ok := services.RunIDFromContext(ctx); ok {
		logger = logger.With(String(FieldRunID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		logger = logger.With(String(FieldStage, stage))
	}
	return logger
}
