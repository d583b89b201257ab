package observability

import (
	"cmp"
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	correlationIDKey struct{}
	actorKey         struct{}
)

// NewLogger builds the JSON production logger for one labelflow process.
// Every entry carries the process name, e.g. "labelflow-api".
func NewLogger(level, process string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(strings.ToLower(cmp.Or(strings.TrimSpace(level), "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if process = strings.TrimSpace(process); process != "" {
		cfg.InitialFields = map[string]any{"process": process}
	}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	correlationID, ok := ctx.Value(correlationIDKey{}).(string)
	if !ok || correlationID == "" {
		return "", false
	}

	return correlationID, true
}

// WithActor stores the calling actor so log lines can be attributed.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	if ctx == nil {
		return domain.Actor{}, false
	}

	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	if !ok || actor.ID == "" {
		return domain.Actor{}, false
	}

	return actor, true
}

// WithContextLogger decorates logger with the correlation id and actor found in
// ctx. A nil logger yields a no-op logger.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	fields := make([]zap.Field, 0, 3)
	if correlationID, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, zap.String("correlationId", correlationID))
	}
	if actor, ok := ActorFromContext(ctx); ok {
		fields = append(fields, zap.String("actorId", actor.ID), zap.String("actorRole", string(actor.Role)))
	}
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}
