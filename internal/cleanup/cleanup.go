package cleanup

import (
	"context"
	"log/slog"

	"github.com/snnyvrz/book-catalog/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Remover deletes a stored asset. asset.Store satisfies it.
type Remover interface {
	Remove(ctx context.Context, ref string) error
}

// Result is the outcome of one best-effort removal. It is logged and counted,
// never returned to the request that scheduled it.
type Result struct {
	Ref     string
	Reason  string
	Attempt int
	Err     error
}

func (r Result) OK() bool {
	return r.Err == nil
}

type reporter struct {
	logger  *slog.Logger
	counter metric.Int64Counter
}

func newReporter(logger *slog.Logger) reporter {
	if logger == nil {
		logger = slog.Default()
	}

	counter, err := otel.Meter("github.com/snnyvrz/book-catalog/internal/cleanup").Int64Counter(
		"catalog.asset.cleanup",
		metric.WithDescription("Asset removals attempted after a record mutation"),
	)
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter("").Int64Counter("catalog.asset.cleanup")
	}

	return reporter{logger: logger, counter: counter}
}

func (r reporter) report(ctx context.Context, res Result, final bool) {
	logger := logging.FromContext(ctx, r.logger).With(
		slog.String("asset_ref", res.Ref),
		slog.String("reason", res.Reason),
		slog.Int("attempt", res.Attempt),
	)

	if res.OK() {
		r.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
		logger.DebugContext(ctx, "asset removed")
		return
	}

	r.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
	if final {
		logger.ErrorContext(ctx, "asset cleanup failed", slog.Any("error", res.Err))
		return
	}
	logger.WarnContext(ctx, "asset cleanup failed, will retry", slog.Any("error", res.Err))
}
