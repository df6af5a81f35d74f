// Package telemetry builds the process logger and the OpenTelemetry meter
// exported on /metrics.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/talkmate-aac/talkmate/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const meterName = "github.com/talkmate-aac/talkmate"

// NewLogger returns a slog logger honoring the configured level and format
func NewLogger(cfg config.TelemetryConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs a meter provider backed by the prometheus exporter. The
// returned handler is nil when metrics are disabled or the exporter failed.
func Setup(cfg config.Config, logger *slog.Logger) (func(context.Context) error, http.Handler, *Metrics, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	var handler http.Handler
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Telemetry.MetricsEnabled {
		exporter, err := prometheus.New()
		if err != nil {
			logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		} else {
			opts = append(opts, sdkmetric.WithReader(exporter))
			handler = promhttp.Handler()
		}
	}
	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	metrics, err := NewMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, nil, nil, err
	}
	return provider.Shutdown, handler, metrics, nil
}

// Metrics records board activity. A nil *Metrics records nothing.
type Metrics struct {
	requests   metric.Int64Counter
	latency    metric.Float64Histogram
	fetches    metric.Int64Counter
	utterances metric.Int64Counter
}

// NewMetrics creates the instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter("talkmate.requests",
		metric.WithDescription("Submit-style operations by operation and outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("talkmate.request.duration",
		metric.WithDescription("Submit-style operation latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	fetches, err := meter.Int64Counter("talkmate.image.fetches",
		metric.WithDescription("Remote image resolutions by outcome"))
	if err != nil {
		return nil, err
	}
	utterances, err := meter.Int64Counter("talkmate.narration.utterances",
		metric.WithDescription("Utterances requested by language"))
	if err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, latency: latency, fetches: fetches, utterances: utterances}, nil
}

// RecordRequest counts one composition or advisory submission
func (m *Metrics) RecordRequest(ctx context.Context, operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	)
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordFetch counts one remote image resolution
func (m *Metrics) RecordFetch(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordUtterance counts one narration request
func (m *Metrics) RecordUtterance(ctx context.Context, lang string) {
	if m == nil {
		return
	}
	m.utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("lang", lang)))
}
