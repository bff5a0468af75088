package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes marketplace instruments.
type Metrics struct {
	transitions       metric.Int64Counter
	ruleViolations    metric.Int64Counter
	concurrency       metric.Int64Counter
	cacheInvalidation metric.Int64Counter
	jobsDispatched    metric.Int64Counter
	jobDuration       metric.Float64Histogram
	rateLimitAllowed  metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the marketplace instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "collabhub"
	}
	meter := provider.Meter(name)

	transitions, err := meter.Int64Counter("collabhub_transitions_total",
		metric.WithDescription("Committed lifecycle transitions by entity and edge."))
	if err != nil {
		return nil, err
	}
	ruleViolations, err := meter.Int64Counter("collabhub_rule_violations_total",
		metric.WithDescription("Rejected transitions by violated rule."))
	if err != nil {
		return nil, err
	}
	concurrency, err := meter.Int64Counter("collabhub_concurrent_modifications_total",
		metric.WithDescription("Write sets rolled back by a version conflict."))
	if err != nil {
		return nil, err
	}
	cacheInvalidation, err := meter.Int64Counter("collabhub_cache_invalidations_total")
	if err != nil {
		return nil, err
	}
	jobsDispatched, err := meter.Int64Counter("collabhub_jobs_dispatched_total")
	if err != nil {
		return nil, err
	}
	jobDuration, err := meter.Float64Histogram("collabhub_job_duration_seconds", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("collabhub_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("collabhub_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		transitions:       transitions,
		ruleViolations:    ruleViolations,
		concurrency:       concurrency,
		cacheInvalidation: cacheInvalidation,
		jobsDispatched:    jobsDispatched,
		jobDuration:       jobDuration,
		rateLimitAllowed:  rateLimitAllowed,
		rateLimitDenied:   rateLimitDenied,
	}, nil
}

// RecordTransition counts a committed transition.
func (m *Metrics) RecordTransition(ctx context.Context, entity, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity", entity),
		attribute.String("from_status", from),
		attribute.String("to_status", to),
	)
	m.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRuleViolation counts one rejected rule.
func (m *Metrics) RecordRuleViolation(ctx context.Context, entity, rule string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity", entity),
		attribute.String("rule", rule),
	)
	m.ruleViolations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordConcurrentModification(ctx context.Context, entity string) {
	if m == nil {
		return
	}
	m.concurrency.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("entity", entity))...))
}

func (m *Metrics) RecordCacheInvalidation(ctx context.Context, entity, profileType string, keys int) {
	if m == nil || keys <= 0 {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity", entity),
		attribute.String("profile_type", profileType),
	)
	m.cacheInvalidation.Add(ctx, int64(keys), metric.WithAttributes(attrs...))
}

// RecordJob counts a background job run and its latency.
func (m *Metrics) RecordJob(ctx context.Context, job, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("job", job),
		attribute.String("status", status),
	)...)
	m.jobsDispatched.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, profileType, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("profile_type", strings.TrimSpace(profileType)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, profileType, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("profile_type", strings.TrimSpace(profileType)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Profile and record ids are never labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"entity":       {},
	"from_status":  {},
	"to_status":    {},
	"rule":         {},
	"job":          {},
	"status":       {},
	"endpoint":     {},
	"profile_type": {},
	"reason":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
