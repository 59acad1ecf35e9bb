// Package observe holds the OpenTelemetry metric instruments for the voice
// pipeline and the session engine, plus the Prometheus bridge that serves
// them on /metrics.
//
// Tests should build a Metrics with NewMetrics over their own MeterProvider
// instead of using DefaultMetrics.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/claude/heytrainer"

// Set sources.
const (
	SourceVoice  = "voice"
	SourceManual = "manual"
)

// Metrics holds the instruments. All fields are safe for concurrent use.
type Metrics struct {
	// Transcripts counts transcript updates seen by voice drivers.
	Transcripts metric.Int64Counter

	// Commands counts recognised commands. Attributes: "type", "status".
	Commands metric.Int64Counter

	// SetsLogged counts logged sets. Attribute: "source" (voice, manual).
	SetsLogged metric.Int64Counter

	// ParseMisses counts triggered utterances without a usable command.
	ParseMisses metric.Int64Counter

	// DuplicatesSuppressed counts transcripts skipped by deduplication.
	DuplicatesSuppressed metric.Int64Counter

	// PersistErrors counts failed workout log saves.
	PersistErrors metric.Int64Counter

	// OutboxRetries counts outbox retry attempts. Attribute: "status".
	OutboxRetries metric.Int64Counter

	// ActiveSessions tracks live workout sessions.
	ActiveSessions metric.Int64UpDownCounter

	// CommandDuration tracks time from transcript to dispatched command.
	CommandDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP latency. Attributes: "method", "route".
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Transcripts, err = m.Int64Counter("heytrainer.voice.transcripts",
		metric.WithDescription("Transcript updates received by voice drivers."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("heytrainer.voice.commands",
		metric.WithDescription("Voice commands by type and status."),
	); err != nil {
		return nil, err
	}
	if met.SetsLogged, err = m.Int64Counter("heytrainer.sets.logged",
		metric.WithDescription("Logged sets by source."),
	); err != nil {
		return nil, err
	}
	if met.ParseMisses, err = m.Int64Counter("heytrainer.voice.parse_misses",
		metric.WithDescription("Triggered utterances that did not resolve a command."),
	); err != nil {
		return nil, err
	}
	if met.DuplicatesSuppressed, err = m.Int64Counter("heytrainer.voice.duplicates_suppressed",
		metric.WithDescription("Transcripts skipped because they were already processed."),
	); err != nil {
		return nil, err
	}
	if met.PersistErrors, err = m.Int64Counter("heytrainer.workout_log.persist_errors",
		metric.WithDescription("Failed workout log saves."),
	); err != nil {
		return nil, err
	}
	if met.OutboxRetries, err = m.Int64Counter("heytrainer.outbox.retries",
		metric.WithDescription("Outbox retry attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("heytrainer.active_sessions",
		metric.WithDescription("Number of live workout sessions."),
	); err != nil {
		return nil, err
	}
	if met.CommandDuration, err = m.Float64Histogram("heytrainer.voice.command.duration",
		metric.WithDescription("Latency from transcript update to dispatched command."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("heytrainer.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics created from the global
// MeterProvider on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: creating default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordCommand counts one command outcome.
func (m *Metrics) RecordCommand(ctx context.Context, cmdType, status string) {
	m.Commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", cmdType),
		attribute.String("status", status),
	))
}

// RecordSetLogged counts one logged set.
func (m *Metrics) RecordSetLogged(ctx context.Context, source string) {
	m.SetsLogged.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordOutboxRetry counts one retry attempt.
func (m *Metrics) RecordOutboxRetry(ctx context.Context, status string) {
	m.OutboxRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
