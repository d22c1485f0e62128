package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/wolfeidau/donations"
)

// Attribute keys shared by instruments.
var (
	AttrOutcome    = attribute.Key("outcome")
	AttrKind       = attribute.Key("kind")
	AttrStep       = attribute.Key("step")
	AttrCapability = attribute.Key("capability")
	AttrLimiter    = attribute.Key("limiter")
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Onboarding saga
	OnboardingTotal         metric.Int64Counter
	OnboardingFailuresTotal metric.Int64Counter
	OnboardingDuration      metric.Float64Histogram
	CompensationsTotal      metric.Int64Counter
	CompensationErrorsTotal metric.Int64Counter
	AssetUploadFailures     metric.Int64Counter
	SlugProbesTotal         metric.Int64Counter
	SlugConflictsTotal      metric.Int64Counter

	// Capability resolution
	CapabilityResolutionsTotal metric.Int64Counter
	LookupErrorsTotal          metric.Int64Counter

	// HTTP
	RateLimitedTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// Tracer returns the tracer used for saga steps and other spans.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	m.OnboardingTotal, _ = meter.Int64Counter(
		"donations.onboarding.total",
		metric.WithDescription("Tenant registrations by outcome"),
		metric.WithUnit("{registration}"),
	)

	m.OnboardingFailuresTotal, _ = meter.Int64Counter(
		"donations.onboarding.failures.total",
		metric.WithDescription("Failed tenant registrations by error kind and step"),
		metric.WithUnit("{registration}"),
	)

	m.OnboardingDuration, _ = meter.Float64Histogram(
		"donations.onboarding.duration",
		metric.WithDescription("Duration of tenant registrations"),
		metric.WithUnit("ms"),
	)

	m.CompensationsTotal, _ = meter.Int64Counter(
		"donations.onboarding.compensations.total",
		metric.WithDescription("Compensating actions run by step"),
		metric.WithUnit("{compensation}"),
	)

	m.CompensationErrorsTotal, _ = meter.Int64Counter(
		"donations.onboarding.compensations.errors.total",
		metric.WithDescription("Compensating actions that failed, leaving orphaned records"),
		metric.WithUnit("{error}"),
	)

	m.AssetUploadFailures, _ = meter.Int64Counter(
		"donations.onboarding.asset_upload.failures.total",
		metric.WithDescription("Best effort logo uploads that failed"),
		metric.WithUnit("{error}"),
	)

	m.SlugProbesTotal, _ = meter.Int64Counter(
		"donations.slug.probes.total",
		metric.WithDescription("Slug candidates probed during allocation"),
		metric.WithUnit("{probe}"),
	)

	m.SlugConflictsTotal, _ = meter.Int64Counter(
		"donations.slug.conflicts.total",
		metric.WithDescription("Tenant inserts rejected by the slug unique constraint"),
		metric.WithUnit("{conflict}"),
	)

	m.CapabilityResolutionsTotal, _ = meter.Int64Counter(
		"donations.auth.capability_resolutions.total",
		metric.WithDescription("Resolved callers by capability"),
		metric.WithUnit("{caller}"),
	)

	m.LookupErrorsTotal, _ = meter.Int64Counter(
		"donations.auth.lookup_errors.total",
		metric.WithDescription("Membership or donor lookups that failed and were treated as absent"),
		metric.WithUnit("{error}"),
	)

	m.RateLimitedTotal, _ = meter.Int64Counter(
		"donations.http.rate_limited.total",
		metric.WithDescription("Requests rejected by rate limiting"),
		metric.WithUnit("{request}"),
	)

	return m
}
