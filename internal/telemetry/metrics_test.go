package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMetrics(t *testing.T) {
	m := GetMetrics()
	require.Same(t, m, GetMetrics())

	require.NotNil(t, m.OnboardingTotal)
	require.NotNil(t, m.OnboardingDuration)
	require.NotNil(t, m.CompensationsTotal)
	require.NotNil(t, m.CapabilityResolutionsTotal)
	require.NotNil(t, m.RateLimitedTotal)
	require.NotNil(t, Tracer())
}

func TestConfig(t *testing.T) {
	cfg := Config{ServiceName: "donations"}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	require.InDelta(t, 1.0, cfg.SampleRatio, 0)

	cfg.SampleRatio = 2
	require.Error(t, cfg.Validate())

	require.Error(t, (&Config{}).Validate())
}
