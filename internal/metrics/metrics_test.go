package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersStartAtZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.MockHits))
}

func TestRequestsTotalIncrementsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RequestsTotal.WithLabelValues("GET", "200").Inc()
	m.RequestsTotal.WithLabelValues("GET", "200").Inc()
	m.RequestsTotal.WithLabelValues("POST", "500").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "500")))
}

func TestRegisterModifierSkippedPollsSource(t *testing.T) {
	reg := prometheus.NewRegistry()
	var skipped uint64 = 7
	RegisterModifierSkipped(reg, func() uint64 { return skipped })

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "proxyd_modifier_modifications_skipped_total" {
			found = true
			assert.Equal(t, float64(7), f.Metric[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found, "expected proxyd_modifier_modifications_skipped_total to be registered")
}
