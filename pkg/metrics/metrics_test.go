package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsOnSeparateRegistries(t *testing.T) {
	m1 := NewMetrics(prometheus.NewRegistry())
	m2 := NewMetrics(prometheus.NewRegistry())

	m1.CacheLookupsTotal.WithLabelValues("fresh").Inc()
	m1.CacheLookupsTotal.WithLabelValues("fresh").Inc()
	m2.CacheLookupsTotal.WithLabelValues("fresh").Inc()

	if v := testutil.ToFloat64(m1.CacheLookupsTotal.WithLabelValues("fresh")); v != 2 {
		t.Fatalf("m1 counter is %v", v)
	}
	if v := testutil.ToFloat64(m2.CacheLookupsTotal.WithLabelValues("fresh")); v != 1 {
		t.Fatalf("m2 counter is %v", v)
	}
}
