package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Snapshot(3, 2, 1, 1)
	m.Match()
	m.Route("offer")
	m.Route("offer")
	m.Drop(DropStaleBridge)
	m.Reject("malformed")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Connections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Sessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Bridges))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Matches))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Routed.WithLabelValues("offer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped.WithLabelValues(DropStaleBridge)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues("malformed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Snapshot(1, 1, 1, 1)
		m.Match()
		m.Route("data")
		m.Drop(DropSendFailed)
		m.Reject("other")
	})
}
