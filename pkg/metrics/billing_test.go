package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestBillingMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg)

	m.ObserveTransition("pending", "invoiced")
	m.ObserveTransition("pending", "invoiced")
	m.ObserveInvoiceIssued(3)
	m.ObserveLockTimeout("redis")
	m.ObserveEvent("order_completed", "ack")

	require.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("pending", "invoiced")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.invoicesIssued))
	require.Equal(t, float64(3), testutil.ToFloat64(m.entriesInvoiced))
	require.Equal(t, float64(1), testutil.ToFloat64(m.lockTimeouts.WithLabelValues("redis")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.eventsConsumed.WithLabelValues("order_completed", "ack")))
}

func TestNilBillingMetricsIsNoop(t *testing.T) {
	var m *BillingMetrics
	m.ObserveTransition("a", "b")
	m.ObserveInvoiceIssued(1)

	unregistered := NewBillingMetrics(nil)
	unregistered.ObserveLockTimeout("local")
	unregistered.ObserveEvent("", "")
}
