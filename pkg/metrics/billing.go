package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics tracks ledger and invoice activity.
type BillingMetrics struct {
	transitions     *prometheus.CounterVec
	invoicesIssued  prometheus.Counter
	entriesInvoiced prometheus.Counter
	lockTimeouts    *prometheus.CounterVec
	eventsConsumed  *prometheus.CounterVec
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	m := &BillingMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_ledger_transitions_total",
			Help: "Ledger entry status transitions applied.",
		}, []string{"from", "to"}),
		invoicesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_invoices_issued_total",
			Help: "Fee invoices created by the invoice cycle.",
		}),
		entriesInvoiced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_entries_invoiced_total",
			Help: "Ledger entries attached to an invoice.",
		}),
		lockTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_supplier_lock_timeouts_total",
			Help: "Supplier lock acquisitions that gave up.",
		}, []string{"backend"}),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_events_consumed_total",
			Help: "Order events handled by the ledger worker.",
		}, []string{"event_type", "result"}),
	}
	reg.MustRegister(m.transitions, m.invoicesIssued, m.entriesInvoiced, m.lockTimeouts, m.eventsConsumed)
	return m
}

// ObserveTransition counts an applied status change.
func (m *BillingMetrics) ObserveTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveInvoiceIssued counts a created invoice and its attached entries.
func (m *BillingMetrics) ObserveInvoiceIssued(entries int) {
	if m == nil || m.invoicesIssued == nil {
		return
	}
	m.invoicesIssued.Inc()
	m.entriesInvoiced.Add(float64(entries))
}

// ObserveLockTimeout counts a supplier lock timeout.
func (m *BillingMetrics) ObserveLockTimeout(backend string) {
	if m == nil || m.lockTimeouts == nil {
		return
	}
	m.lockTimeouts.WithLabelValues(normalizeLabel(backend)).Inc()
}

// ObserveEvent counts a consumed order event by outcome.
func (m *BillingMetrics) ObserveEvent(eventType, result string) {
	if m == nil || m.eventsConsumed == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
