// Package metrics exposes application-level prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

// Module provides the prometheus registry and billing instruments.
var Module = fx.Module("metrics",
	fx.Provide(NewRegistry),
	fx.Provide(NewBillingMetrics),
)

func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	return registry
}

// BillingMetrics tracks invoice-creation outcomes.
type BillingMetrics struct {
	InvoicesCreated *prometheus.CounterVec
	InvoiceRejects  *prometheus.CounterVec
	RenderFailures  prometheus.Counter
}

func NewBillingMetrics(registry *prometheus.Registry) *BillingMetrics {
	m := &BillingMetrics{
		InvoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roofcrm_invoices_created_total",
			Help: "Invoices successfully created, by invoice type.",
		}, []string{"invoice_type"}),
		InvoiceRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roofcrm_invoice_rejections_total",
			Help: "Invoice creations rejected before commit, by reason.",
		}, []string{"reason"}),
		RenderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roofcrm_invoice_render_failures_total",
			Help: "Invoice document renders that failed after the invoice committed.",
		}),
	}
	registry.MustRegister(m.InvoicesCreated, m.InvoiceRejects, m.RenderFailures)
	return m
}

func (m *BillingMetrics) RecordCreated(invoiceType string) {
	if m == nil {
		return
	}
	m.InvoicesCreated.WithLabelValues(invoiceType).Inc()
}

func (m *BillingMetrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.InvoiceRejects.WithLabelValues(reason).Inc()
}

func (m *BillingMetrics) RecordRenderFailure() {
	if m == nil {
		return
	}
	m.RenderFailures.Inc()
}
