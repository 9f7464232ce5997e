package obs

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hermosa/pos-api/internal/events"
)

// DomainMetrics counts business events. It implements events.Notifier so the
// event bus keeps the counters current without the domain services knowing
// about Prometheus.
type DomainMetrics struct {
	SalesTotal    prometheus.Counter
	RefundsTotal  prometheus.Counter
	LowStockTotal prometheus.Counter
}

// NewDomainMetrics registers and returns the business event collectors.
func NewDomainMetrics(namespace string, reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &DomainMetrics{
		SalesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_total",
			Help:      "Number of completed checkouts.",
		}),
		RefundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Number of refunded sales.",
		}),
		LowStockTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Number of low stock alerts raised.",
		}),
	}
	m.SalesTotal = register[prometheus.Counter](reg, m.SalesTotal)
	m.RefundsTotal = register[prometheus.Counter](reg, m.RefundsTotal)
	m.LowStockTotal = register[prometheus.Counter](reg, m.LowStockTotal)
	return m
}

// Notify increments the counter matching the event topic.
func (m *DomainMetrics) Notify(_ context.Context, ev events.Event) error {
	switch ev.Topic {
	case events.TopicSaleCreated:
		m.SalesTotal.Inc()
	case events.TopicSaleRefunded:
		m.RefundsTotal.Inc()
	case events.TopicStockLow:
		m.LowStockTotal.Inc()
	}
	return nil
}
