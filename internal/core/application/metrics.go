package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts trade lifecycle transitions. A nil *Metrics is valid and
// records nothing, so callers never need to guard their instrumentation.
type Metrics struct {
	tradesCreated   prometheus.Counter
	tradesAccepted  prometheus.Counter
	tradesConfirmed prometheus.Counter
	tradesFailed    prometheus.Counter
	tradesCancelled prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chainswap",
			Subsystem: "trades",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		tradesCreated:   counter("created_total", "Offers created by this daemon"),
		tradesAccepted:  counter("accepted_total", "Counterparty offers accepted"),
		tradesConfirmed: counter("confirmed_total", "Trades confirmed on chain"),
		tradesFailed:    counter("failed_total", "Trades whose inputs were spent elsewhere"),
		tradesCancelled: counter("cancelled_total", "Trades cancelled before confirmation"),
	}
}

func (m *Metrics) TradeCreated() {
	if m != nil {
		m.tradesCreated.Inc()
	}
}

func (m *Metrics) TradeAccepted() {
	if m != nil {
		m.tradesAccepted.Inc()
	}
}

func (m *Metrics) TradeConfirmed() {
	if m != nil {
		m.tradesConfirmed.Inc()
	}
}

func (m *Metrics) TradeFailed() {
	if m != nil {
		m.tradesFailed.Inc()
	}
}

func (m *Metrics) TradeCancelled() {
	if m != nil {
		m.tradesCancelled.Inc()
	}
}
