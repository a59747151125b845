package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ordersCreated      prometheus.Counter
	ordersCancelled    prometheus.Counter
	payments           *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordercart",
			Name:      "orders_created_total",
			Help:      "Total number of orders created.",
		}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordercart",
			Name:      "orders_cancelled_total",
			Help:      "Total number of orders cancelled.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordercart",
			Name:      "payments_total",
			Help:      "Payment attempts by result.",
		}, []string{"result"}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordercart",
			Name:      "side_effect_failures_total",
			Help:      "Best-effort post-commit side effects that failed.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.ordersCreated, m.ordersCancelled, m.payments, m.sideEffectFailures)
	return m
}

// Inc helpers are nil-safe so services can run without metrics in tests.

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderCancelled() {
	if m == nil {
		return
	}
	m.ordersCancelled.Inc()
}

func (m *Metrics) Payment(result string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(result).Inc()
}

func (m *Metrics) SideEffectFailure(kind string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(kind).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
