package metrics

import (
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exports business events as Prometheus series.
type Recorder struct {
	ordersCreated  prometheus.Counter
	orderValue     prometheus.Histogram
	statusChanges  *prometheus.CounterVec
	paymentsByKind *prometheus.CounterVec
}

// NewRecorder registers its collectors on reg (prometheus.DefaultRegisterer
// in production, a fresh registry in tests).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ordersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Orders committed",
		}),
		orderValue: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_order_total_amount",
			Help:    "Order totals in the store currency",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		statusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_status_changes_total",
			Help: "Order and payment status transitions",
		}, []string{"kind", "from", "to"}),
		paymentsByKind: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_payments_created_total",
			Help: "Payments recorded by method",
		}, []string{"method"}),
	}
}

func (r *Recorder) OrderCreated(total float64) {
	r.ordersCreated.Inc()
	r.orderValue.Observe(total)
}

func (r *Recorder) StatusChanged(kind, from, to string) {
	r.statusChanges.WithLabelValues(kind, from, to).Inc()
}

func (r *Recorder) PaymentCreated(method string) {
	r.paymentsByKind.WithLabelValues(method).Inc()
}

var _ usecase.Recorder = (*Recorder)(nil)
