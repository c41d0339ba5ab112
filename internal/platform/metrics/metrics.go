package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide Prometheus metrics.
type Metrics struct {
	UsersRegistered prometheus.Counter
	AuthFailures    *prometheus.CounterVec
	ProductsCreated prometheus.Counter
	BidsPlaced      prometheus.Counter
	BidsRejected    prometheus.Counter
	OrdersCreated   prometheus.Counter
	RelayClients    prometheus.Gauge
	RequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all metrics against the given registerer. Tests pass a
// fresh registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UsersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopmarket_users_registered_total",
			Help: "Total number of users registered",
		}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopmarket_auth_failures_total",
			Help: "Authentication and authorization rejections by class",
		}, []string{"class"}),
		ProductsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopmarket_products_created_total",
			Help: "Total number of products created",
		}),
		BidsPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopmarket_bids_placed_total",
			Help: "Total number of accepted bids",
		}),
		BidsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopmarket_bids_rejected_total",
			Help: "Total number of rejected bids",
		}),
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopmarket_orders_created_total",
			Help: "Total number of orders created",
		}),
		RelayClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coopmarket_relay_clients",
			Help: "Currently connected relay websocket clients",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coopmarket_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
}

// ObserveRequest records one HTTP request sample.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// IncrementAuthFailure counts a rejection by its failure class
// (unauthenticated, forbidden, unavailable).
func (m *Metrics) IncrementAuthFailure(class string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(class).Inc()
}
