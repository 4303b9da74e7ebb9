package exchange

import (
	"time"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/dexerr"
	"github.com/prometheus/client_golang/prometheus"
)

// --- Metrics ---

// Metrics holds all the Prometheus metrics for the exchange.
type Metrics struct {
	swapDuration   *prometheus.HistogramVec
	swapsTotal     *prometheus.CounterVec
	hopsTotal      prometheus.Counter
	pools          prometheus.Gauge
	errorsTotal    *prometheus.CounterVec
	nameCollisions prometheus.Counter
}

// NewMetrics creates and registers the metrics for the exchange.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		swapDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exchange_swap_duration_seconds",
			Help:    "Time taken to price and execute a swap, including lock acquisition.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		swapsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_swaps_total",
			Help: "Total number of swaps attempted, labeled by mode and result.",
		}, []string{"mode", "result"}),
		hopsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_hops_total",
			Help: "Total number of hops executed by successful swaps.",
		}),
		pools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_pools",
			Help: "Number of pools created.",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_errors_total",
			Help: "Total number of failed operations, labeled by operation and error kind.",
		}, []string{"operation", "kind"}),
		nameCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_asset_name_collisions_total",
			Help: "Number of registered assets whose display name was already taken by another asset.",
		}),
	}
	reg.MustRegister(m.swapDuration, m.swapsTotal, m.hopsTotal, m.pools, m.errorsTotal, m.nameCollisions)
	return m
}

func (m *Metrics) observeSwap(mode string, hops int, start time.Time, err error) {
	m.swapDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		m.swapsTotal.WithLabelValues(mode, "error").Inc()
		return
	}
	m.swapsTotal.WithLabelValues(mode, "success").Inc()
	m.hopsTotal.Add(float64(hops))
}

func (m *Metrics) observeError(operation string, err error) {
	if err == nil {
		return
	}
	m.errorsTotal.WithLabelValues(operation, dexerr.KindOf(err).String()).Inc()
}
