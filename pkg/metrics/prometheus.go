package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksAccepted *prometheus.CounterVec
	ticksRejected *prometheus.CounterVec
	lastBid       *prometheus.GaugeVec
	lastAsk       *prometheus.GaugeVec
	deliveries    *prometheus.CounterVec
	subscribers   prometheus.Gauge
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticksAccepted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mt5stream_ticks_accepted_total",
				Help: "Total number of ticks accepted and broadcast",
			},
			[]string{"symbol"},
		),
		ticksRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mt5stream_ticks_rejected_total",
				Help: "Total number of submissions rejected by the normalizer",
			},
			[]string{"reason"},
		),
		lastBid: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mt5stream_last_bid",
				Help: "Last accepted bid for a symbol",
			},
			[]string{"symbol"},
		),
		lastAsk: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mt5stream_last_ask",
				Help: "Last accepted ask for a symbol",
			},
			[]string{"symbol"},
		),
		deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mt5stream_deliveries_total",
				Help: "Push-channel deliveries by result",
			},
			[]string{"result"},
		),
		subscribers: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "mt5stream_subscribers",
				Help: "Currently registered push-channel subscribers",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mt5stream_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mt5stream_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTickAccepted counts an accepted tick.
func (r *Recorder) RecordTickAccepted(symbol string) {
	r.ticksAccepted.WithLabelValues(symbol).Inc()
}

// RecordTickRejected counts a rejected submission by reason.
func (r *Recorder) RecordTickRejected(reason string) {
	r.ticksRejected.WithLabelValues(reason).Inc()
}

// RecordLastQuote records the last bid and ask for a symbol.
func (r *Recorder) RecordLastQuote(symbol string, bid, ask float64) {
	r.lastBid.WithLabelValues(symbol).Set(bid)
	r.lastAsk.WithLabelValues(symbol).Set(ask)
}

// RecordDelivery adds n deliveries with the given result ("ok" or "pruned").
func (r *Recorder) RecordDelivery(result string, n int) {
	if n <= 0 {
		return
	}
	r.deliveries.WithLabelValues(result).Add(float64(n))
}

// SetSubscribers sets the connected subscriber gauge.
func (r *Recorder) SetSubscribers(n int) {
	r.subscribers.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
