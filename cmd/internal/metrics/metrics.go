package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics tracks the offline sync agent.
type SyncMetrics struct {
	runsTotal    *prometheus.CounterVec
	recordsTotal *prometheus.CounterVec
	runDuration  prometheus.Histogram
	pending      prometheus.Gauge
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecare",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync runs by outcome",
		}, []string{"result"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecare",
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Records pushed to the server by kind and outcome",
		}, []string{"kind", "outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ecare",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of one sync run",
			Buckets:   prometheus.DefBuckets,
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ecare",
			Subsystem: "sync",
			Name:      "pending_changes",
			Help:      "Local records still waiting to be pushed",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.recordsTotal, m.runDuration, m.pending)
	return m
}

func (m *SyncMetrics) ObserveRun(result string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(result).Inc()
	m.runDuration.Observe(seconds)
}

func (m *SyncMetrics) ObserveRecord(kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "synced"
	if !ok {
		outcome = "failed"
	}
	m.recordsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *SyncMetrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// BookingMetrics tracks appointment bookings on the server.
type BookingMetrics struct {
	bookingsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecare",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}
