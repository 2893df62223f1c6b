package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks wizard session counts.
type Metrics struct {
	active  prometheus.Gauge
	created prometheus.Counter
	ended   *prometheus.CounterVec
}

// NewMetrics registers the session collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskwizard",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Wizard sessions currently held in memory.",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskwizard",
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Wizard sessions started.",
		}),
		ended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskwizard",
			Subsystem: "sessions",
			Name:      "ended_total",
			Help:      "Wizard sessions removed, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.active, m.created, m.ended)
	return m
}

func (m *Metrics) onCreate(active int) {
	if m == nil {
		return
	}
	m.created.Inc()
	m.active.Set(float64(active))
}

func (m *Metrics) onRemove(active int, expired bool) {
	if m == nil {
		return
	}
	reason := "cancelled"
	if expired {
		reason = "expired"
	}
	m.ended.WithLabelValues(reason).Inc()
	m.active.Set(float64(active))
}
