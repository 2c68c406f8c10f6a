package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PourMetrics records order and pour outcomes.
type PourMetrics struct {
	ordersCreated  *prometheus.CounterVec
	poursCompleted *prometheus.CounterVec
	poursFailed    *prometheus.CounterVec
	pourVolume     *prometheus.HistogramVec
}

// NewPourMetrics registers the pour metrics on the provided registerer.
func NewPourMetrics(reg prometheus.Registerer) *PourMetrics {
	if reg == nil {
		return &PourMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created, by venue.",
	}, []string{"venue"})
	poursCompleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pours_completed_total",
		Help: "Successful pours reported by dispensers.",
	}, []string{"dispenser"})
	poursFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pours_failed_total",
		Help: "Failed pours reported by dispensers.",
	}, []string{"dispenser", "error_code"})
	pourVolume := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pour_volume_ml",
		Help:    "Dispensed volume per completed pour in milliliters.",
		Buckets: []float64{100, 200, 300, 400, 500, 750, 1000},
	}, []string{"dispenser"})
	reg.MustRegister(ordersCreated, poursCompleted, poursFailed, pourVolume)
	return &PourMetrics{
		ordersCreated:  ordersCreated,
		poursCompleted: poursCompleted,
		poursFailed:    poursFailed,
		pourVolume:     pourVolume,
	}
}

// IncOrderCreated counts a new order for the venue.
func (p *PourMetrics) IncOrderCreated(venue string) {
	if p == nil || p.ordersCreated == nil {
		return
	}
	p.ordersCreated.WithLabelValues(normalizeLabel(venue)).Inc()
}

// IncPourCompleted counts a successful pour and records its volume.
func (p *PourMetrics) IncPourCompleted(dispenser string, volumeML int) {
	if p == nil || p.poursCompleted == nil {
		return
	}
	p.poursCompleted.WithLabelValues(normalizeLabel(dispenser)).Inc()
	if p.pourVolume != nil && volumeML > 0 {
		p.pourVolume.WithLabelValues(normalizeLabel(dispenser)).Observe(float64(volumeML))
	}
}

// IncPourFailed counts a failed pour by error code.
func (p *PourMetrics) IncPourFailed(dispenser, errorCode string) {
	if p == nil || p.poursFailed == nil {
		return
	}
	p.poursFailed.WithLabelValues(normalizeLabel(dispenser), normalizeLabel(errorCode)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
