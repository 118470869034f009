package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryansname/savedemissions/src/widget"
)

// Gauges exports widget readings as Prometheus metrics
type Gauges struct {
	readings *prometheus.GaugeVec
	ticks    *prometheus.CounterVec
}

// NewGauges creates the collectors and registers them with reg
func NewGauges(reg prometheus.Registerer) *Gauges {
	g := &Gauges{
		readings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "savedemissions",
				Name:      "widget_reading",
				Help:      "Latest derived value of a widget reading, absent while undefined.",
			},
			[]string{"widget", "reading", "unit"},
		),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "savedemissions",
				Name:      "widget_ticks_total",
				Help:      "Number of snapshots processed by a widget.",
			},
			[]string{"widget"},
		),
	}
	reg.MustRegister(g.readings, g.ticks)
	return g
}

// Observe records the readings of one widget tick.
// Undefined readings remove their series rather than reporting a stale value.
func (g *Gauges) Observe(widgetID string, readings []widget.Reading) {
	g.ticks.WithLabelValues(widgetID).Inc()
	for _, r := range readings {
		if r.Value == nil {
			g.readings.DeleteLabelValues(widgetID, r.Key, r.Unit)
			continue
		}
		g.readings.WithLabelValues(widgetID, r.Key, r.Unit).Set(*r.Value)
	}
}
