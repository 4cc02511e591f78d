package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idcard/internal/printlog"
)

// Metrics holds the service collectors. It satisfies card.Observer.
type Metrics struct {
	CardsRendered  *prometheus.CounterVec
	RenderSeconds  *prometheus.HistogramVec
	AssetsSkipped  *prometheus.CounterVec
	PrintsRecorded prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CardsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idcard_cards_rendered_total",
			Help: "Cards composed, by output format.",
		}, []string{"format"}),
		RenderSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idcard_card_render_seconds",
			Help:    "Time to compose and encode a card, by output format.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"format"}),
		AssetsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idcard_card_assets_skipped_total",
			Help: "Optional card images that were missing or undecodable.",
		}, []string{"asset"}),
		PrintsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "idcard_prints_recorded_total",
			Help: "Card prints written to the print log.",
		}),
	}
	reg.MustRegister(m.CardsRendered, m.RenderSeconds, m.AssetsSkipped, m.PrintsRecorded)
	return m
}

// AssetSkipped counts an optional asset the engine left out.
func (m *Metrics) AssetSkipped(kind string) {
	m.AssetsSkipped.WithLabelValues(kind).Inc()
}

// ObserveRender records one finished render.
func (m *Metrics) ObserveRender(format string, d time.Duration) {
	m.CardsRendered.WithLabelValues(format).Inc()
	m.RenderSeconds.WithLabelValues(format).Observe(d.Seconds())
}

// PrintRecorded is a printlog.Hook.
func (m *Metrics) PrintRecorded(printlog.Event) {
	m.PrintsRecorded.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
