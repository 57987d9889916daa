package infra

import (
	"context"
	"strings"

	"crpt-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusStatsStore expõe as decisões de admissão como métricas Prometheus.
//
// Labels são só outcome e (opcionalmente) rota; a chave do cliente nunca vira
// label por causa da cardinalidade.
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
	wait      *prometheus.HistogramVec

	trackRoutes bool
}

type PrometheusStatsOption func(*prometheusStatsConfig)

type prometheusStatsConfig struct {
	namespace   string
	buckets     []float64
	trackRoutes bool
}

func WithMetricsNamespace(ns string) PrometheusStatsOption {
	return func(c *prometheusStatsConfig) { c.namespace = strings.TrimSpace(ns) }
}

// WithWaitBuckets define os buckets (em segundos) do histograma de espera.
func WithWaitBuckets(buckets ...float64) PrometheusStatsOption {
	return func(c *prometheusStatsConfig) { c.buckets = buckets }
}

func WithRouteLabel(track bool) PrometheusStatsOption {
	return func(c *prometheusStatsConfig) { c.trackRoutes = track }
}

// NewPrometheusStatsStore registra os coletores em reg (ex: prometheus.DefaultRegisterer).
// Registrar duas vezes no mesmo registry entra em pânico, como no promauto.
func NewPrometheusStatsStore(reg prometheus.Registerer, opts ...PrometheusStatsOption) *PrometheusStatsStore {
	cfg := prometheusStatsConfig{
		namespace: "ratelimit",
		buckets:   []float64{0, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	labels := []string{"outcome"}
	if cfg.trackRoutes {
		labels = append(labels, "route")
	}

	factory := promauto.With(reg)
	return &PrometheusStatsStore{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.namespace,
				Name:      "decisions_total",
				Help:      "Total number of admission decisions by outcome",
			},
			labels,
		),
		wait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.namespace,
				Name:      "wait_seconds",
				Help:      "Time callers spent blocked before an admission decision",
				Buckets:   cfg.buckets,
			},
			[]string{"outcome"},
		),
		trackRoutes: cfg.trackRoutes,
	}
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := string(ev.Outcome)
	if outcome == "" {
		outcome = string(domain.OutcomeDenied)
	}

	if s.trackRoutes {
		route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
		s.decisions.WithLabelValues(outcome, route).Inc()
	} else {
		s.decisions.WithLabelValues(outcome).Inc()
	}
	s.wait.WithLabelValues(outcome).Observe(ev.Waited.Seconds())
	return nil
}
