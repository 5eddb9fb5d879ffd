package metrics

import (
	"net/http"
	"strconv"
	"time"

	"shopping-agent/internal/application/port/output"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ output.MetricsPort = (*Collector)(nil)

// Collector records mission metrics on its own registry so tests and
// multiple servers never collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	missionsStarted  prometheus.Counter
	missionsFinished *prometheus.CounterVec
	missionsActive   prometheus.Gauge
	actions          *prometheus.CounterVec
	approvals        prometheus.Counter
	oracleAttempts   *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	eventsDropped    prometheus.Counter
}

func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		missionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missions_started_total",
			Help:      "Total number of missions started",
		}),
		missionsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missions_finished_total",
			Help:      "Missions that reached a terminal outcome",
		}, []string{"outcome"}),
		missionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missions_active",
			Help:      "Missions currently running",
		}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Executed actions by kind and outcome",
		}, []string{"kind", "outcome"}),
		approvals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_requested_total",
			Help:      "Clicks suspended for human approval",
		}),
		oracleAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_attempts_total",
			Help:      "Decision oracle attempts",
		}, []string{"success"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one observe/decide/act cycle",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		eventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a consumer was too slow",
		}),
	}
}

func (c *Collector) MissionStarted() {
	c.missionsStarted.Inc()
	c.missionsActive.Inc()
}

func (c *Collector) MissionFinished(outcome string) {
	c.missionsFinished.WithLabelValues(outcome).Inc()
	c.missionsActive.Dec()
}

func (c *Collector) ActionExecuted(kind, outcome string) {
	c.actions.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) ApprovalRequested() {
	c.approvals.Inc()
}

func (c *Collector) OracleAttempt(success bool) {
	c.oracleAttempts.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (c *Collector) CycleDuration(d time.Duration) {
	c.cycleDuration.Observe(d.Seconds())
}

func (c *Collector) EventDropped() {
	c.eventsDropped.Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
