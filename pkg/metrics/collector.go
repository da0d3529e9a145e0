package metrics

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nvme-go/nvme-go/pkg/trace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures a Collector.
type Config struct {
	// Namespace prefixes every metric name. Defaults to "nvme".
	Namespace string `yaml:"namespace"`

	// Buckets are the call duration histogram buckets in seconds.
	Buckets []float64 `yaml:"buckets"`

	// ConstLabels are added to every metric, e.g. the host name.
	ConstLabels map[string]string `yaml:"labels"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Namespace: "nvme",
		// libnvme ioctls run from tens of microseconds to minutes for a format.
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 12),
	}
}

// Lock contention is reported with one of these codes.
var contendedCodes = map[string]bool{
	"NVME_ERR_LOCK_WOULD_BLOCK": true,
	"NVME_ERR_CTRL_LOCKED":      true,
}

// Collector turns handle trace events into Prometheus metrics. It implements
// trace.Logger and is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	calls       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	handles     *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	errors      *prometheus.CounterVec
}

var _ trace.Logger = (*Collector)(nil)

// NewCollector creates a collector with its own registry.
func NewCollector(cfg Config) (*Collector, error) {
	def := DefaultConfig()
	if cfg.Namespace == "" {
		cfg.Namespace = def.Namespace
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = def.Buckets
	}

	c := &Collector{registry: prometheus.NewRegistry()}
	labels := prometheus.Labels(cfg.ConstLabels)

	c.calls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "calls_total",
			Help:        "libnvme calls by resource, entry point and outcome.",
			ConstLabels: labels,
		},
		[]string{"resource", "op", "outcome"},
	)
	c.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "call_duration_seconds",
			Help:        "Duration of libnvme calls in seconds.",
			Buckets:     cfg.Buckets,
			ConstLabels: labels,
		},
		[]string{"resource", "op"},
	)
	c.handles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "open_handles",
			Help:        "libnvme handles currently open.",
			ConstLabels: labels,
		},
		[]string{"resource"},
	)
	c.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "lock_transitions_total",
			Help:        "Controller lock acquisitions, releases and failed attempts.",
			ConstLabels: labels,
		},
		[]string{"level", "outcome"},
	)
	c.errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "errors_total",
			Help:        "Failures by error domain and code.",
			ConstLabels: labels,
		},
		[]string{"domain", "code"},
	)

	for _, m := range []prometheus.Collector{c.calls, c.duration, c.handles, c.transitions, c.errors} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return c, nil
}

// Log records one trace event.
func (c *Collector) Log(event trace.Event) {
	resource := event.Resource.String()

	switch {
	case event.Lifecycle != nil:
		g := c.handles.WithLabelValues(resource)
		if event.Lifecycle.Action == trace.ActionOpen {
			g.Inc()
		} else {
			g.Dec()
		}

	case event.Call != nil:
		outcome := "ok"
		if !event.Call.OK {
			outcome = "error"
		}
		c.calls.WithLabelValues(resource, event.Call.Op, outcome).Inc()
		c.duration.WithLabelValues(resource, event.Call.Op).Observe(event.Call.Duration.Seconds())

	case event.StateChange != nil:
		sc := event.StateChange
		if level, ok := lockLevel(sc.NewState); ok {
			c.transitions.WithLabelValues(level, "acquired").Inc()
		} else if level, ok := lockLevel(sc.OldState); ok {
			c.transitions.WithLabelValues(level, "released").Inc()
		}

	case event.Error != nil:
		e := event.Error
		code := e.CodeName
		if code == "" {
			code = "none"
		}
		c.errors.WithLabelValues(e.Domain, code).Inc()

		if e.Lock != "" {
			outcome := "failed"
			if contendedCodes[e.CodeName] {
				outcome = "contended"
			}
			c.transitions.WithLabelValues(e.Lock, outcome).Inc()
		}
	}
}

// lockLevel extracts "read" or "write" from a lock state name such as
// "write-locked".
func lockLevel(state string) (string, bool) {
	level, ok := strings.CutSuffix(state, "-locked")
	return level, ok && level != ""
}

// Handler serves the collector's registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
