// Package metrics exposes match and traffic counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/1ureka/netpong/internal/protocol"
	"github.com/1ureka/netpong/internal/util"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metric namespace (default: "netpong").
	Namespace string

	// ConstLabels are added to every metric, e.g. the role.
	ConstLabels prometheus.Labels

	// Buckets are the tick duration histogram buckets, in seconds.
	Buckets []float64

	// Registry receives the collectors and serves /metrics.
	// Default: a fresh registry.
	Registry *prometheus.Registry
}

// Option configures Metrics.
type Option func(*Config)

// WithNamespace sets the metric namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the tick duration buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "netpong",
		// A tick has 16ms at 60Hz; most of it should be the 4ms receive poll.
		Buckets: []float64{.0005, .001, .002, .004, .006, .008, .016, .033},
	}
}

// Metrics implements game.Observer on top of Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	ticks        *prometheus.CounterVec
	tickDuration prometheus.Histogram
	framesIn     *prometheus.CounterVec
	framesOut    *prometheus.CounterVec
	violations   *prometheus.CounterVec
}

// New creates and registers the collectors. Byte counters read util.Stats
// at scrape time.
func New(opts ...Option) *Metrics {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(cfg.Registry)
	m := &Metrics{
		registry: cfg.Registry,

		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "ticks_total",
			Help:        "Ticks run, by session state at the start of the tick",
			ConstLabels: cfg.ConstLabels,
		}, []string{"state"}),

		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "tick_duration_seconds",
			Help:        "Wall time of one receive, update and flush cycle",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),

		framesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frames_received_total",
			Help:        "Frames decoded from the peer, by message type",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),

		framesOut: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frames_sent_total",
			Help:        "Frames queued for the peer, by message type",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),

		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "protocol_violations_total",
			Help:        "Peer frames dropped as malformed or not allowed, by type tag",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),
	}

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Name:        "bytes_sent_total",
		Help:        "Bytes written to the peer socket",
		ConstLabels: cfg.ConstLabels,
	}, func() float64 { return float64(util.Stats.BytesSent.Load()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Name:        "bytes_received_total",
		Help:        "Bytes read from the peer socket",
		ConstLabels: cfg.ConstLabels,
	}, func() float64 { return float64(util.Stats.BytesRecv.Load()) })

	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ---------------------------------------------------------------------------
// game.Observer
// ---------------------------------------------------------------------------

func (m *Metrics) TickObserved(state protocol.State, took time.Duration) {
	m.ticks.WithLabelValues(state.String()).Inc()
	m.tickDuration.Observe(took.Seconds())
}

func (m *Metrics) FrameReceived(t protocol.MsgType) {
	m.framesIn.WithLabelValues(typeLabel(t)).Inc()
}

func (m *Metrics) FrameSent(t protocol.MsgType) {
	m.framesOut.WithLabelValues(typeLabel(t)).Inc()
}

func (m *Metrics) ProtocolViolation(t protocol.MsgType) {
	m.violations.WithLabelValues(typeLabel(t)).Inc()
}

// typeLabel folds every unknown tag into one label value so a hostile peer
// cannot grow the series count.
func typeLabel(t protocol.MsgType) string {
	if _, ok := protocol.PayloadSize(t); !ok {
		return "unknown"
	}
	return t.String()
}
