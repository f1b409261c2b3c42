package cluster

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/exttool"
)

// Metrics of a single bootstrap run, in their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	state       prometheus.Gauge
	transitions *prometheus.CounterVec
	nodes       prometheus.Gauge
	toolRuns    *prometheus.CounterVec
	toolSeconds *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		state: factory.NewGauge(prometheus.GaugeOpts{
			Subsystem: "chainbot",
			Name:      "bootstrap_state",
			Help:      "Current bootstrap state (0 uninitialized .. 5 done, 6 failed)",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "chainbot",
			Name:      "bootstrap_transitions_total",
			Help:      "Bootstrap state transitions by state entered",
		}, []string{"state"}),
		nodes: factory.NewGauge(prometheus.GaugeOpts{
			Subsystem: "chainbot",
			Name:      "cluster_nodes",
		}),
		toolRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "chainbot",
			Name:      "tool_invocations_total",
			Help:      "External tool invocations by tool and result",
		}, []string{"tool", "result"}),
		toolSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: "chainbot",
			Name:      "tool_duration_seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"tool"}),
	}
}

func (m *Metrics) setState(state State) {
	m.state.Set(float64(state))
	m.transitions.WithLabelValues(state.String()).Inc()
}

// InstrumentRunner counts and times every invocation passing through next.
func (m *Metrics) InstrumentRunner(next exttool.Runner) exttool.Runner {
	return exttool.RunnerFunc(func(ctx context.Context, inv exttool.Invocation) ([]byte, error) {
		tool := filepath.Base(inv.Name)
		start := time.Now()
		out, err := next.Run(ctx, inv)
		m.toolSeconds.WithLabelValues(tool).Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "error"
			if errors.Is(err, context.Canceled) {
				result = "canceled"
			}
		}
		m.toolRuns.WithLabelValues(tool, result).Inc()
		return out, err
	})
}

// WriteTextfile saves the registry in the node-exporter textfile collector format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
