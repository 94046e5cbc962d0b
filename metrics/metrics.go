// Package metrics exposes rig Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Command results used for the result label.
const (
	ResultOK          = "ok"
	ResultDeviceError = "device_error"
	ResultError       = "error"
)

// Collector holds the rig's Prometheus metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	TrialsCompleted prometheus.Counter
	State           prometheus.Gauge
}

// NewCollector registers rig metrics against the provided registerer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	commands, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odorrig_motor_commands_total",
		Help: "Motor commands issued, by op and result.",
	}, []string{"op", "result"}), "odorrig_motor_commands_total")
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odorrig_motor_command_duration_seconds",
		Help:    "Time from writing a motor command to its completion.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"op"}), "odorrig_motor_command_duration_seconds")
	if err != nil {
		return nil, err
	}

	trials, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odorrig_trials_completed_total",
		Help: "Trials (one pair, one odor pulse) completed.",
	}), "odorrig_trials_completed_total")
	if err != nil {
		return nil, err
	}

	state, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odorrig_sequencer_state",
		Help: "Current sequencer state as its numeric code.",
	}), "odorrig_sequencer_state")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		Commands:        commands,
		CommandDuration: duration,
		TrialsCompleted: trials,
		State:           state,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveCommand records one motor command round-trip.
func (c *Collector) ObserveCommand(op, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(op, result).Inc()
	c.CommandDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) IncTrials() {
	if c == nil {
		return
	}
	c.TrialsCompleted.Inc()
}

func (c *Collector) SetState(code int) {
	if c == nil {
		return
	}
	c.State.Set(float64(code))
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
