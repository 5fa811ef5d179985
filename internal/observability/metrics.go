// Package observability exposes prometheus metrics and otel tracing setup
// for the explorer.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Faultbox/drone-explorer/internal/flight"
	"github.com/Faultbox/drone-explorer/internal/loader"
)

// Metrics bundles the explorer's prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	Loads         *prometheus.CounterVec
	LoadDurations *prometheus.HistogramVec
	Selections    prometheus.Counter

	LoadProgress prometheus.Gauge
	Parts        prometheus.Gauge

	Altitude      prometheus.Gauge
	Speed         prometheus.Gauge
	Thrust        prometheus.Gauge
	FlightStarted prometheus.Gauge
}

// NewMetrics registers explorer metrics against reg, defaulting to the
// global registry when reg is nil. Registering twice reuses the existing
// collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	loads, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "explorer_asset_loads_total",
		Help: "Asset loads, labeled by kind and result.",
	}, []string{"kind", "result"}), "explorer_asset_loads_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "explorer_asset_load_duration_seconds",
		Help:    "Asset load latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"kind"}), "explorer_asset_load_duration_seconds")
	if err != nil {
		return nil, err
	}

	selections, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "explorer_selection_changes_total",
		Help: "Number of times the selected part changed.",
	}), "explorer_selection_changes_total")
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		gatherer:      gatherer,
		Loads:         loads,
		LoadDurations: durations,
		Selections:    selections,
	}

	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&m.LoadProgress, "explorer_load_progress_ratio", "Fraction of load slots resolved for the current model."},
		{&m.Parts, "explorer_parts", "Number of named parts in the assembled model."},
		{&m.Altitude, "explorer_flight_altitude", "Height of the flight body above the origin."},
		{&m.Speed, "explorer_flight_speed", "Linear speed of the flight body."},
		{&m.Thrust, "explorer_flight_thrust", "Current thrust on top of gravity compensation."},
		{&m.FlightStarted, "explorer_flight_started", "1 while the flight simulation is running."},
	}
	for _, g := range gauges {
		gauge, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: g.name,
			Help: g.help,
		}), g.name)
		if err != nil {
			return nil, err
		}
		*g.dst = gauge
	}

	return m, nil
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveLoad implements loader.Observer.
func (m *Metrics) ObserveLoad(kind loader.Kind, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Loads.WithLabelValues(string(kind), result).Inc()
	m.LoadDurations.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveStatus records load progress.
func (m *Metrics) ObserveStatus(st loader.Status) {
	if m == nil {
		return
	}
	m.LoadProgress.Set(float64(st.Progress()))
}

// ObserveParts records the size of the assembled part index.
func (m *Metrics) ObserveParts(n int) {
	if m == nil {
		return
	}
	m.Parts.Set(float64(n))
}

// ObserveSelection counts a selection change.
func (m *Metrics) ObserveSelection(string) {
	if m == nil {
		return
	}
	m.Selections.Inc()
}

// ObserveTelemetry publishes one flight tick.
func (m *Metrics) ObserveTelemetry(t flight.Telemetry) {
	if m == nil {
		return
	}
	m.Altitude.Set(float64(t.Position.Y))
	m.Speed.Set(float64(t.Velocity.Length()))
	m.Thrust.Set(float64(t.Thrust))
	if t.Started {
		m.FlightStarted.Set(1)
	} else {
		m.FlightStarted.Set(0)
	}
}

var _ loader.Observer = (*Metrics)(nil)

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
