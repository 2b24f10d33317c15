// Package metrics bundles the Prometheus instruments for the simulation
// engine and exposes the scrape handler.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the engine's Prometheus instruments.
type Collector struct {
	gatherer prometheus.Gatherer

	TicksTotal    prometheus.Counter
	TickDuration  prometheus.Histogram
	TickOverruns  prometheus.Counter
	EvalFailures  prometheus.Counter
	LivingAnts    prometheus.Gauge
	Colonies      prometheus.Gauge
	FoodSources   prometheus.Gauge
	ActiveTrails  prometheus.Gauge
	Subscribers   prometheus.Gauge
	FoodCollected prometheus.Gauge
}

// New registers the engine metrics against the provided registerer,
// defaulting to the global registry when nil. Re-registration reuses the
// existing collectors.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_total",
		Help: "Total number of completed simulation ticks.",
	}))
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Wall-clock duration of one full tick pass.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}))
	if err != nil {
		return nil, err
	}
	overruns, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_tick_overruns_total",
		Help: "Ticks whose pass exceeded the overrun warning threshold.",
	}))
	if err != nil {
		return nil, err
	}
	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_behavior_failures_total",
		Help: "Per-ant behavior evaluations that failed and were skipped.",
	}))
	if err != nil {
		return nil, err
	}

	livingAnts, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_living_ants",
		Help: "Current number of living ants.",
	}))
	if err != nil {
		return nil, err
	}
	colonies, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_active_colonies",
		Help: "Current number of active colonies.",
	}))
	if err != nil {
		return nil, err
	}
	food, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_food_sources",
		Help: "Current number of non-exhausted food sources.",
	}))
	if err != nil {
		return nil, err
	}
	trails, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_active_pheromone_trails",
		Help: "Current number of pheromone trails above the cleanup epsilon.",
	}))
	if err != nil {
		return nil, err
	}
	subscribers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_observer_subscribers",
		Help: "Current number of connected observer websockets.",
	}))
	if err != nil {
		return nil, err
	}
	collected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_food_collected_total_units",
		Help: "Cumulative food units delivered to colonies.",
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		TicksTotal:    ticks,
		TickDuration:  duration,
		TickOverruns:  overruns,
		EvalFailures:  failures,
		LivingAnts:    livingAnts,
		Colonies:      colonies,
		FoodSources:   food,
		ActiveTrails:  trails,
		Subscribers:   subscribers,
		FoodCollected: collected,
	}, nil
}

// Handler returns the HTTP handler serving the scrape endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return gauge, nil
}
