// Package metrics exposes scheduling engine state to Prometheus.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the engine's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Playtime          prometheus.Gauge
	ActiveSchedules   prometheus.Gauge
	ContractOffers    prometheus.Gauge
	FleetSize         prometheus.Gauge
	FlightsAirborne   prometheus.Gauge
	ContractsAccepted prometheus.Counter
	ContractsExpired  prometheus.Counter
	AcceptRejections  *prometheus.CounterVec
	QuotedProfit      prometheus.Histogram
}

// New registers the metrics against reg, defaulting to the global registry
// when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &Collector{gatherer: gatherer}

	var err error
	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&c.Playtime, "airline_playtime_minutes", "Game minutes elapsed since the session began."},
		{&c.ActiveSchedules, "airline_active_schedules", "Committed weekly schedules across the fleet."},
		{&c.ContractOffers, "airline_contract_offers", "Contract offers currently open."},
		{&c.FleetSize, "airline_fleet_size", "Assets in the hangar."},
		{&c.FlightsAirborne, "airline_flights_airborne", "Schedules currently in flight."},
	}
	for _, g := range gauges {
		*g.dst, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help}), g.name)
		if err != nil {
			return nil, err
		}
	}

	c.ContractsAccepted, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "airline_contracts_accepted_total",
		Help: "Contracts committed to an asset.",
	}), "airline_contracts_accepted_total")
	if err != nil {
		return nil, err
	}
	c.ContractsExpired, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "airline_contracts_expired_total",
		Help: "Offers and schedules that ran out.",
	}), "airline_contracts_expired_total")
	if err != nil {
		return nil, err
	}
	c.AcceptRejections, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "airline_accept_rejections_total",
		Help: "Accept attempts refused, labeled by reason.",
	}, []string{"reason"}), "airline_accept_rejections_total")
	if err != nil {
		return nil, err
	}
	c.QuotedProfit, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "airline_accepted_profit",
		Help:    "Weekly profit of accepted contract options.",
		Buckets: []float64{-50_000, -10_000, 0, 10_000, 50_000, 100_000, 250_000, 500_000, 1_000_000},
	}), "airline_accepted_profit")
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) SetPlaytime(p int64) {
	if c == nil {
		return
	}
	c.Playtime.Set(float64(p))
}

func (c *Collector) SetCounts(schedules, offers, fleet, airborne int) {
	if c == nil {
		return
	}
	c.ActiveSchedules.Set(float64(schedules))
	c.ContractOffers.Set(float64(offers))
	c.FleetSize.Set(float64(fleet))
	c.FlightsAirborne.Set(float64(airborne))
}

func (c *Collector) Accepted(profit int64) {
	if c == nil {
		return
	}
	c.ContractsAccepted.Inc()
	c.QuotedProfit.Observe(float64(profit))
}

func (c *Collector) Expired(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.ContractsExpired.Add(float64(n))
}

func (c *Collector) Rejected(reason string) {
	if c == nil {
		return
	}
	c.AcceptRejections.WithLabelValues(reason).Inc()
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
