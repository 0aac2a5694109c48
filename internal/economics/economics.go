// Package economics quotes the cost, revenue and turnaround of flying a
// contract with a given asset. Quotes are pure functions of their inputs.
package economics

import (
	"cmp"
	"math"
	"slices"

	"airline_scheduler/internal/models"
	"airline_scheduler/internal/tier"
)

// Fare is the per-passenger price of one cabin.
type Fare struct {
	PerHour   float64 `yaml:"per_hour" mapstructure:"per_hour"`
	Surcharge int64   `yaml:"surcharge" mapstructure:"surcharge"`
}

type Rates struct {
	FuelPricePerKg          float64                    `yaml:"fuel_price_per_kg" mapstructure:"fuel_price_per_kg"`
	MaintenancePerTonneHour float64                    `yaml:"maintenance_per_tonne_hour" mapstructure:"maintenance_per_tonne_hour"`
	Fares                   map[models.CabinClass]Fare `yaml:"fares" mapstructure:"fares"`
}

var DefaultRates = Rates{
	FuelPricePerKg:          0.9,
	MaintenancePerTonneHour: 4.5,
	Fares: map[models.CabinClass]Fare{
		models.Economy:  {PerHour: 95, Surcharge: 15},
		models.Business: {PerHour: 260, Surcharge: 45},
		models.First:    {PerHour: 520, Surcharge: 90},
	},
}

// Calculator produces ContractOptions.
type Calculator struct {
	rates Rates
}

func New(rates Rates) *Calculator {
	if rates.Fares == nil {
		rates.Fares = DefaultRates.Fares
	}
	return &Calculator{rates: rates}
}

// Route carries the airports a contract flies between.
type Route struct {
	Origin      models.Airport
	Destination models.Airport
}

// Quote computes the round-trip economics of flying c with a. The returned
// option is not yet checked for availability.
func (calc *Calculator) Quote(c models.Contract, a models.Asset, r Route, perks tier.Perks) models.ContractOption {
	pax := Passengers(c.Demand, a.Capacity)
	hours := durationHours(c.DistanceKm, a.CruiseKmh)

	cost := calc.cost(a, r, pax, hours, perks)
	revenue := calc.revenue(pax, hours)

	flight := FlightTime(c.DistanceKm, a.CruiseKmh)
	boarding := BoardingTime(a.Capacity.Total())

	return models.ContractOption{
		ContractID:   c.ID,
		Registration: a.Registration,
		Cost:         cost,
		Revenue:      revenue,
		Profit:       revenue.Total - cost.Total,
		Utilization:  Utilization(pax, a.Capacity),
		Turnaround: models.Turnaround{
			BoardingMin: boarding,
			FlightMin:   flight,
			TotalMin:    (flight + boarding) * 2,
		},
		Passengers: pax,
	}
}

func (calc *Calculator) cost(a models.Asset, r Route, pax models.Seats, hours float64, perks tier.Perks) models.CostBreakdown {
	fuel := a.FuelBurnKgH * calc.rates.FuelPricePerKg * hours * discount(perks.MarketDiscount)
	maintenance := a.MTOWKg / 1000 * calc.rates.MaintenancePerTonneHour * hours
	leasing := 0.0
	if a.Ownership == models.Leased {
		leasing = a.LeaseRateHour * hours
	}

	// fees are charged once per rotation, not per leg
	passengerFees := float64(pax.Total()) * r.Destination.PassengerFee * discount(perks.DestinationDiscount)
	landingFees := r.Origin.LandingFee*discount(perks.HubDiscount) +
		r.Destination.LandingFee*discount(perks.DestinationDiscount)

	operating := int64(math.Floor(fuel+maintenance+leasing)) * 2
	fees := int64(math.Floor(passengerFees + landingFees))
	return models.CostBreakdown{
		Fuel:          int64(math.Floor(fuel)) * 2,
		Maintenance:   int64(math.Floor(maintenance)) * 2,
		Leasing:       int64(math.Floor(leasing)) * 2,
		PassengerFees: int64(math.Floor(passengerFees)),
		LandingFees:   int64(math.Floor(landingFees)),
		Total:         operating + fees,
	}
}

func (calc *Calculator) revenue(pax models.Seats, hours float64) models.RevenueBreakdown {
	var rev models.RevenueBreakdown
	for _, class := range models.CabinClasses {
		n := pax.Get(class)
		if n == 0 {
			continue
		}
		fare := calc.rates.Fares[class]
		v := int64(math.Floor(float64(n)*fare.PerHour*hours*2)) + int64(n)*fare.Surcharge*2
		rev.Add(class, v)
	}
	return rev
}

// Passengers is the demand each cabin can actually carry.
func Passengers(demand, capacity models.Seats) models.Seats {
	var pax models.Seats
	for _, class := range models.CabinClasses {
		pax.Set(class, max(0, min(demand.Get(class), capacity.Get(class))))
	}
	return pax
}

// Utilization is the share of seats filled, in whole percent.
func Utilization(pax, capacity models.Seats) int {
	total := capacity.Total()
	if total <= 0 {
		return 0
	}
	u := int(math.Floor(float64(pax.Total()) / float64(total) * 100))
	return max(0, min(100, u))
}

// FlightTime is the one-way block time in whole minutes.
func FlightTime(distanceKm int, cruiseKmh float64) int {
	if cruiseKmh <= 0 {
		return 0
	}
	return int(math.Floor(float64(distanceKm) / cruiseKmh * 60))
}

// BoardingTime grows with capacity: larger cabins carry a higher fixed
// constant, but each seat past 100 and past 200 boards faster.
func BoardingTime(capacity int) int {
	if capacity <= 0 {
		return 0
	}
	// tenths of a minute
	var t int
	switch {
	case capacity <= 100:
		t = 200 + capacity*3
	case capacity <= 200:
		t = 300 + 300 + (capacity-100)*2
	default:
		t = 400 + 300 + 200 + (capacity - 200)
	}
	return t / 10
}

func durationHours(distanceKm int, cruiseKmh float64) float64 {
	if cruiseKmh <= 0 {
		return 0
	}
	return float64(distanceKm) / cruiseKmh
}

func discount(pct int) float64 {
	pct = max(0, min(100, pct))
	return 1 - float64(pct)/100
}

// SortByProfit orders options by descending profit, keeping the input order
// between equal profits.
func SortByProfit(opts []models.ContractOption) {
	slices.SortStableFunc(opts, func(a, b models.ContractOption) int {
		return cmp.Compare(b.Profit, a.Profit)
	})
}
