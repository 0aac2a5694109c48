package models

import (
	"airline_scheduler/internal/clock"
	"airline_scheduler/internal/geo"
)

type Airport struct {
	ID           string  `json:"id" msgpack:"id"`
	Ident        string  `json:"ident" msgpack:"ident"`
	Type         string  `json:"type" msgpack:"type"`
	Name         string  `json:"name" msgpack:"name"`
	Latitude     float64 `json:"lat" msgpack:"lat"`
	Longitude    float64 `json:"lon" msgpack:"lon"`
	Country      string  `json:"country" msgpack:"country"`
	Region       string  `json:"region" msgpack:"region"`
	City         string  `json:"city" msgpack:"city"`
	IATA         string  `json:"iata" msgpack:"iata"`
	ICAO         string  `json:"icao" msgpack:"icao"`
	LandingFee   float64 `json:"landing_fee" msgpack:"landing_fee"`
	PassengerFee float64 `json:"passenger_fee" msgpack:"passenger_fee"`
}

func (a Airport) Point() geo.Point {
	return geo.Point{Lat: a.Latitude, Lon: a.Longitude}
}

// CabinClass names a passenger cabin.
type CabinClass string

const (
	Economy  CabinClass = "economy"
	Business CabinClass = "business"
	First    CabinClass = "first"
)

// CabinClasses lists cabins in quoting order.
var CabinClasses = []CabinClass{Economy, Business, First}

// Seats counts passengers or seats per cabin class.
type Seats struct {
	Economy  int `json:"economy" msgpack:"economy"`
	Business int `json:"business" msgpack:"business"`
	First    int `json:"first" msgpack:"first"`
}

func (s Seats) Get(c CabinClass) int {
	switch c {
	case Economy:
		return s.Economy
	case Business:
		return s.Business
	case First:
		return s.First
	}
	return 0
}

func (s *Seats) Set(c CabinClass, v int) {
	switch c {
	case Economy:
		s.Economy = v
	case Business:
		s.Business = v
	case First:
		s.First = v
	}
}

func (s Seats) Total() int {
	return s.Economy + s.Business + s.First
}

// Aircraft is a catalog template an Asset is built from.
type Aircraft struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	RangeKm       float64 `json:"range_km"`
	Seats         int     `json:"seats"`
	CruiseKmh     float64 `json:"cruise_kmh"`
	FuelBurnKgH   float64 `json:"fuel_burn_kg_h,omitempty"`
	ThreeClass    int     `json:"three_class_seats,omitempty"`
	TwoClass      int     `json:"two_class_seats,omitempty"`
	MTOWKg        float64 `json:"mtow_kg,omitempty"`
	ListPrice     float64 `json:"list_price,omitempty"`
	LeaseRateHour float64 `json:"lease_rate_hour,omitempty"`
}

type Ownership string

const (
	Owned  Ownership = "owned"
	Leased Ownership = "leased"
)

// Asset is an aircraft in the operator's fleet. The scheduling core only
// ever reads it.
type Asset struct {
	Registration  string    `json:"registration" msgpack:"registration"`
	TemplateID    string    `json:"template_id" msgpack:"template_id"`
	Name          string    `json:"name" msgpack:"name"`
	Ownership     Ownership `json:"ownership" msgpack:"ownership"`
	Capacity      Seats     `json:"capacity" msgpack:"capacity"`
	CruiseKmh     float64   `json:"cruise_kmh" msgpack:"cruise_kmh"`
	RangeKm       float64   `json:"range_km" msgpack:"range_km"`
	FuelBurnKgH   float64   `json:"fuel_burn_kg_h" msgpack:"fuel_burn_kg_h"`
	MTOWKg        float64   `json:"mtow_kg" msgpack:"mtow_kg"`
	LeaseRateHour float64   `json:"lease_rate_hour,omitempty" msgpack:"lease_rate_hour"`
	Hub           string    `json:"hub,omitempty" msgpack:"hub"`
}

// Contract is an immutable weekly route offer.
type Contract struct {
	ID            string          `json:"id" msgpack:"id"`
	Origin        string          `json:"origin" msgpack:"origin"`
	Destination   string          `json:"destination" msgpack:"destination"`
	DistanceKm    int             `json:"distance_km" msgpack:"distance_km"`
	Day           clock.Day       `json:"day" msgpack:"day"`
	Departure     clock.TimeOfDay `json:"departure" msgpack:"departure"`
	Demand        Seats           `json:"demand" msgpack:"demand"`
	DurationWeeks int             `json:"duration_weeks" msgpack:"duration_weeks"`
	Reputation    int             `json:"reputation" msgpack:"reputation"`
	CreatedAt     clock.Playtime  `json:"created_at" msgpack:"created_at"`
	ExpiresAt     clock.Playtime  `json:"expires_at" msgpack:"expires_at"`
}

// Hub is the airport the contract is flown out of.
func (c Contract) Hub() string { return c.Origin }

// Duration is the contract's lifetime once accepted, in game minutes.
func (c Contract) Duration() clock.Playtime {
	return clock.Playtime(c.DurationWeeks) * clock.MinutesPerWeek
}

type CostBreakdown struct {
	Fuel          int64 `json:"fuel" msgpack:"fuel"`
	Maintenance   int64 `json:"maintenance" msgpack:"maintenance"`
	Leasing       int64 `json:"leasing" msgpack:"leasing"`
	PassengerFees int64 `json:"passenger_fees" msgpack:"passenger_fees"`
	LandingFees   int64 `json:"landing_fees" msgpack:"landing_fees"`
	Total         int64 `json:"total" msgpack:"total"`
}

type RevenueBreakdown struct {
	Economy  int64 `json:"economy" msgpack:"economy"`
	Business int64 `json:"business" msgpack:"business"`
	First    int64 `json:"first" msgpack:"first"`
	Total    int64 `json:"total" msgpack:"total"`
}

func (r *RevenueBreakdown) Add(c CabinClass, v int64) {
	switch c {
	case Economy:
		r.Economy += v
	case Business:
		r.Business += v
	case First:
		r.First += v
	}
	r.Total += v
}

type Turnaround struct {
	BoardingMin int `json:"boarding_min" msgpack:"boarding_min"`
	FlightMin   int `json:"flight_min" msgpack:"flight_min"`
	TotalMin    int `json:"total_min" msgpack:"total_min"`
}

// ContractOption is a quote binding one contract to one asset. It is
// recomputed on every query.
type ContractOption struct {
	ContractID   string           `json:"contract_id" msgpack:"contract_id"`
	Registration string           `json:"registration" msgpack:"registration"`
	Cost         CostBreakdown    `json:"cost" msgpack:"cost"`
	Revenue      RevenueBreakdown `json:"revenue" msgpack:"revenue"`
	Profit       int64            `json:"profit" msgpack:"profit"`
	Utilization  int              `json:"utilization_pct" msgpack:"utilization_pct"`
	Turnaround   Turnaround       `json:"turnaround" msgpack:"turnaround"`
	Passengers   Seats            `json:"passengers" msgpack:"passengers"`
	Available    bool             `json:"available" msgpack:"available"`
}

// Schedule is a committed weekly assignment of a contract to an asset.
type Schedule struct {
	Registration string          `json:"registration" msgpack:"registration"`
	Day          clock.Day       `json:"day" msgpack:"day"`
	Start        clock.TimeOfDay `json:"start" msgpack:"start"`
	End          clock.TimeOfDay `json:"end" msgpack:"end"`
	Contract     Contract        `json:"contract" msgpack:"contract"`
	Option       ContractOption  `json:"option" msgpack:"option"`
	AcceptedAt   clock.Playtime  `json:"accepted_at" msgpack:"accepted_at"`
	ExpiresAt    clock.Playtime  `json:"expires_at" msgpack:"expires_at"`
}

// Same reports whether two schedules are the same assignment.
func (s Schedule) Same(o Schedule) bool {
	return s.Contract.ID == o.Contract.ID && s.Registration == o.Registration
}

// StartMinute is the schedule's start on the week cycle.
func (s Schedule) StartMinute() clock.WeekMinute {
	return clock.NewWeekMinute(s.Day, s.Start)
}

// EndMinute is the schedule's end on the week cycle; an end before the
// start falls on the following day. Rotations longer than a day are
// measured from the quoted turnaround.
func (s Schedule) EndMinute() clock.WeekMinute {
	if total := s.Option.Turnaround.TotalMin; total > 0 {
		return s.StartMinute().Add(total)
	}
	end := clock.NewWeekMinute(s.Day, s.End)
	if s.End < s.Start {
		end = end.Add(clock.MinutesPerDay)
	}
	return end
}
