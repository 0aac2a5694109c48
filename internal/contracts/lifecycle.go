package contracts

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"airline_scheduler/internal/clock"
	"airline_scheduler/internal/economics"
	"airline_scheduler/internal/models"
	"airline_scheduler/internal/schedule"
	"airline_scheduler/internal/tier"
)

var (
	ErrNotFound       = errors.New("contract not found")
	ErrUnknownAsset   = errors.New("unknown asset")
	ErrUnknownAirport = errors.New("unknown airport")
	ErrUnavailable    = errors.New("asset unavailable for contract")
)

// inactive contracts kept for the record
const maxInactive = 500

type Airports interface {
	Lookup(code string) (models.Airport, bool)
}

type Fleet interface {
	All() []models.Asset
	Get(registration string) (models.Asset, bool)
}

// Lifecycle owns the open offers and hands accepted ones to the schedule
// engine.
type Lifecycle struct {
	mu          sync.Mutex
	gen         *Generator
	calc        *economics.Calculator
	schedules   *schedule.Engine
	airports    Airports
	fleet       Fleet
	perks       func() tier.Perks
	offers      []models.Contract
	inactive    []models.Contract
	lastRefresh clock.Playtime
	refreshed   bool
}

type Deps struct {
	Generator  *Generator
	Calculator *economics.Calculator
	Schedules  *schedule.Engine
	Airports   Airports
	Fleet      Fleet
	Perks      func() tier.Perks
}

func NewLifecycle(d Deps) *Lifecycle {
	if d.Perks == nil {
		d.Perks = func() tier.Perks { return tier.Perks{} }
	}
	if d.Calculator == nil {
		d.Calculator = economics.New(economics.DefaultRates)
	}
	if d.Schedules != nil && d.Fleet != nil {
		fl := d.Fleet
		d.Schedules.RequireAsset(func(reg string) bool {
			_, ok := fl.Get(reg)
			return ok
		})
	}
	return &Lifecycle{
		gen:       d.Generator,
		calc:      d.Calculator,
		schedules: d.Schedules,
		airports:  d.Airports,
		fleet:     d.Fleet,
		perks:     d.Perks,
	}
}

// Restore loads persisted offers. A zero lastRefresh with no offers forces
// generation on the next Refresh.
func (l *Lifecycle) Restore(offers, inactive []models.Contract, lastRefresh clock.Playtime) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offers = slices.Clone(offers)
	l.inactive = slices.Clone(inactive)
	l.lastRefresh = lastRefresh
	l.refreshed = len(offers) > 0 || lastRefresh > 0
}

func (l *Lifecycle) Offers() []models.Contract {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.offers)
}

func (l *Lifecycle) Inactive() []models.Contract {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.inactive)
}

func (l *Lifecycle) LastRefresh() clock.Playtime {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRefresh
}

func (l *Lifecycle) Offer(id string) (models.Contract, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return models.Contract{}, false
	}
	return l.offers[i], true
}

func (l *Lifecycle) indexLocked(id string) int {
	return slices.IndexFunc(l.offers, func(c models.Contract) bool { return c.ID == id })
}

// RefreshResult reports what a refresh changed.
type RefreshResult struct {
	Expired []models.Contract
	Added   []models.Contract
}

func (r RefreshResult) Changed() bool { return len(r.Expired) > 0 || len(r.Added) > 0 }

// Refresh retires offers whose expiry has passed and, once per game day,
// tops the offers up from the generator.
func (l *Lifecycle) Refresh(now clock.Playtime) RefreshResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res RefreshResult
	kept := l.offers[:0]
	for _, c := range l.offers {
		if c.ExpiresAt > 0 && now >= c.ExpiresAt {
			res.Expired = append(res.Expired, c)
			continue
		}
		kept = append(kept, c)
	}
	l.offers = kept
	l.retireLocked(res.Expired...)

	if l.gen == nil {
		return res
	}
	if l.refreshed && clock.DayIndex(now) <= clock.DayIndex(l.lastRefresh) {
		return res
	}
	for _, c := range l.gen.Generate(now) {
		if l.indexLocked(c.ID) >= 0 || c.ExpiresAt <= now || l.wasRetiredLocked(c.ID) {
			continue
		}
		l.offers = append(l.offers, c)
		res.Added = append(res.Added, c)
	}
	l.lastRefresh = now
	l.refreshed = true
	return res
}

func (l *Lifecycle) wasRetiredLocked(id string) bool {
	return slices.ContainsFunc(l.inactive, func(c models.Contract) bool { return c.ID == id })
}

func (l *Lifecycle) retireLocked(list ...models.Contract) {
	l.inactive = append(l.inactive, list...)
	if over := len(l.inactive) - maxInactive; over > 0 {
		l.inactive = slices.Delete(l.inactive, 0, over)
	}
}

// Route resolves the airports of a contract.
func (l *Lifecycle) Route(c models.Contract) (economics.Route, error) {
	origin, ok := l.airports.Lookup(c.Origin)
	if !ok {
		return economics.Route{}, fmt.Errorf("%s: %w", c.Origin, ErrUnknownAirport)
	}
	dest, ok := l.airports.Lookup(c.Destination)
	if !ok {
		return economics.Route{}, fmt.Errorf("%s: %w", c.Destination, ErrUnknownAirport)
	}
	return economics.Route{Origin: origin, Destination: dest}, nil
}

// Options quotes the contract against every asset, flags which ones can
// take it and sorts the quotes by profit.
func (l *Lifecycle) Options(contractID string) ([]models.ContractOption, error) {
	c, ok := l.Offer(contractID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", contractID, ErrNotFound)
	}
	route, err := l.Route(c)
	if err != nil {
		return nil, err
	}
	perks := l.perks()
	assets := l.fleet.All()
	opts := make([]models.ContractOption, 0, len(assets))
	for _, a := range assets {
		opts = append(opts, l.quote(c, a, route, perks))
	}
	economics.SortByProfit(opts)
	return opts, nil
}

func (l *Lifecycle) quote(c models.Contract, a models.Asset, route economics.Route, perks tier.Perks) models.ContractOption {
	opt := l.calc.Quote(c, a, route, perks)
	opt.Available = inRange(a, c) && l.schedules.CheckAvailability(c, a, opt)
	return opt
}

func inRange(a models.Asset, c models.Contract) bool {
	return a.RangeKm <= 0 || float64(c.DistanceKm) <= a.RangeKm
}

// Accept re-quotes the contract for the asset, commits the schedule and
// retires the offer. Availability is checked again at commit time.
func (l *Lifecycle) Accept(contractID, registration string, now clock.Playtime) (models.Schedule, error) {
	a, ok := l.fleet.Get(registration)
	if !ok {
		return models.Schedule{}, fmt.Errorf("%s: %w", registration, ErrUnknownAsset)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(contractID)
	if i < 0 {
		return models.Schedule{}, fmt.Errorf("%s: %w", contractID, ErrNotFound)
	}
	c := l.offers[i]
	route, err := l.Route(c)
	if err != nil {
		return models.Schedule{}, err
	}
	opt := l.quote(c, a, route, l.perks())
	if !opt.Available {
		return models.Schedule{}, fmt.Errorf("%s on %s: %w", contractID, registration, ErrUnavailable)
	}

	s := schedule.DraftSchedule(c, opt)
	s.AcceptedAt = now
	s.ExpiresAt = now + c.Duration()
	if err := l.schedules.Commit(s); err != nil {
		if errors.Is(err, schedule.ErrNoAsset) {
			return models.Schedule{}, fmt.Errorf("%w: %w", ErrUnknownAsset, err)
		}
		if errors.Is(err, schedule.ErrConflict) || errors.Is(err, schedule.ErrDuplicate) {
			return models.Schedule{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return models.Schedule{}, err
	}
	l.offers = slices.Delete(l.offers, i, i+1)
	l.retireLocked(c)
	return s, nil
}
