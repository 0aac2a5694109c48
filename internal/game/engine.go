package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"airline_scheduler/internal/catalog"
	"airline_scheduler/internal/clock"
	"airline_scheduler/internal/contracts"
	"airline_scheduler/internal/economics"
	"airline_scheduler/internal/fleet"
	"airline_scheduler/internal/geo"
	"airline_scheduler/internal/metrics"
	"airline_scheduler/internal/models"
	"airline_scheduler/internal/schedule"
	"airline_scheduler/internal/store"
	"airline_scheduler/internal/tier"
)

var ErrNoHub = errors.New("no configured hub found in airport catalog")

// Options wires an Engine. Store and Airports are required.
type Options struct {
	Store            *store.Store
	Airports         *catalog.Airports
	Aircraft         []models.Aircraft
	Rates            economics.Rates
	Generator        contracts.GeneratorOptions
	Hubs             []string
	DestinationTier  string
	TickInterval     time.Duration
	OfflineAllowance time.Duration
	SaveEvery        int
	PathResolution   int
	PathCacheSize    int
	Tiers            []tier.Tier
	Metrics          *metrics.Collector
	Logger           *slog.Logger
	Now              func() time.Time
}

// Engine owns the session: the clock, the fleet, open offers and committed
// schedules. Every clock tick persists playtime and drives offer refresh and
// schedule expiry.
type Engine struct {
	mu         sync.Mutex
	reputation int
	ticks      int

	clock     *clock.Clock
	airports  *catalog.Airports
	hangar    *fleet.Hangar
	schedules *schedule.Engine
	lifecycle *contracts.Lifecycle
	tracker   *schedule.Tracker
	paths     *geo.PathCache
	pathRes   int
	store     *store.Store
	metrics   *metrics.Collector
	log       *slog.Logger
	tiers     []tier.Tier
	saveEvery int
	now       func() time.Time
	sub       clock.Subscription
}

// NewEngine restores persisted state, seeds an empty fleet and generates the
// first offers.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Airports == nil {
		return nil, errors.New("game: store and airports are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tiers == nil {
		opts.Tiers = tier.Default
	}
	if opts.SaveEvery <= 0 {
		opts.SaveEvery = 1
	}
	if opts.PathResolution == 0 {
		opts.PathResolution = 33
	}
	st := opts.Store

	playtime, err := st.Playtime(ctx)
	if err != nil {
		return nil, err
	}
	lastSave, err := st.LastSave(ctx)
	if err != nil {
		return nil, err
	}
	allowance, err := st.OfflineAllowance(ctx)
	if err != nil {
		return nil, err
	}
	if allowance == 0 {
		allowance = opts.OfflineAllowance
		if err := st.SetOfflineAllowance(ctx, allowance); err != nil {
			return nil, err
		}
	}

	var hubs []models.Airport
	for _, code := range opts.Hubs {
		if ap, ok := opts.Airports.Lookup(code); ok {
			hubs = append(hubs, ap)
		}
	}
	if len(hubs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHub, strings.Join(opts.Hubs, ","))
	}

	paths := geo.NewPathCache(opts.PathCacheSize)
	e := &Engine{
		airports:  opts.Airports,
		hangar:    fleet.NewHangar(opts.Aircraft),
		schedules: schedule.NewEngine(),
		tracker:   schedule.NewTracker(paths, opts.PathResolution),
		paths:     paths,
		pathRes:   opts.PathResolution,
		store:     st,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		tiers:     opts.Tiers,
		saveEvery: opts.SaveEvery,
		now:       opts.Now,
	}
	e.clock = clock.New(clock.Options{
		Playtime:         playtime,
		LastSave:         lastSave,
		OfflineAllowance: allowance,
		TickInterval:     opts.TickInterval,
		Now:              opts.Now,
	})
	if caught := e.clock.CaughtUp(); caught > 0 {
		e.log.Info("offline catch-up", slog.Int64("minutes", int64(caught)))
	}

	if e.reputation, err = st.Reputation(ctx); err != nil {
		return nil, err
	}
	assets, err := st.Fleet(ctx)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		seeded := e.hangar.SeedFleet(hubs[0].Ident)
		e.log.Info("seeded starter fleet", slog.Int("assets", len(seeded)), slog.String("hub", hubs[0].Ident))
		if err := st.SetFleet(ctx, e.hangar.All()); err != nil {
			return nil, err
		}
	} else {
		e.hangar.Restore(assets)
	}

	active, err := st.ActiveSchedules(ctx)
	if err != nil {
		return nil, err
	}
	e.schedules.Restore(active)

	offers, err := st.ContractOffers(ctx)
	if err != nil {
		return nil, err
	}
	inactive, err := st.InactiveContracts(ctx)
	if err != nil {
		return nil, err
	}
	lastRefresh, err := st.LastRefresh(ctx)
	if err != nil {
		return nil, err
	}

	destinations := opts.Airports.Filter(opts.DestinationTier)
	calc := economics.New(opts.Rates)
	e.lifecycle = contracts.NewLifecycle(contracts.Deps{
		Generator:  contracts.NewGenerator(opts.Generator, hubs, destinations),
		Calculator: calc,
		Schedules:  e.schedules,
		Airports:   opts.Airports,
		Fleet:      e.hangar,
		Perks:      e.Perks,
	})
	e.lifecycle.Restore(offers, inactive, lastRefresh)

	e.hangar.OnAdd(e.onAssetAdded)
	e.hangar.OnRemove(e.onAssetRemoved)
	e.sub = e.clock.Subscribe(e.onTick)

	e.advance(ctx, e.clock.Playtime())
	return e, nil
}

func (e *Engine) Clock() *clock.Clock          { return e.clock }
func (e *Engine) Airports() *catalog.Airports  { return e.airports }
func (e *Engine) Metrics() *metrics.Collector  { return e.metrics }
func (e *Engine) Templates() []models.Aircraft { return e.hangar.Templates() }

// Start runs the clock until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.clock.Start(ctx)
	e.log.Info("clock started", slog.Duration("interval", e.clock.Interval()))
}

func (e *Engine) Pause() {
	e.clock.Pause()
	e.log.Info("clock paused", slog.Int64("playtime", int64(e.clock.Playtime())))
}

func (e *Engine) Resume(ctx context.Context) {
	e.clock.Resume(ctx)
	e.log.Info("clock resumed", slog.Int64("playtime", int64(e.clock.Playtime())))
}

// Tick advances the clock by one minute.
func (e *Engine) Tick() clock.Playtime {
	return e.clock.Tick()
}

// Close stops the clock and writes everything once more.
func (e *Engine) Close(ctx context.Context) error {
	e.clock.Pause()
	e.clock.Unsubscribe(e.sub)
	return errors.Join(
		e.store.SetPlaytime(ctx, e.clock.Playtime()),
		e.store.SetLastSave(ctx, e.now()),
		e.persistSchedules(ctx),
		e.persistContracts(ctx),
		e.store.SetFleet(ctx, e.hangar.All()),
	)
}

func (e *Engine) onTick(p clock.Playtime) {
	ctx := context.Background()
	e.mu.Lock()
	e.ticks++
	save := e.ticks%e.saveEvery == 0
	e.mu.Unlock()
	if save {
		if err := e.store.SetPlaytime(ctx, p); err != nil {
			e.log.Error("persist playtime", slog.Any("err", err))
		}
		if err := e.store.SetLastSave(ctx, e.now()); err != nil {
			e.log.Error("persist last save", slog.Any("err", err))
		}
	}
	e.advance(ctx, p)
}

// advance refreshes offers, expires finished schedules and updates gauges.
func (e *Engine) advance(ctx context.Context, p clock.Playtime) {
	res := e.lifecycle.Refresh(p)
	if res.Changed() {
		if len(res.Added) > 0 {
			e.log.Info("contract offers refreshed", slog.Int("added", len(res.Added)), slog.Int("expired", len(res.Expired)))
		}
		e.metrics.Expired(len(res.Expired))
		if err := e.persistContracts(ctx); err != nil {
			e.log.Error("persist contracts", slog.Any("err", err))
		}
	}

	if expired := e.schedules.ExpireSchedules(p); len(expired) > 0 {
		for _, s := range expired {
			e.log.Info("schedule expired", slog.String("contract", s.Contract.ID), slog.String("registration", s.Registration))
			e.record(ctx, store.HistoryEntry{ContractID: s.Contract.ID, Registration: s.Registration, Event: store.EventExpired, Playtime: p})
		}
		e.metrics.Expired(len(expired))
		if err := e.persistSchedules(ctx); err != nil {
			e.log.Error("persist schedules", slog.Any("err", err))
		}
	}

	e.metrics.SetPlaytime(int64(p))
	e.metrics.SetCounts(e.schedules.Count(), len(e.lifecycle.Offers()), e.hangar.Len(), e.airborne(p))
}

func (e *Engine) airborne(p clock.Playtime) int {
	n := 0
	for _, list := range e.schedules.All() {
		for _, s := range list {
			switch schedule.Status(s, p) {
			case schedule.StatusOutbound, schedule.StatusReturn:
				n++
			}
		}
	}
	return n
}

func (e *Engine) persistSchedules(ctx context.Context) error {
	return e.store.SetActiveSchedules(ctx, e.schedules.All())
}

func (e *Engine) persistContracts(ctx context.Context) error {
	return errors.Join(
		e.store.SetContractOffers(ctx, e.lifecycle.Offers()),
		e.store.SetInactiveContracts(ctx, e.lifecycle.Inactive()),
		e.store.SetLastRefresh(ctx, e.lifecycle.LastRefresh()),
	)
}

func (e *Engine) record(ctx context.Context, h store.HistoryEntry) {
	if err := e.store.RecordHistory(ctx, h); err != nil {
		e.log.Warn("record history", slog.Any("err", err))
	}
}

func (e *Engine) onAssetAdded(a models.Asset) {
	e.log.Info("asset added", slog.String("registration", a.Registration), slog.String("ownership", string(a.Ownership)), slog.String("hub", a.Hub))
	e.metrics.SetCounts(e.schedules.Count(), len(e.lifecycle.Offers()), e.hangar.Len(), e.airborne(e.clock.Playtime()))
}

func (e *Engine) onAssetRemoved(a models.Asset) {
	ctx := context.Background()
	purged := e.schedules.Schedules(a.Registration)
	e.schedules.RemoveActiveSchedulesForAsset(a.Registration)
	for _, s := range purged {
		e.record(ctx, store.HistoryEntry{ContractID: s.Contract.ID, Registration: a.Registration, Event: store.EventPurged, Playtime: e.clock.Playtime()})
	}
	e.log.Info("asset removed", slog.String("registration", a.Registration), slog.Int("schedules_purged", len(purged)))
	if err := e.persistSchedules(ctx); err != nil {
		e.log.Error("persist schedules", slog.Any("err", err))
	}
}

// Reputation is the operator's accumulated reputation.
func (e *Engine) Reputation() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reputation
}

// Perks are the discounts of the operator's current tier.
func (e *Engine) Perks() tier.Perks {
	return tier.ForReputation(e.tiers, e.Reputation()).Perks
}

func (e *Engine) Offers() []models.Contract {
	return e.lifecycle.Offers()
}

func (e *Engine) Options(contractID string) ([]models.ContractOption, error) {
	return e.lifecycle.Options(contractID)
}

// Accept commits contractID to the asset and credits its reputation yield.
func (e *Engine) Accept(ctx context.Context, contractID, registration string) (models.Schedule, error) {
	now := e.clock.Playtime()
	s, err := e.lifecycle.Accept(contractID, registration, now)
	if err != nil {
		e.metrics.Rejected(rejectReason(err))
		e.log.Warn("accept rejected", slog.String("contract", contractID), slog.String("registration", registration), slog.Any("err", err))
		return models.Schedule{}, err
	}

	e.mu.Lock()
	e.reputation += s.Contract.Reputation
	rep := e.reputation
	e.mu.Unlock()

	e.metrics.Accepted(s.Option.Profit)
	e.record(ctx, store.HistoryEntry{ContractID: contractID, Registration: registration, Event: store.EventAccepted, Playtime: now, Profit: s.Option.Profit})
	e.log.Info("contract accepted",
		slog.String("contract", contractID),
		slog.String("registration", registration),
		slog.String("day", s.Day.String()),
		slog.String("start", s.Start.String()),
		slog.String("end", s.End.String()),
		slog.Int64("profit", s.Option.Profit))

	err = errors.Join(
		e.persistSchedules(ctx),
		e.persistContracts(ctx),
		e.store.SetReputation(ctx, rep),
	)
	return s, err
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, contracts.ErrNotFound):
		return "not_found"
	case errors.Is(err, contracts.ErrUnknownAsset):
		return "unknown_asset"
	case errors.Is(err, contracts.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (e *Engine) Fleet() []models.Asset {
	return e.hangar.All()
}

// Purchase buys or leases an aircraft based at hub.
func (e *Engine) Purchase(ctx context.Context, templateID string, mode models.Ownership, hub string) (models.Asset, error) {
	if hub != "" {
		if _, ok := e.airports.Lookup(hub); !ok {
			return models.Asset{}, fmt.Errorf("%s: %w", hub, contracts.ErrUnknownAirport)
		}
	}
	a, err := e.hangar.Purchase(templateID, mode, hub)
	if err != nil {
		return models.Asset{}, err
	}
	return a, e.store.SetFleet(ctx, e.hangar.All())
}

// SellAsset removes an asset; its schedules are purged.
func (e *Engine) SellAsset(ctx context.Context, registration string) (models.Asset, error) {
	a, err := e.hangar.Remove(registration)
	if err != nil {
		return models.Asset{}, err
	}
	return a, e.store.SetFleet(ctx, e.hangar.All())
}

// ScheduleView is a committed schedule with its current status.
type ScheduleView struct {
	models.Schedule
	Status  schedule.FlightStatus `json:"status"`
	Halfway string                `json:"halfway"`
}

// Asset looks an asset up by registration, ignoring case.
func (e *Engine) Asset(registration string) (models.Asset, bool) {
	return e.hangar.Get(registration)
}

// Schedules lists an asset's schedules; registration is matched ignoring
// case.
func (e *Engine) Schedules(registration string) []ScheduleView {
	if a, ok := e.hangar.Get(registration); ok {
		registration = a.Registration
	}
	return e.view(e.schedules.Schedules(registration))
}

func (e *Engine) AllSchedules() []ScheduleView {
	var all []models.Schedule
	for _, a := range e.hangar.All() {
		all = append(all, e.schedules.Schedules(a.Registration)...)
	}
	return e.view(all)
}

func (e *Engine) view(list []models.Schedule) []ScheduleView {
	now := e.clock.Playtime()
	out := make([]ScheduleView, 0, len(list))
	for _, s := range list {
		out = append(out, ScheduleView{
			Schedule: s,
			Status:   schedule.Status(s, now),
			Halfway:  schedule.Halfway(s).String(),
		})
	}
	return out
}

// LiveFlights places every airborne schedule on its great-circle path.
func (e *Engine) LiveFlights() []schedule.Position {
	now := e.clock.Playtime()
	var out []schedule.Position
	for _, list := range e.schedules.All() {
		for _, s := range list {
			origin, ok := e.airports.Lookup(s.Contract.Origin)
			if !ok {
				continue
			}
			dest, ok := e.airports.Lookup(s.Contract.Destination)
			if !ok {
				continue
			}
			if pos, ok := e.tracker.CurrentPoint(s, origin.Point(), dest.Point(), now); ok {
				out = append(out, pos)
			}
		}
	}
	return out
}

// RoutePath samples the great circle between two airports for drawing.
// n of zero uses the configured resolution.
func (e *Engine) RoutePath(from, to string, n int) ([]geo.Point, int, error) {
	a, ok := e.airports.Lookup(from)
	if !ok {
		return nil, 0, fmt.Errorf("%s: %w", from, contracts.ErrUnknownAirport)
	}
	b, ok := e.airports.Lookup(to)
	if !ok {
		return nil, 0, fmt.Errorf("%s: %w", to, contracts.ErrUnknownAirport)
	}
	if n == 0 {
		n = e.pathRes
	}
	pts, err := e.paths.PathPoints(a.Point(), b.Point(), n)
	if err != nil {
		return nil, 0, err
	}
	return pts, geo.Distance(a.Point(), b.Point()), nil
}

func (e *Engine) History(ctx context.Context, contractID string, limit int) ([]store.HistoryEntry, error) {
	return e.store.History(ctx, contractID, limit)
}

// State summarizes the session.
type State struct {
	Playtime        clock.Playtime  `json:"playtime"`
	Day             string          `json:"day"`
	Time            clock.TimeOfDay `json:"time"`
	Running         bool            `json:"running"`
	TimeToNextDay   string          `json:"time_to_next_day"`
	TimeToNextWeek  string          `json:"time_to_next_week"`
	Reputation      int             `json:"reputation"`
	Tier            tier.Tier       `json:"tier"`
	NextTier        *tier.Tier      `json:"next_tier,omitempty"`
	FleetSize       int             `json:"fleet_size"`
	Offers          int             `json:"offers"`
	ActiveSchedules int             `json:"active_schedules"`
}

func (e *Engine) State() State {
	p := e.clock.Playtime()
	rep := e.Reputation()
	cur := tier.ForReputation(e.tiers, rep)
	st := State{
		Playtime:        p,
		Day:             p.Day().String(),
		Time:            p.TimeOfDay(),
		Running:         e.clock.Running(),
		TimeToNextDay:   clock.FormatRemaining(e.clock.TimeToNextDay()),
		TimeToNextWeek:  clock.FormatRemaining(e.clock.TimeToNextWeek()),
		Reputation:      rep,
		Tier:            cur,
		FleetSize:       e.hangar.Len(),
		Offers:          len(e.lifecycle.Offers()),
		ActiveSchedules: e.schedules.Count(),
	}
	if next, ok := tier.Next(e.tiers, cur.Level); ok {
		st.NextTier = &next
	}
	return st
}
