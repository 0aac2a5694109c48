// Package fleet keeps the operator's aircraft. Scheduling code only reads
// assets from it and reacts to removals.
package fleet

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"airline_scheduler/internal/models"
)

var (
	ErrUnknownTemplate = errors.New("unknown aircraft template")
	ErrUnknownAsset    = errors.New("unknown asset")
	ErrDuplicateAsset  = errors.New("registration already in fleet")
)

// starter templates seeded into an empty fleet
var starterTemplates = []string{"A320", "B737-800", "E190"}

// Hangar is the fleet collaborator. Listeners registered with OnRemove run
// after the asset is gone, outside the lock.
type Hangar struct {
	mu        sync.Mutex
	templates map[string]models.Aircraft
	assets    []models.Asset
	nextSeq   int
	onRemove  []func(models.Asset)
	onAdd     []func(models.Asset)
}

func NewHangar(templates []models.Aircraft) *Hangar {
	h := &Hangar{templates: make(map[string]models.Aircraft, len(templates))}
	for _, t := range templates {
		h.templates[strings.ToUpper(t.ID)] = t
	}
	return h
}

// Templates lists the catalog the hangar can buy from.
func (h *Hangar) Templates() []models.Aircraft {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Aircraft, 0, len(h.templates))
	for _, t := range h.templates {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b models.Aircraft) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (h *Hangar) OnAdd(fn func(models.Asset)) {
	h.mu.Lock()
	h.onAdd = append(h.onAdd, fn)
	h.mu.Unlock()
}

func (h *Hangar) OnRemove(fn func(models.Asset)) {
	h.mu.Lock()
	h.onRemove = append(h.onRemove, fn)
	h.mu.Unlock()
}

// All returns a copy of every asset.
func (h *Hangar) All() []models.Asset {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.assets)
}

func (h *Hangar) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.assets)
}

func (h *Hangar) Get(registration string) (models.Asset, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexLocked(registration)
	if i < 0 {
		return models.Asset{}, false
	}
	return h.assets[i], true
}

func (h *Hangar) indexLocked(registration string) int {
	return slices.IndexFunc(h.assets, func(a models.Asset) bool {
		return strings.EqualFold(a.Registration, registration)
	})
}

// Add inserts an existing asset, typically restored from storage.
func (h *Hangar) Add(a models.Asset) error {
	h.mu.Lock()
	if h.indexLocked(a.Registration) >= 0 {
		h.mu.Unlock()
		return fmt.Errorf("%s: %w", a.Registration, ErrDuplicateAsset)
	}
	h.assets = append(h.assets, a)
	listeners := slices.Clone(h.onAdd)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(a)
	}
	return nil
}

// Restore replaces the fleet without notifying listeners.
func (h *Hangar) Restore(list []models.Asset) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assets = slices.Clone(list)
	h.nextSeq = len(list)
}

// Remove sells an owned asset or returns a leased one. Listeners are told
// so the asset's schedules can be purged.
func (h *Hangar) Remove(registration string) (models.Asset, error) {
	h.mu.Lock()
	i := h.indexLocked(registration)
	if i < 0 {
		h.mu.Unlock()
		return models.Asset{}, fmt.Errorf("%s: %w", registration, ErrUnknownAsset)
	}
	a := h.assets[i]
	h.assets = slices.Delete(h.assets, i, i+1)
	listeners := slices.Clone(h.onRemove)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(a)
	}
	return a, nil
}

// Purchase buys or leases a new asset from a template and bases it at hub.
func (h *Hangar) Purchase(templateID string, mode models.Ownership, hub string) (models.Asset, error) {
	h.mu.Lock()
	tpl, ok := h.templates[strings.ToUpper(strings.TrimSpace(templateID))]
	if !ok {
		h.mu.Unlock()
		return models.Asset{}, fmt.Errorf("%s: %w", templateID, ErrUnknownTemplate)
	}
	if mode != models.Leased {
		mode = models.Owned
	}
	h.nextSeq++
	a := AssetFromTemplate(tpl, h.registrationLocked(tpl), mode)
	a.Hub = strings.ToUpper(hub)
	h.mu.Unlock()

	if err := h.Add(a); err != nil {
		return models.Asset{}, err
	}
	return a, nil
}

func (h *Hangar) registrationLocked(tpl models.Aircraft) string {
	for {
		reg := fmt.Sprintf("%s-%d", tpl.ID, h.nextSeq)
		if h.indexLocked(reg) < 0 {
			return reg
		}
		h.nextSeq++
	}
}

// SeedFleet gives an empty hangar its owned starter aircraft.
func (h *Hangar) SeedFleet(hub string) []models.Asset {
	var seeded []models.Asset
	for _, id := range starterTemplates {
		if _, ok := h.templates[id]; !ok {
			continue
		}
		a, err := h.Purchase(id, models.Owned, hub)
		if err != nil {
			continue
		}
		seeded = append(seeded, a)
	}
	return seeded
}

// AssetFromTemplate derives the cabin layout and performance of a new asset.
// Templates with a three-class layout get first and business cabins; two-class
// templates only business.
func AssetFromTemplate(tpl models.Aircraft, registration string, mode models.Ownership) models.Asset {
	a := models.Asset{
		Registration: registration,
		TemplateID:   tpl.ID,
		Name:         tpl.Name,
		Ownership:    mode,
		Capacity:     cabinLayout(tpl),
		CruiseKmh:    tpl.CruiseKmh,
		RangeKm:      tpl.RangeKm,
		FuelBurnKgH:  tpl.FuelBurnKgH,
		MTOWKg:       tpl.MTOWKg,
	}
	if a.FuelBurnKgH <= 0 {
		a.FuelBurnKgH = float64(tpl.Seats) * 14
	}
	if a.MTOWKg <= 0 {
		a.MTOWKg = float64(tpl.Seats) * 420
	}
	if mode == models.Leased {
		a.LeaseRateHour = tpl.LeaseRateHour
		if a.LeaseRateHour <= 0 {
			a.LeaseRateHour = math.Round(tpl.ListPrice * 0.01 / 300)
		}
	}
	return a
}

func cabinLayout(tpl models.Aircraft) models.Seats {
	switch {
	case tpl.ThreeClass > 0:
		first := tpl.ThreeClass / 20
		business := tpl.ThreeClass / 6
		return models.Seats{First: first, Business: business, Economy: tpl.ThreeClass - first - business}
	case tpl.TwoClass > 0:
		business := tpl.TwoClass / 8
		return models.Seats{Business: business, Economy: tpl.TwoClass - business}
	default:
		return models.Seats{Economy: tpl.Seats}
	}
}
