package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/brunoga/deep"

	"airline_scheduler/internal/clock"
	"airline_scheduler/internal/models"
)

var (
	ErrConflict  = errors.New("schedule overlaps an existing assignment")
	ErrDuplicate = errors.New("contract already scheduled on this asset")
	ErrNoAsset   = errors.New("asset no longer in the fleet")
)

// Engine owns the committed schedules of every asset. It is the only
// writer; readers get deep copies.
type Engine struct {
	mu      sync.RWMutex
	byAsset map[string][]models.Schedule
	exists  func(registration string) bool
}

func NewEngine() *Engine {
	return &Engine{byAsset: make(map[string][]models.Schedule)}
}

// Intervals returns the occupied week intervals of an asset.
func (e *Engine) Intervals(registration string) []Interval {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return intervalsLocked(e.byAsset[registration])
}

func intervalsLocked(list []models.Schedule) []Interval {
	out := make([]Interval, 0, len(list))
	for _, s := range list {
		out = append(out, IntervalOf(s))
	}
	return out
}

// CheckAvailability decides whether the asset can fly the contract with the
// quoted turnaround. Assets tied to a hub only fly contracts from that hub.
func (e *Engine) CheckAvailability(c models.Contract, a models.Asset, opt models.ContractOption) bool {
	if a.Hub != "" && !strings.EqualFold(a.Hub, c.Hub()) {
		return false
	}
	if opt.Turnaround.TotalMin <= 0 || opt.Turnaround.TotalMin >= clock.MinutesPerWeek {
		return false
	}
	draft := DraftSchedule(c, opt)
	return CanAssignSchedule(e.Intervals(a.Registration), IntervalOf(draft))
}

// RequireAsset makes Commit refuse schedules for assets fn does not know.
// fn runs under the write lock, so a removal either happens before the check
// or its purge runs after the commit.
func (e *Engine) RequireAsset(fn func(registration string) bool) {
	e.mu.Lock()
	e.exists = fn
	e.mu.Unlock()
}

// Commit stores s. The overlap test is repeated under the write lock so two
// quotes for the same slot cannot both be committed.
func (e *Engine) Commit(s models.Schedule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exists != nil && !e.exists(s.Registration) {
		return fmt.Errorf("%s: %w", s.Registration, ErrNoAsset)
	}
	list := e.byAsset[s.Registration]
	for _, existing := range list {
		if existing.Same(s) {
			return ErrDuplicate
		}
	}
	if !CanAssignSchedule(intervalsLocked(list), IntervalOf(s)) {
		return fmt.Errorf("%s on %s: %w", s.Contract.ID, s.Registration, ErrConflict)
	}
	list = append(list, s)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].StartMinute() < list[j].StartMinute()
	})
	e.byAsset[s.Registration] = list
	return nil
}

// Schedules returns a snapshot of an asset's schedules ordered by start.
func (e *Engine) Schedules(registration string) []models.Schedule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	list := e.byAsset[registration]
	if len(list) == 0 {
		return nil
	}
	return deep.MustCopy(list)
}

// All returns a snapshot of every asset's schedules.
func (e *Engine) All() map[string][]models.Schedule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return deep.MustCopy(e.byAsset)
}

func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, list := range e.byAsset {
		n += len(list)
	}
	return n
}

// RemoveActiveSchedulesForAsset drops every schedule of a disposed asset and
// returns how many were removed.
func (e *Engine) RemoveActiveSchedulesForAsset(registration string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.byAsset[registration])
	delete(e.byAsset, registration)
	return n
}

// ExpireSchedules drops schedules whose contract ran out by now and returns
// them.
func (e *Engine) ExpireSchedules(now clock.Playtime) []models.Schedule {
	e.mu.Lock()
	defer e.mu.Unlock()
	var expired []models.Schedule
	for reg, list := range e.byAsset {
		kept := list[:0]
		for _, s := range list {
			if s.ExpiresAt > 0 && now >= s.ExpiresAt {
				expired = append(expired, s)
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(e.byAsset, reg)
		} else {
			e.byAsset[reg] = kept
		}
	}
	return expired
}

// Restore replaces the whole store, typically from persisted state.
func (e *Engine) Restore(byAsset map[string][]models.Schedule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byAsset = make(map[string][]models.Schedule, len(byAsset))
	for reg, list := range byAsset {
		if len(list) > 0 {
			e.byAsset[reg] = deep.MustCopy(list)
		}
	}
}
