package clock

import (
	"context"
	"sync"
	"time"
)

const defaultTickInterval = time.Second

// Options configures a Clock. Zero values pick sensible defaults.
type Options struct {
	Playtime         Playtime
	LastSave         time.Time
	OfflineAllowance time.Duration
	// TickInterval is the wall-clock time per game minute.
	TickInterval time.Duration
	Now          func() time.Time
}

// Subscription identifies a registered tick listener.
type Subscription struct {
	id uint64
}

type listener struct {
	id uint64
	fn func(Playtime)
}

// Clock owns the authoritative playtime counter. It advances one game minute
// per tick and notifies listeners synchronously, in registration order.
type Clock struct {
	mu        sync.Mutex
	playtime  Playtime
	interval  time.Duration
	now       func() time.Time
	caughtUp  Playtime
	nextID    uint64
	listeners []listener

	// gen changes on every Start/Pause so a ticker goroutine from a
	// previous run can never advance playtime.
	gen     uint64
	running bool
	cancel  context.CancelFunc
}

// New constructs a paused clock. Offline time since opts.LastSave, capped at
// opts.OfflineAllowance, is folded into playtime once.
func New(opts Options) *Clock {
	c := &Clock{
		playtime: opts.Playtime,
		interval: opts.TickInterval,
		now:      opts.Now,
	}
	if c.interval <= 0 {
		c.interval = defaultTickInterval
	}
	if c.now == nil {
		c.now = time.Now
	}
	if !opts.LastSave.IsZero() {
		elapsed := c.now().Sub(opts.LastSave)
		if elapsed > opts.OfflineAllowance {
			elapsed = opts.OfflineAllowance
		}
		if elapsed > 0 {
			c.caughtUp = Playtime(elapsed / c.interval)
			c.playtime += c.caughtUp
		}
	}
	return c
}

// Playtime returns the current playtime.
func (c *Clock) Playtime() Playtime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playtime
}

// CaughtUp reports how many minutes of offline time were applied by New.
func (c *Clock) CaughtUp() Playtime {
	return c.caughtUp
}

// Now returns the wall-clock time source used by the clock.
func (c *Clock) Now() time.Time {
	return c.now()
}

func (c *Clock) Interval() time.Duration {
	return c.interval
}

func (c *Clock) CurrentDayOfWeek() Day  { return DayOfWeek(c.Playtime()) }
func (c *Clock) PreviousDayOfWeek() Day { return PreviousDayOfWeek(c.Playtime()) }

// TimeToNextDay returns the minutes left until the next midnight.
func (c *Clock) TimeToNextDay() int {
	return MinutesPerDay - int(MinuteOfDay(c.Playtime()))
}

// TimeToNextWeek returns the minutes left until the next Monday 00:00.
func (c *Clock) TimeToNextWeek() int {
	return MinutesPerWeek - int(c.Playtime().WeekMinute())
}

// Subscribe registers fn to be called after every tick.
func (c *Clock) Subscribe(fn func(Playtime)) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners = append(c.listeners, listener{id: c.nextID, fn: fn})
	return Subscription{id: c.nextID}
}

// Unsubscribe removes a listener. Unknown subscriptions are ignored.
func (c *Clock) Unsubscribe(s Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.listeners {
		if l.id == s.id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return
		}
	}
}

// Tick advances playtime by one minute and notifies listeners. It may be
// called directly while the clock is paused.
func (c *Clock) Tick() Playtime {
	c.mu.Lock()
	p, ls := c.advanceLocked()
	c.mu.Unlock()
	notify(ls, p)
	return p
}

func (c *Clock) tickGen(gen uint64) {
	c.mu.Lock()
	if !c.running || c.gen != gen {
		c.mu.Unlock()
		return
	}
	p, ls := c.advanceLocked()
	c.mu.Unlock()
	notify(ls, p)
}

func (c *Clock) advanceLocked() (Playtime, []listener) {
	c.playtime++
	ls := make([]listener, len(c.listeners))
	copy(ls, c.listeners)
	return c.playtime, ls
}

func notify(ls []listener, p Playtime) {
	for _, l := range ls {
		l.fn(p)
	}
}

// Running reports whether the tick source is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start begins ticking on the configured wall-clock interval until ctx is
// done or Pause is called. Starting a running clock is a no-op.
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.running = true
	ctx, c.cancel = context.WithCancel(ctx)
	interval := c.interval
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.mu.Lock()
				if c.gen == gen {
					c.running = false
					c.cancel = nil
				}
				c.mu.Unlock()
				return
			case <-ticker.C:
				c.tickGen(gen)
			}
		}
	}()
}

// Pause stops the tick source. Playtime is kept as is and no listener is
// notified until the clock is resumed.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Resume restarts a paused clock.
func (c *Clock) Resume(ctx context.Context) {
	c.Start(ctx)
}
