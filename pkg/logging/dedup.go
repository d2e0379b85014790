package logging

import (
	"sync"
	"time"
)

// Instance is one occurrence of a notification that was held back.
type Instance struct {
	Time time.Time
	Vars map[string]any
}

// Decision is the outcome of Dedup.Admit.
type Decision struct {
	// Send is true when the notification should go out now.
	Send bool
	// Suppressed lists the occurrences held back since the last send of the
	// same fingerprint. Only populated when Send is true.
	Suppressed []Instance
}

type dedupEntry struct {
	unlockAt  time.Time
	instances []Instance
}

// Dedup rate-limits error notifications. Each fingerprint is sent at most
// once per window; repeats inside the window are recorded and attached to
// the next send. Independently, at most budget notifications are sent in
// any rolling hour.
//
// All state is owned by one mutex. The entry map is bounded: when full,
// expired fingerprints are dropped first, then the one that unlocks soonest.
type Dedup struct {
	mu         sync.Mutex
	entries    map[string]*dedupEntry
	sent       []time.Time
	window     time.Duration
	budget     int
	maxEntries int
	now        func() time.Time
}

// DedupOption configures a Dedup.
type DedupOption func(*Dedup)

// WithWindow sets how long a fingerprint stays locked after it is sent.
func WithWindow(d time.Duration) DedupOption {
	return func(c *Dedup) { c.window = d }
}

// WithHourlyBudget caps notifications per rolling hour. Zero disables the cap.
func WithHourlyBudget(n int) DedupOption {
	return func(c *Dedup) { c.budget = n }
}

// WithMaxEntries bounds the number of tracked fingerprints.
func WithMaxEntries(n int) DedupOption {
	return func(c *Dedup) { c.maxEntries = n }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) DedupOption {
	return func(c *Dedup) { c.now = now }
}

// Presets for the two notification channels.
var (
	// LocalDedup suits development: near-immediate repeats, generous budget.
	LocalDedup = []DedupOption{WithWindow(time.Second), WithHourlyBudget(100)}
	// WideDedup suits production: one send per fingerprint per hour, five per hour overall.
	WideDedup = []DedupOption{WithWindow(time.Hour), WithHourlyBudget(5)}
)

// NewDedup creates a Dedup. Defaults match WideDedup with 1024 entries.
func NewDedup(opts ...DedupOption) *Dedup {
	d := &Dedup{
		entries:    make(map[string]*dedupEntry),
		window:     time.Hour,
		budget:     5,
		maxEntries: 1024,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Admit records one occurrence of fingerprint and decides whether to send.
func (d *Dedup) Admit(fingerprint string, vars map[string]any) Decision {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	e, ok := d.entries[fingerprint]
	if !ok {
		d.makeRoom(now)
		e = &dedupEntry{}
		d.entries[fingerprint] = e
	} else if now.Before(e.unlockAt) {
		e.instances = append(e.instances, Instance{Time: now, Vars: vars})
		return Decision{}
	}

	if !d.takeBudget(now) {
		e.instances = append(e.instances, Instance{Time: now, Vars: vars})
		return Decision{}
	}

	held := e.instances
	e.instances = nil
	e.unlockAt = now.Add(d.window)
	return Decision{Send: true, Suppressed: held}
}

// takeBudget consumes one slot of the rolling hourly budget.
func (d *Dedup) takeBudget(now time.Time) bool {
	if d.budget <= 0 {
		return true
	}
	cutoff := now.Add(-time.Hour)
	i := 0
	for i < len(d.sent) && !d.sent[i].After(cutoff) {
		i++
	}
	d.sent = d.sent[i:]
	if len(d.sent) >= d.budget {
		return false
	}
	d.sent = append(d.sent, now)
	return true
}

func (d *Dedup) makeRoom(now time.Time) {
	if d.maxEntries <= 0 || len(d.entries) < d.maxEntries {
		return
	}
	for k, e := range d.entries {
		if !now.Before(e.unlockAt) && len(e.instances) == 0 {
			delete(d.entries, k)
		}
	}
	for len(d.entries) >= d.maxEntries {
		var oldest string
		var oldestAt time.Time
		for k, e := range d.entries {
			if oldest == "" || e.unlockAt.Before(oldestAt) {
				oldest, oldestAt = k, e.unlockAt
			}
		}
		delete(d.entries, oldest)
	}
}

// Size returns the number of tracked fingerprints.
func (d *Dedup) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Clear forgets every fingerprint and the hourly budget.
func (d *Dedup) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]*dedupEntry)
	d.sent = nil
}
