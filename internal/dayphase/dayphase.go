package dayphase

import (
	"sync"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/quest"
)

// boundaryGuard pads the one-shot timer so the recompute lands strictly
// after the boundary instant.
const boundaryGuard = time.Second

// SolarFunc returns sunrise and sunset for the calendar day containing date
// at the given coordinate. ok is false when no sunrise or sunset occurs
// (polar day or night).
type SolarFunc func(date time.Time, coord quest.Coordinate) (rise, set time.Time, ok bool)

// StandardSolar computes sunrise/sunset with the NOAA solar model.
func StandardSolar(date time.Time, coord quest.Coordinate) (time.Time, time.Time, bool) {
	rise, set := sunrise.SunriseSunset(coord.Latitude, coord.Longitude, date.Year(), date.Month(), date.Day())
	if rise.IsZero() || set.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return rise, set, true
}

// BucketFor classifies now against the day's sunrise and sunset.
func BucketFor(now, rise, set time.Time) quest.TimeOfDay {
	switch {
	case !now.Before(rise) && !now.After(set):
		return quest.Day
	case !now.Before(rise.Add(-time.Hour)) && now.Before(rise):
		return quest.Sunrise
	case now.After(set) && !now.After(set.Add(time.Hour)):
		return quest.Sunset
	default:
		return quest.Night
	}
}

// Clock classifies "now" into one of the four time-of-day buckets relative
// to solar sunrise/sunset at the home coordinate, and keeps the
// classification current by arming a one-shot timer for the next phase
// boundary instead of polling.
type Clock struct {
	mu    sync.Mutex
	solar SolarFunc
	now   func() time.Time
	home  func() (quest.Coordinate, bool)
	log   *zap.Logger

	current quest.TimeOfDay
	timer   *time.Timer
	stopped bool

	subsMu sync.Mutex
	subs   []func(quest.TimeOfDay)
}

// Options tunes clock construction; zero values select production behavior.
type Options struct {
	// Solar overrides the sunrise/sunset model.
	Solar SolarFunc

	// Now overrides the wall clock.
	Now func() time.Time
}

// New creates a clock reading the home coordinate through home. The bucket
// starts at Day until the first Refresh.
func New(home func() (quest.Coordinate, bool), log *zap.Logger, opts Options) *Clock {
	if opts.Solar == nil {
		opts.Solar = StandardSolar
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Clock{
		solar:   opts.Solar,
		now:     opts.Now,
		home:    home,
		log:     log,
		current: quest.Day,
	}
}

// Current returns the current bucket.
func (c *Clock) Current() quest.TimeOfDay {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Refresh recomputes the bucket and re-arms the boundary timer, cancelling
// any pending one. It is the entry point for every trigger: startup, timer
// fire, home reconfiguration, and system clock changes.
func (c *Clock) Refresh() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	now := c.now()
	prev := c.current
	bucket := quest.Day
	var next time.Time

	if coord, ok := c.home(); ok {
		if rise, set, ok := c.solar(now, coord); ok {
			bucket = BucketFor(now, rise, set)
			next = c.nextBoundary(now, coord, rise, set)
		} else {
			c.log.Debug("no sunrise/sunset for coordinate, defaulting to day",
				zap.Float64("lat", coord.Latitude))
		}
	}

	c.current = bucket
	if !next.IsZero() {
		d := next.Sub(now) + boundaryGuard
		c.timer = time.AfterFunc(d, c.Refresh)
		c.log.Debug("armed phase boundary timer",
			zap.String("bucket", string(bucket)),
			zap.Time("next", next))
	}
	c.mu.Unlock()

	if bucket != prev {
		c.log.Info("day phase changed",
			zap.String("from", string(prev)),
			zap.String("to", string(bucket)))
		c.notify(bucket)
	}
}

// nextBoundary returns the earliest phase boundary strictly after now.
// When every boundary for today has passed it rolls over to tomorrow's, so
// the clock keeps itself current across midnight without an external nudge.
func (c *Clock) nextBoundary(now time.Time, coord quest.Coordinate, rise, set time.Time) time.Time {
	if next, ok := earliestAfter(now, rise, set); ok {
		return next
	}
	tomorrow := now.Add(24 * time.Hour)
	rise, set, ok := c.solar(tomorrow, coord)
	if !ok {
		return time.Time{}
	}
	if next, ok := earliestAfter(now, rise, set); ok {
		return next
	}
	return time.Time{}
}

// earliestAfter picks the soonest of the four phase boundaries after now.
func earliestAfter(now, rise, set time.Time) (time.Time, bool) {
	boundaries := []time.Time{
		rise.Add(-time.Hour),
		rise,
		set,
		set.Add(time.Hour),
	}
	var next time.Time
	for _, b := range boundaries {
		if !b.After(now) {
			continue
		}
		if next.IsZero() || b.Before(next) {
			next = b
		}
	}
	return next, !next.IsZero()
}

// NotifyClockChanged forces an immediate recompute after a manual time
// change, DST shift, or timezone change.
func (c *Clock) NotifyClockChanged() {
	c.log.Info("system clock changed, recomputing day phase")
	c.Refresh()
}

// Stop cancels the pending boundary timer. The clock no longer self-arms.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Subscribe registers a callback invoked after a bucket change, with the new
// bucket. Callbacks run synchronously on the refreshing goroutine.
func (c *Clock) Subscribe(fn func(quest.TimeOfDay)) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs = append(c.subs, fn)
}

func (c *Clock) notify(bucket quest.TimeOfDay) {
	c.subsMu.Lock()
	subs := make([]func(quest.TimeOfDay), len(c.subs))
	copy(subs, c.subs)
	c.subsMu.Unlock()

	for _, fn := range subs {
		fn(bucket)
	}
}
