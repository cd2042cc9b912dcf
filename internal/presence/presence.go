package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/errors"
	"github.com/qZheng/sidequests/internal/prefs"
	"github.com/qZheng/sidequests/internal/quest"
)

// HomeRegionID names the single monitored home geofence.
const HomeRegionID = "homeRegion"

// DefaultCaptureTimeout bounds a one-shot current-location request.
const DefaultCaptureTimeout = 10 * time.Second

// Presence is the tri-state answer to "is the user at home?".
type Presence string

const (
	PresenceUnknown Presence = "unknown"
	PresenceAtHome  Presence = "home"
	PresenceAway    Presence = "away"
)

// captureResult is the single resolution of a pending location capture.
type captureResult struct {
	coord quest.Coordinate
	err   error
}

// capture is the pending-request slot for the one-shot location fix. Exactly
// one of {delivered fix, provider error, timeout} consumes it; consumption is
// a compare-and-clear of Tracker.pending under the tracker mutex.
type capture struct {
	done  chan captureResult // buffered, written exactly once
	timer *time.Timer
}

// Tracker answers "is the user currently at their home location?" from
// geofence transitions, and owns home-location configuration. All state
// mutation is serialized by its mutex; event producers call the Handle*
// methods from any goroutine.
type Tracker struct {
	mu       sync.Mutex
	provider Provider
	store    *prefs.Store
	log      *zap.Logger

	radius         float64
	captureTimeout time.Duration

	home     *quest.Coordinate
	presence Presence
	auth     Authorization
	lastErr  *errors.QuestError

	pending *capture

	subsMu sync.Mutex
	subs   []func()
}

// Options tunes tracker construction.
type Options struct {
	// Radius of the home geofence in meters. Defaults to 500.
	Radius float64

	// CaptureTimeout bounds CaptureCurrentLocationAsHome. Defaults to 10s.
	CaptureTimeout time.Duration
}

// New creates a tracker over the given provider and preference store.
// It does not touch persisted state; call Restore to resume monitoring a
// previously configured home.
func New(provider Provider, store *prefs.Store, log *zap.Logger, opts Options) *Tracker {
	if opts.Radius <= 0 {
		opts.Radius = 500
	}
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = DefaultCaptureTimeout
	}
	return &Tracker{
		provider:       provider,
		store:          store,
		log:            log,
		radius:         opts.Radius,
		captureTimeout: opts.CaptureTimeout,
		presence:       PresenceUnknown,
		auth:           provider.Authorization(),
	}
}

// Restore loads a persisted home coordinate and resumes geofence monitoring
// around it. A corrupt persisted value was already dropped by the store.
func (t *Tracker) Restore() {
	coord, ok := t.store.Coordinate(prefs.KeyHomeLocation)
	if !ok {
		return
	}
	if err := t.ConfigureHome(coord); err != nil {
		t.log.Warn("failed to resume home monitoring", zap.Error(err))
	}
}

// ConfigureHome sets the home location, persists it, and (re)starts geofence
// monitoring around it. Any previously monitored region is fully cancelled
// before the new one starts; only one home region is ever active.
func (t *Tracker) ConfigureHome(coord quest.Coordinate) error {
	if err := coord.Validate(); err != nil {
		return errors.NewInvalidRequest(err.Error())
	}

	t.mu.Lock()
	t.provider.StopMonitoring(HomeRegionID)

	region := Region{ID: HomeRegionID, Center: coord, Radius: t.radius}
	if err := t.provider.StartMonitoring(region); err != nil {
		qErr := errors.NewMonitoringFailed(HomeRegionID, err)
		t.lastErr = qErr
		t.mu.Unlock()
		t.log.Error("geofence registration rejected", zap.Error(err))
		return qErr
	}

	c := coord
	t.home = &c
	if err := t.store.SetCoordinate(prefs.KeyHomeLocation, coord); err != nil {
		t.log.Error("failed to persist home location", zap.Error(err))
	}
	t.mu.Unlock()

	// Ask for an immediate inside/outside determination.
	t.provider.RequestState(HomeRegionID)

	t.log.Info("home location configured",
		zap.Float64("lat", coord.Latitude),
		zap.Float64("lng", coord.Longitude),
		zap.Float64("radius", t.radius))
	t.notify()
	return nil
}

// ClearHome removes the stored home coordinate, stops all monitoring, and
// resets presence to unknown.
func (t *Tracker) ClearHome() {
	t.mu.Lock()
	t.provider.StopMonitoring(HomeRegionID)
	t.home = nil
	t.presence = PresenceUnknown
	if err := t.store.Remove(prefs.KeyHomeLocation); err != nil {
		t.log.Error("failed to clear persisted home location", zap.Error(err))
	}
	t.mu.Unlock()

	t.log.Info("home location cleared")
	t.notify()
}

// RequestAlwaysAuthorization asks the provider for the elevated tier.
// The outcome is observed via HandleAuthorizationChange.
func (t *Tracker) RequestAlwaysAuthorization() {
	t.provider.RequestAlwaysAuthorization()
}

// CaptureCurrentLocationAsHome issues a single current-location fix request
// and blocks until exactly one of three outcomes: the fix arrives (home is
// configured at it and the coordinate returned), the provider reports an
// error (LocationUnavailable), or the timeout elapses (Timeout).
//
// A second call while one is pending is rejected with RequestInFlight rather
// than silently replacing the first caller's slot.
func (t *Tracker) CaptureCurrentLocationAsHome() (quest.Coordinate, error) {
	t.mu.Lock()
	if !t.auth.granted() {
		t.mu.Unlock()
		return quest.Coordinate{}, errors.NewPermissionDenied()
	}
	if t.pending != nil {
		t.mu.Unlock()
		return quest.Coordinate{}, errors.NewRequestInFlight("location capture")
	}

	c := &capture{done: make(chan captureResult, 1)}
	c.timer = time.AfterFunc(t.captureTimeout, func() {
		t.resolveCapture(captureResult{err: errors.NewTimeout("location capture")})
	})
	t.pending = c
	t.lastErr = nil
	t.mu.Unlock()

	if err := t.provider.RequestLocation(); err != nil {
		t.resolveCapture(captureResult{err: errors.NewLocationUnavailable(err)})
	}

	res := <-c.done
	if res.err != nil {
		return quest.Coordinate{}, res.err
	}
	if err := t.ConfigureHome(res.coord); err != nil {
		return quest.Coordinate{}, err
	}
	return res.coord, nil
}

// resolveCapture consumes the pending slot if it is still armed. Only the
// first of {fix, error, timeout} to arrive wins; later resolutions are
// dropped. Reports whether this call consumed the slot.
func (t *Tracker) resolveCapture(res captureResult) bool {
	t.mu.Lock()
	c := t.pending
	t.pending = nil
	t.mu.Unlock()

	if c == nil {
		return false
	}
	c.timer.Stop()
	c.done <- res
	return true
}

// HandleLocation delivers a one-shot location fix from the provider. A fix
// with no pending capture is ignored.
func (t *Tracker) HandleLocation(coord quest.Coordinate) {
	if !t.resolveCapture(captureResult{coord: coord}) {
		t.log.Debug("location fix with no pending capture, ignored")
	}
}

// HandleLocationError delivers a failed fix request. With a pending capture
// it resolves that capture; otherwise it is recorded as the latest error.
func (t *Tracker) HandleLocationError(err error) {
	qErr := errors.NewLocationUnavailable(err)
	if t.resolveCapture(captureResult{err: qErr}) {
		return
	}
	t.mu.Lock()
	t.lastErr = qErr
	t.mu.Unlock()
	t.log.Warn("location error", zap.Error(err))
}

// HandleMonitoringError records a region registration failure reported
// asynchronously by the platform.
func (t *Tracker) HandleMonitoringError(regionID string, err error) {
	t.mu.Lock()
	t.lastErr = errors.NewMonitoringFailed(regionID, err)
	t.mu.Unlock()
	t.log.Warn("geofence monitoring failed", zap.String("region", regionID), zap.Error(err))
}

// HandleRegionEnter marks the user at home when the home region is entered.
func (t *Tracker) HandleRegionEnter(regionID string) {
	if regionID != HomeRegionID {
		return
	}
	t.setPresence(PresenceAtHome)
}

// HandleRegionExit marks the user away when the home region is exited.
func (t *Tracker) HandleRegionExit(regionID string) {
	if regionID != HomeRegionID {
		return
	}
	t.setPresence(PresenceAway)
}

// HandleRegionState applies an explicit state determination for the home
// region. An undetermined state counts as away, matching the platform's
// conservative first answer.
func (t *Tracker) HandleRegionState(regionID string, state RegionState) {
	if regionID != HomeRegionID {
		return
	}
	switch state {
	case RegionInside:
		t.setPresence(PresenceAtHome)
	default:
		t.setPresence(PresenceAway)
	}
}

// HandleAuthorizationChange records a permission change. Upgrading to the
// always tier restarts monitoring if a home is configured. A downgrade
// freezes presence at its last known value.
func (t *Tracker) HandleAuthorizationChange(auth Authorization) {
	t.mu.Lock()
	t.auth = auth
	var home *quest.Coordinate
	if auth == AuthAlways && t.home != nil {
		h := *t.home
		home = &h
	}
	t.mu.Unlock()

	t.log.Info("authorization changed", zap.String("status", string(auth)))
	if home != nil {
		if err := t.ConfigureHome(*home); err != nil {
			t.log.Warn("failed to restart monitoring after authorization upgrade", zap.Error(err))
		}
	}
}

// setPresence updates the tri-state signal and notifies subscribers when it
// actually changed.
func (t *Tracker) setPresence(p Presence) {
	t.mu.Lock()
	changed := t.presence != p
	t.presence = p
	t.mu.Unlock()

	if changed {
		t.log.Info("presence changed", zap.String("presence", string(p)))
		t.notify()
	}
}

// Presence returns the current tri-state home signal.
func (t *Tracker) Presence() Presence {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.presence
}

// Home returns the configured home coordinate, or (zero, false) if none.
func (t *Tracker) Home() (quest.Coordinate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.home == nil {
		return quest.Coordinate{}, false
	}
	return *t.home, true
}

// Provider returns the underlying geofence source.
func (t *Tracker) Provider() Provider {
	return t.provider
}

// Authorization returns the last known permission tier.
func (t *Tracker) Authorization() Authorization {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.auth
}

// LastError returns the most recent recorded failure, or nil.
func (t *Tracker) LastError() *errors.QuestError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Subscribe registers a callback invoked after any home or presence change.
// Callbacks run synchronously on the mutating goroutine and must not call
// back into the tracker's mutating methods.
func (t *Tracker) Subscribe(fn func()) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	t.subs = append(t.subs, fn)
}

func (t *Tracker) notify() {
	t.subsMu.Lock()
	subs := make([]func(), len(t.subs))
	copy(subs, t.subs)
	t.subsMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
