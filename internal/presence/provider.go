package presence

import (
	"sync"

	"github.com/qZheng/sidequests/internal/quest"
)

// Authorization is the platform location permission tier.
type Authorization string

const (
	AuthNotDetermined Authorization = "notDetermined"
	AuthDenied        Authorization = "denied"
	AuthRestricted    Authorization = "restricted"
	AuthWhenInUse     Authorization = "whenInUse"
	AuthAlways        Authorization = "always"
)

// granted reports whether the tier allows location requests at all.
func (a Authorization) granted() bool {
	return a == AuthWhenInUse || a == AuthAlways
}

// Region is a circular geofence.
type Region struct {
	ID     string
	Center quest.Coordinate
	Radius float64
}

// RegionState is the answer to a region state query.
type RegionState string

const (
	RegionInside  RegionState = "inside"
	RegionOutside RegionState = "outside"
	RegionUnknown RegionState = "unknown"
)

// Provider abstracts the platform geofence and location source. Registration
// calls are synchronous; results and transitions are delivered back through
// the Tracker's Handle* methods by whoever owns the real event source.
type Provider interface {
	// Authorization returns the current permission tier.
	Authorization() Authorization

	// RequestAlwaysAuthorization asks for the elevated tier. The outcome
	// arrives asynchronously via Tracker.HandleAuthorizationChange.
	RequestAlwaysAuthorization()

	// StartMonitoring registers a geofence. A non-nil error means the
	// platform rejected the registration outright.
	StartMonitoring(region Region) error

	// StopMonitoring removes a registered geofence. Unknown ids are ignored.
	StopMonitoring(regionID string)

	// RequestState asks for an immediate inside/outside determination for
	// a monitored region, delivered via Tracker.HandleRegionState.
	RequestState(regionID string)

	// RequestLocation issues a one-shot current-location fix, delivered via
	// Tracker.HandleLocation or Tracker.HandleLocationError.
	RequestLocation() error
}

// RelayProvider is the Provider used by the running engine: the device that
// actually observes geofence transitions reports them through the MCP/CLI
// ingress, which forwards them to the Tracker. Region registrations are
// recorded locally so state queries and duplicate-region rules still apply.
type RelayProvider struct {
	mu      sync.Mutex
	auth    Authorization
	regions map[string]Region
}

// NewRelayProvider creates a relay provider with the given initial tier.
func NewRelayProvider(auth Authorization) *RelayProvider {
	return &RelayProvider{auth: auth, regions: make(map[string]Region)}
}

// Authorization returns the last reported permission tier.
func (p *RelayProvider) Authorization() Authorization {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auth
}

// SetAuthorization records a relayed permission change.
func (p *RelayProvider) SetAuthorization(auth Authorization) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.auth = auth
}

// RequestAlwaysAuthorization is a no-op for the relay: the prompt happens on
// the device, and the outcome comes back as a relayed authorization change.
func (p *RelayProvider) RequestAlwaysAuthorization() {}

// StartMonitoring records the region.
func (p *RelayProvider) StartMonitoring(region Region) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regions[region.ID] = region
	return nil
}

// StopMonitoring forgets the region.
func (p *RelayProvider) StopMonitoring(regionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.regions, regionID)
}

// RequestState is a no-op for the relay; the device pushes state events.
func (p *RelayProvider) RequestState(regionID string) {}

// RequestLocation is a no-op for the relay; a relayed fix either arrives
// before the capture timeout or the capture times out.
func (p *RelayProvider) RequestLocation() error { return nil }

// MonitoredRegion returns the registered region with the given id, if any.
func (p *RelayProvider) MonitoredRegion(regionID string) (Region, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.regions[regionID]
	return r, ok
}
