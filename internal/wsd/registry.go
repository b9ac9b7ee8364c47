package wsd

import (
	"sync"
	"time"
)

// Device is a discovered WSD target, keyed in the Registry by its
// canonical UUID.
type Device struct {
	UUID        string
	LastSeen    time.Time
	Props       map[string]string
	DisplayName string
	BelongsTo   string
	// Addresses is the set of addresses this device has been seen at,
	// keyed by the interface name of the MEP the metadata was fetched
	// through.
	Addresses map[string]map[string]struct{}
}

func newDevice(uuid string) *Device {
	return &Device{
		UUID:      uuid,
		Props:     make(map[string]string),
		Addresses: make(map[string]map[string]struct{}),
	}
}

// AddAddress records addr as seen on iface, creating the per-interface set
// if needed.
func (d *Device) AddAddress(iface, addr string) {
	set, ok := d.Addresses[iface]
	if !ok {
		set = make(map[string]struct{})
		d.Addresses[iface] = set
	}
	set[addr] = struct{}{}
}

// Registry is the process-wide, discovery-client-owned map from canonical
// device UUID to Device.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// Upsert inserts or updates the device for canonicalUUID, applying mutate
// to the entry (creating it first if it doesn't yet exist) and refreshing
// LastSeen.
func (r *Registry) Upsert(canonicalUUID string, mutate func(*Device)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[canonicalUUID]
	if !ok {
		dev = newDevice(canonicalUUID)
		r.devices[canonicalUUID] = dev
	}
	mutate(dev)
	dev.LastSeen = now()
}

// Delete removes canonicalUUID from the registry. It is a no-op if the
// device isn't present.
func (r *Registry) Delete(canonicalUUID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, canonicalUUID)
}

// Get returns the device for canonicalUUID, if present.
func (r *Registry) Get(canonicalUUID string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[canonicalUUID]
	return dev, ok
}

// List returns a snapshot of every registered device.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev)
	}
	return out
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[string]*Device)
}

// now is a seam so tests can observe LastSeen deterministically if needed;
// production code always uses wall-clock time.
var now = time.Now
