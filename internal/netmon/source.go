package netmon

import "net"

// EventKind distinguishes an address coming up from one going away.
type EventKind int

const (
	EventAdd EventKind = iota
	EventDelete
)

// AddressEvent is one observed address change.
type AddressEvent struct {
	Kind   EventKind
	Family Family
	Addr   net.IP
	Iface  Interface
}

// Source is the OS-specific address-change notifier. Two implementations
// exist: rtnetlink on Linux, a route socket on BSD-derived systems; a
// third, source_other.go, reports an error on anything else.
type Source interface {
	// Enumerate triggers a one-time dump of all currently configured
	// addresses, delivered as ordinary events on the Events channel.
	Enumerate() error
	// Events returns the channel address events are delivered on. Close
	// does not close this channel.
	Events() <-chan AddressEvent
	Close() error
}

// Options configures a Source at construction.
type Options struct {
	IPv4Only bool
	IPv6Only bool
}

// Sink receives log events from a Source implementation. A narrow alias
// of eventsink.Sink kept local to avoid this package depending on
// eventsink's import path in its public API.
type Sink interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}
