// Package daemon wires the discovery core together: it drives an
// OS-specific netmon.Source, creates and tears down a wsd.MulticastEndpoint
// (and the host/client/HTTP roles attached to it) as addresses come and go,
// and exposes the local control API.
package daemon

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/wsdiscovery/wsdd/internal/config"
	"github.com/wsdiscovery/wsdd/internal/eventsink"
	"github.com/wsdiscovery/wsdd/internal/netmon"
	"github.com/wsdiscovery/wsdd/internal/wsd"
)

// SourceFactory constructs the OS-specific address-change source. Split out
// so tests can supply a fake source instead of opening real netlink/route
// sockets.
type SourceFactory func(opts netmon.Options, sink netmon.Sink) (netmon.Source, error)

// mepEntry bundles a MulticastEndpoint with whatever roles are attached to
// it, mirroring the "instances" the upstream daemon kept per-address.
type mepEntry struct {
	mep    *wsd.MulticastEndpoint
	sched  *wsd.Scheduler
	host   *wsd.Host
	client *wsd.Client
	http   *wsd.HTTPServer
}

// Monitor is the address-change reactor: it owns the set of live MEPs,
// keyed by (family, address, interface), and the registry client roles
// populate.
type Monitor struct {
	cfg      *config.Config
	sink     eventsink.Sink
	registry *wsd.Registry
	ownURN   string
	ownUUID  string
	hostname string

	newSource SourceFactory

	mu         sync.Mutex
	meps       map[string]*mepEntry
	source     netmon.Source
	sourceStop chan struct{}

	events chan netmon.AddressEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor. newSource is typically netmon.NewSource;
// tests substitute a fake.
func NewMonitor(cfg *config.Config, sink eventsink.Sink, registry *wsd.Registry, ownURN, hostname string, newSource SourceFactory) *Monitor {
	m := &Monitor{
		cfg:       cfg,
		sink:      sink,
		registry:  registry,
		ownURN:    ownURN,
		ownUUID:   wsd.CanonicalUUID(ownURN),
		hostname:  hostname,
		newSource: newSource,
		meps:      make(map[string]*mepEntry),
		events:    make(chan netmon.AddressEvent, 64),
	}
	// ctx/cancel are live from construction, not from Run, so that a caller
	// needing sockets opened before dropping privileges can call
	// StartSource before Run is ever invoked (see cmd/wsdd/main.go).
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Run drives the monitor's event loop until ctx is cancelled. Unless
// cfg.NoAutostart is set, it opens the address source and performs an
// initial enumeration before entering the loop.
func (m *Monitor) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			m.cancel()
		case <-m.ctx.Done():
		}
	}()

	if !m.cfg.NoAutostart {
		if err := m.StartSource(); err != nil {
			return err
		}
	}

	for {
		select {
		case <-m.ctx.Done():
			return nil
		case ev := <-m.events:
			m.handleEvent(ev)
		}
	}
}

// Close begins graceful shutdown: it stops accepting new events, emits Bye
// on every live host and waits for its retransmits, then closes every MEP
// and the address source.
func (m *Monitor) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	err := m.StopSource()
	m.wg.Wait()
	return err
}

// StartSource opens the address source if it isn't already open, then
// triggers a fresh enumeration -- the behavior the control API's "start"
// command and normal autostart both rely on.
func (m *Monitor) StartSource() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.source == nil {
		src, err := m.newSource(netmon.Options{IPv4Only: m.cfg.IPv4Only, IPv6Only: m.cfg.IPv6Only}, m.sink)
		if err != nil {
			return fmt.Errorf("open address source: %w", err)
		}
		stop := make(chan struct{})
		m.source = src
		m.sourceStop = stop
		m.wg.Add(1)
		go m.forward(src, stop)
	}
	return m.source.Enumerate()
}

// StopSource tears the address source and every live MEP down. It is the
// control API's "stop" command and is also used by Close.
func (m *Monitor) StopSource() error {
	m.mu.Lock()
	src := m.source
	stop := m.sourceStop
	m.source = nil
	m.sourceStop = nil
	m.mu.Unlock()

	m.teardownAllMEPs()

	if src == nil {
		return nil
	}
	close(stop)
	return src.Close()
}

// Probe issues an immediate Probe on every client role, or only the one
// attached to iface if it's non-empty. No-op if discovery mode is off.
func (m *Monitor) Probe(iface string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.meps {
		if entry.client == nil {
			continue
		}
		if iface != "" && entry.mep.Iface.Name != iface {
			continue
		}
		entry.client.Probe(context.Background())
	}
}

// ClearRegistry empties the discovered-device registry.
func (m *Monitor) ClearRegistry() {
	m.registry.Clear()
}

func (m *Monitor) forward(src netmon.Source, stop chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case ev, ok := <-src.Events():
			if !ok {
				return
			}
			select {
			case m.events <- ev:
			case <-stop:
				return
			case <-m.ctx.Done():
				return
			}
		case <-stop:
			return
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Monitor) handleEvent(ev netmon.AddressEvent) {
	if !m.accepted(ev) {
		return
	}
	switch ev.Kind {
	case netmon.EventAdd:
		m.handleAdd(ev)
	case netmon.EventDelete:
		m.handleDelete(ev)
	}
}

// accepted applies the filtering rules: per-family restriction (already
// applied by the source itself, checked again here defensively), v4
// loopback rejection, v6 link-local-only acceptance, and the interface
// allowlist.
func (m *Monitor) accepted(ev netmon.AddressEvent) bool {
	if m.cfg.IPv4Only && ev.Family == netmon.FamilyV6 {
		return false
	}
	if m.cfg.IPv6Only && ev.Family == netmon.FamilyV4 {
		return false
	}
	if ev.Family == netmon.FamilyV4 && ev.Addr.IsLoopback() {
		return false
	}
	if ev.Family == netmon.FamilyV6 && !ev.Addr.IsLinkLocalUnicast() {
		return false
	}
	if !m.cfg.InterfaceAllowed(ev.Iface.Name, ev.Addr.String()) {
		return false
	}
	return true
}

func mepKey(family netmon.Family, addr net.IP, ifaceName string) string {
	return fmt.Sprintf("%s|%s|%s", family, addr.String(), ifaceName)
}

func (m *Monitor) handleAdd(ev netmon.AddressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := mepKey(ev.Family, ev.Addr, ev.Iface.Name)
	if _, ok := m.meps[key]; ok {
		return
	}

	iface, err := net.InterfaceByIndex(ev.Iface.Index)
	if err != nil {
		iface, err = net.InterfaceByName(ev.Iface.Name)
		if err != nil {
			m.sink.Warnf("daemon: resolve interface %s: %v", ev.Iface.Name, err)
			return
		}
	}

	family := wsd.FamilyV4
	if ev.Family == netmon.FamilyV6 {
		family = wsd.FamilyV6
	}

	mep, err := wsd.NewMulticastEndpoint(family, ev.Addr, iface, m.cfg.HopLimit, m.sink)
	if err != nil {
		m.sink.Warnf("daemon: create endpoint on %s/%s: %v", ev.Addr, iface.Name, err)
		return
	}

	entry := &mepEntry{mep: mep, sched: wsd.NewScheduler(m.sink)}

	if !m.cfg.NoHost {
		transport := ev.Addr.String()
		if family == wsd.FamilyV6 {
			transport = "[" + transport + "]"
		}
		xaddrs := fmt.Sprintf("http://%s:%d/%s", transport, wsd.HTTPPort, m.ownUUID)

		identity := wsd.HostIdentity{
			OwnURN:       m.ownURN,
			XAddrs:       xaddrs,
			Hostname:     m.hostname,
			Domain:       m.cfg.Domain,
			Workgroup:    m.cfg.Workgroup,
			PreserveCase: m.cfg.PreserveCase,
		}
		entry.host = wsd.NewHost(mep, entry.sched, m.sink, identity)

		if !m.cfg.NoHTTP {
			listenAddr := (&net.TCPAddr{IP: ev.Addr, Port: wsd.HTTPPort, Zone: iface.Name}).String()
			srv := wsd.NewHTTPServer(listenAddr, m.ownUUID, entry.host, m.sink)
			if err := srv.Start(); err != nil {
				m.sink.Warnf("daemon: http server on %s: %v", listenAddr, err)
			} else {
				entry.http = srv
			}
		}
	}

	if m.cfg.Discovery {
		entry.client = wsd.NewClient(mep, entry.sched, m.sink, m.registry, m.ownURN)
	}

	mep.Start(m.ctx)
	if entry.host != nil {
		entry.host.Start(m.ctx)
	}
	if entry.client != nil {
		entry.client.Start(m.ctx)
	}

	m.meps[key] = entry
}

func (m *Monitor) handleDelete(ev netmon.AddressEvent) {
	m.mu.Lock()
	key := mepKey(ev.Family, ev.Addr, ev.Iface.Name)
	entry, ok := m.meps[key]
	if ok {
		delete(m.meps, key)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	// The address is already gone: no Bye is sent, per the address monitor's
	// delete-path semantics.
	m.closeEntry(entry, false)
}

func (m *Monitor) teardownAllMEPs() {
	m.mu.Lock()
	entries := make([]*mepEntry, 0, len(m.meps))
	for k, e := range m.meps {
		entries = append(entries, e)
		delete(m.meps, k)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		m.closeEntry(entry, true)
	}
}

func (m *Monitor) closeEntry(entry *mepEntry, sendBye bool) {
	if entry.client != nil {
		entry.client.Stop()
	}
	if entry.host != nil {
		if sendBye {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := entry.host.Stop(ctx); err != nil {
				m.sink.Debugf("daemon: host teardown: %v", err)
			}
			cancel()
		}
	}
	if entry.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := entry.http.Close(ctx); err != nil {
			m.sink.Debugf("daemon: http server teardown: %v", err)
		}
		cancel()
	}
	if err := entry.mep.Close(); err != nil {
		m.sink.Debugf("daemon: endpoint teardown: %v", err)
	}
}
