//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package netmon

import (
	"fmt"
	"net"

	"golang.org/x/net/route"
	"golang.org/x/sys/unix"
)

// NewSource opens an AF_ROUTE routing socket and tracks interface flags
// well enough to drop addresses on interfaces that can't carry multicast
// or are loopback, the way the upstream daemon's BSD address monitor does
// with its blacklist of non-multicast, loopback interfaces.
func NewSource(opts Options, sink Sink) (Source, error) {
	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_UNSPEC)
	if err != nil {
		return nil, fmt.Errorf("open route socket: %w", err)
	}

	s := &bsdSource{
		fd:        fd,
		opts:      opts,
		sink:      sink,
		events:    make(chan AddressEvent, 32),
		names:     make(map[int]string),
		blacklist: make(map[int]bool),
		done:      make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

type bsdSource struct {
	fd   int
	opts Options
	sink Sink

	events    chan AddressEvent
	names     map[int]string
	blacklist map[int]bool
	done      chan struct{}
}

func (s *bsdSource) Events() <-chan AddressEvent { return s.events }

// Enumerate fetches the interface list and the address list from the
// kernel's routing information base and replays them as add events,
// equivalent to a NET_RT_IFLIST sysctl dump.
func (s *bsdSource) Enumerate() error {
	ifbuf, err := route.FetchRIB(unix.AF_UNSPEC, route.RIBTypeInterface, 0)
	if err != nil {
		return fmt.Errorf("fetch interface RIB: %w", err)
	}
	msgs, err := route.ParseRIB(route.RIBTypeInterface, ifbuf)
	if err != nil {
		return fmt.Errorf("parse interface RIB: %w", err)
	}

	for _, m := range msgs {
		switch mm := m.(type) {
		case *route.InterfaceMessage:
			s.trackInterface(mm.Index, mm.Name, mm.Flags)
		case *route.InterfaceAddrMessage:
			s.handleAddrAddrs(mm.Index, mm.Addrs, EventAdd)
		}
	}
	return nil
}

// trackInterface records an interface's current multicast/loopback
// flags, so later address messages (which don't repeat the flags) can be
// filtered against the interface they belong to.
func (s *bsdSource) trackInterface(index int, name string, flags int) {
	if name != "" {
		s.names[index] = name
	}
	if flags&unix.IFF_MULTICAST == 0 || flags&unix.IFF_LOOPBACK != 0 {
		s.blacklist[index] = true
	} else {
		delete(s.blacklist, index)
	}
}

func (s *bsdSource) readLoop() {
	buf := make([]byte, 2048)
	for {
		n, err := unix.Read(s.fd, buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.sink.Warnf("netmon: route socket read: %v", err)
			continue
		}
		if n <= 0 {
			continue
		}

		msgs, err := route.ParseRIB(route.RIBTypeRoute, buf[:n])
		if err != nil {
			s.sink.Debugf("netmon: parse route message: %v", err)
			continue
		}

		for _, m := range msgs {
			switch mm := m.(type) {
			case *route.InterfaceMessage:
				s.trackInterface(mm.Index, mm.Name, mm.Flags)
			case *route.InterfaceAddrMessage:
				kind := EventAdd
				if mm.Type == unix.RTM_DELADDR {
					kind = EventDelete
				}
				s.handleAddrAddrs(mm.Index, mm.Addrs, kind)
			}
		}
	}
}

// handleAddrAddrs extracts the IPv4 or IPv6 address in the RTAX_IFA slot
// of an interface address message's Addrs slice and emits it, applying the
// interface blacklist and the configured family restriction.
func (s *bsdSource) handleAddrAddrs(index int, addrs []route.Addr, kind EventKind) {
	if s.blacklist[index] {
		return
	}
	if len(addrs) <= unix.RTAX_IFA {
		return
	}

	var ip net.IP
	var fam Family
	switch av := addrs[unix.RTAX_IFA].(type) {
	case *route.Inet4Addr:
		ip = net.IP(append([]byte(nil), av.IP[:]...))
		fam = FamilyV4
	case *route.Inet6Addr:
		ip = net.IP(append([]byte(nil), av.IP[:]...))
		fam = FamilyV6
	}
	if ip == nil {
		return
	}

	if s.opts.IPv4Only && fam == FamilyV6 {
		return
	}
	if s.opts.IPv6Only && fam == FamilyV4 {
		return
	}

	name := s.names[index]
	if name == "" {
		if iface, err := net.InterfaceByIndex(index); err == nil {
			name = iface.Name
			s.names[index] = name
		}
	}

	s.events <- AddressEvent{
		Kind:   kind,
		Family: fam,
		Addr:   ip,
		Iface:  Interface{Index: index, Name: name},
	}
}

func (s *bsdSource) Close() error {
	close(s.done)
	return unix.Close(s.fd)
}
