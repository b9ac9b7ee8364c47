//go:build linux

package netmon

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// NewSource opens an AF_NETLINK/NETLINK_ROUTE socket and subscribes to
// link and address-change multicast groups, the way the upstream daemon's
// NetlinkAddressMonitor does.
func NewSource(opts Options, sink Sink) (Source, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("open netlink socket: %w", err)
	}

	var groups uint32 = unix.RTMGRP_LINK
	if !opts.IPv6Only {
		groups |= unix.RTMGRP_IPV4_IFADDR
	}
	if !opts.IPv4Only {
		groups |= unix.RTMGRP_IPV6_IFADDR
	}

	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: groups}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind netlink socket: %w", err)
	}

	s := &linuxSource{
		fd:     fd,
		sa:     sa,
		events: make(chan AddressEvent, 32),
		sink:   sink,
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

type linuxSource struct {
	fd     int
	sa     *unix.SockaddrNetlink
	events chan AddressEvent
	sink   Sink
	seq    uint32
	done   chan struct{}
}

func (s *linuxSource) Events() <-chan AddressEvent { return s.events }

// Enumerate sends an RTM_GETADDR dump request; the kernel's reply is
// delivered through the ordinary read loop as a sequence of RTM_NEWADDR
// messages.
func (s *linuxSource) Enumerate() error {
	s.seq++

	const nlmsghdrLen = 16
	const rtgenmsgLen = 4 // 1 byte family, 3 bytes alignment padding
	total := nlmsghdrLen + rtgenmsgLen

	buf := make([]byte, total)
	binary.NativeEndian.PutUint32(buf[0:4], uint32(total))
	binary.NativeEndian.PutUint16(buf[4:6], unix.RTM_GETADDR)
	binary.NativeEndian.PutUint16(buf[6:8], unix.NLM_F_REQUEST|unix.NLM_F_DUMP)
	binary.NativeEndian.PutUint32(buf[8:12], s.seq)
	buf[16] = unix.AF_PACKET

	return unix.Sendto(s.fd, buf, 0, s.sa)
}

func (s *linuxSource) readLoop() {
	buf := make([]byte, 65536)
	for {
		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.sink.Warnf("netmon: netlink read: %v", err)
			continue
		}

		msgs, err := unix.ParseNetlinkMessage(buf[:n])
		if err != nil {
			s.sink.Debugf("netmon: parse netlink message: %v", err)
			continue
		}

		for _, m := range msgs {
			switch m.Header.Type {
			case unix.RTM_NEWADDR, unix.RTM_DELADDR:
				s.handleAddrMessage(m)
			}
		}
	}
}

// handleAddrMessage parses an ifaddrmsg{family, prefixlen, flags, scope,
// index} plus its route attributes, skipping addresses the kernel has
// flagged as not-yet-usable or on the way out.
func (s *linuxSource) handleAddrMessage(m unix.NetlinkMessage) {
	if len(m.Data) < 8 {
		s.sink.Debugf("netmon: short ifaddrmsg")
		return
	}

	family := m.Data[0]
	flags := uint32(m.Data[2])
	scope := int(m.Data[3])
	index := int(binary.LittleEndian.Uint32(m.Data[4:8]))

	attrs, err := unix.ParseNetlinkRouteAttr(&m)
	if err != nil {
		s.sink.Debugf("netmon: parse route attrs: %v", err)
		return
	}

	var name string
	var addr net.IP
	for _, a := range attrs {
		switch a.Attr.Type {
		case unix.IFA_LABEL:
			name = nullTerminatedString(a.Value)
		case unix.IFA_LOCAL:
			if family == unix.AF_INET && len(a.Value) == 4 {
				addr = net.IP(append([]byte(nil), a.Value...))
			}
		case unix.IFA_ADDRESS:
			if family == unix.AF_INET6 && len(a.Value) == 16 {
				addr = net.IP(append([]byte(nil), a.Value...))
			}
		case unix.IFA_FLAGS:
			if len(a.Value) == 4 {
				flags = binary.LittleEndian.Uint32(a.Value)
			}
		}
	}

	const skipFlags = unix.IFA_F_DADFAILED | unix.IFA_F_HOMEADDRESS | unix.IFA_F_DEPRECATED | unix.IFA_F_TENTATIVE
	if flags&skipFlags != 0 {
		return
	}

	if addr == nil {
		return
	}

	if name == "" {
		if iface, err := net.InterfaceByIndex(index); err == nil {
			name = iface.Name
		}
	}

	kind := EventAdd
	if m.Header.Type == unix.RTM_DELADDR {
		kind = EventDelete
	}

	fam := FamilyV4
	if family == unix.AF_INET6 {
		fam = FamilyV6
	}

	s.events <- AddressEvent{
		Kind:   kind,
		Family: fam,
		Addr:   addr,
		Iface:  Interface{Index: index, Name: name, Scope: scope},
	}
}

func nullTerminatedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func (s *linuxSource) Close() error {
	close(s.done)
	return unix.Close(s.fd)
}
