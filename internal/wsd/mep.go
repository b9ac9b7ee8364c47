package wsd

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/wsdiscovery/wsdd/internal/eventsink"
)

// Family distinguishes the two address families a MulticastEndpoint can
// serve.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) String() string {
	if f == FamilyV6 {
		return "ipv6"
	}
	return "ipv4"
}

// Handler receives a demultiplexed inbound datagram. Handlers must be
// non-blocking: anything that waits enqueues work instead.
type Handler func(payload []byte, src *net.UDPAddr)

// SocketRole identifies which of a MulticastEndpoint's three sockets a
// Handler is being registered against. A unicast reply to a message a
// role sent out via its own multicast-send socket comes back addressed
// to that socket's local (address, port) -- not the receive socket --
// so a role that originates multicast requests (the client) must listen
// there too.
type SocketRole int

const (
	// RecvSocket is the socket joined to the WSD multicast group.
	RecvSocket SocketRole = iota
	// MulticastSendSocket is the socket used to send multicast messages;
	// unicast replies to those messages arrive back on it.
	MulticastSendSocket
	// UnicastSendSocket is the socket bound to the WSD UDP port, used to
	// answer unicast replies from the well-known port.
	UnicastSendSocket
)

func (r SocketRole) String() string {
	switch r {
	case MulticastSendSocket:
		return "mcast-send"
	case UnicastSendSocket:
		return "ucast-send"
	default:
		return "recv"
	}
}

// MulticastEndpoint is the trio of sockets bound for one
// (family, local address, interface) triple: a receive socket joined to
// the WSD multicast group on that interface, a multicast-send socket with
// interface affinity, and a unicast-send socket bound to the WSD UDP port
// on the interface address.
type MulticastEndpoint struct {
	Family    Family
	LocalAddr net.IP
	Iface     *net.Interface

	groupAddr *net.UDPAddr

	recvConn *net.UDPConn
	recvPC4  *ipv4.PacketConn
	recvPC6  *ipv6.PacketConn

	mcastSendConn *net.UDPConn
	mcastSendPC4  *ipv4.PacketConn
	mcastSendPC6  *ipv6.PacketConn

	ucastConn *net.UDPConn

	sink eventsink.Sink

	mu       sync.Mutex
	handlers map[SocketRole][]Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewMulticastEndpoint opens and configures all three sockets for
// (family, localAddr, iface). hopLimit sets the outbound multicast hop
// limit / TTL.
func NewMulticastEndpoint(family Family, localAddr net.IP, iface *net.Interface, hopLimit int, sink eventsink.Sink) (*MulticastEndpoint, error) {
	ep := &MulticastEndpoint{
		Family:    family,
		LocalAddr: localAddr,
		Iface:     iface,
		sink:      sink,
		handlers:  make(map[SocketRole][]Handler),
	}

	var err error
	if family == FamilyV4 {
		err = ep.openV4(hopLimit)
	} else {
		err = ep.openV6(hopLimit)
	}
	if err != nil {
		return nil, err
	}

	return ep, nil
}

func (ep *MulticastEndpoint) openV4(hopLimit int) error {
	group := net.ParseIP(MulticastAddrV4)
	ep.groupAddr = &net.UDPAddr{IP: group, Port: UDPPort}

	recv, err := bindReuse("udp4", &net.UDPAddr{IP: group, Port: UDPPort})
	if err != nil {
		return fmt.Errorf("mep v4 recv bind: %w", err)
	}
	pc4 := ipv4.NewPacketConn(recv)
	if err := pc4.JoinGroup(ep.Iface, ep.groupAddr); err != nil {
		recv.Close()
		return fmt.Errorf("mep v4 join group on %s: %w", ep.Iface.Name, err)
	}
	suppressMulticastAll(recv, FamilyV4)
	ep.recvConn = recv
	ep.recvPC4 = pc4

	mcastSend, err := bindReuse("udp4", &net.UDPAddr{IP: ep.LocalAddr, Port: 0})
	if err != nil {
		return fmt.Errorf("mep v4 mcast send bind: %w", err)
	}
	mpc4 := ipv4.NewPacketConn(mcastSend)
	if err := mpc4.SetMulticastInterface(ep.Iface); err != nil {
		mcastSend.Close()
		return fmt.Errorf("mep v4 set multicast interface: %w", err)
	}
	_ = mpc4.SetMulticastLoopback(false)
	_ = mpc4.SetMulticastTTL(hopLimit)
	ep.mcastSendConn = mcastSend
	ep.mcastSendPC4 = mpc4

	ucast, err := bindReuse("udp4", &net.UDPAddr{IP: ep.LocalAddr, Port: UDPPort})
	if err != nil {
		return fmt.Errorf("mep v4 unicast send bind: %w", err)
	}
	ep.ucastConn = ucast

	return nil
}

func (ep *MulticastEndpoint) openV6(hopLimit int) error {
	group := net.ParseIP(MulticastAddrV6)
	ep.groupAddr = &net.UDPAddr{IP: group, Port: UDPPort, Zone: ep.Iface.Name}

	recv, err := bindReuse("udp6", &net.UDPAddr{IP: group, Port: UDPPort, Zone: ep.Iface.Name})
	if err != nil {
		return fmt.Errorf("mep v6 recv bind: %w", err)
	}
	pc6 := ipv6.NewPacketConn(recv)
	if err := pc6.JoinGroup(ep.Iface, ep.groupAddr); err != nil {
		recv.Close()
		return fmt.Errorf("mep v6 join group on %s: %w", ep.Iface.Name, err)
	}
	suppressMulticastAll(recv, FamilyV6)
	ep.recvConn = recv
	ep.recvPC6 = pc6

	mcastSend, err := bindReuse("udp6", &net.UDPAddr{IP: ep.LocalAddr, Port: 0, Zone: ep.Iface.Name})
	if err != nil {
		return fmt.Errorf("mep v6 mcast send bind: %w", err)
	}
	mpc6 := ipv6.NewPacketConn(mcastSend)
	if err := mpc6.SetMulticastInterface(ep.Iface); err != nil {
		mcastSend.Close()
		return fmt.Errorf("mep v6 set multicast interface: %w", err)
	}
	_ = mpc6.SetMulticastLoopback(false)
	_ = mpc6.SetHopLimit(hopLimit)
	ep.mcastSendConn = mcastSend
	ep.mcastSendPC6 = mpc6

	ucast, err := bindReuse("udp6", &net.UDPAddr{IP: ep.LocalAddr, Port: UDPPort, Zone: ep.Iface.Name})
	if err != nil {
		return fmt.Errorf("mep v6 unicast send bind: %w", err)
	}
	ep.ucastConn = ucast

	return nil
}

// bindReuse dials a UDP listener with address reuse enabled, falling back
// to the wildcard address (v4) or [::] with the caller's zone (v6) if the
// requested address can't be bound directly -- the receive socket's
// primary bind target is the multicast group itself, and some stacks
// refuse to bind a non-local address, so this fallback is what actually
// makes the receive socket usable there.
func bindReuse(network string, addr *net.UDPAddr) (*net.UDPConn, error) {
	conn, err := net.ListenUDP(network, addr)
	if err == nil {
		return conn, nil
	}

	fallback := *addr
	if network == "udp4" {
		fallback.IP = net.IPv4zero
	} else {
		fallback.IP = net.IPv6unspecified
	}
	conn, ferr := net.ListenUDP(network, &fallback)
	if ferr != nil {
		return nil, fmt.Errorf("%w (fallback also failed: %v)", err, ferr)
	}
	return conn, nil
}

// RegisterHandler adds h as a listener on roles, defaulting to the
// receive socket alone if none are given. Handler order within a socket
// is stable; handlers must be non-blocking. A role that sends its own
// multicast requests (the client, via its Probe/Resolve) must also
// register on MulticastSendSocket, since a unicast reply to such a
// request arrives back addressed to that socket, not RecvSocket.
func (ep *MulticastEndpoint) RegisterHandler(h Handler, roles ...SocketRole) {
	if len(roles) == 0 {
		roles = []SocketRole{RecvSocket}
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()
	for _, r := range roles {
		ep.handlers[r] = append(ep.handlers[r], h)
	}
}

// Start begins the endpoint's read loops, one per socket, each dispatching
// to that socket's registered handlers. It returns immediately; the loops
// run until ctx is cancelled or Close is called.
func (ep *MulticastEndpoint) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	ep.cancel = cancel
	ep.done = make(chan struct{})

	for _, sock := range []struct {
		conn *net.UDPConn
		role SocketRole
	}{
		{ep.recvConn, RecvSocket},
		{ep.mcastSendConn, MulticastSendSocket},
		{ep.ucastConn, UnicastSendSocket},
	} {
		ep.wg.Add(1)
		go ep.readLoop(ctx, sock.conn, sock.role)
	}

	go func() {
		ep.wg.Wait()
		close(ep.done)
	}()
}

func (ep *MulticastEndpoint) readLoop(ctx context.Context, conn *net.UDPConn, role SocketRole) {
	defer ep.wg.Done()

	buf := make([]byte, MaxDatagramLen)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			ep.sink.Warnf("wsd: mep %s/%s/%s read error: %v", ep.Family, ep.Iface.Name, role, err)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		ep.mu.Lock()
		handlers := make([]Handler, len(ep.handlers[role]))
		copy(handlers, ep.handlers[role])
		ep.mu.Unlock()

		for _, h := range handlers {
			h(payload, src)
		}
	}
}

// Send transmits payload to dest: via the multicast-send socket if dest is
// this endpoint's multicast group, otherwise via the unicast-send socket.
func (ep *MulticastEndpoint) Send(dest *net.UDPAddr, payload []byte) error {
	if dest.IP.Equal(ep.groupAddr.IP) {
		_, err := ep.mcastSendConn.WriteToUDP(payload, dest)
		return err
	}
	_, err := ep.ucastConn.WriteToUDP(payload, dest)
	return err
}

// GroupAddr returns this endpoint's multicast destination.
func (ep *MulticastEndpoint) GroupAddr() *net.UDPAddr {
	return ep.groupAddr
}

// Close tears the endpoint down: stops the read loop and closes all three
// sockets.
func (ep *MulticastEndpoint) Close() error {
	if ep.cancel != nil {
		ep.cancel()
		for _, c := range []*net.UDPConn{ep.recvConn, ep.mcastSendConn, ep.ucastConn} {
			c.SetReadDeadline(time.Now())
		}
		<-ep.done
	}

	var firstErr error
	for _, c := range []*net.UDPConn{ep.recvConn, ep.mcastSendConn, ep.ucastConn} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
