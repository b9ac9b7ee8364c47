package wsd

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// loopbackEndpoint builds a MulticastEndpoint directly from three loopback
// sockets, bypassing NewMulticastEndpoint's real multicast-group join so
// the demux and send-routing behavior can be tested without depending on
// the host's network configuration.
func loopbackEndpoint(t *testing.T) *MulticastEndpoint {
	t.Helper()

	recv, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	require.NoError(t, err)
	mcastSend, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	require.NoError(t, err)
	ucast, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	require.NoError(t, err)

	t.Cleanup(func() {
		recv.Close()
		mcastSend.Close()
		ucast.Close()
	})

	return &MulticastEndpoint{
		Family:        FamilyV4,
		LocalAddr:     net.IPv4(127, 0, 0, 1),
		Iface:         &net.Interface{Name: "lo"},
		groupAddr:     &net.UDPAddr{IP: net.ParseIP(MulticastAddrV4), Port: UDPPort},
		recvConn:      recv,
		mcastSendConn: mcastSend,
		ucastConn:     ucast,
		sink:          nopSink{},
		handlers:      make(map[SocketRole][]Handler),
	}
}

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) record(label string) Handler {
	return func(payload []byte, _ *net.UDPAddr) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.got = append(r.got, label+":"+string(payload))
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.got))
	copy(out, r.got)
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func TestMulticastEndpointDispatchesPerSocket(t *testing.T) {
	ep := loopbackEndpoint(t)

	rec := &recorder{}
	ep.RegisterHandler(rec.record("recv"), RecvSocket)
	ep.RegisterHandler(rec.record("mcast"), MulticastSendSocket)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ep.Start(ctx)
	defer ep.Close()

	sender, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	require.NoError(t, err)
	defer sender.Close()

	_, err = sender.WriteToUDP([]byte("hello-recv"), ep.recvConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	_, err = sender.WriteToUDP([]byte("hello-mcast"), ep.mcastSendConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got := rec.snapshot()
		return contains(got, "recv:hello-recv") && contains(got, "mcast:hello-mcast")
	}, 2*time.Second, 10*time.Millisecond, "expected handlers on both recv and mcast-send sockets to fire")
}

func TestMulticastEndpointSendRoutesByDestination(t *testing.T) {
	ep := loopbackEndpoint(t)

	other, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	require.NoError(t, err)
	defer other.Close()

	// A non-group destination must go out via the unicast-send socket.
	err = ep.Send(other.LocalAddr().(*net.UDPAddr), []byte("unicast"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	other.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, src, err := other.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, "unicast", string(buf[:n]))
	require.Equal(t, ep.ucastConn.LocalAddr().(*net.UDPAddr).Port, src.Port)
}

func TestMulticastEndpointCloseUnblocksAllReadLoops(t *testing.T) {
	ep := loopbackEndpoint(t)
	ep.RegisterHandler(func([]byte, *net.UDPAddr) {}, RecvSocket, MulticastSendSocket, UnicastSendSocket)

	ctx := context.Background()
	ep.Start(ctx)

	done := make(chan error, 1)
	go func() { done <- ep.Close() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return: a read loop is still blocked")
	}
}
