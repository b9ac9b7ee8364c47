package daemon

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wsdiscovery/wsdd/internal/config"
	"github.com/wsdiscovery/wsdd/internal/eventsink"
	"github.com/wsdiscovery/wsdd/internal/netmon"
	"github.com/wsdiscovery/wsdd/internal/wsd"
)

type nopSink struct{}

func (nopSink) Debugf(string, ...interface{}) {}
func (nopSink) Infof(string, ...interface{})  {}
func (nopSink) Warnf(string, ...interface{})  {}
func (nopSink) Errorf(string, ...interface{}) {}

var _ eventsink.Sink = nopSink{}

func newTestMonitor(cfg *config.Config) *Monitor {
	return NewMonitor(cfg, nopSink{}, wsd.NewRegistry(), "urn:uuid:11111111-2222-3333-4444-555555555555", "alpha", nil)
}

func TestAcceptedRejectsIPv4Loopback(t *testing.T) {
	m := newTestMonitor(&config.Config{})
	ev := netmon.AddressEvent{Family: netmon.FamilyV4, Addr: net.ParseIP("127.0.0.1")}
	assert.False(t, m.accepted(ev))
}

func TestAcceptedRejectsNonLinkLocalIPv6(t *testing.T) {
	m := newTestMonitor(&config.Config{})
	ev := netmon.AddressEvent{Family: netmon.FamilyV6, Addr: net.ParseIP("2001:db8::1")}
	assert.False(t, m.accepted(ev))
}

func TestAcceptedAllowsLinkLocalIPv6(t *testing.T) {
	m := newTestMonitor(&config.Config{})
	ev := netmon.AddressEvent{Family: netmon.FamilyV6, Addr: net.ParseIP("fe80::1"), Iface: netmon.Interface{Name: "eth0"}}
	assert.True(t, m.accepted(ev))
}

func TestAcceptedAllowsOrdinaryIPv4(t *testing.T) {
	m := newTestMonitor(&config.Config{})
	ev := netmon.AddressEvent{Family: netmon.FamilyV4, Addr: net.ParseIP("10.0.0.5"), Iface: netmon.Interface{Name: "eth0"}}
	assert.True(t, m.accepted(ev))
}

func TestAcceptedHonorsIPv4OnlyFlag(t *testing.T) {
	m := newTestMonitor(&config.Config{IPv4Only: true})
	v6 := netmon.AddressEvent{Family: netmon.FamilyV6, Addr: net.ParseIP("fe80::1"), Iface: netmon.Interface{Name: "eth0"}}
	assert.False(t, m.accepted(v6))

	v4 := netmon.AddressEvent{Family: netmon.FamilyV4, Addr: net.ParseIP("10.0.0.5"), Iface: netmon.Interface{Name: "eth0"}}
	assert.True(t, m.accepted(v4))
}

func TestAcceptedHonorsIPv6OnlyFlag(t *testing.T) {
	m := newTestMonitor(&config.Config{IPv6Only: true})
	v4 := netmon.AddressEvent{Family: netmon.FamilyV4, Addr: net.ParseIP("10.0.0.5"), Iface: netmon.Interface{Name: "eth0"}}
	assert.False(t, m.accepted(v4))
}

func TestAcceptedHonorsInterfaceAllowlist(t *testing.T) {
	m := newTestMonitor(&config.Config{Interfaces: []string{"eth0"}})
	allowed := netmon.AddressEvent{Family: netmon.FamilyV4, Addr: net.ParseIP("10.0.0.5"), Iface: netmon.Interface{Name: "eth0"}}
	disallowed := netmon.AddressEvent{Family: netmon.FamilyV4, Addr: net.ParseIP("10.0.0.6"), Iface: netmon.Interface{Name: "wlan0"}}

	assert.True(t, m.accepted(allowed))
	assert.False(t, m.accepted(disallowed))
}

func TestMepKeyDistinguishesFamilyAddrAndInterface(t *testing.T) {
	a := mepKey(netmon.FamilyV4, net.ParseIP("10.0.0.1"), "eth0")
	b := mepKey(netmon.FamilyV4, net.ParseIP("10.0.0.1"), "eth1")
	c := mepKey(netmon.FamilyV6, net.ParseIP("10.0.0.1"), "eth0")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, mepKey(netmon.FamilyV4, net.ParseIP("10.0.0.1"), "eth0"))
}
