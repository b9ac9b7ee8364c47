package wsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return &Client{
		MessageHandler: MessageHandler{handlers: make(map[string]ActionFunc), sink: nopSink{}},
		family:         FamilyV4,
		iface:          &net.Interface{Name: "eth0"},
		ownURN:         "urn:uuid:99999999-0000-0000-0000-000000000000",
		registry:       NewRegistry(),
		probes:         make(map[string]time.Time),
	}
}

func TestClientProbeKnownRequiresRecordedProbe(t *testing.T) {
	c := newTestClient()
	assert.False(t, c.probeKnown("urn:uuid:unknown"))

	c.recordProbe("urn:uuid:known")
	assert.True(t, c.probeKnown("urn:uuid:known"))
}

func TestClientProbeMatchIgnoredWithUnknownRelatesTo(t *testing.T) {
	c := newTestClient()
	c.recordProbe("urn:uuid:mine")

	env := mustEnvelope(t, BuildOptions{To: AnonymousAddress, Action: ActionProbeMatches, MessageID: "urn:uuid:x", RelatesTo: "urn:uuid:not-mine"},
		ProbeMatches{ProbeMatch: []ProbeMatch{{EndpointReference: EndpointReference{Address: "urn:uuid:target"}, Types: ComputerTypes}}})

	_, _, hasReply := c.handleProbeMatches(env, &net.UDPAddr{})
	require.False(t, hasReply, "a ProbeMatch whose RelatesTo isn't in probes must never be processed")
	assert.Empty(t, c.registry.List())
}

func TestClientRecordProbeEvictsStaleEntries(t *testing.T) {
	c := newTestClient()
	c.probes["old"] = time.Now().Add(-3 * ProbeTimeout)
	c.recordProbe("new")

	assert.NotContains(t, c.probes, "old")
	assert.Contains(t, c.probes, "new")
}

func TestClientSelectXAddrIPv4PicksFirst(t *testing.T) {
	c := newTestClient()
	c.family = FamilyV4
	got := c.selectXAddr("http://10.0.0.1:5357/a http://10.0.0.2:5357/b")
	assert.Equal(t, "http://10.0.0.1:5357/a", got)
}

func TestClientSelectXAddrIPv6PicksLinkLocal(t *testing.T) {
	c := newTestClient()
	c.family = FamilyV6
	got := c.selectXAddr("http://[2001:db8::1]:5357/a http://[fe80::1]:5357/b")
	assert.Equal(t, "http://[fe80::1]:5357/b", got)
}

func TestClientSelectXAddrIPv6NoLinkLocal(t *testing.T) {
	c := newTestClient()
	c.family = FamilyV6
	got := c.selectXAddr("http://[2001:db8::1]:5357/a")
	assert.Equal(t, "", got)
}

func TestClientSelectXAddrEmpty(t *testing.T) {
	c := newTestClient()
	got := c.selectXAddr("")
	assert.Equal(t, "", got)
}

func TestClientApplyMetadataDeriveDisplayName(t *testing.T) {
	c := newTestClient()
	meta := Metadata{Sections: []MetadataSection{
		{Dialect: DialectThisDevice, ThisDevice: &ThisDevice{FriendlyName: "WSD Device beta"}},
		{Dialect: DialectRelationship, Relationship: &Relationship{
			Type: HostRelationship,
			Host: RelHost{Types: "pub:Computer", Computer: "beta/WG"},
		}},
	}}

	c.applyMetadata("urn:uuid:22222222-0000-0000-0000-000000000000", "http://10.0.0.2:5357/22222222-0000-0000-0000-000000000000", meta)

	dev, ok := c.registry.Get("22222222-0000-0000-0000-000000000000")
	assert.True(t, ok)
	assert.Equal(t, "beta", dev.DisplayName)
	assert.Equal(t, "WG", dev.BelongsTo)
	assert.Contains(t, dev.Addresses["eth0"], "10.0.0.2")
}

func TestClientApplyMetadataFallsBackToFriendlyName(t *testing.T) {
	c := newTestClient()
	meta := Metadata{Sections: []MetadataSection{
		{Dialect: DialectThisDevice, ThisDevice: &ThisDevice{FriendlyName: "WSD Device gamma"}},
	}}

	c.applyMetadata("urn:uuid:33333333-0000-0000-0000-000000000000", "http://10.0.0.3:5357/x", meta)

	dev, ok := c.registry.Get("33333333-0000-0000-0000-000000000000")
	assert.True(t, ok)
	assert.Equal(t, "WSD Device gamma", dev.DisplayName)
}
