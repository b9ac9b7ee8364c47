// Package wsd implements the WS-Discovery wire protocol: SOAP-over-UDP
// envelope construction and parsing, the per-interface multicast endpoint,
// the retransmission scheduler, the host (target) and client (resolver)
// roles, the HTTP metadata responder, and the discovered-device registry.
package wsd

import "time"

const (
	// UDPPort is the well-known WS-Discovery multicast/unicast UDP port.
	UDPPort = 3702
	// HTTPPort is the well-known WS-Discovery metadata-exchange HTTP port.
	HTTPPort = 5357

	// MulticastAddrV4 is the IPv4 WS-Discovery multicast group.
	MulticastAddrV4 = "239.255.255.250"
	// MulticastAddrV6 is the IPv6 (link-local) WS-Discovery multicast group.
	MulticastAddrV6 = "ff02::c"

	// MaxDatagramLen bounds a single WSD UDP message.
	MaxDatagramLen = 32767

	// MulticastUDPRepeat is the number of sends (including the first) for a
	// multicast outbound message.
	MulticastUDPRepeat = 4
	// UnicastUDPRepeat is the number of sends (including the first) for a
	// unicast outbound message.
	UnicastUDPRepeat = 2

	// UDPMinDelay and UDPMaxDelay bound the first retransmit interdelay.
	UDPMinDelay = 50 * time.Millisecond
	UDPMaxDelay = 250 * time.Millisecond
	// UDPUpperDelay caps the doubling backoff of later retransmits.
	UDPUpperDelay = 500 * time.Millisecond

	// ProbeTimeout is the nominal probe lifetime; entries older than twice
	// this are evicted from a client's in-flight probe table.
	ProbeTimeout = 4 * time.Second

	// MaxKnownMessages bounds the recent-MessageID dedup deque.
	MaxKnownMessages = 10

	// MaxStartupProbeDelay bounds the random jitter before a client's first
	// probe, to avoid a multicast storm when many hosts boot together.
	MaxStartupProbeDelay = 3 * time.Second
)

// XML namespace URIs used on the envelope root and throughout message
// bodies. Every known prefix is declared there, per the wire format.
const (
	NSSoap = "http://www.w3.org/2003/05/soap-envelope"
	NSWsa  = "http://schemas.xmlsoap.org/ws/2004/08/addressing"
	NSWsd  = "http://schemas.xmlsoap.org/ws/2005/04/discovery"
	NSWsdp = "http://schemas.xmlsoap.org/ws/2006/02/devprof"
	NSWsx  = "http://schemas.xmlsoap.org/ws/2004/09/mex"
	NSPnpx = "http://schemas.microsoft.com/windows/pnpx/2005/10"
	NSPub  = "http://schemas.microsoft.com/windows/pub/2005/07"
)

// Action URIs carried on Header/Action.
const (
	ActionProbe          = NSWsd + "/Probe"
	ActionProbeMatches   = NSWsd + "/ProbeMatches"
	ActionResolve        = NSWsd + "/Resolve"
	ActionResolveMatches = NSWsd + "/ResolveMatches"
	ActionHello          = NSWsd + "/Hello"
	ActionBye            = NSWsd + "/Bye"
	ActionGet            = "http://schemas.xmlsoap.org/ws/2004/09/transfer/Get"
	ActionGetResponse    = "http://schemas.xmlsoap.org/ws/2004/09/transfer/GetResponse"
)

// AnonymousAddress is the WS-Addressing anonymous endpoint, used both as
// ReplyTo for one-shot requests and as the To of their replies.
const AnonymousAddress = NSWsa + "/role/anonymous"

// DiscoveryTo is the well-known target of multicast discovery messages.
const DiscoveryTo = "urn:schemas-xmlsoap-org:ws:2005:04:discovery"

// DeviceTypes and ComputerTypes are the exact WSD Types tokens this daemon
// accepts on Probe (device) and advertises on ProbeMatch (device+computer).
const (
	DeviceTypes   = "wsdp:Device"
	ComputerTypes = "wsdp:Device pub:Computer"
)

// HostRelationship is the Relationship/@Type value identifying the host
// block in a metadata Relationship section.
const HostRelationship = NSWsdp + "/host"
