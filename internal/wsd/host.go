package wsd

import (
	"context"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wsdiscovery/wsdd/internal/eventsink"
)

// processInstanceID is the WSD AppSequence InstanceId: fixed once at
// process startup and shared by every Host instance in this process,
// regardless of how many interfaces it ends up advertising on.
var processInstanceID = uint64(time.Now().Unix())

// messageNumber is the process-wide, monotonically increasing
// AppSequence MessageNumber shared across every Host instance, per the
// wire format's host-role sequencing requirement.
var messageNumber uint64

func nextMessageNumber() uint64 {
	return atomic.AddUint64(&messageNumber, 1)
}

// Host is the WSD target role: it answers Probe and Resolve, serves
// metadata for Get, and announces itself with an unsolicited Hello on
// bind and Bye on teardown.
type Host struct {
	MessageHandler

	ownURN       string
	xaddrs       string
	hostname     string
	domain       string
	workgroup    string
	preserveCase bool
}

// HostIdentity carries the metadata fields a Host advertises about
// itself, separate from wiring (MEP, scheduler, sink) so callers can
// construct it straight from config.Config.
type HostIdentity struct {
	OwnURN       string
	XAddrs       string
	Hostname     string
	Domain       string
	Workgroup    string
	PreserveCase bool
}

// NewHost creates a Host attached to mep, advertising identity.
func NewHost(mep *MulticastEndpoint, sched *Scheduler, sink eventsink.Sink, identity HostIdentity) *Host {
	h := &Host{
		MessageHandler: newMessageHandler(mep, sched, sink),
		ownURN:         identity.OwnURN,
		xaddrs:         identity.XAddrs,
		hostname:       identity.Hostname,
		domain:         identity.Domain,
		workgroup:      identity.Workgroup,
		preserveCase:   identity.PreserveCase,
	}
	h.decorate = h.stampAppSequence
	h.On(ActionProbe, h.handleProbe)
	h.On(ActionResolve, h.handleResolve)
	h.On(ActionGet, h.handleGet)
	mep.RegisterHandler(h.HandleDatagram)
	return h
}

// Start registers this host's handlers (already done at construction) and
// sends its initial Hello.
func (h *Host) Start(ctx context.Context) {
	h.sendHello(ctx)
}

// Stop announces this host's departure with a Bye and waits for its
// retransmits to complete, so a caller tearing down the MEP afterward is
// guaranteed the Bye left the wire.
func (h *Host) Stop(ctx context.Context) error {
	h.sendBye(ctx)
	return h.scheduler.Wait()
}

func (h *Host) stampAppSequence(opts *BuildOptions) {
	opts.AppSequence = &AppSequence{
		InstanceId:    processInstanceID,
		SequenceId:    NewSequenceID(),
		MessageNumber: nextMessageNumber(),
	}
}

func (h *Host) sendHello(ctx context.Context) {
	body := Hello{
		EndpointReference: EndpointReference{Address: h.ownURN},
		XAddrs:             h.xaddrs,
		MetadataVersion:    1,
	}
	h.sendMulticast(ctx, ActionHello, body)
}

func (h *Host) sendBye(ctx context.Context) {
	body := Bye{EndpointReference: EndpointReference{Address: h.ownURN}}
	h.sendMulticast(ctx, ActionBye, body)
}

func (h *Host) handleProbe(env *Envelope, src *net.UDPAddr) (interface{}, string, bool) {
	var p Probe
	if err := DecodeBody(env, &p); err != nil {
		h.sink.Debugf("wsd: malformed Probe: %v", err)
		return nil, "", false
	}

	if strings.TrimSpace(p.Scopes) != "" {
		h.sink.Debugf("wsd: Probe with Scopes dropped (scopes unsupported)")
		return nil, "", false
	}

	if strings.TrimSpace(p.Types) != DeviceTypes {
		return nil, "", false
	}

	match := ProbeMatches{
		ProbeMatch: []ProbeMatch{{
			EndpointReference: EndpointReference{Address: h.ownURN},
			Types:             ComputerTypes,
			MetadataVersion:   1,
		}},
	}
	return match, ActionProbeMatches, true
}

func (h *Host) handleResolve(env *Envelope, src *net.UDPAddr) (interface{}, string, bool) {
	var r Resolve
	if err := DecodeBody(env, &r); err != nil {
		h.sink.Debugf("wsd: malformed Resolve: %v", err)
		return nil, "", false
	}

	if CanonicalUUID(r.EndpointReference.Address) != CanonicalUUID(h.ownURN) {
		return nil, "", false
	}

	match := ResolveMatches{
		ResolveMatch: &ResolveMatch{
			EndpointReference: EndpointReference{Address: h.ownURN},
			Types:             ComputerTypes,
			XAddrs:            h.xaddrs,
			MetadataVersion:   1,
		},
	}
	return match, ActionResolveMatches, true
}

func (h *Host) handleGet(env *Envelope, src *net.UDPAddr) (interface{}, string, bool) {
	meta := Metadata{
		Sections: []MetadataSection{
			{
				Dialect: DialectThisDevice,
				ThisDevice: &ThisDevice{
					FriendlyName:    "WSD Device " + h.hostname,
					FirmwareVersion: "1.0",
					SerialNumber:    "1",
				},
			},
			{
				Dialect: DialectThisModel,
				ThisModel: &ThisModel{
					Manufacturer:   "wsdd",
					ModelName:      "wsdd",
					DeviceCategory: "Computers",
				},
			},
			{
				Dialect: DialectRelationship,
				Relationship: &Relationship{
					Type: HostRelationship,
					Host: RelHost{
						EndpointReference: EndpointReference{Address: h.ownURN},
						Types:             "pub:Computer",
						ServiceId:         h.ownURN,
						Computer:          h.computerText(),
					},
				},
			},
		},
	}
	return meta, ActionGetResponse, true
}

// computerText formats the pub:Computer text carried in the Relationship
// section's Host block: "<host>/Domain:<domain>" if a domain is
// configured, else "<host>/Workgroup:<WORKGROUP>". The host part is
// lowercased in domain mode and uppercased in workgroup mode unless
// preserve-case is set; the workgroup itself is always uppercased.
func (h *Host) computerText() string {
	host := h.hostname
	if h.domain != "" {
		if !h.preserveCase {
			host = strings.ToLower(host)
		}
		return host + "/Domain:" + h.domain
	}
	if !h.preserveCase {
		host = strings.ToUpper(host)
	}
	return host + "/Workgroup:" + strings.ToUpper(h.workgroup)
}
