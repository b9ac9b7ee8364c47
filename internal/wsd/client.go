package wsd

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wsdiscovery/wsdd/internal/eventsink"
)

// Client is the WSD resolver role: it probes for hosts on bind, tracks
// in-flight probes by MessageID, consumes Hello/ProbeMatches/
// ResolveMatches/Bye, fetches metadata over HTTP, and maintains the
// discovered-device registry.
type Client struct {
	MessageHandler

	family   Family
	iface    *net.Interface
	ownURN   string
	registry *Registry
	http     *http.Client

	mu     sync.Mutex
	probes map[string]time.Time
	fetch  sync.WaitGroup
}

// NewClient creates a Client attached to mep, reporting itself as ownURN
// and recording discoveries in registry.
func NewClient(mep *MulticastEndpoint, sched *Scheduler, sink eventsink.Sink, registry *Registry, ownURN string) *Client {
	c := &Client{
		MessageHandler: newMessageHandler(mep, sched, sink),
		family:         mep.Family,
		iface:          mep.Iface,
		ownURN:         ownURN,
		registry:       registry,
		probes:         make(map[string]time.Time),
		http: &http.Client{
			Timeout:   2 * time.Second,
			Transport: &http.Transport{DialContext: zoneAwareDialer(mep.Iface)},
		},
	}
	c.On(ActionHello, c.handleHello)
	c.On(ActionProbeMatches, c.handleProbeMatches)
	c.On(ActionResolveMatches, c.handleResolveMatches)
	c.On(ActionBye, c.handleBye)
	// A unicast reply to this client's own Probe/Resolve arrives back on
	// the multicast-send socket it went out from, not the receive socket.
	mep.RegisterHandler(c.HandleDatagram, RecvSocket, MulticastSendSocket)
	return c
}

// Start sends this client's initial Probe after a random delay bounded by
// MaxStartupProbeDelay, to avoid a multicast storm when many hosts boot at
// once.
func (c *Client) Start(ctx context.Context) {
	go func() {
		delay := time.Duration(rand.Int63n(int64(MaxStartupProbeDelay) + 1))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		c.sendProbe(ctx)
	}()
}

// Stop waits for any in-flight retransmits and metadata fetches to settle.
func (c *Client) Stop() {
	c.scheduler.Wait()
	c.fetch.Wait()
}

// Probe issues an immediate Probe, bypassing the startup jitter. Used by
// the control API's "probe" command.
func (c *Client) Probe(ctx context.Context) {
	c.sendProbe(ctx)
}

func (c *Client) sendProbe(ctx context.Context) {
	id := NewMessageID()
	c.recordProbe(id)
	body := Probe{Types: DeviceTypes}
	c.sendMulticastID(ctx, ActionProbe, id, body)
}

func (c *Client) recordProbe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.probes[id] = time.Now()

	cutoff := time.Now().Add(-2 * ProbeTimeout)
	for k, t := range c.probes {
		if t.Before(cutoff) {
			delete(c.probes, k)
		}
	}
}

func (c *Client) probeKnown(relatesTo string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.probes[relatesTo]
	return ok
}

func (c *Client) handleHello(env *Envelope, src *net.UDPAddr) (interface{}, string, bool) {
	var h Hello
	if err := DecodeBody(env, &h); err != nil {
		c.sink.Debugf("wsd: malformed Hello: %v", err)
		return nil, "", false
	}
	c.handleAnnounce(context.Background(), h.EndpointReference.Address, h.XAddrs)
	return nil, "", false
}

func (c *Client) handleProbeMatches(env *Envelope, src *net.UDPAddr) (interface{}, string, bool) {
	if !c.probeKnown(env.Header.RelatesTo) {
		return nil, "", false
	}

	var pm ProbeMatches
	if err := DecodeBody(env, &pm); err != nil {
		c.sink.Debugf("wsd: malformed ProbeMatches: %v", err)
		return nil, "", false
	}

	for _, match := range pm.ProbeMatch {
		c.handleAnnounce(context.Background(), match.EndpointReference.Address, match.XAddrs)
	}
	return nil, "", false
}

func (c *Client) handleResolveMatches(env *Envelope, src *net.UDPAddr) (interface{}, string, bool) {
	var rm ResolveMatches
	if err := DecodeBody(env, &rm); err != nil {
		c.sink.Debugf("wsd: malformed ResolveMatches: %v", err)
		return nil, "", false
	}
	if rm.ResolveMatch == nil {
		return nil, "", false
	}
	c.handleAnnounce(context.Background(), rm.ResolveMatch.EndpointReference.Address, rm.ResolveMatch.XAddrs)
	return nil, "", false
}

func (c *Client) handleBye(env *Envelope, src *net.UDPAddr) (interface{}, string, bool) {
	var b Bye
	if err := DecodeBody(env, &b); err != nil {
		c.sink.Debugf("wsd: malformed Bye: %v", err)
		return nil, "", false
	}
	c.registry.Delete(CanonicalUUID(b.EndpointReference.Address))
	return nil, "", false
}

// handleAnnounce implements the shared Hello/ProbeMatch/ResolveMatch logic:
// without XAddrs, send a Resolve; with XAddrs, fetch metadata from the
// selected one.
func (c *Client) handleAnnounce(ctx context.Context, targetURN, xaddrsField string) {
	xaddr := c.selectXAddr(xaddrsField)
	if xaddr == "" {
		c.sendResolve(ctx, targetURN)
		return
	}

	c.fetch.Add(1)
	go func() {
		defer c.fetch.Done()
		c.fetchMetadata(ctx, targetURN, xaddr)
	}()
}

func (c *Client) sendResolve(ctx context.Context, targetURN string) {
	body := Resolve{EndpointReference: EndpointReference{Address: targetURN}}
	c.sendMulticast(ctx, ActionResolve, body)
}

// selectXAddr picks the XAddr this client should use to fetch metadata: the
// first entry for IPv4, the first fe80:: (link-local) entry for IPv6.
func (c *Client) selectXAddr(xaddrsField string) string {
	fields := strings.Fields(xaddrsField)
	if len(fields) == 0 {
		return ""
	}
	if c.family == FamilyV4 {
		return fields[0]
	}
	for _, f := range fields {
		u, err := url.Parse(f)
		if err != nil {
			continue
		}
		if strings.HasPrefix(u.Hostname(), "fe80") {
			return f
		}
	}
	return ""
}

// zoneAwareDialer returns a DialContext that appends iface's zone
// identifier when dialing a link-local IPv6 literal, so the connection
// actually routes -- while leaving the request's Host header (taken from
// the unmodified URL) as the bracketed address without a zone, for
// server-side compatibility with the originating daemon.
func zoneAwareDialer(iface *net.Interface) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ip := net.ParseIP(host)
		if ip != nil && ip.To4() == nil && ip.IsLinkLocalUnicast() {
			host = host + "%" + iface.Name
		}

		dialer := net.Dialer{Timeout: 2 * time.Second}
		return dialer.DialContext(ctx, network, net.JoinHostPort(host, port))
	}
}

// fetchMetadata performs the WSD HTTP metadata exchange: POST a Get
// envelope to xaddr and apply the resulting ThisDevice/ThisModel/
// Relationship sections to the registry entry for targetURN.
func (c *Client) fetchMetadata(ctx context.Context, targetURN, xaddr string) {
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	opts := BuildOptions{
		To:        targetURN,
		Action:    ActionGet,
		MessageID: NewMessageID(),
		ReplyTo:   AnonymousAddress,
		From:      c.ownURN,
	}
	payload, err := Build(opts, Get{})
	if err != nil {
		c.sink.Warnf("wsd: build Get for %s: %v", xaddr, err)
		return
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, xaddr, bytes.NewReader(payload))
	if err != nil {
		c.sink.Warnf("wsd: metadata request to %s: %v", xaddr, err)
		return
	}
	req.Header.Set("Content-Type", "application/soap+xml")
	req.Header.Set("User-Agent", "wsdd")

	resp, err := c.http.Do(req)
	if err != nil {
		c.sink.Warnf("wsd: metadata fetch from %s: %v", xaddr, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.sink.Warnf("wsd: metadata fetch from %s: status %d", xaddr, resp.StatusCode)
		return
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.sink.Warnf("wsd: read metadata response from %s: %v", xaddr, err)
		return
	}

	env, err := Parse(data)
	if err != nil {
		c.sink.Warnf("wsd: parse metadata response from %s: %v", xaddr, err)
		return
	}

	var meta Metadata
	if err := DecodeBody(env, &meta); err != nil {
		c.sink.Warnf("wsd: decode metadata response from %s: %v", xaddr, err)
		return
	}

	c.applyMetadata(targetURN, xaddr, meta)
}

func (c *Client) applyMetadata(targetURN, xaddr string, meta Metadata) {
	props := make(map[string]string)

	for _, section := range meta.Sections {
		switch section.Dialect {
		case DialectThisDevice:
			if section.ThisDevice != nil {
				props["FriendlyName"] = section.ThisDevice.FriendlyName
				props["FirmwareVersion"] = section.ThisDevice.FirmwareVersion
				props["SerialNumber"] = section.ThisDevice.SerialNumber
			}
		case DialectThisModel:
			if section.ThisModel != nil {
				props["Manufacturer"] = section.ThisModel.Manufacturer
				props["ModelName"] = section.ThisModel.ModelName
				props["DeviceCategory"] = section.ThisModel.DeviceCategory
			}
		case DialectRelationship:
			if section.Relationship != nil && section.Relationship.Type == HostRelationship {
				host := section.Relationship.Host
				props["types"] = host.Types
				if strings.TrimSpace(host.Types) == "pub:Computer" {
					parts := strings.SplitN(host.Computer, "/", 2)
					props["DisplayName"] = parts[0]
					if len(parts) > 1 {
						props["BelongsTo"] = parts[1]
					}
				}
			}
		}
	}

	displayName := ""
	if props["DisplayName"] != "" && props["BelongsTo"] != "" {
		displayName = props["DisplayName"]
	} else if props["FriendlyName"] != "" {
		displayName = props["FriendlyName"]
	}

	host := xaddr
	if u, err := url.Parse(xaddr); err == nil {
		host = u.Hostname()
	}

	uuid := CanonicalUUID(targetURN)
	c.registry.Upsert(uuid, func(d *Device) {
		for k, v := range props {
			d.Props[k] = v
		}
		if displayName != "" {
			d.DisplayName = displayName
		}
		if props["BelongsTo"] != "" {
			d.BelongsTo = props["BelongsTo"]
		}
		d.AddAddress(c.iface.Name, host)
	})
}
