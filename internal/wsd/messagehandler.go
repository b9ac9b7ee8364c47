package wsd

import (
	"context"
	"net"

	"github.com/wsdiscovery/wsdd/internal/eventsink"
)

// ActionFunc handles one parsed inbound envelope for a registered action.
// It returns a reply body and action to send back, or hasReply=false if
// the message calls for no reply.
type ActionFunc func(env *Envelope, src *net.UDPAddr) (body interface{}, action string, hasReply bool)

// MessageHandler is the shared envelope build/parse/dispatch machinery
// embedded by both the host and client roles: an action->handler table,
// the process-wide dedup check for UDP-originated messages, and a
// dispatch path that schedules any reply through the retransmission
// scheduler.
type MessageHandler struct {
	mep       *MulticastEndpoint
	scheduler *Scheduler
	sink      eventsink.Sink

	handlers map[string]ActionFunc

	// decorate, if set, is applied to every outgoing BuildOptions just
	// before marshaling -- the host role uses this to stamp AppSequence
	// on every message it sends.
	decorate func(*BuildOptions)
}

func newMessageHandler(mep *MulticastEndpoint, sched *Scheduler, sink eventsink.Sink) MessageHandler {
	return MessageHandler{
		mep:       mep,
		scheduler: sched,
		sink:      sink,
		handlers:  make(map[string]ActionFunc),
	}
}

// On registers fn as the handler for inbound messages with the given
// Action.
func (m *MessageHandler) On(action string, fn ActionFunc) {
	m.handlers[action] = fn
}

// HandleDatagram is a wsd.Handler suitable for registering with a
// MulticastEndpoint: it parses the envelope, applies the process-wide
// dedup check, dispatches to the registered handler, and schedules any
// reply back to src.
func (m *MessageHandler) HandleDatagram(payload []byte, src *net.UDPAddr) {
	env, err := Parse(payload)
	if err != nil {
		m.sink.Debugf("wsd: malformed datagram from %s: %v", src, err)
		return
	}

	if sharedDedupe.seenBefore(env.Header.MessageID) {
		m.sink.Debugf("wsd: duplicate message %s dropped", env.Header.MessageID)
		return
	}

	m.dispatchAndReply(env, src)
}

// HandleHTTPBody parses payload (an HTTP-originated envelope, which
// bypasses dedup per the wire format) and returns the marshaled reply
// envelope, if the registered handler produced one.
func (m *MessageHandler) HandleHTTPBody(payload []byte) ([]byte, bool, error) {
	env, err := Parse(payload)
	if err != nil {
		return nil, false, err
	}

	fn, ok := m.handlers[env.Header.Action]
	if !ok {
		return nil, false, nil
	}

	body, action, hasReply := fn(env, nil)
	if !hasReply {
		return nil, false, nil
	}

	opts := BuildOptions{
		To:        AnonymousAddress,
		Action:    action,
		MessageID: NewMessageID(),
		RelatesTo: env.Header.MessageID,
	}
	if m.decorate != nil {
		m.decorate(&opts)
	}

	out, err := Build(opts, body)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *MessageHandler) dispatchAndReply(env *Envelope, src *net.UDPAddr) {
	fn, ok := m.handlers[env.Header.Action]
	if !ok {
		m.sink.Debugf("wsd: no handler for action %s", env.Header.Action)
		return
	}

	body, action, hasReply := fn(env, src)
	if !hasReply {
		return
	}

	m.sendUnicastReply(context.Background(), src, env.Header.MessageID, action, body)
}

// sendUnicastReply builds a reply envelope addressed to the anonymous role
// and schedules it back to src with the unicast repeat count.
func (m *MessageHandler) sendUnicastReply(ctx context.Context, src *net.UDPAddr, relatesTo, action string, body interface{}) {
	opts := BuildOptions{
		To:        AnonymousAddress,
		Action:    action,
		MessageID: NewMessageID(),
		RelatesTo: relatesTo,
	}
	if err := m.sendScheduled(ctx, src, opts, body); err != nil {
		m.sink.Warnf("wsd: build reply %s: %v", action, err)
	}
}

// sendMulticast builds and schedules an unsolicited multicast message
// (Hello, Bye) to the endpoint's discovery group, with a fresh MessageID.
func (m *MessageHandler) sendMulticast(ctx context.Context, action string, body interface{}) {
	m.sendMulticastID(ctx, action, NewMessageID(), body)
}

// sendMulticastID is like sendMulticast but lets the caller supply the
// MessageID up front -- the client role needs to know a Probe's MessageID
// before sending it, so it can record the probe in its in-flight table.
func (m *MessageHandler) sendMulticastID(ctx context.Context, action, messageID string, body interface{}) {
	opts := BuildOptions{
		To:        DiscoveryTo,
		Action:    action,
		MessageID: messageID,
	}
	if err := m.sendScheduled(ctx, m.mep.GroupAddr(), opts, body); err != nil {
		m.sink.Warnf("wsd: build multicast %s: %v", action, err)
	}
}

func (m *MessageHandler) sendScheduled(ctx context.Context, dest *net.UDPAddr, opts BuildOptions, body interface{}) error {
	if m.decorate != nil {
		m.decorate(&opts)
	}

	payload, err := Build(opts, body)
	if err != nil {
		return err
	}

	repeats := UnicastUDPRepeat
	if dest.IP.Equal(m.mep.GroupAddr().IP) {
		repeats = MulticastUDPRepeat
	}

	m.scheduler.Enqueue(ctx, repeats, payload, func(p []byte) error {
		return m.mep.Send(dest, p)
	})
	return nil
}
