package wsd

import (
	"encoding/xml"
	"fmt"
)

// Envelope represents a SOAP 1.2 / WS-Addressing envelope as it appears on
// the wire for both the UDP and HTTP transports.
//
// Go's encoding/xml has no DTD or external-entity support at all, so the
// XXE hardening the wire format demands is structurally guaranteed rather
// than something this package has to implement.
type Envelope struct {
	XMLName   xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Envelope"`
	XmlnsWsa  string   `xml:"xmlns:wsa,attr"`
	XmlnsWsd  string   `xml:"xmlns:wsd,attr"`
	XmlnsWsdp string   `xml:"xmlns:wsdp,attr"`
	XmlnsWsx  string   `xml:"xmlns:wsx,attr"`
	XmlnsPnpx string   `xml:"xmlns:pnpx,attr"`
	XmlnsPub  string   `xml:"xmlns:pub,attr"`
	Header    Header   `xml:"Header"`
	Body      Body     `xml:"Body"`
}

// Header carries the WS-Addressing and WS-Discovery header block.
type Header struct {
	To          string       `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing To"`
	Action      string       `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing Action"`
	MessageID   string       `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing MessageID"`
	RelatesTo   string       `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing RelatesTo,omitempty"`
	ReplyTo     *ReplyTo     `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing ReplyTo,omitempty"`
	From        string       `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing From,omitempty"`
	AppSequence *AppSequence `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery AppSequence,omitempty"`
}

// ReplyTo is the WS-Addressing ReplyTo header element.
type ReplyTo struct {
	Address string `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing Address"`
}

// AppSequence is the host role's per-instance loss-detection sequence.
type AppSequence struct {
	InstanceId    uint64 `xml:"InstanceId,attr"`
	SequenceId    string `xml:"SequenceId,attr"`
	MessageNumber uint64 `xml:"MessageNumber,attr"`
}

// Body carries the raw inner XML of the SOAP Body element, left
// unparsed until a handler knows which action-specific type to decode it
// as.
type Body struct {
	Content []byte `xml:",innerxml"`
}

// namespaces is attached to every built envelope's root element, per the
// wire format's requirement that all known prefixes be declared there.
var namespaces = struct {
	wsa, wsd, wsdp, wsx, pnpx, pub string
}{NSWsa, NSWsd, NSWsdp, NSWsx, NSPnpx, NSPub}

// BuildOptions carries the header fields a caller wants set on an outgoing
// envelope. MessageID is always required; the rest are optional.
type BuildOptions struct {
	To          string
	Action      string
	MessageID   string
	RelatesTo   string
	ReplyTo     string
	From        string
	AppSequence *AppSequence
}

// Build marshals body as the SOAP Body content of a new envelope and
// returns the complete wire bytes, with the XML declaration prepended.
func Build(opts BuildOptions, body interface{}) ([]byte, error) {
	inner, err := xml.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal wsd body: %w", err)
	}

	env := Envelope{
		XmlnsWsa:  namespaces.wsa,
		XmlnsWsd:  namespaces.wsd,
		XmlnsWsdp: namespaces.wsdp,
		XmlnsWsx:  namespaces.wsx,
		XmlnsPnpx: namespaces.pnpx,
		XmlnsPub:  namespaces.pub,
		Header: Header{
			To:          opts.To,
			Action:      opts.Action,
			MessageID:   opts.MessageID,
			RelatesTo:   opts.RelatesTo,
			From:        opts.From,
			AppSequence: opts.AppSequence,
		},
		Body: Body{Content: inner},
	}
	if opts.ReplyTo != "" {
		env.Header.ReplyTo = &ReplyTo{Address: opts.ReplyTo}
	}

	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal wsd envelope: %w", err)
	}

	return append([]byte(xml.Header), out...), nil
}

// Parse decodes raw as an Envelope and validates that Header, MessageID,
// Action, and Body are all present, per the wire format's requirement to
// reject anything less.
func Parse(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse wsd envelope: %w", err)
	}
	if env.Header.Action == "" || env.Header.MessageID == "" {
		return nil, fmt.Errorf("parse wsd envelope: missing Header, Action, or MessageID")
	}
	if env.Body.Content == nil {
		return nil, fmt.Errorf("parse wsd envelope: missing Body")
	}
	return &env, nil
}

// DecodeBody unmarshals the envelope's raw Body content into v, the
// action-specific type the caller has already selected based on
// Header.Action.
func DecodeBody(env *Envelope, v interface{}) error {
	if err := xml.Unmarshal(env.Body.Content, v); err != nil {
		return fmt.Errorf("decode wsd body: %w", err)
	}
	return nil
}

