package wsd

import "encoding/xml"

// EndpointReference identifies a WSD endpoint by its device URN.
type EndpointReference struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing EndpointReference"`
	Address string   `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing Address"`
}

// Probe is the body of a discovery Probe message. Scopes is retained only
// to detect and reject it: scoped probing is out of scope for this daemon.
type Probe struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Probe"`
	Types   string   `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Types,omitempty"`
	Scopes  string   `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Scopes,omitempty"`
}

// ProbeMatches is the body of a ProbeMatches reply.
type ProbeMatches struct {
	XMLName      xml.Name      `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery ProbeMatches"`
	ProbeMatch   []ProbeMatch  `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery ProbeMatch"`
}

// ProbeMatch is a single match within a ProbeMatches reply.
type ProbeMatch struct {
	EndpointReference EndpointReference `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing EndpointReference"`
	Types             string            `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Types"`
	XAddrs            string            `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery XAddrs,omitempty"`
	MetadataVersion   int               `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery MetadataVersion"`
}

// Resolve is the body of a Resolve request.
type Resolve struct {
	XMLName           xml.Name          `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Resolve"`
	EndpointReference EndpointReference `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing EndpointReference"`
}

// ResolveMatches is the body of a ResolveMatches reply.
type ResolveMatches struct {
	XMLName      xml.Name       `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery ResolveMatches"`
	ResolveMatch *ResolveMatch  `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery ResolveMatch,omitempty"`
}

// ResolveMatch is the single match carried by a ResolveMatches reply.
type ResolveMatch struct {
	EndpointReference EndpointReference `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing EndpointReference"`
	Types             string            `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Types"`
	XAddrs            string            `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery XAddrs,omitempty"`
	MetadataVersion   int               `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery MetadataVersion"`
}

// Hello is the body of an unsolicited Hello announcement.
type Hello struct {
	XMLName           xml.Name          `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Hello"`
	EndpointReference EndpointReference `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing EndpointReference"`
	Types             string            `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Types,omitempty"`
	XAddrs            string            `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery XAddrs,omitempty"`
	MetadataVersion   int               `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery MetadataVersion"`
}

// Bye is the body of an unsolicited Bye announcement.
type Bye struct {
	XMLName           xml.Name          `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Bye"`
	EndpointReference EndpointReference `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing EndpointReference"`
}

// Get is the (empty) body of an HTTP metadata-exchange Get request.
type Get struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/ws/2004/09/transfer Get"`
}

// Metadata is the body of a GetResponse, carrying the three metadata
// sections this daemon serves.
type Metadata struct {
	XMLName  xml.Name          `xml:"http://schemas.xmlsoap.org/ws/2004/09/mex Metadata"`
	Sections []MetadataSection `xml:"http://schemas.xmlsoap.org/ws/2004/09/mex MetadataSection"`
}

// MetadataSection is one dialect-tagged section of a metadata document.
// ThisDevice/ThisModel carry a ThisDevice/ThisModel body; Relationship
// carries a Relationship body. Exactly one of these is non-nil.
type MetadataSection struct {
	XMLName      xml.Name      `xml:"http://schemas.xmlsoap.org/ws/2004/09/mex MetadataSection"`
	Dialect      string        `xml:"Dialect,attr"`
	ThisDevice   *ThisDevice   `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof ThisDevice,omitempty"`
	ThisModel    *ThisModel    `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof ThisModel,omitempty"`
	Relationship *Relationship `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof Relationship,omitempty"`
}

// Dialect URIs for the three MetadataSection kinds.
const (
	DialectThisDevice   = NSWsdp + "/ThisDevice"
	DialectThisModel    = NSWsdp + "/ThisModel"
	DialectRelationship = NSWsdp + "/Relationship"
)

// ThisDevice is the wsdp:ThisDevice metadata body.
type ThisDevice struct {
	FriendlyName    string `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof FriendlyName"`
	FirmwareVersion string `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof FirmwareVersion"`
	SerialNumber    string `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof SerialNumber"`
}

// ThisModel is the wsdp:ThisModel metadata body.
type ThisModel struct {
	Manufacturer    string `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof Manufacturer"`
	ModelName       string `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof ModelName"`
	DeviceCategory  string `xml:"http://schemas.microsoft.com/windows/pnpx/2005/10 DeviceCategory"`
}

// Relationship is the wsdp:Relationship metadata body, carrying the Host
// block this daemon advertises itself through.
type Relationship struct {
	Type string `xml:"Type,attr"`
	Host RelHost `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof Host"`
}

// RelHost is the Host child of a Relationship section.
type RelHost struct {
	EndpointReference EndpointReference `xml:"http://schemas.xmlsoap.org/ws/2004/08/addressing EndpointReference"`
	Types             string            `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof Types"`
	ServiceId         string            `xml:"http://schemas.xmlsoap.org/ws/2006/02/devprof ServiceId"`
	Computer          string            `xml:"http://schemas.microsoft.com/windows/pub/2005/07 Computer"`
}
