// Package config holds the daemon's configuration record -- the single
// contract between the discovery core and whatever parses command-line
// arguments or reads a deployment overlay file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the configuration record handed to the discovery core.
type Config struct {
	// Interfaces is an allowlist of interface names and/or presentation
	// addresses. An empty list means "all interfaces".
	Interfaces []string

	HopLimit int
	UUID     uuid.UUID

	Domain       string
	Workgroup    string
	Hostname     string
	PreserveCase bool

	NoAutostart bool
	NoHTTP      bool
	NoHost      bool
	Discovery   bool

	IPv4Only bool
	IPv6Only bool

	Listen string

	Chroot string
	User   string

	Verbose int

	// EventSinkMQTTBroker, when set, additionally mirrors log events to an
	// MQTT broker (see internal/eventsink.MqttSink).
	EventSinkMQTTBroker string
	EventSinkMQTTTopic  string
}

// overlay is the subset of Config that may be supplied via a YAML file, for
// static per-deployment settings that are awkward to repeat on a command
// line. CLI flags always take precedence over the overlay.
type overlay struct {
	Interfaces          []string `yaml:"interfaces,omitempty"`
	Domain              string   `yaml:"domain,omitempty"`
	Workgroup           string   `yaml:"workgroup,omitempty"`
	EventSinkMQTTBroker string   `yaml:"mqtt_broker,omitempty"`
	EventSinkMQTTTopic  string   `yaml:"mqtt_topic,omitempty"`
}

// ApplyOverlayFile reads a YAML file at path and fills any zero-valued
// overlay fields on c. A field already set from flags is left untouched.
func (c *Config) ApplyOverlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config overlay %s: %w", path, err)
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse config overlay %s: %w", path, err)
	}

	if len(c.Interfaces) == 0 {
		c.Interfaces = o.Interfaces
	}
	if c.Domain == "" {
		c.Domain = o.Domain
	}
	if c.Workgroup == "" {
		c.Workgroup = o.Workgroup
	}
	if c.EventSinkMQTTBroker == "" {
		c.EventSinkMQTTBroker = o.EventSinkMQTTBroker
	}
	if c.EventSinkMQTTTopic == "" {
		c.EventSinkMQTTTopic = o.EventSinkMQTTTopic
	}

	return nil
}

// ErrBothFamiliesDisabled is returned by Validate when both IPv4Only and
// IPv6Only are set, leaving no address family to listen on.
var ErrBothFamiliesDisabled = fmt.Errorf("listening to no IP address family")

// Validate checks cross-field constraints. Exit-code mapping is the
// caller's job.
func (c *Config) Validate() error {
	if c.IPv4Only && c.IPv6Only {
		return ErrBothFamiliesDisabled
	}
	return nil
}

// InterfaceAllowed reports whether name or addr appears in the interface
// allowlist. An empty allowlist accepts everything.
func (c *Config) InterfaceAllowed(name, addr string) bool {
	if len(c.Interfaces) == 0 {
		return true
	}
	for _, entry := range c.Interfaces {
		if entry == name || entry == addr {
			return true
		}
	}
	return false
}

// ShortHostname returns the local part of a possibly-FQDN hostname, the way
// the daemon derives the hostname it advertises.
func ShortHostname(fqdn string) string {
	if i := strings.IndexByte(fqdn, '.'); i >= 0 {
		return fqdn[:i]
	}
	return fqdn
}
