package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wsdiscovery/wsdd/internal/config"
	"github.com/wsdiscovery/wsdd/internal/daemon"
	"github.com/wsdiscovery/wsdd/internal/eventsink"
	"github.com/wsdiscovery/wsdd/internal/privs"
	"github.com/wsdiscovery/wsdd/internal/wsd"

	"github.com/google/uuid"
)

// stringList collects repeated -i flags into an allowlist, the way the
// upstream daemon's argparse "append" action builds its interface list.
type stringList struct{ values []string }

func (s *stringList) String() string { return strings.Join(s.values, ",") }
func (s *stringList) Set(v string) error {
	s.values = append(s.values, v)
	return nil
}

func main() {
	var ifaces stringList
	flag.Var(&ifaces, "i", "interface name or address to serve on (repeatable); default: all")

	configPath := flag.String("config", "", "path to a YAML config overlay")
	hopLimit := flag.Int("hoplimit", 1, "multicast hop limit / TTL")
	uuidFlag := flag.String("uuid", "", "fixed device UUID (default: derived from hostname)")
	domain := flag.String("domain", "", "domain name advertised in metadata (enables domain mode)")
	workgroup := flag.String("workgroup", "", "workgroup name advertised in metadata (default WORKGROUP)")
	hostname := flag.String("hostname", "", "hostname to advertise (default: local hostname)")
	preserveCase := flag.Bool("preserve-case", false, "don't upper/lowercase the advertised hostname")
	noAutostart := flag.Bool("no-autostart", false, "don't enumerate interfaces at startup; wait for the 'start' control command")
	noHTTP := flag.Bool("no-http", false, "don't bind the metadata HTTP server")
	noHost := flag.Bool("no-host", false, "don't run the host (target) role; stay invisible")
	discovery := flag.Bool("discovery", false, "run the client (resolver) role")
	ipv4only := flag.Bool("4", false, "IPv4 only")
	ipv6only := flag.Bool("6", false, "IPv6 only")
	listen := flag.String("listen", "", "control API: a port number (localhost TCP) or a filesystem path (Unix socket)")
	chroot := flag.String("chroot", "", "directory to chroot into after opening sockets")
	user := flag.String("user", "", "user to drop privileges to after opening sockets")
	verbose := flag.Int("v", 0, "verbosity: 0=warn/error, 1=+info, 2+=+debug")
	mqttBroker := flag.String("mqtt-broker", "", "MQTT broker URL to additionally mirror log events to, e.g. tcp://localhost:1883")
	mqttTopic := flag.String("mqtt-topic", "wsdd/log", "MQTT topic to publish log events on")
	flag.Parse()

	cfg := &config.Config{
		Interfaces:          ifaces.values,
		HopLimit:            *hopLimit,
		Domain:              *domain,
		Workgroup:           *workgroup,
		Hostname:            *hostname,
		PreserveCase:        *preserveCase,
		NoAutostart:         *noAutostart,
		NoHTTP:              *noHTTP,
		NoHost:              *noHost,
		Discovery:           *discovery,
		IPv4Only:            *ipv4only,
		IPv6Only:            *ipv6only,
		Listen:              *listen,
		Chroot:              *chroot,
		User:                *user,
		Verbose:             *verbose,
		EventSinkMQTTBroker: *mqttBroker,
		EventSinkMQTTTopic:  *mqttTopic,
	}
	if *uuidFlag != "" {
		id, err := uuid.Parse(*uuidFlag)
		if err != nil {
			log.Fatalf("invalid -uuid %q: %v", *uuidFlag, err)
		}
		cfg.UUID = id
	}

	if *configPath != "" {
		if err := cfg.ApplyOverlayFile(*configPath); err != nil {
			log.Fatalf("%v", err)
		}
	}
	if cfg.Workgroup == "" {
		cfg.Workgroup = "WORKGROUP"
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("configuration error: %v", err)
		os.Exit(4)
	}

	sink, err := buildSink(cfg)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	if closer, ok := sink.(*eventsink.MqttSink); ok {
		defer closer.Close()
	}

	short := config.ShortHostname(hostnameOrDefault(cfg.Hostname))
	id := cfg.UUID
	if id == uuid.Nil {
		id = wsd.DeviceUUID(short)
	}
	ownURN := wsd.DeviceURN(id)

	registry := wsd.NewRegistry()
	d := daemon.New(cfg, sink, registry, ownURN, short)

	// Open the address-change source and request the initial enumeration
	// before dropping privileges. The multicast endpoints themselves are
	// created later, by the event loop in d.Run, as the enumerated address
	// events are handled.
	if !cfg.NoAutostart {
		if err := d.Monitor.StartSource(); err != nil {
			sink.Errorf("failed to start address monitor: %v", err)
			os.Exit(1)
		}
	}

	if cfg.Chroot != "" {
		if err := privs.Chroot(cfg.Chroot); err != nil {
			sink.Errorf("%v", err)
			os.Exit(2)
		}
	}
	if cfg.User != "" {
		uid, gid, err := privs.LookupUser(cfg.User)
		if err != nil {
			sink.Errorf("%v", err)
			os.Exit(3)
		}
		if err := privs.DropPrivileges(uid, gid); err != nil {
			sink.Errorf("%v", err)
			os.Exit(3)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		sink.Infof("received shutdown signal")
		cancel()
	}()

	runErr := d.Run(ctx)
	if err := d.Shutdown(); err != nil {
		sink.Warnf("shutdown: %v", err)
	}
	if runErr != nil {
		sink.Errorf("daemon exited: %v", runErr)
		os.Exit(1)
	}
}

func hostnameOrDefault(configured string) string {
	if configured != "" {
		return configured
	}
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}

func buildSink(cfg *config.Config) (eventsink.Sink, error) {
	if cfg.EventSinkMQTTBroker == "" {
		return eventsink.NewLogSink(cfg.Verbose), nil
	}
	sink, err := eventsink.NewMqttSink(cfg.EventSinkMQTTBroker, cfg.EventSinkMQTTTopic, "wsdd", cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("connect event sink to mqtt: %w", err)
	}
	return sink, nil
}
