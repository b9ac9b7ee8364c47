package daemon

import (
	"context"

	"github.com/wsdiscovery/wsdd/internal/config"
	"github.com/wsdiscovery/wsdd/internal/eventsink"
	"github.com/wsdiscovery/wsdd/internal/netmon"
	"github.com/wsdiscovery/wsdd/internal/wsd"
)

// Daemon bundles the address monitor and the control API into the unit
// cmd/wsdd runs for the process's lifetime.
type Daemon struct {
	cfg     *config.Config
	Monitor *Monitor
	control *ControlServer
}

// New constructs a Daemon. ownURN and hostname are derived by the caller
// from cfg (see cmd/wsdd), since that derivation needs access to the
// default hostname lookup and UUID generation that don't belong in this
// package.
func New(cfg *config.Config, sink eventsink.Sink, registry *wsd.Registry, ownURN, hostname string) *Daemon {
	monitor := NewMonitor(cfg, sink, registry, ownURN, hostname, netmon.NewSource)
	return &Daemon{
		cfg:     cfg,
		Monitor: monitor,
		control: NewControlServer(monitor, sink),
	}
}

// Run starts the control API (if configured) and blocks running the
// address-monitor event loop until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.control.Start(d.cfg.Listen); err != nil {
		return err
	}
	return d.Monitor.Run(ctx)
}

// Shutdown stops the control API and gracefully tears the monitor down
// (Bye on every host, then close every MEP and the address source).
func (d *Daemon) Shutdown() error {
	if err := d.control.Close(); err != nil {
		return err
	}
	return d.Monitor.Close()
}
