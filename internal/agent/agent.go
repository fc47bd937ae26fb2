// Package agent ties the handshake, the frame transport and the sink together.
package agent

import (
	"context"
	"fmt"
	"net"

	"discoagent/internal/clientmqtt"
	"discoagent/internal/config"
	"discoagent/internal/disco"
	"discoagent/internal/ip"
	"discoagent/internal/logger"
	"discoagent/internal/mdns"
	"discoagent/internal/pixel"
	"discoagent/internal/registrar"
	"discoagent/internal/transport"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Agent is one lighting controller.
type Agent struct {
	log    logger.Logger
	cfg    *config.Config
	desc   disco.HardwareDescriptor
	sink   pixel.Sink
	policy pixel.AlphaPolicy
	status *clientmqtt.StatusReporter
}

// Descriptor builds the hardware descriptor from configuration, generating a
// controller ID and detecting the address when they are not set.
func Descriptor(cfg config.AgentConf) (disco.HardwareDescriptor, error) {
	desc := disco.HardwareDescriptor{
		ControllerID: cfg.ControllerID,
		Device:       cfg.Device,
		DiscoVersion: cfg.DiscoVersion,
		Address:      cfg.Address,
	}
	if desc.ControllerID == "" {
		desc.ControllerID = uuid.NewString()
	}
	if desc.Address == "" {
		addr, err := ip.Find("")
		if err != nil {
			return desc, err
		}
		if addr != nil {
			desc.Address = addr.String()
		}
	}
	return desc, nil
}

// New constructor. status may be nil.
func New(log logger.Logger, cfg *config.Config, desc disco.HardwareDescriptor, sink pixel.Sink, status *clientmqtt.StatusReporter) (*Agent, error) {
	policy, err := pixel.ParseAlphaPolicy(cfg.Sink.Alpha)
	if err != nil {
		return nil, err
	}
	if status == nil {
		status = clientmqtt.NewStatusReporter(log, nil, desc.ControllerID, "")
	}
	return &Agent{
		log:    log,
		cfg:    cfg,
		desc:   desc,
		sink:   sink,
		policy: policy,
		status: status,
	}, nil
}

// Run initialises the sink, finds the master and then streams frames until
// ctx is done. It returns nil on cancellation and an error when the agent
// cannot go on.
func (a *Agent) Run(ctx context.Context) error {
	log := a.log.With(logger.Fields{"module": "agent"})

	if err := a.sink.Begin(); err != nil {
		return fmt.Errorf("failed to start sink: %w", err)
	}
	if err := a.sink.SetBrightness(a.cfg.Sink.Brightness); err != nil {
		return fmt.Errorf("failed to set brightness: %w", err)
	}
	log.Infof("controller %s (%s), mode %s, alpha %s", a.desc.ControllerID, a.desc.Device, a.cfg.Agent.Mode, a.policy)

	server := transport.NewServer(a.log, a.cfg.Transport, a.sink, a.policy)

	var listener *disco.Listener
	switch a.cfg.Agent.Mode {
	case config.ModeRegister:
		a.status.Report(clientmqtt.StatusRegistering, a.cfg.Register.URL())
		if err := registrar.New(a.log, a.cfg.Register, nil).Register(ctx, a.desc); err != nil {
			return done(ctx, err)
		}
		a.status.Report(clientmqtt.StatusConnected, a.cfg.Register.URL())

	default:
		l, err := a.discover(ctx)
		if err != nil {
			return done(ctx, err)
		}
		listener = l
		defer listener.Close()
	}

	if err := server.Listen(); err != nil {
		return err
	}

	if listener != nil {
		if err := listener.NotifyReady(); err != nil {
			log.Errorf("ready notification: %v", err)
		}
	}

	a.status.Report(clientmqtt.StatusStreaming, server.Addr().String())
	err := server.Serve(ctx)
	a.status.Report(clientmqtt.StatusStopped, "")
	return err
}

// discover runs the UDP handshake, advertising over mDNS while it waits.
func (a *Agent) discover(ctx context.Context) (*disco.Listener, error) {
	listener, err := disco.NewListener(a.log, a.cfg.Disco, a.desc)
	if err != nil {
		return nil, err
	}
	if err := listener.Listen(); err != nil {
		return nil, err
	}
	a.status.Report(clientmqtt.StatusDiscovering, listener.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	advCtx, stopAdv := context.WithCancel(gctx)
	defer stopAdv()

	if a.cfg.MDNS.Enabled {
		port := listener.Addr().(*net.UDPAddr).Port
		g.Go(func() error {
			if err := mdns.Advertise(advCtx, a.log, a.cfg.MDNS, port, a.desc); err != nil {
				a.log.With(logger.Fields{"module": "mdns"}).Warnf("advertisement disabled: %v", err)
			}
			return nil
		})
	}

	var res *disco.Result
	g.Go(func() error {
		defer stopAdv()
		r, err := listener.Wait(gctx)
		res = r
		return err
	})

	if err := g.Wait(); err != nil {
		_ = listener.Close()
		return nil, err
	}
	a.status.Report(clientmqtt.StatusConnected, res.Master.String())
	return listener, nil
}

// done maps cancellation to a clean exit.
func done(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
