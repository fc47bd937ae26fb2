// Package mdns advertises the agent's discovery port on the local network.
package mdns

import (
	"context"
	"fmt"
	"strconv"

	"discoagent/internal/config"
	"discoagent/internal/disco"
	"discoagent/internal/logger"
	"github.com/grandcat/zeroconf"
)

// TXT builds the TXT records announced for desc.
func TXT(desc disco.HardwareDescriptor) []string {
	txt := []string{
		"controllerID=" + desc.ControllerID,
		"device=" + desc.Device,
		"discoVersion=" + strconv.Itoa(desc.DiscoVersion),
	}
	if desc.Address != "" {
		txt = append(txt, "address="+desc.Address)
	}
	return txt
}

// Advertise registers the service and keeps it up until ctx is done.
func Advertise(ctx context.Context, log logger.Logger, cfg config.MDNSConf, port int, desc disco.HardwareDescriptor) error {
	server, err := zeroconf.Register(desc.ControllerID, cfg.Service, cfg.Domain, port, TXT(desc), nil)
	if err != nil {
		return fmt.Errorf("failed to register mdns service: %w", err)
	}
	log.With(logger.Fields{"module": "mdns"}).Infof("advertising %s.%s%s on port %d", desc.ControllerID, cfg.Service, cfg.Domain, port)

	<-ctx.Done()
	server.Shutdown()
	log.With(logger.Fields{"module": "mdns"}).Debug("advertisement withdrawn")
	return nil
}
