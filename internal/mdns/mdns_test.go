package mdns

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"discoagent/internal/config"
	"discoagent/internal/disco"
	"discoagent/internal/logger"
	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTXT(t *testing.T) {
	desc := disco.HardwareDescriptor{ControllerID: "TEST", Device: "rpi", DiscoVersion: 1}
	assert.Equal(t, []string{"controllerID=TEST", "device=rpi", "discoVersion=1"}, TXT(desc))

	desc.Address = "10.0.0.5"
	assert.Contains(t, TXT(desc), "address=10.0.0.5")
}

func TestAdvertiseIsBrowsable(t *testing.T) {
	if testing.Short() {
		t.Skip("needs multicast on the local network")
	}

	desc := disco.HardwareDescriptor{ControllerID: "disco-" + strconv.Itoa(os.Getpid()), Device: "test", DiscoVersion: 1}
	cfg := config.MDNSConf{Enabled: true, Service: "_discotest._udp", Domain: "local."}
	const port = 12399

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	advErr := make(chan error, 1)
	go func() { advErr <- Advertise(ctx, logger.Discard(), cfg, port, desc) }()

	resolver, err := zeroconf.NewResolver(nil)
	require.NoError(t, err)

	entries := make(chan *zeroconf.ServiceEntry)
	browseCtx, stopBrowse := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopBrowse()
	require.NoError(t, resolver.Browse(browseCtx, cfg.Service, cfg.Domain, entries))

	var found *zeroconf.ServiceEntry
	for entry := range entries {
		if found == nil && entry.Instance == desc.ControllerID {
			found = entry
			stopBrowse()
		}
	}

	select {
	case err := <-advErr:
		t.Skipf("advertisement failed: %v", err)
	default:
	}

	require.NotNil(t, found, "service %s not seen", desc.ControllerID)
	assert.Equal(t, port, found.Port)
	assert.Contains(t, found.Text, "controllerID="+desc.ControllerID)

	// withdrawn on cancel
	cancel()
	select {
	case err := <-advErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("advertisement did not stop")
	}
}
