// Package artnet renders pixel frames to DMX fixtures over Art-Net.
package artnet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"discoagent/internal/config"
	"discoagent/internal/ip"
	"discoagent/internal/logger"
	"discoagent/internal/pixel"
	"github.com/Haba1234/go-artnet"
)

// dmxSender is the part of the art-net controller the sink uses.
type dmxSender interface {
	Start() error
	Stop()
	SendDMXToAddress(dmx [512]byte, address artnet.Address)
}

// ArtNet is a pixel.Sink that sends each shown frame as DMX universes.
type ArtNet struct {
	logger     logger.Logger
	sender     dmxSender
	nodes      func() []*artnet.ControlledNode
	state      *state
	brightness uint8
	done       chan struct{}
	stopOnce   sync.Once
}

var _ pixel.Sink = (*ArtNet)(nil)

// NewSink returns an art-net sink for a strip of n pixels starting at cfg.Universe.
func NewSink(log logger.Logger, cfg config.ArtNetConf, n int) (*ArtNet, error) {
	addr, err := ip.Find(cfg.AddressRange)
	if err != nil {
		return nil, fmt.Errorf("failed to find the art-net IP: %w", err)
	}

	if len(addr) == 0 {
		return nil, errors.New("failed to find the art-net IP: No interface found")
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}

	host = strings.ToLower(strings.Split(host, ".")[0])
	log.With(logger.Fields{"module": "art-net"}).Infof("Using ArtNet IP %s and hostname %s", addr.String(), host)

	senderLogger := artnet.NewDefaultLogger("info")
	controller := artnet.NewController(host, addr, senderLogger, artnet.MaxFPS(40))

	s := newSink(log, controller, cfg.Universe, n)
	s.nodes = func() []*artnet.ControlledNode { return controller.Nodes }
	return s, nil
}

func newSink(log logger.Logger, sender dmxSender, universe uint16, n int) *ArtNet {
	return &ArtNet{
		logger:     log,
		sender:     sender,
		state:      newState(n, universe),
		brightness: 100,
		done:       make(chan struct{}),
	}
}

// Begin starts the art-net controller.
func (c *ArtNet) Begin() error {
	if err := c.sender.Start(); err != nil {
		return fmt.Errorf("failed to start Controller: %w", err)
	}
	if c.nodes != nil {
		go c.debugDevices()
	}
	return nil
}

// Close stops the art-net controller.
func (c *ArtNet) Close() error {
	c.stopOnce.Do(func() {
		close(c.done)
		c.sender.Stop()
	})
	return nil
}

func (c *ArtNet) SetBrightness(level uint8) error {
	if level > 100 {
		return fmt.Errorf("brightness %d out of range 0-100", level)
	}
	c.brightness = level
	return nil
}

func (c *ArtNet) SetPixelColor(index int, color pixel.Color) {
	if !c.state.set(index, color) {
		c.logger.With(logger.Fields{"module": "art-net"}).Tracef("pixel %d is off the strip", index)
	}
}

// Show sends every universe touched since the last Show.
func (c *ArtNet) Show() error {
	for u, dmx := range c.state.flush(c.brightness) {
		c.logger.With(logger.Fields{"module": "art-net"}).Tracef("DMX. sending universe %v", u)
		c.sender.SendDMXToAddress(dmx, universeToAddress(u))
	}
	return nil
}

// universeToAddress converts a dmx universe to art-net address.
// universe: старший байт - Net, младший байт - SubUni.
func universeToAddress(universe uint16) artnet.Address {
	v := make([]uint8, 2)
	binary.BigEndian.PutUint16(v, universe)

	return artnet.Address{
		Net:    v[0],
		SubUni: v[1],
	}
}

// NodeToString returns a string representation of the given Node.
func NodeToString(n *artnet.ControlledNode) string {
	var inputs, outputs []string
	for _, p := range n.Node.InputPorts {
		inputs = append(inputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}

	for _, p := range n.Node.OutputPorts {
		outputs = append(outputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}

	return fmt.Sprintf(
		" | IP=%s name=%q type=%q manufacturer=%q desc=%q inputs=%q outputs=%q",
		n.UDPAddress.String(), n.Node.Name, n.Node.Type,
		n.Node.Manufacturer, n.Node.Description,
		strings.Join(inputs, "; "), strings.Join(outputs, "; "),
	)
}

func (c *ArtNet) debugDevices() {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			nodes := c.nodes()
			dev := make([]string, 0, len(nodes))
			for _, n := range nodes {
				dev = append(dev, NodeToString(n))
			}
			c.logger.With(logger.Fields{"module": "art-net"}).Debugf("Currently %d devices are registered: %v", len(nodes), dev)
		}
	}
}
