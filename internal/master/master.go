// Package master is a minimal master-side client: it performs the discovery
// handshake against one agent and streams frames to it.
package master

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"discoagent/internal/disco"
	"discoagent/internal/frame"
	"discoagent/internal/logger"
)

// Client talks to a single agent.
type Client struct {
	log     logger.Logger
	disco   *net.UDPConn
	data    *net.UDPConn
	timeout time.Duration
}

// Dial opens the discovery and data sockets towards host.
func Dial(log logger.Logger, host string, discoPort, dataPort int, timeout time.Duration) (*Client, error) {
	discoConn, err := dial(host, discoPort)
	if err != nil {
		return nil, err
	}
	dataConn, err := dial(host, dataPort)
	if err != nil {
		discoConn.Close()
		return nil, err
	}
	return &Client{log: log, disco: discoConn, data: dataConn, timeout: timeout}, nil
}

func dial(host string, port int) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("invalid agent address: %w", err)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return conn, nil
}

// Close closes both sockets.
func (c *Client) Close() error {
	return errors.Join(c.disco.Close(), c.data.Close())
}

// Handshake scans until the agent answers, connects with cfg and waits for
// the agent to report ready.
func (c *Client) Handshake(ctx context.Context, cfg interface{}) (disco.HardwareDescriptor, error) {
	log := c.log.With(logger.Fields{"module": "master"})

	var desc disco.HardwareDescriptor
	for {
		if err := ctx.Err(); err != nil {
			return desc, err
		}
		if _, err := c.disco.Write([]byte(disco.DiscoverMessage)); err != nil {
			log.Debugf("scan: %v", err)
		}
		msg, err := c.read(c.disco)
		if err != nil {
			log.Debugf("no answer yet: %v", err)
			var netErr net.Error
			if !errors.As(err, &netErr) || !netErr.Timeout() {
				// refused: the agent is not bound yet
				pause(ctx, c.timeout/10)
			}
			continue
		}
		desc, err = disco.DecodeFound(msg)
		if err != nil {
			log.Debugf("ignored: %v", err)
			continue
		}
		break
	}
	log.Infof("found %s (%s, v%d) at %s", desc.ControllerID, desc.Device, desc.DiscoVersion, desc.Address)

	connect, err := disco.EncodeConnect(cfg)
	if err != nil {
		return desc, err
	}
	if _, err := c.disco.Write(connect); err != nil {
		return desc, fmt.Errorf("connect: %w", err)
	}

	deadline := time.Now().Add(10 * c.timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return desc, err
		}
		msg, err := c.read(c.disco)
		if err != nil {
			continue
		}
		if bytes.Equal(msg, []byte(disco.ReadyMessage)) {
			log.Info("agent ready")
			return desc, nil
		}
	}
	return desc, errors.New("agent never reported ready")
}

// SendFrame sends pixels starting at start and returns the agent's ack.
func (c *Client) SendFrame(start uint32, pixels []frame.RGBA) (string, error) {
	b, err := frame.Encode(start, 1, pixels)
	if err != nil {
		return "", err
	}
	if _, err := c.data.Write(b); err != nil {
		return "", fmt.Errorf("send frame: %w", err)
	}
	ack, err := c.read(c.data)
	if err != nil {
		return "", fmt.Errorf("no ack: %w", err)
	}
	return string(ack), nil
}

func (c *Client) read(conn *net.UDPConn) ([]byte, error) {
	buf := make([]byte, 4096)
	if err := conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
