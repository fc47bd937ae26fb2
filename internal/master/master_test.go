package master

import (
	"context"
	"net"
	"testing"
	"time"

	"discoagent/internal/disco"
	"discoagent/internal/frame"
	"discoagent/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent answers the handshake and acks every datagram on one socket.
func fakeAgent(t *testing.T) (*net.UDPConn, <-chan []byte) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	got := make(chan []byte, 16)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			msg := append([]byte(nil), buf[:n]...)
			got <- msg
			switch {
			case string(msg) == disco.DiscoverMessage:
				reply, _ := disco.EncodeFound(disco.HardwareDescriptor{ControllerID: "FAKE", Device: "test", DiscoVersion: 1})
				_, _ = conn.WriteToUDP(reply, addr)
			case len(msg) > len(disco.ConnectMessage) && string(msg[:len(disco.ConnectMessage)]) == disco.ConnectMessage:
				_, _ = conn.WriteToUDP([]byte(disco.ReadyMessage), addr)
			default:
				_, _ = conn.WriteToUDP([]byte("Hello there!"), addr)
			}
		}
	}()
	return conn, got
}

func TestHandshakeAndFrame(t *testing.T) {
	agent, got := fakeAgent(t)
	port := agent.LocalAddr().(*net.UDPAddr).Port

	c, err := Dial(logger.Discard(), "127.0.0.1", port, port, 500*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	desc, err := c.Handshake(ctx, map[string]int{"pixels": 1})
	require.NoError(t, err)
	assert.Equal(t, "FAKE", desc.ControllerID)

	assert.Equal(t, disco.DiscoverMessage, string(<-got))
	assert.Equal(t, disco.ConnectMessage+`{"pixels":1}`, string(<-got))

	ack, err := c.SendFrame(4, []frame.RGBA{{R: 1, A: 1}})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", ack)

	f, err := frame.Decode(<-got)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), f.Header.StartIndex)
	assert.Equal(t, uint32(5), f.Header.EndIndex)
}

func TestHandshakeCancelled(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	defer conn.Close() // bound but silent

	c, err := Dial(logger.Discard(), "127.0.0.1", port, port, 20*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.Handshake(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
