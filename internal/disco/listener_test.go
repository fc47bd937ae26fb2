package disco

import (
	"context"
	"net"
	"testing"
	"time"

	"discoagent/internal/config"
	"discoagent/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListener(t *testing.T) *Listener {
	t.Helper()
	l, err := NewListener(logger.Discard(), config.DiscoConf{
		Port:         0,
		PollInterval: config.Duration{Duration: 20 * time.Millisecond},
	}, testDesc)
	require.NoError(t, err)
	require.NoError(t, l.Listen())
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func dialListener(t *testing.T, l *Listener) *net.UDPConn {
	t.Helper()
	port := l.Addr().(*net.UDPAddr).Port
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *net.UDPConn) string {
	t.Helper()
	buf := make([]byte, maxMessageSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestListenerHandshake(t *testing.T) {
	l := newTestListener(t)
	assert.Equal(t, AwaitingScan, l.State())
	conn := dialListener(t, l)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type waitResult struct {
		res *Result
		err error
	}
	done := make(chan waitResult, 1)
	go func() {
		res, err := l.Wait(ctx)
		done <- waitResult{res, err}
	}()

	_, err := conn.Write([]byte("garbage"))
	require.NoError(t, err)
	_, err = conn.Write([]byte(DiscoverMessage))
	require.NoError(t, err)

	desc, err := DecodeFound([]byte(read(t, conn)))
	require.NoError(t, err)
	assert.Equal(t, testDesc, desc)

	msg, err := EncodeConnect(map[string]string{"mode": "stream"})
	require.NoError(t, err)
	_, err = conn.Write(msg)
	require.NoError(t, err)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, conn.LocalAddr().(*net.UDPAddr).Port, r.res.Master.(*net.UDPAddr).Port)
	assert.Equal(t, map[string]interface{}{"mode": "stream"}, r.res.Config)

	require.NoError(t, l.NotifyReady())
	assert.Equal(t, ReadyMessage, read(t, conn))
}

func TestListenerWaitCancelled(t *testing.T) {
	l := newTestListener(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := l.Wait(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not observe cancellation")
	}
}

func TestNotifyReadyBeforeConnect(t *testing.T) {
	l := newTestListener(t)
	assert.Error(t, l.NotifyReady())
}
