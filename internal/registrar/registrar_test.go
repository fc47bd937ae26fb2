package registrar

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discoagent/internal/config"
	"discoagent/internal/disco"
	"discoagent/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDesc = disco.HardwareDescriptor{ControllerID: "TEST", Device: "rpi", DiscoVersion: 1, Address: "10.0.0.5"}

func confFor(t *testing.T, server *httptest.Server, interval time.Duration) config.RegisterConf {
	t.Helper()
	host, port, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return config.RegisterConf{
		MasterHost: host,
		Port:       p,
		Path:       "/config",
		Interval:   config.Duration{Duration: interval},
		Timeout:    config.Duration{Duration: time.Second},
	}
}

func TestRegisterRetriesUntilOK(t *testing.T) {
	const interval = 50 * time.Millisecond

	var (
		mu    sync.Mutex
		times []time.Time
	)
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/config", r.URL.Path)
		var got disco.HardwareDescriptor
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, testDesc, got)

		mu.Lock()
		times = append(times, time.Now())
		n := len(times)
		mu.Unlock()

		switch n {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusCreated)
		default:
			_, _ = w.Write([]byte("Got config for TEST"))
		}
	}
	server := httptest.NewServer(http.HandlerFunc(handler))
	defer server.Close()

	r := New(logger.Discard(), confFor(t, server, interval), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Register(ctx, testDesc))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), interval)
	}
}

func TestRegisterFirstOKStops(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	r := New(logger.Discard(), confFor(t, server, time.Hour), server.Client())
	require.NoError(t, r.Register(context.Background(), testDesc))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRegisterCancelledWhileWaiting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := New(logger.Discard(), confFor(t, server, time.Hour), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := r.Register(ctx, testDesc)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegisterRetriesTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	cfg := confFor(t, server, 20*time.Millisecond)
	server.Close()

	r := New(logger.Discard(), cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Register(ctx, testDesc), context.DeadlineExceeded)
}

func TestRegistrationRejectedError(t *testing.T) {
	err := &RegistrationRejected{StatusCode: 404, Body: "nope"}
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "nope")
}
