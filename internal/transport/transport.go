// Package transport receives pixel frames over UDP and renders them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"discoagent/internal/config"
	"discoagent/internal/frame"
	"discoagent/internal/logger"
	"discoagent/internal/pixel"
)

// TransportFailure is a socket error after which the server cannot go on.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportFailure) Unwrap() error {
	return e.Err
}

// Stats counts datagrams seen by a Server.
type Stats struct {
	Received uint64
	Accepted uint64
	Rejected uint64
}

// Server is the frame receive loop.
type Server struct {
	log    logger.Logger
	cfg    config.TransportConf
	sink   pixel.Sink
	policy pixel.AlphaPolicy
	conn   *net.UDPConn

	received uint64
	accepted uint64
	rejected uint64
}

// NewServer constructor.
func NewServer(log logger.Logger, cfg config.TransportConf, sink pixel.Sink, policy pixel.AlphaPolicy) *Server {
	if cfg.PollInterval.Duration <= 0 {
		cfg.PollInterval.Duration = 500 * time.Millisecond
	}
	if cfg.MaxPacketSize < frame.HeaderSize {
		cfg.MaxPacketSize = 4096
	}
	return &Server{
		log:    log,
		cfg:    cfg,
		sink:   sink,
		policy: policy,
	}
}

// Listen binds the data port on all interfaces.
func (s *Server) Listen() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: s.cfg.Port})
	if err != nil {
		return &TransportFailure{Op: "listen", Err: err}
	}
	s.conn = conn
	s.log.With(logger.Fields{"module": "transport"}).Infof("UDP server running on %s", conn.LocalAddr())
	return nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	return Stats{
		Received: atomic.LoadUint64(&s.received),
		Accepted: atomic.LoadUint64(&s.accepted),
		Rejected: atomic.LoadUint64(&s.rejected),
	}
}

// Serve runs until ctx is done, then closes the socket. Malformed frames are
// dropped; only socket errors end the loop early.
func (s *Server) Serve(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("transport server is not bound")
	}
	defer s.conn.Close()

	log := s.log.With(logger.Fields{"module": "transport"})
	ack := []byte(s.cfg.Ack)
	buf := make([]byte, s.cfg.MaxPacketSize)

	for {
		select {
		case <-ctx.Done():
			log.Infof("stopped: %d received, %d accepted, %d rejected",
				atomic.LoadUint64(&s.received), atomic.LoadUint64(&s.accepted), atomic.LoadUint64(&s.rejected))
			return nil
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.PollInterval.Duration)); err != nil {
			return &TransportFailure{Op: "deadline", Err: err}
		}
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return &TransportFailure{Op: "read", Err: err}
		}
		atomic.AddUint64(&s.received, 1)

		f, err := frame.Decode(buf[:n])
		if err != nil {
			atomic.AddUint64(&s.rejected, 1)
			log.Warnf("dropped datagram from %s: %v", addr, err)
			continue
		}
		atomic.AddUint64(&s.accepted, 1)

		if _, err := s.conn.WriteToUDP(ack, addr); err != nil {
			log.Errorf("failed to ack %s: %v", addr, &TransportFailure{Op: "ack", Err: err})
		}

		log.Tracef("frame %d-%d from %s", f.Header.StartIndex, f.Header.EndIndex, addr)
		if err := pixel.ApplyFrame(s.sink, f, s.policy); err != nil {
			log.Errorf("failed to show frame: %v", err)
		}
	}
}
