package disco

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"discoagent/internal/config"
	"discoagent/internal/logger"
)

const maxMessageSize = 4096

// Listener runs a Responder on a UDP socket.
type Listener struct {
	log       logger.Logger
	cfg       config.DiscoConf
	responder *Responder
	conn      *net.UDPConn
}

// NewListener constructor.
func NewListener(log logger.Logger, cfg config.DiscoConf, desc HardwareDescriptor) (*Listener, error) {
	r, err := NewResponder(desc)
	if err != nil {
		return nil, err
	}
	if cfg.PollInterval.Duration <= 0 {
		cfg.PollInterval.Duration = 500 * time.Millisecond
	}
	return &Listener{log: log, cfg: cfg, responder: r}, nil
}

// Listen binds the discovery port on all interfaces.
func (l *Listener) Listen() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: l.cfg.Port})
	if err != nil {
		return fmt.Errorf("failed to bind discovery port %d: %w", l.cfg.Port, err)
	}
	l.conn = conn
	l.responder.Start()
	l.log.With(logger.Fields{"module": "disco"}).Infof("waiting for scan on %s", conn.LocalAddr())
	return nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// State returns the handshake state.
func (l *Listener) State() State {
	return l.responder.State()
}

// Wait answers scans until a master connects or ctx is done.
func (l *Listener) Wait(ctx context.Context) (*Result, error) {
	if l.conn == nil {
		return nil, errors.New("discovery listener is not bound")
	}
	log := l.log.With(logger.Fields{"module": "disco"})

	buf := make([]byte, maxMessageSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(l.cfg.PollInterval.Duration)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("discovery read: %w", err)
		}

		reply, err := l.responder.Handle(buf[:n], addr)
		var parseErr *ConfigParseError
		switch {
		case errors.As(err, &parseErr):
			log.Warnf("bad connect from %s: %v", addr, err)
			continue
		case err != nil:
			log.Debugf("ignored datagram from %s: %v", addr, err)
			continue
		}

		if reply != nil {
			log.Infof("scan from %s, sending descriptor", addr)
			if _, err := l.conn.WriteToUDP(reply, addr); err != nil {
				log.Errorf("failed to answer %s: %v", addr, err)
			}
		}

		if res := l.responder.Result(); res != nil {
			log.Infof("connected to master %s", res.Master)
			log.Debugf("connect config: %v", res.Config)
			return res, nil
		}
	}
}

// NotifyReady tells the master the agent is streaming and closes the
// discovery socket.
func (l *Listener) NotifyReady() error {
	res := l.responder.Result()
	if res == nil {
		return errors.New("ready before connect")
	}
	if l.conn == nil {
		return errors.New("discovery socket already closed")
	}
	err := NotifyReady(l.conn, res.Master)
	l.conn = nil
	if err != nil {
		return err
	}
	l.log.With(logger.Fields{"module": "disco"}).Infof("sent ready to %s", res.Master)
	return nil
}

// Close releases the socket if it is still open.
func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}
