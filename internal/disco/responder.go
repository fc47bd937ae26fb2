// Package disco implements the agent side of the UDP discovery handshake.
//
// The master broadcasts DISCO DISCOVER, the agent answers DISCO FOUND with its
// hardware descriptor, the master follows with DISCO CONNECT and a JSON config.
// Once the agent is able to stream it sends DISCO READY back to the master.
package disco

import (
	"bytes"
	"errors"
	"fmt"
	"net"
)

// ErrUnexpectedMessage is returned for datagrams that do not fit the current
// state. They are not fatal.
var ErrUnexpectedMessage = errors.New("unexpected discovery message")

// State of the handshake.
type State int

const (
	Idle State = iota
	AwaitingScan
	AwaitingConnect
	Connected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingScan:
		return "awaiting-scan"
	case AwaitingConnect:
		return "awaiting-connect"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is what a completed handshake yields.
type Result struct {
	Master net.Addr
	Config interface{} // decoded JSON, the master decides its shape
}

// Responder is the handshake state machine. It does no I/O.
type Responder struct {
	found  []byte
	state  State
	result *Result
}

// NewResponder creates an idle responder that will announce desc.
func NewResponder(desc HardwareDescriptor) (*Responder, error) {
	found, err := EncodeFound(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return &Responder{found: found}, nil
}

// Start moves an idle responder to AwaitingScan. Called once the socket is bound.
func (r *Responder) Start() {
	if r.state == Idle {
		r.state = AwaitingScan
	}
}

// State returns the current state.
func (r *Responder) State() State {
	return r.state
}

// Result returns the handshake result, nil until Connected.
func (r *Responder) Result() *Result {
	return r.result
}

// Handle feeds one datagram received from addr into the state machine. A non
// nil reply must be sent back to addr. Errors never move the state.
func (r *Responder) Handle(b []byte, from net.Addr) ([]byte, error) {
	switch r.state {
	case AwaitingScan:
		if !bytes.Equal(b, []byte(DiscoverMessage)) {
			return nil, fmt.Errorf("%w in %s: %q", ErrUnexpectedMessage, r.state, b)
		}
		return r.scanned(), nil

	case AwaitingConnect:
		// A repeated scan restarts the handshake.
		if bytes.Equal(b, []byte(DiscoverMessage)) {
			return r.scanned(), nil
		}
		cfg, ok, err := parseConnect(b)
		if !ok {
			return nil, fmt.Errorf("%w in %s: %q", ErrUnexpectedMessage, r.state, b)
		}
		if err != nil {
			return nil, err
		}
		r.result = &Result{Master: from, Config: cfg}
		r.state = Connected
		return nil, nil

	default:
		return nil, fmt.Errorf("%w in %s", ErrUnexpectedMessage, r.state)
	}
}

func (r *Responder) scanned() []byte {
	r.state = AwaitingConnect
	return r.found
}
