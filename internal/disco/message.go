package disco

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire literals of the discovery handshake.
const (
	DiscoverMessage = "DISCO DISCOVER\n"
	FoundMessage    = "DISCO FOUND\n"
	ConnectMessage  = "DISCO CONNECT\n"
	ReadyMessage    = "DISCO READY\n"
)

// HardwareDescriptor announces what this agent is.
type HardwareDescriptor struct {
	ControllerID string `json:"controllerID"`
	Device       string `json:"device"`
	DiscoVersion int    `json:"discoVersion"`
	Address      string `json:"address,omitempty"`
}

// ConfigParseError is returned when a connect message carries a body that is
// not valid JSON.
type ConfigParseError struct {
	Err error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("connect config parse: %v", e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}

// EncodeFound builds the reply to a discover message.
func EncodeFound(d HardwareDescriptor) ([]byte, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return append([]byte(FoundMessage), body...), nil
}

// DecodeFound parses a found reply. It is the master side of EncodeFound.
func DecodeFound(b []byte) (HardwareDescriptor, error) {
	var d HardwareDescriptor
	if !bytes.HasPrefix(b, []byte(FoundMessage)) {
		return d, fmt.Errorf("%w: %q", ErrUnexpectedMessage, b)
	}
	if err := json.Unmarshal(b[len(FoundMessage):], &d); err != nil {
		return d, fmt.Errorf("found descriptor: %w", err)
	}
	return d, nil
}

// EncodeConnect builds a connect message carrying cfg.
func EncodeConnect(cfg interface{}) ([]byte, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return append([]byte(ConnectMessage), body...), nil
}

// parseConnect returns the config of a connect message. Any JSON value is
// accepted, null included. ok is false when b is not a connect message at all.
func parseConnect(b []byte) (cfg interface{}, ok bool, err error) {
	if !bytes.HasPrefix(b, []byte(ConnectMessage)) {
		return nil, false, nil
	}
	if err := json.Unmarshal(b[len(ConnectMessage):], &cfg); err != nil {
		return nil, true, &ConfigParseError{Err: err}
	}
	return cfg, true, nil
}
