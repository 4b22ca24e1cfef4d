package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version is the current envelope version. Bump it when field names change.
const Version = 1

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
)

// Envelope is the tagged wire format shared by every message
type Envelope struct {
	Version   int             `json:"version"`
	Type      MessageType     `json:"msg_type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope wraps data in an envelope stamped with now. A nil data
// produces an envelope without a payload.
func NewEnvelope(t MessageType, data any, now time.Time) (*Envelope, error) {
	env := &Envelope{
		Version:   Version,
		Type:      t,
		Timestamp: now.UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", t, err)
		}
		env.Data = raw
	}
	return env, nil
}

// Decode unmarshals the payload into v
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s message has no data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return nil
}

// Marshal encodes an envelope
func Marshal(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes and validates an envelope
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate checks the version and message type
func (e *Envelope) Validate() error {
	if e.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, e.Version)
	}
	if !e.Type.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, e.Type)
	}
	return nil
}
