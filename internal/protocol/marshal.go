package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMessageType is returned when a client message names a type
// this server does not recognize.
var ErrUnknownMessageType = errors.New("protocol: unknown message type")

// Marshal serializes a server event to its JSON wire form.
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// typeProbe peeks at a message's discriminator without committing to a
// concrete type. It ignores every other field; unknown fields are
// rejected by the strict decode into the concrete type that follows.
type typeProbe struct {
	Type string `json:"type"`
}

// ClientMessage is the union of every inbound message, populated
// according to Type by DecodeClientMessage. Exactly one of Action,
// AnimationDone, or Ping is set.
type ClientMessage struct {
	Type          string
	Action        *ActionMessage
	AnimationDone *AnimationDoneMessage
	Ping          *PingMessage
}

// DecodeClientMessage parses and validates an inbound frame. Unknown
// types and unknown fields are both rejected, per §9's closed-schema
// policy; a malformed frame never partially mutates state.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var probe typeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("protocol: malformed message: %w", err)
	}

	switch probe.Type {
	case TypeAction:
		var m ActionMessage
		if err := strictDecode(data, &m); err != nil {
			return nil, fmt.Errorf("protocol: malformed action: %w", err)
		}
		return &ClientMessage{Type: probe.Type, Action: &m}, nil
	case TypeAnimationDone:
		var m AnimationDoneMessage
		if err := strictDecode(data, &m); err != nil {
			return nil, fmt.Errorf("protocol: malformed animation_done: %w", err)
		}
		return &ClientMessage{Type: probe.Type, AnimationDone: &m}, nil
	case TypePing:
		var m PingMessage
		if err := strictDecode(data, &m); err != nil {
			return nil, fmt.Errorf("protocol: malformed ping: %w", err)
		}
		return &ClientMessage{Type: probe.Type, Ping: &m}, nil
	default:
		return nil, ErrUnknownMessageType
	}
}

func strictDecode(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
