// Package ws is the websocket transport: frame codec, authentication
// handshake and the per-connection read loop.
package ws

import (
	"encoding/json"
	"fmt"

	"styx-chat/domain/event"
)

// frame is the wire shape of every websocket message, both directions:
// a type discriminator plus a type-specific data object.
type frame struct {
	Type event.Type      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeInbound parses one client frame into its envelope. Only the
// client-to-server types are accepted.
func DecodeInbound(raw []byte) (event.Envelope, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch f.Type {
	case event.TypeSendMessage:
		var payload event.SendMessage
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", f.Type, err)
		}
		return payload, nil
	case event.TypeTyping:
		var payload event.Typing
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", f.Type, err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unknown inbound frame type %q", f.Type)
	}
}

// Encode wraps an outbound envelope into its wire frame.
func Encode(e event.Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Type: e.EventType(), Data: data})
}
