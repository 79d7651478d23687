// Package protocol defines the JSON wire format spoken by lampadaire devices
// and viewer clients, and the helpers to decode and normalize it.
package protocol

import (
	"encoding/json"
	"errors"
	"strconv"
)

// ErrMalformed is returned when a frame cannot be decoded as a JSON object.
var ErrMalformed = errors.New("malformed message")

// Known inbound message types.
const (
	TypeRegister    = "register"
	TypeStateUpdate = "state_update"
	TypeAlert       = "alert"
	TypeCommand     = "command"
	TypeAuth        = "auth"
)

// Peer roles as they appear on the wire.
const (
	RoleConsumer = "consumer"
	RoleProducer = "producer"
)

// Message is one decoded inbound frame. The raw bytes are kept so fan-out
// forwards the payload exactly as received.
type Message struct {
	Type   string
	fields map[string]any
	raw    []byte
}

// Decode parses a frame into a Message. A frame that is not a JSON object
// yields ErrMalformed; a missing or non-string "type" yields an empty Type,
// which the router treats as an unrecognized message.
func Decode(data []byte) (*Message, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, ErrMalformed
	}
	if fields == nil {
		return nil, ErrMalformed
	}

	msg := &Message{fields: fields, raw: data}
	if t, ok := fields["type"].(string); ok {
		msg.Type = t
	}
	return msg, nil
}

// Raw returns the original frame bytes.
func (m *Message) Raw() []byte {
	return m.raw
}

// String returns the named top-level field as a string. JSON numbers are
// formatted, so devices sending `"id": 7` and `"id": "7"` are equivalent.
func (m *Message) String(key string) string {
	return AsString(m.fields[key])
}

// Object returns the named top-level field as a JSON object, or nil.
func (m *Message) Object(key string) map[string]any {
	obj, _ := m.fields[key].(map[string]any)
	return obj
}

// ProducerID extracts the producer identifier for this message type:
// the nested lampadaire id for state updates, the lampadaire_id field for
// alerts (top-level or nested), the plain id field otherwise.
func (m *Message) ProducerID() string {
	switch m.Type {
	case TypeStateUpdate:
		if lamp := m.Object("lampadaire"); lamp != nil {
			return AsString(lamp["id"])
		}
		return ""
	case TypeAlert:
		if id := m.String("lampadaire_id"); id != "" {
			return id
		}
		if alert := m.Object("alert"); alert != nil {
			return AsString(alert["lampadaire_id"])
		}
		return ""
	default:
		return m.String("id")
	}
}

// AsString coerces a decoded JSON scalar to its string form. Non-scalars
// and nil yield "".
func AsString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case json.Number:
		return value.String()
	default:
		return ""
	}
}
