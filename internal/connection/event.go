package connection

import (
	"encoding/json"
	"time"
)

// ParseEvent decodes a raw inbound frame.
//
// Any valid JSON value is accepted. Objects have their discriminator and
// well-known fields extracted leniently: a field of the wrong JSON type is
// left at its zero value rather than rejecting the frame.
func ParseEvent(data []byte, receivedAt time.Time) (Event, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Event{}, &ParseError{Payload: data, Err: err}
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	ev := Event{
		Raw:        raw,
		ReceivedAt: receivedAt,
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return ev, nil
	}

	ev.Type, _ = obj["type"].(string)
	ev.Text, _ = obj["text"].(string)
	ev.IsBot, _ = obj["isBot"].(bool)
	ev.Task, _ = obj["task"].(string)
	ev.Message, _ = obj["message"].(string)

	return ev, nil
}

// metricType bounds the msg_type label to the known discriminators.
func metricType(t string) string {
	switch t {
	case EventMessage, EventNotification, EventConfirmation, EventError:
		return t
	default:
		return "other"
	}
}
