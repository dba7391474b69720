package event

import (
	"fmt"
	"reflect"
	"time"
)

// Event is the unit passed through the engine. The payload is copied at
// construction, so later mutation by the producer never reaches a consumer.
type Event struct {
	Kind      Kind
	Payload   map[string]any
	CreatedAt time.Time
	Origin    string
}

// New builds an event with its own copy of the payload.
func New(kind Kind, payload map[string]any, origin string) Event {
	return Event{
		Kind:      kind,
		Payload:   copyPayload(payload),
		CreatedAt: time.Now(),
		Origin:    origin,
	}
}

// Equal compares kind and payload. CreatedAt and Origin are observability
// metadata and excluded.
func (e Event) Equal(other Event) bool {
	if e.Kind != other.Kind {
		return false
	}
	if len(e.Payload) == 0 && len(other.Payload) == 0 {
		return true
	}
	return reflect.DeepEqual(e.Payload, other.Payload)
}

func (e Event) String() string {
	if e.Origin == "" {
		return fmt.Sprintf("Event(kind: %s, payload: %v, time: %s)", e.Kind, e.Payload, e.CreatedAt.Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("Event(kind: %s, payload: %v, time: %s, origin: %s)", e.Kind, e.Payload, e.CreatedAt.Format(time.RFC3339Nano), e.Origin)
}

func copyPayload(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return copyPayload(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = copyValue(typed[i])
		}
		return out
	default:
		return v
	}
}
