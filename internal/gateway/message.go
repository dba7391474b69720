package gateway

import (
	"github.com/bytedance/sonic"

	"main/internal/event"
)

var codec = sonic.ConfigFastest

const statusSuccess = "success"

// Frame is the generic inbound message. A response carries the id of the
// request that caused it; a push frame carries a type instead.
type Frame struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (f Frame) successful() bool {
	return f.Status == statusSuccess
}

// DataMap returns the data field as an object, or an empty map when the
// peer sent none.
func (f Frame) DataMap() map[string]any {
	if m, ok := f.Data.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// DataList returns the data field as a list of objects.
func (f Frame) DataList() []map[string]any {
	items, ok := f.Data.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// RemoteError is returned when the peer answers a request with a
// non-success status. It carries the peer's message verbatim.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "gateway: remote error: " + e.Message
}

func remoteError(frame Frame) error {
	msg := frame.Message
	if msg == "" {
		msg = "unknown error"
	}
	return &RemoteError{Message: msg}
}

// pushKind maps an unsolicited frame type to its event kind.
func pushKind(frameType string) (event.Kind, bool) {
	switch frameType {
	case "order_update":
		return event.KindOrderUpdate, true
	case "trade":
		return event.KindTradeUpdate, true
	case "order_book_update", "ticker_update":
		return event.KindMarketData, true
	case "error":
		return event.KindError, true
	case "info":
		return event.KindInfo, true
	default:
		return 0, false
	}
}
