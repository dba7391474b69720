package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCopiesPayload(t *testing.T) {
	payload := map[string]any{
		"price": "100.5",
		"meta":  map[string]any{"venue": "binance"},
		"fills": []any{map[string]any{"qty": "1"}},
	}

	e := New(KindMarketData, payload, "test")

	payload["price"] = "999"
	payload["meta"].(map[string]any)["venue"] = "mutated"
	payload["fills"].([]any)[0].(map[string]any)["qty"] = "42"

	assert.Equal(t, "100.5", e.Payload["price"])
	assert.Equal(t, "binance", e.Payload["meta"].(map[string]any)["venue"])
	assert.Equal(t, "1", e.Payload["fills"].([]any)[0].(map[string]any)["qty"])
}

func TestEventEqual(t *testing.T) {
	a := New(KindOrderUpdate, map[string]any{"order_id": "1"}, "a")
	b := New(KindOrderUpdate, map[string]any{"order_id": "1"}, "b")
	c := New(KindOrderUpdate, map[string]any{"order_id": "2"}, "a")
	d := New(KindTradeUpdate, map[string]any{"order_id": "1"}, "a")

	assert.True(t, a.Equal(b), "origin and timestamp are excluded from equality")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
}

func TestEventEqualEmptyPayload(t *testing.T) {
	a := New(KindSystem, nil, "")
	b := New(KindSystem, map[string]any{}, "")
	assert.True(t, a.Equal(b))
}

func TestParseKindRoundTrip(t *testing.T) {
	for k := _kind_beg + 1; k < _kind_end; k++ {
		parsed, ok := ParseKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, parsed)
	}

	_, ok := ParseKind("nope")
	assert.False(t, ok)
}
