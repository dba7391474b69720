package event

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// capture registers a channel-backed listener and returns the channel.
func capture(t *testing.T, e *Engine, kinds ...Kind) <-chan Event {
	t.Helper()
	ch := make(chan Event, 64)
	e.Register(NewListener(t.Name(), kinds, func(ev Event) {
		ch <- ev
	}))
	return ch
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %s", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngineDeliversToMatchingListeners(t *testing.T) {
	e := NewEngine()
	e.Start()
	defer e.Stop()

	orders := capture(t, e, KindOrderUpdate)
	trades := capture(t, e, KindTradeUpdate)
	both := capture(t, e, KindOrderUpdate, KindTradeUpdate)

	sent := New(KindOrderUpdate, map[string]any{"order_id": "o-1"}, "test")
	e.Put(sent)

	got := waitEvent(t, orders)
	assert.True(t, sent.Equal(got))
	assert.True(t, sent.Equal(waitEvent(t, both)))
	assertNoEvent(t, trades)
}

func TestEngineDeliversExactlyOnce(t *testing.T) {
	e := NewEngine()
	e.Start()
	defer e.Stop()

	var count atomic.Int64
	e.Register(NewListener("counter", []Kind{KindInfo}, func(Event) {
		count.Add(1)
	}))

	for i := 0; i < 10; i++ {
		e.Put(New(KindInfo, nil, "test"))
	}

	require.Eventually(t, func() bool {
		return count.Load() == 10
	}, waitTimeout, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 10, count.Load())
}

func TestEnginePanickingListenerIsIsolated(t *testing.T) {
	e := NewEngine()
	e.Start()
	defer e.Stop()

	e.Register(NewListener("bomb", []Kind{KindOrderUpdate}, func(Event) {
		panic("boom")
	}))
	healthy := capture(t, e, KindOrderUpdate)

	e.Put(New(KindOrderUpdate, map[string]any{"order_id": "o-1"}, "test"))
	e.Put(New(KindOrderUpdate, map[string]any{"order_id": "o-2"}, "test"))

	assert.Equal(t, "o-1", waitEvent(t, healthy).Payload["order_id"])
	assert.Equal(t, "o-2", waitEvent(t, healthy).Payload["order_id"])
}

func TestEngineUnregister(t *testing.T) {
	e := NewEngine()
	e.Start()
	defer e.Stop()

	removed := make(chan Event, 8)
	listener := NewListener("removed", []Kind{KindInfo}, func(ev Event) {
		removed <- ev
	})
	e.Register(listener)
	kept := capture(t, e, KindInfo)

	e.Put(New(KindInfo, map[string]any{"seq": "1"}, "test"))
	waitEvent(t, removed)
	waitEvent(t, kept)

	e.Unregister(listener)
	assert.Len(t, e.Listeners(), 1)

	e.Put(New(KindInfo, map[string]any{"seq": "2"}, "test"))
	waitEvent(t, kept)
	assertNoEvent(t, removed)
}

func TestEngineUnregisterAbsentListenerIsNoop(t *testing.T) {
	e := NewEngine()
	stranger := NewListener("stranger", []Kind{KindInfo}, nil)
	e.Register(NewListener("resident", []Kind{KindInfo}, nil))

	e.Unregister(stranger)
	assert.Len(t, e.Listeners(), 1)
}

func TestEnginePutBeforeStartIsBuffered(t *testing.T) {
	e := NewEngine()
	ch := capture(t, e, KindSystem)

	e.Put(New(KindSystem, map[string]any{"state": "boot"}, "test"))

	e.Start()
	defer e.Stop()

	assert.Equal(t, "boot", waitEvent(t, ch).Payload["state"])
}

func TestEnginePutNeverBlocksWhenFull(t *testing.T) {
	var warned atomic.Int64
	e := NewEngine(Option{QueueSize: 1, Logger: countingLogger{&warned}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			e.Put(New(KindInfo, nil, "test"))
		}
	}()

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Put blocked on a full queue")
	}
	assert.EqualValues(t, 99, warned.Load())
}

func TestEngineStartStopIdempotent(t *testing.T) {
	e := NewEngine()

	e.Start()
	e.Start()
	assert.True(t, e.IsRunning())

	e.Stop()
	e.Stop()
	assert.False(t, e.IsRunning())

	// Restartable after a stop.
	ch := capture(t, e, KindInfo)
	e.Start()
	defer e.Stop()
	e.Put(New(KindInfo, nil, "test"))
	waitEvent(t, ch)
}

type countingLogger struct {
	warns *atomic.Int64
}

func (l countingLogger) Warnf(string, ...any)  { l.warns.Add(1) }
func (l countingLogger) Errorf(string, ...any) {}
