package event

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
)

const (
	defaultQueueSize = 1024

	// stopGracePeriod bounds how long Stop waits for in-flight dispatch.
	stopGracePeriod = time.Second
)

// Logger is the diagnostics sink for the engine. The engine never logs
// through a global by itself; the default sink forwards to logs.
type Logger interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type logsSink struct{}

func (logsSink) Warnf(format string, args ...any)  { logs.Warnf(format, args...) }
func (logsSink) Errorf(format string, args ...any) { logs.Errorf(format, args...) }

// Option defines the engine runtime configuration.
type Option struct {
	// QueueSize is the event queue capacity. Optional; default 1024.
	QueueSize int
	// Logger is the diagnostics sink. Optional; default logs.
	Logger Logger
}

type entry struct {
	listener Listener
	accepts  map[Kind]struct{}
}

// Engine distributes events to registered listeners from a single
// dispatch goroutine. Listener handlers run sequentially per event;
// a failing handler never affects the others or the loop.
type Engine struct {
	logger Logger
	queue  chan Event

	mu        sync.Mutex
	listeners []entry

	lifecycle sync.Mutex
	running   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// NewEngine builds an engine. The queue capacity and logger come from the
// optional Option.
func NewEngine(option ...Option) *Engine {
	var opt Option
	if len(option) != 0 {
		opt = option[0]
	}
	if opt.QueueSize <= 0 {
		opt.QueueSize = defaultQueueSize
	}
	if opt.Logger == nil {
		opt.Logger = logsSink{}
	}
	return &Engine{
		logger: opt.Logger,
		queue:  make(chan Event, opt.QueueSize),
	}
}

// Register adds a listener. Safe to call concurrently with dispatch.
func (e *Engine) Register(l Listener) {
	if l == nil {
		return
	}
	accepts := make(map[Kind]struct{})
	for _, k := range l.Kinds() {
		accepts[k] = struct{}{}
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, entry{listener: l, accepts: accepts})
	e.mu.Unlock()
}

// Unregister removes a listener by identity. No-op when absent.
func (e *Engine) Unregister(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.listeners {
		if e.listeners[i].listener == l {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Listeners returns a snapshot of the registered listeners.
func (e *Engine) Listeners() []Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Listener, 0, len(e.listeners))
	for _, ent := range e.listeners {
		out = append(out, ent.listener)
	}
	return out
}

// Put enqueues an event without blocking the caller. When the queue is
// full the event is dropped with a warning instead of stalling producers.
func (e *Engine) Put(ev Event) {
	select {
	case e.queue <- ev:
	default:
		e.logger.Warnf("event queue full, dropping event kind %s", ev.Kind)
	}
}

// Start launches the dispatch loop. Calling it while running is a no-op.
func (e *Engine) Start() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.running.Load() {
		return
	}
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	e.running.Store(true)
	go e.run(e.stop, e.done)
}

// Stop signals the loop to exit and waits up to stopGracePeriod for
// in-flight dispatch to finish. Best-effort: returns regardless.
func (e *Engine) Stop() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if !e.running.Load() {
		return
	}
	close(e.stop)
	select {
	case <-e.done:
	case <-time.After(stopGracePeriod):
		e.logger.Warnf("event engine stop timed out after %s", stopGracePeriod)
	}
	e.running.Store(false)
}

// IsRunning reports whether the dispatch loop is active.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

func (e *Engine) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case ev := <-e.queue:
			e.dispatch(ev)
		}
	}
}

func (e *Engine) dispatch(ev Event) {
	e.mu.Lock()
	snapshot := append([]entry(nil), e.listeners...)
	e.mu.Unlock()

	for _, ent := range snapshot {
		if _, ok := ent.accepts[ev.Kind]; !ok {
			continue
		}
		e.invoke(ent.listener, ev)
	}
}

func (e *Engine) invoke(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("listener %s failed on %s event: %v", l.Name(), ev.Kind, r)
		}
	}()
	l.OnEvent(ev)
}
