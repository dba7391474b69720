package gateway

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/event"
	"main/pkg/exception"
)

const (
	defaultPath           = "/ws"
	defaultRequestTimeout = 5 * time.Second

	// originRemote tags events carrying data reported by the trading engine.
	originRemote = "trading_engine"
	// originClient tags events the client synthesizes about its own calls.
	originClient = "gateway"
)

// Logger is the diagnostics sink for the client.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type logsSink struct{}

func (logsSink) Infof(format string, args ...any)  { logs.Infof(format, args...) }
func (logsSink) Warnf(format string, args ...any)  { logs.Warnf(format, args...) }
func (logsSink) Errorf(format string, args ...any) { logs.Errorf(format, args...) }

// Config describes the remote trading engine endpoint.
type Config struct {
	Host   string
	Port   int
	Path   string // optional; default "/ws"
	APIKey string
	// RequestTimeout bounds every correlated request. Optional; default 5s.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	return c
}

// Validate fails fast on a bad config, before any I/O.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "gateway host is empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Wrap(exception.ErrInvalidArgument, fmt.Sprintf("gateway port %d out of range", c.Port))
	}
	if c.APIKey == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "gateway api key is empty")
	}
	if c.RequestTimeout < 0 {
		return errors.Wrap(exception.ErrInvalidArgument, "gateway request timeout must be positive")
	}
	return nil
}

func (c Config) endpoint() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   c.Path,
	}
	return u.String()
}

// Option defines the client runtime configuration.
type Option struct {
	// Logger is the diagnostics sink. Optional; default logs.
	Logger Logger
	// Dialer establishes the WebSocket connection. Optional; default websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Client owns one logical connection to the remote trading engine. It
// correlates responses to outstanding requests by id and forwards
// unsolicited push frames into the event engine.
type Client struct {
	cfg    Config
	engine *event.Engine
	logger Logger
	dialer *websocket.Dialer

	state atomic.Uint32

	lifecycle sync.Mutex
	conn      *websocket.Conn
	loopStop  context.CancelFunc
	loopDone  chan struct{}

	writeMu sync.Mutex

	reqID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[string]chan Frame
}

// NewClient validates the config and builds a client bound to the engine.
func NewClient(engine *event.Engine, cfg Config, option ...Option) (*Client, error) {
	if engine == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "gateway requires an event engine")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opt Option
	if len(option) != 0 {
		opt = option[0]
	}
	if opt.Logger == nil {
		opt.Logger = logsSink{}
	}
	if opt.Dialer == nil {
		opt.Dialer = websocket.DefaultDialer
	}

	return &Client{
		cfg:     cfg,
		engine:  engine,
		logger:  opt.Logger,
		dialer:  opt.Dialer,
		pending: make(map[string]chan Frame),
	}, nil
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) setState(s ConnState) {
	c.state.Store(uint32(s))
}

// Connect dials the engine, authenticates, and starts the receive loop.
// Any failure cleans up and leaves the client Disconnected.
func (c *Client) Connect(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.State() == StateConnected {
		c.logger.Infof("gateway already connected to %s", c.cfg.endpoint())
		return nil
	}

	// Release whatever a failed receive loop left behind before redialing.
	if c.conn != nil {
		c.cleanupLocked()
	}

	c.setState(StateConnecting)
	c.logger.Infof("gateway connecting to %s", c.cfg.endpoint())

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.endpoint(), nil)
	if err != nil {
		c.setState(StateError)
		c.cleanupLocked()
		return errors.Wrap(exception.ErrGatewayConnectFailed, fmt.Sprintf("dial %s: %v", c.cfg.endpoint(), err))
	}

	if err := c.authenticate(conn); err != nil {
		c.setState(StateError)
		_ = conn.Close()
		c.cleanupLocked()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.conn = conn
	c.loopStop = cancel
	c.loopDone = done
	c.setState(StateConnected)
	go c.receiveLoop(loopCtx, conn, done)

	c.logger.Infof("gateway connected to %s", c.cfg.endpoint())
	return nil
}

// authenticate runs the first exchange on a fresh connection, before the
// receive loop exists, so it reads the acknowledgment directly.
func (c *Client) authenticate(conn *websocket.Conn) error {
	id := c.nextID()
	payload, err := codec.Marshal(map[string]any{
		"id":      id,
		"type":    "authenticate",
		"api_key": c.cfg.APIKey,
	})
	if err != nil {
		return errors.Wrap(exception.ErrGatewayProtocol, fmt.Sprintf("marshal auth request: %v", err))
	}

	deadline := time.Now().Add(c.cfg.RequestTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrap(exception.ErrGatewayConnectFailed, fmt.Sprintf("send auth request: %v", err))
	}

	_ = conn.SetReadDeadline(deadline)
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return errors.Wrap(exception.ErrGatewayConnectFailed, fmt.Sprintf("read auth response: %v", err))
	}
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	var ack Frame
	if err := codec.Unmarshal(raw, &ack); err != nil {
		return errors.Wrap(exception.ErrGatewayConnectFailed, fmt.Sprintf("decode auth response: %v", err))
	}
	if ack.ID != "" && ack.ID != id {
		return errors.Wrap(exception.ErrGatewayConnectFailed, fmt.Sprintf("auth response id mismatch: got %q want %q", ack.ID, id))
	}
	if !ack.successful() {
		msg := ack.Message
		if msg == "" {
			msg = "authentication failed"
		}
		return errors.Wrap(exception.ErrGatewayConnectFailed, msg)
	}
	return nil
}

// Disconnect stops the receive loop, closes the transport, fails any
// still-pending requests, and forces Disconnected. Idempotent.
func (c *Client) Disconnect() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.cleanupLocked()
	c.logger.Infof("gateway disconnected")
}

func (c *Client) cleanupLocked() {
	if c.loopStop != nil {
		c.loopStop()
		c.loopStop = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.loopDone != nil {
		<-c.loopDone
		c.loopDone = nil
	}
	c.failPending()
	c.setState(StateDisconnected)
}

func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Errorf("gateway receive loop terminated: %v", err)
			c.setState(StateError)
			c.failPending()
			return
		}

		var frame Frame
		if err := codec.Unmarshal(raw, &frame); err != nil {
			c.logger.Errorf("gateway received malformed frame: %v", err)
			continue
		}

		if frame.ID != "" && c.resolve(frame) {
			continue
		}
		c.forwardPush(frame)
	}
}

// resolve hands a response to whoever is waiting on its id. The entry is
// removed before the send, so the registry releases each id exactly once.
func (c *Client) resolve(frame Frame) bool {
	c.pendingMu.Lock()
	ch, ok := c.pending[frame.ID]
	if ok {
		delete(c.pending, frame.ID)
	}
	c.pendingMu.Unlock()
	if !ok {
		return false
	}
	ch <- frame
	return true
}

func (c *Client) forwardPush(frame Frame) {
	kind, ok := pushKind(frame.Type)
	if !ok {
		c.logger.Warnf("gateway dropped unclassified frame (type %q, id %q)", frame.Type, frame.ID)
		return
	}
	c.engine.Put(event.New(kind, frame.DataMap(), originRemote))
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.pendingMu.Unlock()
}

func (c *Client) nextID() string {
	return strconv.FormatUint(c.reqID.Add(1), 10)
}

func (c *Client) currentConn() *websocket.Conn {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.conn
}

// send issues one correlated request and suspends the caller until the
// matching response arrives, the timeout elapses, or ctx is cancelled.
// The registry entry is removed in every outcome.
func (c *Client) send(ctx context.Context, req map[string]any) (Frame, error) {
	conn := c.currentConn()
	if conn == nil || c.State() != StateConnected {
		return Frame{}, errors.Wrap(exception.ErrGatewayNotConnected, "request requires an active connection")
	}

	id, _ := req["id"].(string)
	if id == "" {
		id = c.nextID()
		req["id"] = id
	}

	payload, err := codec.Marshal(req)
	if err != nil {
		return Frame{}, errors.Wrap(exception.ErrGatewayProtocol, fmt.Sprintf("marshal request %s: %v", id, err))
	}

	ch := make(chan Frame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.abandon(id)
		return Frame{}, errors.Wrap(exception.ErrGatewayConnectionClosed, fmt.Sprintf("send request %s: %v", id, err))
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case frame, ok := <-ch:
		if !ok {
			return Frame{}, errors.Wrap(exception.ErrGatewayConnectionClosed, fmt.Sprintf("connection lost awaiting request %s", id))
		}
		return frame, nil
	case <-timer.C:
		c.abandon(id)
		return Frame{}, errors.Wrap(exception.ErrGatewayRequestTimeout, fmt.Sprintf("no response for request %s within %s", id, c.cfg.RequestTimeout))
	case <-ctx.Done():
		c.abandon(id)
		return Frame{}, ctx.Err()
	}
}

func (c *Client) abandon(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}
