// Package transport owns the physical connection to the chat broker: the
// websocket dial, the STOMP handshake, heartbeats, and the connection state
// machine with its fixed-delay reconnect.
package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"

	"github.com/2025-GNU-PBL/FRONTEND-sub001/pkg/logger"
)

// State is the connection lifecycle state of a Handle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	// HeartbeatInterval is the bidirectional STOMP heartbeat period the broker
	// expects. Fixed by the wire contract.
	HeartbeatInterval = 4 * time.Second

	// ReconnectDelay is the fixed delay between drop detection and the next
	// retry. The counterpart server expects a fixed delay, not backoff.
	ReconnectDelay = 3 * time.Second

	handshakeTimeout = 10 * time.Second

	// readTimeout bounds the silence tolerated before the connection is
	// treated as dropped: two missed heartbeats plus grace.
	readTimeout = 2*HeartbeatInterval + time.Second

	stompVersion = "1.2"
)

// ErrNotConnected is returned by operations that require a live connection.
var ErrNotConnected = errors.New("not connected")

var heartbeatPayload = []byte("\n")

// Handle owns one physical broker connection.
//
// All public methods are safe for concurrent use. Event callbacks must be
// registered before Connect and are invoked from the transport's internal
// goroutines; they must not block.
type Handle struct {
	url       string
	host      string
	dial      Dialer
	clock     Clock
	afterFunc func(d time.Duration, fn func()) *time.Timer
	newTicker func(d time.Duration) (<-chan time.Time, func())

	mu             sync.Mutex
	state          State
	conn           Conn
	gen            int
	nextSubID      int
	reconnectTimer *time.Timer

	// writeMu serializes websocket writes (the heartbeat loop and callers).
	writeMu sync.Mutex

	onFrame   func(destination, subscription string, body []byte)
	onConnect func()
	onError   func(error)
	onClose   func(error)
}

// NewHandle creates a transport handle for the given broker websocket URL.
func NewHandle(brokerURL string) *Handle {
	host := ""
	if u, err := url.Parse(brokerURL); err == nil {
		host = u.Hostname()
	}
	return &Handle{
		url:       brokerURL,
		host:      host,
		dial:      websocketDialer(handshakeTimeout),
		clock:     RealClock{},
		afterFunc: time.AfterFunc,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// OnFrame registers the inbound MESSAGE frame callback.
func (h *Handle) OnFrame(fn func(destination, subscription string, body []byte)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFrame = fn
}

// OnConnect registers a callback invoked after every successful handshake,
// including reconnects.
func (h *Handle) OnConnect(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = fn
}

// OnError registers a callback for broker protocol errors. Errors are
// forwarded verbatim; the transport owns any retry.
func (h *Handle) OnError(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = fn
}

// OnClose registers a callback invoked when an established connection drops.
// Explicit Disconnect does not fire it.
func (h *Handle) OnClose(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClose = fn
}

// Connect dials the broker and performs the STOMP handshake. Calling it while
// already connected (or while a connect or reconnect is in flight) is a no-op.
func (h *Handle) Connect() error {
	h.mu.Lock()
	if h.state != StateDisconnected {
		state := h.state
		h.mu.Unlock()
		logger.Debugf("transport: connect ignored, state=%s", state)
		return nil
	}
	h.state = StateConnecting
	h.mu.Unlock()

	conn, err := h.openSession()
	if err != nil {
		h.mu.Lock()
		h.state = StateDisconnected
		h.mu.Unlock()
		h.notifyError(err)
		return err
	}

	h.startSession(conn)
	return nil
}

// Disconnect tears the connection down and cancels any pending reconnect.
// Safe to call when already disconnected.
func (h *Handle) Disconnect() error {
	h.mu.Lock()
	if h.state == StateDisconnected {
		h.mu.Unlock()
		logger.Debugf("transport: disconnect ignored, already disconnected")
		return nil
	}
	if h.reconnectTimer != nil {
		h.reconnectTimer.Stop()
		h.reconnectTimer = nil
	}
	conn := h.conn
	h.conn = nil
	h.gen++ // invalidates the read and heartbeat loops
	h.state = StateDisconnected
	h.mu.Unlock()

	if conn != nil {
		// Best effort; the broker treats a closed socket the same way.
		_ = h.writeConn(conn, frame.New(frame.DISCONNECT))
		_ = conn.Close()
	}
	return nil
}

// State returns the current connection state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// IsConnected reports whether the handshake has completed and the connection
// is live.
func (h *Handle) IsConnected() bool {
	return h.State() == StateConnected
}

// Subscribe opens a STOMP subscription to a destination and returns the
// subscription id token.
func (h *Handle) Subscribe(destination string) (string, error) {
	h.mu.Lock()
	if h.state != StateConnected || h.conn == nil {
		h.mu.Unlock()
		return "", ErrNotConnected
	}
	h.nextSubID++
	id := fmt.Sprintf("sub-%d", h.nextSubID)
	conn := h.conn
	h.mu.Unlock()

	f := frame.New(frame.SUBSCRIBE,
		frame.Id, id,
		frame.Destination, destination,
		frame.Ack, "auto",
	)
	if err := h.writeConn(conn, f); err != nil {
		return "", fmt.Errorf("subscribe %s: %w", destination, err)
	}
	logger.Debugf("transport: subscribed %s as %s", destination, id)
	return id, nil
}

// Unsubscribe closes a subscription previously opened with Subscribe.
func (h *Handle) Unsubscribe(id string) error {
	h.mu.Lock()
	if h.state != StateConnected || h.conn == nil {
		h.mu.Unlock()
		return ErrNotConnected
	}
	conn := h.conn
	h.mu.Unlock()

	f := frame.New(frame.UNSUBSCRIBE, frame.Id, id)
	if err := h.writeConn(conn, f); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", id, err)
	}
	return nil
}

// Send publishes a body to a destination. Fire and forget: a nil error means
// the frame was handed to the socket, not that the broker stored it.
func (h *Handle) Send(destination, contentType string, body []byte) error {
	h.mu.Lock()
	if h.state != StateConnected || h.conn == nil {
		h.mu.Unlock()
		return ErrNotConnected
	}
	conn := h.conn
	h.mu.Unlock()

	f := frame.New(frame.SEND,
		frame.Destination, destination,
		frame.ContentType, contentType,
	)
	f.Body = body
	if err := h.writeConn(conn, f); err != nil {
		return fmt.Errorf("send to %s: %w", destination, err)
	}
	return nil
}

// openSession dials the websocket and runs the CONNECT/CONNECTED exchange.
func (h *Handle) openSession() (Conn, error) {
	conn, err := h.dial(h.url)
	if err != nil {
		return nil, fmt.Errorf("broker dial failed: %w", err)
	}

	connect := frame.New(frame.CONNECT,
		frame.AcceptVersion, stompVersion,
		frame.Host, h.host,
		frame.HeartBeat, "4000,4000",
	)
	if err := h.writeConn(conn, connect); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("broker handshake failed: %w", err)
	}

	deadline := h.clock.Now().Add(handshakeTimeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("broker handshake failed: %w", err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("broker handshake failed: %w", err)
		}
		frames, err := decodeFrames(data)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("broker handshake failed: %w", err)
		}
		if len(frames) == 0 {
			continue // heartbeat
		}
		f := frames[0]
		switch f.Command {
		case frame.CONNECTED:
			return conn, nil
		case frame.ERROR:
			_ = conn.Close()
			return nil, fmt.Errorf("broker rejected connect: %s", frameErrorText(f))
		default:
			_ = conn.Close()
			return nil, fmt.Errorf("unexpected %s frame during handshake", f.Command)
		}
	}
}

// startSession installs an authenticated connection and starts its loops.
// Returns false when an explicit Disconnect raced the handshake.
func (h *Handle) startSession(conn Conn) bool {
	h.mu.Lock()
	if h.state == StateDisconnected {
		h.mu.Unlock()
		_ = conn.Close()
		return false
	}
	h.conn = conn
	h.gen++
	gen := h.gen
	h.state = StateConnected
	h.reconnectTimer = nil
	h.mu.Unlock()

	go h.readLoop(conn, gen)
	go h.heartbeatLoop(conn, gen)

	h.notifyConnect()
	return true
}

func (h *Handle) readLoop(conn Conn, gen int) {
	for {
		if err := conn.SetReadDeadline(h.clock.Now().Add(readTimeout)); err != nil {
			h.handleDrop(conn, gen, fmt.Errorf("set read deadline: %w", err))
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.handleDrop(conn, gen, err)
			return
		}
		frames, err := decodeFrames(data)
		if err != nil {
			logger.Warnf("transport: dropping undecodable frame: %v", err)
			continue
		}
		for _, f := range frames {
			h.dispatchFrame(f)
		}
	}
}

func (h *Handle) dispatchFrame(f *frame.Frame) {
	switch f.Command {
	case frame.MESSAGE:
		destination := f.Header.Get(frame.Destination)
		subscription := f.Header.Get(frame.Subscription)
		h.mu.Lock()
		onFrame := h.onFrame
		h.mu.Unlock()
		if onFrame != nil {
			onFrame(destination, subscription, f.Body)
		}
	case frame.ERROR:
		h.notifyError(fmt.Errorf("broker error: %s", frameErrorText(f)))
	case frame.RECEIPT:
		logger.Tracef("transport: receipt %s", f.Header.Get(frame.ReceiptId))
	default:
		logger.Tracef("transport: ignoring %s frame", f.Command)
	}
}

func (h *Handle) heartbeatLoop(conn Conn, gen int) {
	ticks, stop := h.newTicker(HeartbeatInterval)
	defer stop()
	for range ticks {
		h.mu.Lock()
		alive := gen == h.gen && h.state == StateConnected
		h.mu.Unlock()
		if !alive {
			return
		}
		h.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, heartbeatPayload)
		h.writeMu.Unlock()
		if err != nil {
			h.handleDrop(conn, gen, fmt.Errorf("heartbeat write: %w", err))
			return
		}
	}
}

// handleDrop moves an established connection into RECONNECTING. Stale loops
// from superseded connections are ignored via the generation counter.
func (h *Handle) handleDrop(conn Conn, gen int, cause error) {
	h.mu.Lock()
	if gen != h.gen || h.state != StateConnected {
		h.mu.Unlock()
		return
	}
	h.state = StateReconnecting
	h.conn = nil
	h.gen++
	h.mu.Unlock()

	_ = conn.Close()
	logger.Warnf("transport: connection dropped: %v", cause)
	h.notifyClose(cause)
	h.scheduleReconnect()
}

func (h *Handle) scheduleReconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateReconnecting {
		return
	}
	h.reconnectTimer = h.afterFunc(ReconnectDelay, h.reconnect)
}

func (h *Handle) reconnect() {
	h.mu.Lock()
	if h.state != StateReconnecting {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	conn, err := h.openSession()
	if err != nil {
		// Stay in RECONNECTING and keep retrying at the fixed delay.
		logger.Warnf("transport: reconnect attempt failed: %v", err)
		h.scheduleReconnect()
		return
	}
	h.startSession(conn)
}

func (h *Handle) writeConn(conn Conn, f *frame.Frame) error {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return err
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, buf.Bytes())
}

func (h *Handle) notifyConnect() {
	h.mu.Lock()
	fn := h.onConnect
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *Handle) notifyError(err error) {
	h.mu.Lock()
	fn := h.onError
	h.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (h *Handle) notifyClose(err error) {
	h.mu.Lock()
	fn := h.onClose
	h.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// decodeFrames parses every STOMP frame contained in one websocket message.
// A message holding only heartbeat newlines yields an empty slice.
func decodeFrames(data []byte) ([]*frame.Frame, error) {
	reader := frame.NewReader(bytes.NewReader(data))
	var frames []*frame.Frame
	for {
		f, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return nil, err
		}
		if f == nil {
			continue // heartbeat
		}
		frames = append(frames, f)
	}
}

func frameErrorText(f *frame.Frame) string {
	if msg := f.Header.Get(frame.Message); msg != "" {
		return msg
	}
	return string(bytes.TrimSpace(f.Body))
}
