package transporttest

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

// ErrConnClosed is returned by ScriptedConn reads and writes after Close.
var ErrConnClosed = errors.New("scripted conn closed")

// ScriptedConn is an in-memory broker connection for transport tests.
//
// Inbound traffic is scripted with Deliver; outbound frames are recorded and
// can be inspected with Writes or SentFrames. Closing the conn fails the next
// read, which is how tests simulate a transport drop.
type ScriptedConn struct {
	mu        sync.Mutex
	inbound   chan []byte
	writes    [][]byte
	closed    chan struct{}
	closeOnce sync.Once
}

// NewScriptedConn returns an open scripted connection.
func NewScriptedConn() *ScriptedConn {
	return &ScriptedConn{
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

// Deliver queues one websocket message for the reader.
func (c *ScriptedConn) Deliver(data []byte) {
	c.inbound <- data
}

// DeliverFrame encodes a STOMP frame and queues it for the reader.
func (c *ScriptedConn) DeliverFrame(f *frame.Frame) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		panic(err)
	}
	c.Deliver(buf.Bytes())
}

// ReadMessage implements transport.Conn.
func (c *ScriptedConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return 1, data, nil
	case <-c.closed:
		return 0, nil, ErrConnClosed
	}
}

// WriteMessage implements transport.Conn.
func (c *ScriptedConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

// SetReadDeadline implements transport.Conn. Deadlines are not simulated.
func (c *ScriptedConn) SetReadDeadline(time.Time) error { return nil }

// Close implements transport.Conn. Idempotent.
func (c *ScriptedConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Writes returns copies of every raw websocket message written so far.
func (c *ScriptedConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// SentFrames decodes the recorded writes into STOMP frames, skipping
// heartbeat newlines.
func (c *ScriptedConn) SentFrames() []*frame.Frame {
	var frames []*frame.Frame
	for _, data := range c.Writes() {
		reader := frame.NewReader(bytes.NewReader(data))
		for {
			f, err := reader.Read()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				panic(err)
			}
			if f == nil {
				continue
			}
			frames = append(frames, f)
		}
	}
	return frames
}
