package transport

import (
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the transport relies on.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens a raw websocket connection to the broker endpoint.
type Dialer func(url string) (Conn, error)

func websocketDialer(timeout time.Duration) Dialer {
	return func(url string) (Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: timeout}
		conn, resp, err := dialer.Dial(url, nil)
		if err != nil {
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			return nil, err
		}
		return conn, nil
	}
}
