// Package wstransport implements transport.Transport over a single
// WebSocket connection, framing each model.Message with
// pkg/wireformat and sending it as one binary WebSocket message. Used
// for browser- or firewall-friendly peers where a raw gRPC
// bidi-stream isn't reachable.
package wstransport

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/joynr-go/joynr/pkg/joynrlog"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/wireformat"
)

var logger = joynrlog.For("wstransport")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Transport wraps a single established *websocket.Conn, either dialed
// out or accepted from an http.Handler.
type Transport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	handler func(model.Message)
	closed  bool
}

func wrap(conn *websocket.Conn) *Transport {
	t := &Transport{conn: conn}
	go t.readLoop()
	return t
}

// Dial opens a client-side WebSocket connection to url.
func Dial(url string) (*Transport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return wrap(conn), nil
}

// Upgrade accepts an incoming HTTP request as a server-side WebSocket
// connection. Call from an http.Handler.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Transport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return wrap(conn), nil
}

// SetReceiveHandler implements transport.Transport.
func (t *Transport) SetReceiveHandler(handler func(model.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// Send implements transport.Transport.
func (t *Transport) Send(msg model.Message) error {
	b, err := wireformat.EncodeMessage(msg)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (t *Transport) readLoop() {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			logger.Infof("websocket connection closed: %v", err)
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		msg, err := wireformat.DecodeMessage(data)
		if err != nil {
			logger.Errorf("failed to decode inbound websocket frame: %v", err)
			continue
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()
		if handler != nil {
			handler(msg)
		}
	}
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return t.conn.Close()
}

// ErrNotUpgraded names the failure of a request that is not a
// websocket upgrade. Upgrade does not return it; it returns the
// upgrader's own error.
var ErrNotUpgraded = errors.New("wstransport: request is not a websocket upgrade")
