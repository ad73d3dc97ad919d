// Package gorilla implements the websocket transport using Gorilla's
// websocket library.
package gorilla

import (
	"context"
	"net/http"
	"sync"

	"github.com/fwextensions/figma-await-call/awaitcall"
	"github.com/gorilla/websocket"
)

// WebSocketDial returns a client-side Transport connected to url.
func WebSocketDial(ctx context.Context, url string) (awaitcall.Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

var _ awaitcall.Transport = &wsTransport{}

type wsTransport struct {
	muWrite sync.Mutex
	muRead  sync.Mutex
	conn    *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	t.muRead.Lock()
	defer t.muRead.Unlock()
	_, msg, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (t *wsTransport) WriteMessage(msg []byte) error {
	t.muWrite.Lock()
	defer t.muWrite.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, msg)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// Upgrader upgrades an HTTP request to a WebSocket connection and returns
// the corresponding transport.
type Upgrader struct {
	Upgrader websocket.Upgrader
	// AllowAnyOrigin skips the same-origin check, for pages served from
	// elsewhere (such as sandboxed iframes with a "null" origin).
	AllowAnyOrigin bool
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter, h http.Header) (awaitcall.Transport, error) {
	upgrader := u.Upgrader
	if u.AllowAnyOrigin {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	conn, err := upgrader.Upgrade(w, r, h)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}
