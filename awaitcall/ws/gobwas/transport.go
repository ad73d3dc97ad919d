// Package gobwas implements the websocket transport using gobwas/ws.
package gobwas

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/fwextensions/figma-await-call/awaitcall"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WebSocketDial returns a client-side Transport connected to url.
func WebSocketDial(ctx context.Context, url string) (awaitcall.Transport, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	if br != nil {
		// The server sent frames along with the handshake response.
		conn = bufferedConn{Conn: conn, r: br}
	}
	return clientWebSocketTransport(conn), nil
}

type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func clientWebSocketTransport(conn net.Conn) awaitcall.Transport {
	return &wsTransport{conn: conn, state: ws.StateClientSide}
}

// serverWebSocketTransport returns a server-side Transport over an
// upgraded connection.
func serverWebSocketTransport(conn net.Conn) awaitcall.Transport {
	return &wsTransport{conn: conn, state: ws.StateServerSide}
}

var _ awaitcall.Transport = &wsTransport{}

type wsTransport struct {
	muRead  sync.Mutex
	muWrite sync.Mutex
	conn    net.Conn
	state   ws.State
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	t.muRead.Lock()
	defer t.muRead.Unlock()
	// Control frames are answered by wsutil; only data frames are returned.
	msg, _, err := wsutil.ReadData(t.conn, t.state)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (t *wsTransport) WriteMessage(msg []byte) error {
	t.muWrite.Lock()
	defer t.muWrite.Unlock()
	return wsutil.WriteMessage(t.conn, t.state, ws.OpText, msg)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// Upgrader upgrades an HTTP request to a WebSocket connection and returns
// the corresponding transport.
type Upgrader struct {
	Upgrader ws.HTTPUpgrader
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter, h http.Header) (awaitcall.Transport, error) {
	upgrader := u.Upgrader
	if len(h) > 0 {
		upgrader.Header = h
	}
	conn, _, _, err := upgrader.Upgrade(r, w)
	if err != nil {
		return nil, err
	}
	return serverWebSocketTransport(conn), nil
}
