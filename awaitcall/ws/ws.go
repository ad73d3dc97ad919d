// Package ws serves await-call dispatchers over websocket connections.
package ws

import (
	"net/http"

	"github.com/fwextensions/figma-await-call/awaitcall"
)

// Upgrader takes an HTTP request, upgrades it to a websocket server and
// returns a transport interface. This allows switching between different
// websocket implementations.
type Upgrader interface {
	Upgrade(*http.Request, http.ResponseWriter, http.Header) (awaitcall.Transport, error)
}

var _ http.Handler = &Handler{}

// Handler upgrades each request to a websocket and serves a new Dispatcher
// over it until the connection closes. Every connection is an independent
// pair of contexts.
type Handler struct {
	Upgrader Upgrader
	// Header is added to every upgrade response, e.g. Access-Control-Allow-Origin.
	Header http.Header
	// Options configure each connection's Dispatcher.
	Options []awaitcall.Option
	// Setup registers receivers on a new connection's Dispatcher before it
	// starts serving.
	Setup func(*awaitcall.Dispatcher) error
	// Debug logs every message of every connection.
	Debug bool
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("Upgrade") == "" {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}

	header := http.Header{}
	for k, values := range h.Header {
		for _, v := range values {
			header.Add(k, v)
		}
	}
	transport, err := h.Upgrader.Upgrade(r, w, header)
	if err != nil {
		logger.Printf("websocket upgrade error from %s: %s", r.RemoteAddr, err)
		return
	}
	if h.Debug {
		transport = awaitcall.DebugTransport(r.RemoteAddr, transport)
	}

	d := awaitcall.New(transport, h.Options...)
	defer d.Close()
	if h.Setup != nil {
		if err := h.Setup(d); err != nil {
			logger.Printf("connection setup for %s failed: %s", r.RemoteAddr, err)
			return
		}
	}
	logger.Printf("serving %s", r.RemoteAddr)
	if err := d.Serve(transport); err != nil {
		logger.Printf("connection from %s closed: %s", r.RemoteAddr, err)
	}
}
