package awaitcall

import (
	"io"
	"sync"
)

// Pipe returns two connected in-memory ports. A message written to one is
// copied and queued for the other, and delivered in FIFO order either to
// ReadMessage or to the OnMessage callback. Closing either port closes both.
func Pipe() (*Port, *Port) {
	a, b := newPort(), newPort()
	a.peer, b.peer = b, a
	return a, b
}

var _ Transport = &Port{}

// Port is one end of a Pipe. It models a host messaging API where the
// sender posts a value and the receiver is notified through an event.
type Port struct {
	peer *Port

	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]byte
	closed bool
}

func newPort() *Port {
	p := &Port{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// WriteMessage posts a copy of msg to the other port.
func (p *Port) WriteMessage(msg []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}
	return p.peer.deliver(append([]byte(nil), msg...))
}

func (p *Port) deliver(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return io.ErrClosedPipe
	}
	p.queue = append(p.queue, msg)
	p.cond.Signal()
	return nil
}

// ReadMessage blocks until a message is queued. Once the port is closed and
// drained it returns io.EOF.
func (p *Port) ReadMessage() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, io.EOF
	}
	msg := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return msg, nil
}

// OnMessage subscribes fn to inbound messages. fn is called from a single
// delivery goroutine, once per message, until the port is closed. Only one
// subscriber should be attached.
func (p *Port) OnMessage(fn func(msg []byte)) {
	go func() {
		for {
			msg, err := p.ReadMessage()
			if err != nil {
				return
			}
			fn(msg)
		}
	}()
}

func (p *Port) close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Close closes both ends of the pipe.
func (p *Port) Close() error {
	p.close()
	p.peer.close()
	return nil
}

// ServePipe sets up two dispatchers connected by a Pipe, each delivering its
// inbound messages through the port's event hook. Useful for testing.
// Receivers still need to be registered.
func ServePipe(opts ...Option) (*Dispatcher, *Dispatcher) {
	p1, p2 := Pipe()
	d1 := New(p1, opts...)
	d2 := New(p2, opts...)
	p1.OnMessage(d1.Handle)
	p2.OnMessage(d2.Handle)
	return d1, d2
}
