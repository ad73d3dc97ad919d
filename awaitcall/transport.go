package awaitcall

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"github.com/fwextensions/figma-await-call/internal/pretty"
)

// MessageReader blocks until the next inbound message arrives.
type MessageReader interface {
	ReadMessage() ([]byte, error)
}

// MessageWriter hands a message to the other context. It does not wait for
// any acknowledgement.
type MessageWriter interface {
	WriteMessage(msg []byte) error
}

// Transport is the message channel between the two contexts.
type Transport interface {
	MessageReader
	MessageWriter
	io.Closer
}

var _ Transport = &ioTransport{}

// IOTransport returns a Transport that frames messages as lines over a
// stream, such as stdio or a net.Conn. Every non-empty line is a message;
// lines that aren't envelopes are left for the Dispatcher to drop.
func IOTransport(rwc io.ReadWriteCloser) Transport {
	return &ioTransport{
		reader: bufio.NewReader(rwc),
		writer: rwc,
		closer: rwc,
	}
}

type ioTransport struct {
	muRead sync.Mutex
	reader *bufio.Reader

	muWrite sync.Mutex
	writer  io.Writer
	closer  io.Closer
}

func (t *ioTransport) ReadMessage() ([]byte, error) {
	t.muRead.Lock()
	defer t.muRead.Unlock()
	for {
		line, err := t.reader.ReadBytes('\n')
		msg := bytes.TrimRight(line, "\r\n")
		if len(msg) > 0 {
			// A final line without a newline is still a message.
			return msg, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (t *ioTransport) WriteMessage(msg []byte) error {
	t.muWrite.Lock()
	defer t.muWrite.Unlock()
	framed := make([]byte, 0, len(msg)+1)
	framed = append(framed, msg...)
	framed = append(framed, '\n')
	_, err := t.writer.Write(framed)
	return err
}

func (t *ioTransport) Close() error {
	return t.closer.Close()
}

// DebugTransport wraps a Transport and logs every message that passes
// through it, prefixed with name.
func DebugTransport(name string, t Transport) Transport {
	return &debugTransport{Transport: t, name: name}
}

type debugTransport struct {
	Transport
	name string
}

func (t *debugTransport) ReadMessage() ([]byte, error) {
	msg, err := t.Transport.ReadMessage()
	if err != nil {
		logger.Printf("%s <- read error: %s", t.name, err)
		return msg, err
	}
	logger.Printf("%s <- %s", t.name, pretty.Abbrev(string(msg), 512, 500))
	return msg, nil
}

func (t *debugTransport) WriteMessage(msg []byte) error {
	logger.Printf("%s -> %s", t.name, pretty.Abbrev(string(msg), 512, 500))
	return t.Transport.WriteMessage(msg)
}
