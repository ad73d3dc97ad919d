package gobwas

import (
	"net"
	"testing"
)

func TestWebSocketTransport(t *testing.T) {
	c1, c2 := net.Pipe()

	clientTransport := clientWebSocketTransport(c1)
	serverTransport := serverWebSocketTransport(c2)

	go clientTransport.WriteMessage([]byte(`{"kind":"foo"}`))
	msg, err := serverTransport.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != `{"kind":"foo"}` {
		t.Errorf("wrong message: %s", msg)
	}

	go serverTransport.WriteMessage([]byte(`{"kind":"bar"}`))
	msg, err = clientTransport.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != `{"kind":"bar"}` {
		t.Errorf("wrong message: %s", msg)
	}
}
