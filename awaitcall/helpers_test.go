package awaitcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
)

type FruitService struct{}

func (f *FruitService) Apple() string {
	return "Apple"
}

func (f *FruitService) Banana() error {
	return nil
}

func (f *FruitService) Cherry() (string, error) {
	return "Cherry", nil
}

func (f *FruitService) Durian() error {
	return errors.New("durian failure")
}

func (f *FruitService) Basket(fruits []string, count int) map[string]int {
	basket := map[string]int{}
	for _, fruit := range fruits {
		basket[fruit] = count
	}
	return basket
}

type Pinger struct{}

func (p *Pinger) Ping() string {
	return "ping"
}

// PingPong calls "pong" on whoever called it.
func (p *Pinger) PingPong(ctx context.Context) (string, error) {
	d, err := FromContext(ctx)
	if err != nil {
		return "", err
	}
	var pong string
	if err := d.Invoke(ctx, &pong, "pong"); err != nil {
		return "", err
	}
	return "ping" + pong, nil
}

type Ponger struct{}

func (p *Ponger) Pong() string {
	return "pong"
}

type Fib struct{}

func (f *Fib) Fibonacci(ctx context.Context, a int, b int, steps int) (int, error) {
	d, err := FromContext(ctx)
	if err != nil {
		return 0, err
	}
	a, b = b, a+b
	if steps <= 0 {
		return b, nil
	}
	if err := d.Invoke(ctx, &b, "fibonacci", a, b, steps-1); err != nil {
		return 0, err
	}
	return b, nil
}

// connectedPorts returns two dispatchers over a Pipe along with the raw
// ports, so tests can inject traffic of their own.
func connectedPorts(opts ...Option) (d1 *Dispatcher, d2 *Dispatcher, p1 *Port, p2 *Port) {
	p1, p2 = Pipe()
	d1 = New(p1, opts...)
	d2 = New(p2, opts...)
	p1.OnMessage(d1.Handle)
	p2.OnMessage(d2.Handle)
	return d1, d2, p1, p2
}

// awaitTimeout waits a bounded time for a call. It exists only to assert
// that calls never settle; the package itself has no timeouts.
func awaitTimeout(call *Call, result interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return call.Await(ctx, result)
}

func assertNeverSettles(t *testing.T, call *Call) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := call.Await(ctx, nil); err != context.DeadlineExceeded {
		t.Errorf("call %s(%v) settled: got: %v; want %v", call.Name, call.Args, err, context.DeadlineExceeded)
	}
	if call.Settled() {
		t.Errorf("call %s(%v) unexpectedly settled", call.Name, call.Args)
	}
}

func assertEqualJSON(t *testing.T, a, b interface{}, format string, args ...interface{}) {
	t.Helper()

	aa, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	bb, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(aa, bb) {
		prefix := fmt.Sprintf(format, args...)
		t.Errorf(prefix+"\n   got: %s\n  want: %s", aa, bb)
	}
}
