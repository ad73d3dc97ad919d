package main

import (
	"context"
	"time"

	"github.com/fwextensions/figma-await-call/awaitcall"
	"github.com/pkg/errors"
)

// maxSleep bounds how long the sleep receiver will block a handler.
const maxSleep = time.Minute

// Builtins are the receivers served by `awaitcall serve`.
type Builtins struct{}

// Echo returns its argument.
func (b *Builtins) Echo(v interface{}) interface{} {
	return v
}

func (b *Builtins) Add(x, y float64) float64 {
	return x + y
}

func (b *Builtins) Concat(head, tail string) string {
	return head + tail
}

// Sleep waits for ms milliseconds before replying with ms.
func (b *Builtins) Sleep(ms int) int {
	d := time.Duration(ms) * time.Millisecond
	if d > maxSleep {
		d = maxSleep
	}
	time.Sleep(d)
	return ms
}

// Fail always fails with msg.
func (b *Builtins) Fail(msg string) error {
	if msg == "" {
		msg = "failed"
	}
	return errors.New(msg)
}

// Names lists the receivers registered on the serving side.
func (b *Builtins) Names(ctx context.Context) ([]string, error) {
	d, err := awaitcall.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return d.Names(), nil
}

func registerBuiltins(d *awaitcall.Dispatcher) error {
	return d.ReceiveAll("", &Builtins{})
}
