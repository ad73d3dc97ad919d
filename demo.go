package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fwextensions/figma-await-call/awaitcall"
)

// demoWait bounds each step of the demo so a broken build fails instead of
// hanging.
var demoWait = time.Second * 5

// runDemo plays both sides of a channel in-process: a "ui" context and a
// "plugin" context, connected by a Pipe.
func runDemo(options Options, out io.Writer) error {
	opts, err := dispatcherOptions(options)
	if err != nil {
		return err
	}
	ui, plugin := awaitcall.ServePipe(opts...)
	defer ui.Close()

	if err := plugin.Receive("add", func(a, b int) int { return a + b }); err != nil {
		return err
	}
	if err := plugin.Receive("divide", func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, fmt.Errorf("cannot divide %v by zero", a)
		}
		return a / b, nil
	}); err != nil {
		return err
	}
	if err := ui.Receive("selection", func() []string { return []string{"Frame 1", "Rectangle 2"} }); err != nil {
		return err
	}
	if err := plugin.Receive("describeSelection", func(ctx context.Context) (string, error) {
		d, err := awaitcall.FromContext(ctx)
		if err != nil {
			return "", err
		}
		var selection []string
		if err := d.Invoke(ctx, &selection, "selection"); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d nodes selected: %v", len(selection), selection), nil
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), demoWait)
	defer cancel()

	var sum int
	if err := ui.Invoke(ctx, &sum, "add", 2, 3); err != nil {
		return err
	}
	fmt.Fprintf(out, "ui: add(2, 3) = %d\n", sum)

	var quotient float64
	err = ui.Invoke(ctx, &quotient, "divide", 1, 0)
	fmt.Fprintf(out, "ui: divide(1, 0) failed: %v\n", err)

	var description string
	if err := ui.Invoke(ctx, &description, "describeSelection"); err != nil {
		return err
	}
	fmt.Fprintf(out, "ui: describeSelection() = %q\n", description)

	call := ui.Call("missing")
	fmt.Fprintf(out, "ui: missing() has no receiver and stays pending as #%s (%d pending)\n", call.ID, len(ui.Pending()))
	return nil
}
