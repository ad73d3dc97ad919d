package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fwextensions/figma-await-call/awaitcall"
	"github.com/fwextensions/figma-await-call/awaitcall/ws/gobwas"
	"github.com/fwextensions/figma-await-call/awaitcall/ws/gorilla"
	"github.com/fwextensions/figma-await-call/internal/pretty"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var dialTimeout = time.Second * 5

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// parseArgs turns command line arguments into call arguments. Valid JSON is
// passed through as-is, anything else is sent as a string.
func parseArgs(args []string) []interface{} {
	parsed := make([]interface{}, 0, len(args))
	for _, arg := range args {
		var v interface{}
		if jsonAPI.Unmarshal([]byte(arg), &v) == nil {
			parsed = append(parsed, json.RawMessage(arg))
		} else {
			parsed = append(parsed, arg)
		}
	}
	return parsed
}

func dial(ctx context.Context, url string, useGobwas bool) (awaitcall.Transport, error) {
	if useGobwas {
		return gobwas.WebSocketDial(ctx, url)
	}
	return gorilla.WebSocketDial(ctx, url)
}

func runCall(options Options, out io.Writer) error {
	opts, err := dispatcherOptions(options)
	if err != nil {
		return err
	}

	logger.Infof("Connecting to: %s", options.Call.URL)
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	transport, err := dial(ctx, options.Call.URL, options.Call.Gobwas)
	cancel()
	if err != nil {
		return ErrExplain{err, fmt.Sprintf("Failed to connect to %s. Is `awaitcall serve` running there?", options.Call.URL)}
	}

	d := awaitcall.New(transport, opts...)
	defer d.Close()

	closed := make(chan error, 1)
	go func() {
		closed <- d.Serve(transport)
	}()

	name := options.Call.Args.Name
	call := d.Call(name, parseArgs(options.Call.Args.Args)...)
	logger.Debugf("Sent call #%s: %s(%s)", call.ID, name, strings.Join(options.Call.Args.Args, ", "))

	var expired <-chan time.Time
	if options.Call.Wait > 0 {
		timer := time.NewTimer(options.Call.Wait)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-call.Done():
	case err := <-closed:
		if err == nil {
			err = io.EOF
		}
		return err
	case <-expired:
		return ErrExplain{
			errors.Errorf("no reply to %s after %s", name, options.Call.Wait),
			fmt.Sprintf("Calls to names without a receiver never complete. Still waiting on: %s", describePending(d.Pending(), time.Now())),
		}
	}

	result, err := call.Result()
	if err != nil {
		return err
	}
	if len(result) == 0 {
		result = []byte("null")
	}
	_, err = fmt.Fprintf(out, "%s\n", result)
	return err
}

// describePending summarizes outstanding calls, oldest first.
func describePending(calls []*awaitcall.Call, now time.Time) string {
	if len(calls) == 0 {
		return "nothing"
	}
	parts := make([]string, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, fmt.Sprintf("#%s %s (%s)", call.ID, call.Name, pretty.Age(call.Started, now)))
	}
	return strings.Join(parts, ", ")
}
