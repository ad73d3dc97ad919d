package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fwextensions/figma-await-call/awaitcall"
	flags "github.com/jessevdk/go-flags"
)

func TestParseArgs(t *testing.T) {
	got := parseArgs([]string{"2", "3.5", "-1e3", "true", "hello", `"quoted"`, `[1,2]`, "{not json", "null"})
	want := []interface{}{
		json.RawMessage("2"),
		json.RawMessage("3.5"),
		json.RawMessage("-1e3"),
		json.RawMessage("true"),
		"hello",
		json.RawMessage(`"quoted"`),
		json.RawMessage(`[1,2]`),
		"{not json",
		json.RawMessage("null"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got: %#v; want %#v", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		Args []string
		Help bool
	}{
		{[]string{"--help"}, true},
		{[]string{"call", "--help"}, true},
		{[]string{"serve", "--bogus"}, false},
		{[]string{"call"}, false},
		{[]string{"--ids"}, false},
	}

	for i, tc := range cases {
		options := Options{}
		parser := flags.NewParser(&options, flags.HelpFlag)
		parser.SubcommandsOptional = true
		_, err := parser.ParseArgs(tc.Args)
		if err == nil {
			t.Errorf("case #%d: expected a parse error for %q", i, tc.Args)
			continue
		}
		if got := isHelp(err); got != tc.Help {
			t.Errorf("case #%d: got: %v; want %v (%s)", i, got, tc.Help, err)
		}
	}
}

func TestBuiltins(t *testing.T) {
	caller, server := awaitcall.ServePipe()
	defer caller.Close()
	if err := registerBuiltins(server); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var sum float64
	if err := caller.Invoke(ctx, &sum, "add", 2, 3.5); err != nil {
		t.Fatal(err)
	}
	if sum != 5.5 {
		t.Errorf("got: %v; want %v", sum, 5.5)
	}

	var s string
	if err := caller.Invoke(ctx, &s, "concat", "foo", "bar"); err != nil {
		t.Fatal(err)
	}
	if s != "foobar" {
		t.Errorf("got: %q; want %q", s, "foobar")
	}

	var echoed map[string]interface{}
	if err := caller.Invoke(ctx, &echoed, "echo", map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	if want := map[string]interface{}{"a": float64(1)}; !reflect.DeepEqual(echoed, want) {
		t.Errorf("got: %v; want %v", echoed, want)
	}

	var names []string
	if err := caller.Invoke(ctx, &names, "names"); err != nil {
		t.Fatal(err)
	}
	if want := []string{"add", "concat", "echo", "fail", "names", "sleep"}; !reflect.DeepEqual(names, want) {
		t.Errorf("got: %q; want %q", names, want)
	}

	err := caller.Invoke(ctx, nil, "fail", "on purpose")
	if remoteErr, ok := err.(*awaitcall.RemoteError); !ok || remoteErr.Message != "on purpose" {
		t.Errorf("got: %#v; want RemoteError %q", err, "on purpose")
	}
}

func TestLoadConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "awaitcall")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.toml")
	contents := `
channel = "figma"
ids = "uuid"

[serve]
bind = ":9000"
allow_origin = "*"
metrics = true
rate = 10.5

[call]
url = "ws://example.com/"
wait = "3s"
`
	if err := ioutil.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Channel: "figma",
		IDs:     "uuid",
		Serve:   ServeConfig{Bind: ":9000", AllowOrigin: "*", Metrics: true, Rate: 10.5},
		Call:    CallConfig{URL: "ws://example.com/", Wait: "3s"},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("got: %+v; want %+v", cfg, want)
	}

	invalid := map[string]string{
		"unknown.toml": `colour = "blue"`,
		"wait.toml":    "[call]\nwait = \"soon\"",
		"syntax.toml":  `channel = `,
	}
	for name, contents := range invalid {
		p := filepath.Join(dir, name)
		if err := ioutil.WriteFile(p, []byte(contents), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := loadConfig(p); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	if _, err := loadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Errorf("expected error for an explicit missing config")
	}
}

func TestApplyConfig(t *testing.T) {
	options := Options{}
	options.Serve.Bind = ":7000"
	options.Call.Wait = time.Second
	cfg := Config{
		IDs:   "uuid",
		Serve: ServeConfig{Bind: ":9000", Gobwas: true, Rate: 2},
		Call:  CallConfig{Wait: "3s"},
	}
	applyConfig(&options, cfg)

	if got, want := options.Serve.Bind, ":7000"; got != want {
		t.Errorf("bind: got: %q; want %q", got, want)
	}
	if got, want := options.Call.Wait, time.Second; got != want {
		t.Errorf("wait: got: %s; want %s", got, want)
	}
	if got, want := options.Channel, awaitcall.DefaultChannel; got != want {
		t.Errorf("channel: got: %q; want %q", got, want)
	}
	if got, want := options.IDs, "uuid"; got != want {
		t.Errorf("ids: got: %q; want %q", got, want)
	}
	if got, want := options.Call.URL, defaultURL; got != want {
		t.Errorf("url: got: %q; want %q", got, want)
	}
	if !options.Serve.Gobwas || options.Serve.Rate != 2 {
		t.Errorf("serve options not applied: %+v", options.Serve)
	}

	if _, err := dispatcherOptions(Options{IDs: "sequential"}); err == nil {
		t.Errorf("expected error for unknown id generator")
	}
}

func TestRunDemo(t *testing.T) {
	options := Options{}
	applyConfig(&options, Config{})

	var out bytes.Buffer
	if err := runDemo(options, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"add(2, 3) = 5",
		"divide(1, 0) failed: cannot divide 1 by zero",
		`"2 nodes selected: [Frame 1 Rectangle 2]"`,
		"missing() has no receiver and stays pending",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestServeAndCall(t *testing.T) {
	for _, useGobwas := range []bool{false, true} {
		options := Options{}
		options.IDs = "uuid"
		options.Serve.Metrics = true
		options.Serve.Gobwas = useGobwas
		options.Serve.AllowOrigin = "*"
		applyConfig(&options, Config{})

		handler, err := newServeHandler(options)
		if err != nil {
			t.Fatal(err)
		}
		srv := httptest.NewServer(handler)

		options.Call.URL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
		options.Call.Gobwas = useGobwas
		options.Call.Args.Name = "add"
		options.Call.Args.Args = []string{"2", "3"}

		var out bytes.Buffer
		if err := runCall(options, &out); err != nil {
			t.Fatalf("gobwas=%v: %s", useGobwas, err)
		}
		if got, want := out.String(), "5\n"; got != want {
			t.Errorf("gobwas=%v: got: %q; want %q", useGobwas, got, want)
		}

		options.Call.Args.Name = "fail"
		options.Call.Args.Args = []string{"nope"}
		err = runCall(options, ioutil.Discard)
		if remoteErr, ok := err.(*awaitcall.RemoteError); !ok || remoteErr.ErrorCode() != awaitcall.ErrCodeHandler {
			t.Errorf("gobwas=%v: got: %#v; want handler RemoteError", useGobwas, err)
		}

		options.Call.Args.Name = "missing"
		options.Call.Args.Args = nil
		options.Call.Wait = 50 * time.Millisecond
		err = runCall(options, ioutil.Discard)
		if explained, ok := err.(ErrExplain); !ok || !strings.Contains(explained.Explanation, "missing") {
			t.Errorf("gobwas=%v: got: %v; want explanation listing the pending call", useGobwas, err)
		}

		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		body, err := ioutil.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(body), `awaitcall_invocations_total{name="add"} 1`) {
			t.Errorf("gobwas=%v: metrics missing add invocation:\n%s", useGobwas, body)
		}

		srv.Close()
	}
}
