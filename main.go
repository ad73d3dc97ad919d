package main

import (
	"fmt"
	"io"
	stdlog "log"
	"net"
	"os"
	"time"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
	"github.com/fwextensions/figma-await-call/awaitcall"
	"github.com/fwextensions/figma-await-call/awaitcall/ws"
	flags "github.com/jessevdk/go-flags"
)

// Version of the binary, assigned during build.
var Version string = "dev"

// Options contains the flag options
type Options struct {
	Verbose []bool `short:"v" long:"verbose" description:"Show verbose logging."`
	Version bool   `long:"version" description:"Print version and exit."`
	Config  string `long:"config" description:"Path to a TOML config file. Defaults to config.toml in the XDG config dir, if present."`
	Channel string `long:"channel" description:"Channel marker stamped on every envelope. (default: await-call)"`
	IDs     string `long:"ids" description:"Correlation id generator. (counter|uuid)"`

	Serve struct {
		Bind        string  `long:"bind" description:"Address and port to listen on. (default: localhost:8080)"`
		TLSHost     string  `long:"tlshost" description:"Acquire an ACME certificate for this host and serve over TLS."`
		AllowOrigin string  `long:"allow-origin" description:"Include Access-Control-Allow-Origin header for CORS."`
		Metrics     bool    `long:"metrics" description:"Expose Prometheus metrics on /metrics."`
		Gobwas      bool    `long:"gobwas" description:"Use the gobwas/ws websocket implementation instead of gorilla."`
		Rate        float64 `long:"rate" description:"Maximum invocations per second across all connections. (0 is unlimited)"`
	} `command:"serve" description:"Serve the built-in receivers over websocket."`

	Call struct {
		URL    string        `long:"url" description:"Websocket URL of an awaitcall server. (default: ws://localhost:8080/)"`
		Wait   time.Duration `long:"wait" description:"Stop waiting for the reply after this long. (0 waits forever)"`
		Gobwas bool          `long:"gobwas" description:"Use the gobwas/ws websocket implementation instead of gorilla."`
		Args   struct {
			Name string   `positional-arg-name:"name" description:"Receiver name" required:"yes"`
			Args []string `positional-arg-name:"args" description:"Arguments as JSON literals, bare words are strings"`
		} `positional-args:"yes"`
	} `command:"call" description:"Call a receiver on an awaitcall server and print its result."`

	Demo struct{} `command:"demo" description:"Run both ends of a channel in-process and call between them."`
}

const callUsage = `Examples:
* Add two numbers on a local server:
  $ awaitcall call add 2 3

* Strings can be bare words or JSON:
  $ awaitcall call concat hello '" world"'

* Give up waiting after five seconds:
  $ awaitcall call --wait 5s sleep 10000
`

var logLevels = []log.Level{
	log.Warning,
	log.Info,
	log.Debug,
}

func subcommand(cmd string, options Options) error {
	cfg, err := loadConfig(options.Config)
	if err != nil {
		return ErrExplain{err, "Failed to load the config file. Fix it or point --config at another one."}
	}
	applyConfig(&options, cfg)

	switch cmd {
	case "serve":
		return runServe(options)
	case "call":
		return runCall(options, os.Stdout)
	case "demo":
		return runDemo(options, os.Stdout)
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

func main() {
	options := Options{}
	parser := flags.NewParser(&options, flags.Default)
	parser.SubcommandsOptional = true
	p, err := parser.Parse()
	if err != nil {
		if p == nil {
			fmt.Println(err)
		}
		if !isHelp(err) {
			os.Exit(1)
		}
		if parser.Active != nil {
			// Print additional usage help when run with --help
			switch parser.Active.Name {
			case "call":
				exit(0, callUsage)
			}
		}
		return
	}

	if options.Version {
		fmt.Println(Version)
		os.Exit(0)
	}

	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	// Figure out the log level
	numVerbose := len(options.Verbose)
	if numVerbose >= len(logLevels) {
		numVerbose = len(logLevels) - 1
	}

	logLevel := logLevels[numVerbose]
	logWriter := os.Stderr

	SetLogger(golog.New(logWriter, logLevel))
	if logLevel == log.Debug {
		// Enable logging from subpackages
		awaitcall.SetLogger(logWriter)
		ws.SetLogger(logWriter)
		invocationLog = stdlog.New(logWriter, "[invoke] ", stdlog.Ldate|stdlog.Ltime)
	}

	cmd := parser.Active.Name
	err = subcommand(cmd, options)
	if err == nil {
		return
	}

	if err == io.EOF {
		exit(3, "Connection closed.\n")
	}

	switch typedErr := err.(type) {
	case net.Error:
		err = ErrExplain{err, `Disconnected from server unexpectedly. Could be a connectivity issue or the server is down. Try again?`}
	case interface{ ErrorCode() int }:
		switch typedErr.ErrorCode() {
		case awaitcall.ErrCodeInvalidParams:
			err = ErrExplain{err, `The receiver rejected the arguments. Check their number and types.`}
		case awaitcall.ErrCodeRateLimited:
			err = ErrExplain{err, `The server is rate limiting invocations. Try again later.`}
		case awaitcall.ErrCodeHandler:
			err = ErrExplain{err, `The receiver failed while handling the call.`}
		default:
			err = ErrExplain{err, fmt.Sprintf(`Unexpected remote error occurred: %T (code %d).`, typedErr, typedErr.ErrorCode())}
		}
	case ErrExplain:
		// All good.
	default:
		err = ErrExplain{err, fmt.Sprintf(`Error type %T is missing an explanation.`, err)}
	}

	exit(2, "%s failed: %s\n", cmd, err)
}

// isHelp reports whether a parse error is just a --help request.
func isHelp(err error) bool {
	flagErr, ok := err.(*flags.Error)
	return ok && flagErr.Type == flags.ErrHelp
}

func exit(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

// ErrExplain annotates an error with an explanation.
type ErrExplain struct {
	Cause       error
	Explanation string
}

func (err ErrExplain) Error() string {
	return fmt.Sprintf("%s\n -> %s", err.Cause, err.Explanation)
}
