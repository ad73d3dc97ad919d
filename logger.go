package main

import (
	"io/ioutil"
	stdlog "log"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
)

var logger *golog.Logger

// invocationLog receives a line per handled invocation when it is set.
var invocationLog *stdlog.Logger

// SetLogger overrides the main logger of this command.
func SetLogger(l *golog.Logger) {
	logger = l
}

func init() {
	// Set a default null logger
	SetLogger(golog.New(ioutil.Discard, log.Debug))
}
