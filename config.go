package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/OpenPeeDeeP/xdg"
	"github.com/fwextensions/figma-await-call/awaitcall"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const (
	defaultBind = "localhost:8080"
	defaultURL  = "ws://localhost:8080/"
)

// Config is the optional TOML config file. Flags take precedence over
// values set here.
type Config struct {
	Channel string      `toml:"channel"`
	IDs     string      `toml:"ids"`
	Serve   ServeConfig `toml:"serve"`
	Call    CallConfig  `toml:"call"`
}

type ServeConfig struct {
	Bind        string  `toml:"bind"`
	TLSHost     string  `toml:"tlshost"`
	AllowOrigin string  `toml:"allow_origin"`
	Metrics     bool    `toml:"metrics"`
	Gobwas      bool    `toml:"gobwas"`
	Rate        float64 `toml:"rate"`
}

type CallConfig struct {
	URL    string `toml:"url"`
	Wait   string `toml:"wait"`
	Gobwas bool   `toml:"gobwas"`
}

// defaultConfigPath returns where the config file is looked up when
// --config is not given.
func defaultConfigPath() string {
	return filepath.Join(xdg.New("await-call", "awaitcall").ConfigHome(), "config.toml")
}

// loadConfig reads the config file at path. An empty path reads the default
// location, which is allowed to not exist.
func loadConfig(path string) (Config, error) {
	cfg := Config{}
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) && !explicit {
		return cfg, nil
	} else if err != nil {
		return cfg, errors.Wrap(err, "open config")
	}
	defer f.Close()

	decoder := toml.NewDecoder(f)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	if cfg.Call.Wait != "" {
		if _, err := time.ParseDuration(cfg.Call.Wait); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s: call.wait", path)
		}
	}
	logger.Debugf("Loaded config: %s", path)
	return cfg, nil
}

// applyConfig fills options that were not set by flags from the config
// file, and the rest from defaults.
func applyConfig(options *Options, cfg Config) {
	setDefault(&options.Channel, cfg.Channel, awaitcall.DefaultChannel)
	setDefault(&options.IDs, cfg.IDs, "counter")

	setDefault(&options.Serve.Bind, cfg.Serve.Bind, defaultBind)
	setDefault(&options.Serve.TLSHost, cfg.Serve.TLSHost, "")
	setDefault(&options.Serve.AllowOrigin, cfg.Serve.AllowOrigin, "")
	options.Serve.Metrics = options.Serve.Metrics || cfg.Serve.Metrics
	options.Serve.Gobwas = options.Serve.Gobwas || cfg.Serve.Gobwas
	if options.Serve.Rate == 0 {
		options.Serve.Rate = cfg.Serve.Rate
	}

	setDefault(&options.Call.URL, cfg.Call.URL, defaultURL)
	options.Call.Gobwas = options.Call.Gobwas || cfg.Call.Gobwas
	if options.Call.Wait == 0 && cfg.Call.Wait != "" {
		// Validated by loadConfig.
		options.Call.Wait, _ = time.ParseDuration(cfg.Call.Wait)
	}
}

func setDefault(value *string, values ...string) {
	if *value != "" {
		return
	}
	for _, v := range values {
		if v != "" {
			*value = v
			return
		}
	}
}

// dispatcherOptions translates the shared flags into dispatcher options.
func dispatcherOptions(options Options) ([]awaitcall.Option, error) {
	opts := []awaitcall.Option{awaitcall.WithChannel(options.Channel)}
	switch options.IDs {
	case "", "counter":
	case "uuid":
		opts = append(opts, awaitcall.WithIDGenerator(awaitcall.UUIDs()))
	default:
		return nil, ErrExplain{errors.Errorf("unknown id generator: %q", options.IDs), `Use --ids=counter or --ids=uuid.`}
	}
	return opts, nil
}
