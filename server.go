package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/fwextensions/figma-await-call/awaitcall"
	"github.com/fwextensions/figma-await-call/awaitcall/metrics"
	"github.com/fwextensions/figma-await-call/awaitcall/ws"
	"github.com/fwextensions/figma-await-call/awaitcall/ws/gobwas"
	"github.com/fwextensions/figma-await-call/awaitcall/ws/gorilla"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// newServeHandler builds the HTTP handler for `awaitcall serve`: the
// websocket endpoint on / and, optionally, metrics on /metrics.
func newServeHandler(options Options) (http.Handler, error) {
	opts, err := dispatcherOptions(options)
	if err != nil {
		return nil, err
	}

	middlewares := []awaitcall.Middleware{}
	if invocationLog != nil {
		middlewares = append(middlewares, awaitcall.Logging(invocationLog))
	}

	mux := http.NewServeMux()
	if options.Serve.Metrics {
		reg := prometheus.NewRegistry()
		collectors, err := metrics.NewCollectors(reg)
		if err != nil {
			return nil, err
		}
		middlewares = append(middlewares, collectors.Instrument())
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	if options.Serve.Rate > 0 {
		burst := int(options.Serve.Rate)
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(options.Serve.Rate), burst)
		middlewares = append(middlewares, awaitcall.RateLimit(limiter))
	}
	if len(middlewares) > 0 {
		opts = append(opts, awaitcall.WithMiddleware(middlewares...))
	}

	var upgrader ws.Upgrader = &gorilla.Upgrader{}
	if options.Serve.Gobwas {
		upgrader = &gobwas.Upgrader{}
	}
	handler := &ws.Handler{
		Upgrader: upgrader,
		Header:   http.Header{},
		Options:  opts,
		Setup:    registerBuiltins,
		Debug:    invocationLog != nil,
	}
	if options.Serve.AllowOrigin != "" {
		handler.Header.Set("Access-Control-Allow-Origin", options.Serve.AllowOrigin)
		if u, ok := upgrader.(*gorilla.Upgrader); ok {
			u.AllowAnyOrigin = options.Serve.AllowOrigin == "*"
		}
	}
	mux.Handle("/", handler)
	return mux, nil
}

func runServe(options Options) error {
	handler, err := newServeHandler(options)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: options.Serve.Bind, Handler: handler}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("Shutting down...")
		case <-ctx.Done():
		}
		return srv.Shutdown(context.Background())
	})
	g.Go(func() error {
		defer cancel()
		if options.Serve.TLSHost != "" {
			if !strings.HasSuffix(options.Serve.Bind, ":443") {
				logger.Warningf("Ignoring --bind value (%q) because it's not 443 and --tlshost is set.", options.Serve.Bind)
			}
			logger.Infof("Starting awaitcall (version %s), acquiring ACME certificate and listening on: wss://%s", Version, options.Serve.TLSHost)
			err := srv.Serve(autocert.NewListener(options.Serve.TLSHost))
			if err != nil && strings.HasSuffix(err.Error(), "bind: permission denied") {
				err = ErrExplain{err, "Serving with autocert requires CAP_NET_BIND_SERVICE capability permission to bind on low-numbered ports."}
			}
			return ignoreClosed(err)
		}
		logger.Infof("Starting awaitcall (version %s), listening on: ws://%s", Version, options.Serve.Bind)
		return ignoreClosed(srv.ListenAndServe())
	})
	return g.Wait()
}

func ignoreClosed(err error) error {
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
