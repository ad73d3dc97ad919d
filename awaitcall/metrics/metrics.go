// Package metrics instruments await-call receivers with Prometheus
// collectors.
package metrics

import (
	"context"
	"encoding/json"

	"github.com/fwextensions/figma-await-call/awaitcall"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the metrics updated by Instrument.
type Collectors struct {
	Invocations *prometheus.CounterVec
	Failures    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "awaitcall",
			Name:      "invocations_total",
			Help:      "Number of invocations handled, by call name.",
		}, []string{"name"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "awaitcall",
			Name:      "failures_total",
			Help:      "Number of invocations whose handler failed, by call name.",
		}, []string{"name"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "awaitcall",
			Name:      "handler_duration_seconds",
			Help:      "Time spent in handlers, by call name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),
	}
	for _, collector := range []prometheus.Collector{c.Invocations, c.Failures, c.Duration} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Instrument returns a middleware that records every invocation.
func (c *Collectors) Instrument() awaitcall.Middleware {
	return func(name string, next awaitcall.Handler) awaitcall.Handler {
		invocations := c.Invocations.WithLabelValues(name)
		failures := c.Failures.WithLabelValues(name)
		duration := c.Duration.WithLabelValues(name)
		return awaitcall.HandlerFunc(func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			invocations.Inc()
			timer := prometheus.NewTimer(duration)
			defer timer.ObserveDuration()
			result, err := next.Invoke(ctx, args)
			if err != nil {
				failures.Inc()
			}
			return result, err
		})
	}
}

