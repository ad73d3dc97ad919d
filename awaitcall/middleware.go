package awaitcall

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// Middleware wraps the handler registered under name.
type Middleware func(name string, next Handler) Handler

// Chain composes middlewares so that the first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(name string, next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](name, next)
		}
		return next
	}
}

// recoverer turns a panic in h into a failure, so middleware wrapped around
// it observes panics like any other error.
func recoverer(h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, args json.RawMessage) (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				result, err = nil, recoveredError(r)
			}
		}()
		return h.Invoke(ctx, args)
	})
}

// Logging logs every invocation with its duration and failure, if any.
func Logging(l *log.Logger) Middleware {
	return func(name string, next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			start := time.Now()
			result, err := next.Invoke(ctx, args)
			if err != nil {
				l.Printf("%s(%s) failed after %s: %s", name, args, time.Since(start), err)
			} else {
				l.Printf("%s(%s) returned after %s", name, args, time.Since(start))
			}
			return result, err
		})
	}
}

// RateLimitedError is returned to callers whose invocation was rejected by
// RateLimit.
type RateLimitedError struct {
	Name string
}

func (err RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s", err.Name)
}

func (err RateLimitedError) ErrorCode() int {
	return ErrCodeRateLimited
}

// RateLimit rejects invocations that exceed the limiter. The limiter is
// shared by every name the middleware wraps.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(name string, next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			if !limiter.Allow() {
				return nil, RateLimitedError{name}
			}
			return next.Invoke(ctx, args)
		})
	}
}
