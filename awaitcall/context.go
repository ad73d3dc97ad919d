package awaitcall

import "context"

type contextKey string

var ctxDispatcher contextKey = "dispatcher"

// FromContext returns the Dispatcher that is serving the current
// invocation, from the context passed to a handler. This is useful for
// calling back to the side that made the call.
func FromContext(ctx context.Context) (*Dispatcher, error) {
	d, ok := ctx.Value(ctxDispatcher).(*Dispatcher)
	if !ok {
		return nil, ErrContextMissingValue{ctxDispatcher}
	}
	return d, nil
}
