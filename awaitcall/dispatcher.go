package awaitcall

import (
	"context"
	"encoding/json"
	"io"

	"github.com/fwextensions/figma-await-call/internal/pretty"
	"github.com/pkg/errors"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChannel sets the marker that tags this dispatcher's envelopes. Both
// sides must use the same channel.
func WithChannel(channel string) Option {
	return func(d *Dispatcher) {
		d.codec.Channel = channel
	}
}

// WithIDGenerator sets how correlation ids are allocated.
func WithIDGenerator(ids IDGenerator) Option {
	return func(d *Dispatcher) {
		d.pending.IDs = ids
	}
}

// WithMiddleware wraps every handler registered afterwards.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(d *Dispatcher) {
		d.middleware = append(d.middleware, middlewares...)
	}
}

// Dispatcher is one side of the channel. It routes inbound envelopes to
// either a registered receiver or a pending call, and sends outbound calls.
type Dispatcher struct {
	transport  MessageWriter
	codec      Codec
	registry   Registry
	pending    PendingTable
	middleware []Middleware
}

// New returns a Dispatcher that sends through w. Inbound messages must be
// delivered to it, either by Serve or by calling Handle from the transport's
// message event.
func New(w MessageWriter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: w,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call sends an invocation of name with args and returns the pending Call.
// The Call settles with the receiver's return value or failure. If nothing
// is registered under name on the other side, it never settles.
//
// Arguments that can't be serialized, and transport failures, settle the
// returned Call immediately with that error.
func (d *Dispatcher) Call(name string, args ...interface{}) *Call {
	if args == nil {
		args = []interface{}{}
	}
	call := d.pending.Create(name, args)
	if err := d.send(call); err != nil {
		d.pending.Settle(call.ID, nil, err)
	}
	return call
}

func (d *Dispatcher) send(call *Call) error {
	payload, err := jsonAPI.Marshal(call.Args)
	if err != nil {
		return errors.Wrapf(err, "call %q: arguments are not serializable", call.Name)
	}
	msg, err := d.codec.Encode(&Envelope{
		Kind:    KindInvoke,
		ID:      call.ID,
		Name:    call.Name,
		Payload: payload,
	})
	if err != nil {
		return errors.Wrapf(err, "call %q", call.Name)
	}
	if err := d.transport.WriteMessage(msg); err != nil {
		return errors.Wrapf(err, "call %q: send failed", call.Name)
	}
	return nil
}

// Invoke calls name and waits for its result, which is decoded into result.
func (d *Dispatcher) Invoke(ctx context.Context, result interface{}, name string, args ...interface{}) error {
	return d.Call(name, args...).Await(ctx, result)
}

// Receive registers fn as the receiver of name, replacing any previous one.
// fn is adapted with Func.
func (d *Dispatcher) Receive(name string, fn interface{}) error {
	h, err := Func(fn)
	if err != nil {
		if invalid, ok := err.(ErrInvalidHandler); ok {
			invalid.Name = name
			return invalid
		}
		return err
	}
	return d.ReceiveHandler(name, h)
}

// ReceiveHandler registers h as the receiver of name, replacing any previous
// one. Names must not be empty, since calls can't be sent to an empty name.
func (d *Dispatcher) ReceiveHandler(name string, h Handler) error {
	if name == "" {
		return ErrInvalidHandler{Reason: "empty name"}
	}
	h = recoverer(h)
	if len(d.middleware) > 0 {
		h = Chain(d.middleware...)(name, h)
	}
	d.registry.Register(name, h)
	return nil
}

// ReceiveAll registers every exported method of receiver under its
// lower-camel name with the given prefix.
func (d *Dispatcher) ReceiveAll(prefix string, receiver interface{}) error {
	handlers, err := Methods(receiver)
	if err != nil {
		return err
	}
	for name, h := range handlers {
		if err := d.ReceiveHandler(prefix+name, h); err != nil {
			return err
		}
	}
	return nil
}

// Ignore removes the receiver of name. Calls to it from the other side will
// no longer be answered.
func (d *Dispatcher) Ignore(name string) {
	d.registry.Unregister(name)
}

// Names returns the names this side currently receives.
func (d *Dispatcher) Names() []string {
	return d.registry.Names()
}

// Pending returns the calls still waiting for a reply, oldest first.
func (d *Dispatcher) Pending() []*Call {
	return d.pending.Oldest(0)
}

// Handle is the inbound path: it routes one message received from the
// transport. Messages that are not envelopes on this channel are ignored.
func (d *Dispatcher) Handle(msg []byte) {
	env, ok := d.codec.Decode(msg)
	if !ok {
		logger.Printf("Dispatcher.Handle(): Dropping unrecognized message: %s", pretty.Abbrev(string(msg), 80))
		return
	}

	switch env.Kind {
	case KindInvoke:
		h, ok := d.registry.Lookup(env.Name)
		if !ok {
			logger.Printf("Dispatcher.Handle(): No receiver for %q, call #%s will not be answered", env.Name, env.ID)
			return
		}
		go d.invoke(h, env)
	case KindReplyOK:
		if !d.pending.Settle(env.ID, env.Payload, nil) {
			logger.Printf("Dispatcher.Handle(): Dropping stray reply #%s", env.ID)
		}
	case KindReplyError:
		if !d.pending.Settle(env.ID, nil, env.Error) {
			logger.Printf("Dispatcher.Handle(): Dropping stray error reply #%s", env.ID)
		}
	}
}

// invoke runs a handler and sends its outcome back to the caller.
func (d *Dispatcher) invoke(h Handler, req *Envelope) {
	ctx := context.WithValue(context.Background(), ctxDispatcher, d)
	reply := &Envelope{ID: req.ID}

	result, remoteErr := safeInvoke(ctx, h, req.Payload)
	if remoteErr == nil {
		payload, err := jsonAPI.Marshal(result)
		if err != nil {
			remoteErr = &RemoteError{
				Message: errors.Wrapf(err, "%s: failed to encode result", req.Name).Error(),
				Type:    "encode",
				Code:    ErrCodeInternal,
			}
		} else {
			reply.Kind = KindReplyOK
			reply.Payload = payload
		}
	}
	if remoteErr != nil {
		reply.Kind = KindReplyError
		reply.Error = remoteErr
	}

	msg, err := d.codec.Encode(reply)
	if err != nil {
		logger.Printf("Dispatcher.invoke(): Failed to encode reply #%s: %s", req.ID, err)
		return
	}
	if err := d.transport.WriteMessage(msg); err != nil {
		logger.Printf("Dispatcher.invoke(): Failed to send reply #%s: %s", req.ID, err)
	}
}

// safeInvoke calls the handler, converting a failure or a panic into a
// RemoteError.
func safeInvoke(ctx context.Context, h Handler, args json.RawMessage) (result interface{}, remoteErr *RemoteError) {
	defer func() {
		if r := recover(); r != nil {
			result, remoteErr = nil, recoveredError(r)
		}
	}()
	result, err := h.Invoke(ctx, args)
	if err != nil {
		return nil, MarshalError(err)
	}
	return result, nil
}

// Serve delivers messages from r to Handle until r fails. It returns the
// read error, io.EOF on an orderly close.
func (d *Dispatcher) Serve(r MessageReader) error {
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			return err
		}
		d.Handle(msg)
	}
}

// Close closes the underlying transport, if it can be closed. Pending calls
// are left pending.
func (d *Dispatcher) Close() error {
	if closer, ok := d.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
