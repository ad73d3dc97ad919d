package awaitcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// Handler serves invocations of one name. args is the JSON array of
// positional arguments sent by the caller; the returned value must be
// serializable.
type Handler interface {
	Invoke(ctx context.Context, args json.RawMessage) (interface{}, error)
}

// HandlerFunc is an adapter to use an ordinary function as a Handler.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Invoke calls fn(ctx, args).
func (fn HandlerFunc) Invoke(ctx context.Context, args json.RawMessage) (interface{}, error) {
	return fn(ctx, args)
}

var typeOfError = reflect.TypeOf((*error)(nil)).Elem()
var typeOfContext = reflect.TypeOf((*context.Context)(nil)).Elem()

// funcArgTypes returns the positional arg types of a function, skipping an
// optional leading context.Context.
func funcArgTypes(fnType reflect.Type) (argTypes []reflect.Type, hasCtx bool, err error) {
	argNum := fnType.NumIn()
	argTypes = make([]reflect.Type, 0, argNum)
	for argPos := 0; argPos < argNum; argPos++ {
		argType := fnType.In(argPos)
		if argType == typeOfContext {
			if argPos != 0 {
				return nil, false, fmt.Errorf("context.Context must be the first parameter")
			}
			hasCtx = true
			continue
		}
		switch argType.Kind() {
		case reflect.Chan, reflect.Func, reflect.UnsafePointer:
			return nil, false, fmt.Errorf("parameter %d is not serializable: %s", argPos, argType)
		}
		argTypes = append(argTypes, argType)
	}
	return argTypes, hasCtx, nil
}

// funcErrPos returns the return value index position of an error type for
// supported return layouts: (), (interface{}), (error), (interface{}, error)
func funcErrPos(fnType reflect.Type) (int, bool) {
	switch fnType.NumOut() {
	case 0:
		return -1, true
	case 1:
		if fnType.Out(0) == typeOfError {
			// Single error return value
			return 0, true
		}
		// Single non-error return value
		return -1, true
	case 2:
		if fnType.Out(1) == typeOfError {
			// Two return values, one error type
			return 1, true
		}
		// Two return values, no error type, unsupported.
		return -1, false
	}
	return -1, false
}

// Func adapts an ordinary Go function into a Handler. The function's
// parameters receive the invocation's positional arguments decoded from JSON,
// optionally preceded by a context.Context. Supported results are (), (v),
// (error) and (v, error). A panic inside fn is reported to the caller like an
// error.
func Func(fn interface{}) (Handler, error) {
	switch h := fn.(type) {
	case nil:
		return nil, ErrInvalidHandler{Reason: "nil function"}
	case Handler:
		return h, nil
	case func(context.Context, json.RawMessage) (interface{}, error):
		return HandlerFunc(h), nil
	}

	val := reflect.ValueOf(fn)
	if val.Kind() != reflect.Func {
		return nil, ErrInvalidHandler{Reason: fmt.Sprintf("not a function: %T", fn)}
	}
	if val.IsNil() {
		return nil, ErrInvalidHandler{Reason: "nil function"}
	}
	h, err := newFuncHandler(val)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func newFuncHandler(fn reflect.Value) (*funcHandler, error) {
	fnType := fn.Type()
	if fnType.IsVariadic() {
		return nil, ErrInvalidHandler{Reason: "variadic functions are not supported"}
	}
	argTypes, hasCtx, err := funcArgTypes(fnType)
	if err != nil {
		return nil, ErrInvalidHandler{Reason: err.Error()}
	}
	errPos, ok := funcErrPos(fnType)
	if !ok {
		return nil, ErrInvalidHandler{Reason: fmt.Sprintf("unsupported return values: %s", fnType)}
	}
	return &funcHandler{
		fn:       fn,
		argTypes: argTypes,
		errPos:   errPos,
		hasCtx:   hasCtx,
	}, nil
}

// funcHandler is a reflected function and the layout of its signature.
type funcHandler struct {
	fn       reflect.Value
	argTypes []reflect.Type
	errPos   int
	hasCtx   bool
}

// parsePositionalArgs decodes each argument of the JSON array into a
// value of the corresponding parameter type. Missing trailing arguments and
// nulls become zero values.
func (h *funcHandler) parsePositionalArgs(rawArgs json.RawMessage) ([]reflect.Value, error) {
	var params []json.RawMessage
	if !isNull(rawArgs) {
		if err := jsonAPI.Unmarshal(rawArgs, &params); err != nil {
			return nil, InvalidParamsError{err.Error()}
		}
	}
	if len(params) > len(h.argTypes) {
		return nil, InvalidParamsError{fmt.Sprintf("too many arguments: expected %d, got %d", len(h.argTypes), len(params))}
	}

	values := make([]reflect.Value, 0, len(h.argTypes))
	for i, argType := range h.argTypes {
		value := reflect.New(argType)
		if i < len(params) && !isNull(params[i]) {
			if err := jsonAPI.Unmarshal(params[i], value.Interface()); err != nil {
				return nil, InvalidParamsError{fmt.Sprintf("argument %d: %s", i, err)}
			}
		}
		values = append(values, value.Elem())
	}
	return values, nil
}

// Invoke executes the function with the given arguments.
func (h *funcHandler) Invoke(ctx context.Context, rawArgs json.RawMessage) (interface{}, error) {
	args, err := h.parsePositionalArgs(rawArgs)
	if err != nil {
		return nil, err
	}

	arguments := make([]reflect.Value, 0, len(args)+1)
	if h.hasCtx {
		arguments = append(arguments, reflect.ValueOf(&ctx).Elem())
	}
	arguments = append(arguments, args...)

	reply := h.fn.Call(arguments)

	// Are there any return values?
	if len(reply) == 0 {
		return nil, nil
	}
	// Is there an error return value?
	if h.errPos >= 0 && !reply[h.errPos].IsNil() {
		return nil, reply[h.errPos].Interface().(error)
	}
	if h.errPos == 0 {
		return nil, nil
	}

	// This supports (v) and (v, err)
	return reply[0].Interface(), nil
}

// Methods returns a mapping of lower-camel method names to Handlers for
// every exported method of receiver with a supported signature.
func Methods(receiver interface{}) (map[string]Handler, error) {
	val := reflect.ValueOf(receiver)
	if !val.IsValid() || (val.Kind() == reflect.Ptr && val.IsNil()) {
		return nil, ErrInvalidHandler{Reason: "nil receiver"}
	}
	if name := reflect.Indirect(val).Type().Name(); !isExported(name) {
		return nil, ErrInvalidHandler{Reason: fmt.Sprintf("receiver must be exported: %s", name)}
	}

	kind := val.Type()
	handlers := map[string]Handler{}
	var buf bytes.Buffer
	for i := 0; i < kind.NumMethod(); i++ {
		method := kind.Method(i)
		if method.PkgPath != "" {
			// Skip unexported methods
			continue
		}
		if !exportedArgs(method.Type) {
			// Skip methods with unexported arg types
			continue
		}

		// The method value is already bound to the receiver.
		h, err := newFuncHandler(val.Method(i))
		if err != nil {
			return nil, ErrInvalidHandler{Name: method.Name, Reason: err.(ErrInvalidHandler).Reason}
		}

		buf.WriteRune(unicode.ToLower(rune(method.Name[0])))
		buf.WriteString(method.Name[1:])
		handlers[buf.String()] = h
		buf.Reset()
	}
	return handlers, nil
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// visibleType reports whether t, or what it points to, is exported or
// predeclared. Named types from other packages have a PkgPath too, so the
// name has to be checked as well.
func visibleType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.PkgPath() == "" || isExported(t.Name())
}

func exportedArgs(methodType reflect.Type) bool {
	// Skip receiver
	for i := 1; i < methodType.NumIn(); i++ {
		if !visibleType(methodType.In(i)) {
			return false
		}
	}
	return true
}
