package bridge

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/webpane/webpane/internal/infrastructure/logging"
	"github.com/webpane/webpane/internal/infrastructure/monitoring"
)

// RawHandler receives the correlation token and the argument-array text
// verbatim. A raw handler is fully responsible for decoding and for
// producing a response.
type RawHandler func(token, args string)

// Dispatcher delivers completed envelopes back to the front-end. It must be
// safe to invoke from any goroutine and must never block.
type Dispatcher interface {
	PostResult(env Envelope)
}

// Context is the first parameter of a typed binding that asks for one. It
// carries the call's correlation token and the opaque value supplied at
// registration time; the value's lifetime is the registrant's problem.
type Context struct {
	Token string
	Value any
}

var contextType = reflect.TypeOf((*Context)(nil))
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Bridge is the function registry and call decoder. Registration happens
// once before the UI loop starts; invocation is safe from any goroutine.
type Bridge struct {
	mu       sync.RWMutex
	bindings map[string]*binding
	dispatch Dispatcher
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

type binding struct {
	name string

	raw RawHandler

	fn        reflect.Value
	params    []reflect.Type
	wantsCtx  bool
	ctxVal    any
	resultIdx int
	errIdx    int
}

// New creates a bridge delivering envelopes through d.
func New(d Dispatcher, logger *logging.Logger, metrics *monitoring.Metrics) *Bridge {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bridge{
		bindings: make(map[string]*binding),
		dispatch: d,
		logger:   logger.Named("bridge"),
		metrics:  metrics,
	}
}

// BindRaw registers name with a raw handler.
func (b *Bridge) BindRaw(name string, h RawHandler) error {
	if h == nil {
		return errors.New("bridge: nil raw handler")
	}
	return b.register(&binding{name: name, raw: h})
}

// Bind registers name with a typed function. fn may accept *bridge.Context
// as its first parameter, in which case each call receives the token plus
// ctxVal; remaining parameters are decoded from the JSON argument array in
// order. fn may return nothing, a value, an error, or (value, error).
func (b *Bridge) Bind(name string, ctxVal any, fn any) error {
	bd, err := analyze(name, ctxVal, fn)
	if err != nil {
		return err
	}
	return b.register(bd)
}

func (b *Bridge) register(bd *binding) error {
	if bd.name == "" {
		return errors.New("bridge: function name cannot be empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.bindings[bd.name]; exists {
		return fmt.Errorf("bridge: %q already bound", bd.name)
	}
	b.bindings[bd.name] = bd
	return nil
}

// Names returns the bound function names, for front-end stub generation.
func (b *Bridge) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.bindings))
	for name := range b.bindings {
		names = append(names, name)
	}
	return names
}

// Invoke runs one call. For typed bindings it decodes args, calls the
// function, and posts exactly one envelope addressed by token; every decode
// or handler failure becomes a failure envelope, never a crash. Raw
// bindings receive the text verbatim and own the response.
func (b *Bridge) Invoke(token, name, args string) {
	b.mu.RLock()
	bd := b.bindings[name]
	b.mu.RUnlock()

	if bd == nil {
		b.logger.Warn("call to unbound function", zap.String("function", name))
		if b.metrics != nil {
			b.metrics.RecordCall(name, "unbound", 0)
		}
		b.dispatch.PostResult(Failure(token, ErrUnbound))
		return
	}

	if bd.raw != nil {
		bd.raw(token, args)
		return
	}

	start := time.Now()
	env := b.invokeTyped(bd, token, args)
	if b.metrics != nil {
		b.metrics.RecordCall(name, outcome(env), time.Since(start))
	}
	b.dispatch.PostResult(env)
}

func (b *Bridge) invokeTyped(bd *binding, token, args string) Envelope {
	decoded, err := decodeArgs(args, bd.params)
	if err != nil {
		b.logger.Warn("argument decode failed",
			zap.String("function", bd.name),
			zap.Error(err),
		)
		if b.metrics != nil {
			b.metrics.RecordDecodeFailure(decodeReason(err))
		}
		return Failure(token, err)
	}

	in := make([]reflect.Value, 0, len(decoded)+1)
	if bd.wantsCtx {
		in = append(in, reflect.ValueOf(&Context{Token: token, Value: bd.ctxVal}))
	}
	in = append(in, decoded...)

	out, err := safeCall(bd.fn, in)
	if err != nil {
		b.logger.Error("bound function panicked",
			zap.String("function", bd.name),
			zap.Error(err),
		)
		return Failure(token, err)
	}

	if bd.errIdx >= 0 {
		if callErr, _ := out[bd.errIdx].Interface().(error); callErr != nil {
			return Failure(token, callErr)
		}
	}
	if bd.resultIdx < 0 {
		// Void results encode as the empty payload, not "null".
		return Success(token, "")
	}

	payload, encErr := sonic.Marshal(out[bd.resultIdx].Interface())
	if encErr != nil {
		return Failure(token, fmt.Errorf("encode result: %w", encErr))
	}
	return Success(token, string(payload))
}

func safeCall(fn reflect.Value, in []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn.Call(in), nil
}

// analyze validates fn's signature at registration time and builds the
// per-binding wrapper state the decoder closes over.
func analyze(name string, ctxVal any, fn any) (*binding, error) {
	if fn == nil {
		return nil, fmt.Errorf("bridge: %q: nil function", name)
	}
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("bridge: %q: not a function: %s", name, ft)
	}
	if ft.IsVariadic() {
		return nil, fmt.Errorf("bridge: %q: variadic functions are not bindable", name)
	}

	bd := &binding{
		name:      name,
		fn:        fv,
		ctxVal:    ctxVal,
		resultIdx: -1,
		errIdx:    -1,
	}

	first := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		bd.wantsCtx = true
		first = 1
	}
	for i := first; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		if err := validateParam(pt); err != nil {
			return nil, fmt.Errorf("bridge: %q parameter %d: %w", name, i, err)
		}
		bd.params = append(bd.params, pt)
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			bd.errIdx = 0
		} else {
			bd.resultIdx = 0
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, fmt.Errorf("bridge: %q: second return must be error", name)
		}
		bd.resultIdx = 0
		bd.errIdx = 1
	default:
		return nil, fmt.Errorf("bridge: %q: too many return values", name)
	}
	return bd, nil
}

func validateParam(t reflect.Type) error {
	return validateParamSeen(t, map[reflect.Type]bool{})
}

// validateParamSeen tracks visited types so self-referential structs
// terminate.
func validateParamSeen(t reflect.Type, seen map[reflect.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Pointer, reflect.Slice:
		return validateParamSeen(t.Elem(), seen)
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("map key must be string, got %s", t.Key())
		}
		return validateParamSeen(t.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if tag, ok := f.Tag.Lookup("json"); ok && strings.HasPrefix(tag, "-") {
				continue
			}
			if err := validateParamSeen(f.Type, seen); err != nil {
				return err
			}
		}
		return nil
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return fmt.Errorf("unsupported parameter type %s", t)
		}
		return nil
	default:
		return fmt.Errorf("unsupported parameter type %s", t)
	}
}

func outcome(env Envelope) string {
	if env.OK {
		return "success"
	}
	return "failure"
}

func decodeReason(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "must be a JSON array"):
		return "not_array"
	case strings.Contains(msg, "does not fit"):
		return "overflow"
	case strings.Contains(msg, "unknown field"):
		return "unknown_field"
	case strings.Contains(msg, "trailing arguments"), strings.Contains(msg, "missing"):
		return "arity"
	default:
		return "malformed"
	}
}
