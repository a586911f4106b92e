package host

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/webpane/webpane/internal/bridge"
	"github.com/webpane/webpane/internal/infrastructure/logging"
)

// pageBootstrap installs the invocation shim the host's resolver scripts
// expect: a pending-call table keyed by sequence token, an invoke entry
// point feeding the Go side, and a resolve hook the host evaluates to
// complete a call.
const pageBootstrap = `
var window = this;
window.__webpane = {
	pending: {},
	invoke: function(name, token, args) {
		window.__webpane.pending[token] = true;
		__host_invoke(token, name, JSON.stringify(args || []));
	},
	resolve: function(token, ok, value) {
		delete window.__webpane.pending[token];
		__host_result(token, ok, value === undefined ? "" : JSON.stringify(value));
	}
};
`

// PageResult is one completed call as observed by the embedded page.
type PageResult struct {
	OK      bool
	Payload string
}

// PageEngine runs the front-end inside a goja VM. It stands in for a real
// web view in headless operation and in tests. The VM is single-threaded;
// all Engine methods run on the pane's loop goroutine.
type PageEngine struct {
	vm       *goja.Runtime
	invoke   func(token, name, args string)
	logger   *logging.Logger
	location string

	mu      sync.Mutex
	results map[string]PageResult
}

// NewPageEngine creates the VM and installs the bootstrap shim.
func NewPageEngine(logger *logging.Logger) (*PageEngine, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &PageEngine{
		vm:      goja.New(),
		logger:  logger.Named("page"),
		results: make(map[string]PageResult),
	}

	if err := e.vm.Set("__host_invoke", func(token, name, args string) {
		if e.invoke != nil {
			e.invoke(token, name, args)
		}
	}); err != nil {
		return nil, err
	}
	if err := e.vm.Set("__host_result", func(token string, ok bool, payload string) {
		e.mu.Lock()
		e.results[token] = PageResult{OK: ok, Payload: payload}
		e.mu.Unlock()
	}); err != nil {
		return nil, err
	}
	if _, err := e.vm.RunString(pageBootstrap); err != nil {
		return nil, fmt.Errorf("host: page bootstrap failed: %w", err)
	}
	return e, nil
}

// OnInvoke wires front-end invocations to the host, typically Pane.Invoke.
// Set once before the loop starts.
func (e *PageEngine) OnInvoke(fn func(token, name, args string)) {
	e.invoke = fn
}

// Navigate records the page location.
func (e *PageEngine) Navigate(url string) error {
	e.location = url
	_, err := e.vm.RunString(fmt.Sprintf("window.location = %q", url))
	return err
}

// Location returns the last navigated URL.
func (e *PageEngine) Location() string { return e.location }

// Eval runs script in the VM.
func (e *PageEngine) Eval(script string) error {
	if _, err := e.vm.RunString(script); err != nil {
		e.logger.Error("script evaluation failed", zap.Error(err))
		return err
	}
	return nil
}

// PostResult completes a pending call by evaluating the resolver script.
// An empty success payload resolves to undefined.
func (e *PageEngine) PostResult(env bridge.Envelope) error {
	payload := env.Payload
	if payload == "" {
		payload = "undefined"
	}
	script := fmt.Sprintf("window.__webpane.resolve(%q, %t, %s)", env.Token, env.OK, payload)
	return e.Eval(script)
}

// Result returns the completed call for token, if any. Safe from any
// goroutine; the payload is the page's JSON.stringify of the resolved
// value, empty for void successes.
func (e *PageEngine) Result(token string) (PageResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, ok := e.results[token]
	return res, ok
}
