package host

import (
	"errors"

	"go.uber.org/zap"

	"github.com/webpane/webpane/internal/bridge"
	"github.com/webpane/webpane/internal/content"
	"github.com/webpane/webpane/internal/dispatch"
	"github.com/webpane/webpane/internal/httpd"
	"github.com/webpane/webpane/internal/infrastructure/logging"
	"github.com/webpane/webpane/internal/infrastructure/monitoring"
)

// ErrNoEngine is returned when navigation or evaluation is requested
// before an engine is attached.
var ErrNoEngine = errors.New("host: no engine attached")

// Config assembles a pane.
type Config struct {
	Server  httpd.Config
	Content content.Config
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Pane is the host-side window surface: a dispatch loop, a call bridge,
// and the loopback content provider, wired together.
type Pane struct {
	loop    *dispatch.Loop
	bridge  *bridge.Bridge
	router  *content.Router
	server  *httpd.Server
	engine  Engine
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a pane. Attach an engine and register content and bindings
// before Start/Run.
func New(cfg Config) *Pane {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.Content.Logger = logger
	router := content.NewRouter(cfg.Content)

	p := &Pane{
		loop:    dispatch.NewLoop(),
		router:  router,
		server:  httpd.New(cfg.Server, router, logger, cfg.Metrics),
		logger:  logger.Named("host"),
		metrics: cfg.Metrics,
	}
	p.bridge = bridge.New(p, logger, cfg.Metrics)
	return p
}

// Content returns the content router for asset registration.
func (p *Pane) Content() *content.Router { return p.router }

// Server returns the loopback HTTP server.
func (p *Pane) Server() *httpd.Server { return p.server }

// Bridge returns the call bridge.
func (p *Pane) Bridge() *bridge.Bridge { return p.bridge }

// AttachEngine sets the front-end engine. Must happen before Run.
func (p *Pane) AttachEngine(e Engine) { p.engine = e }

// Bind registers a typed function on the bridge.
func (p *Pane) Bind(name string, ctxVal any, fn any) error {
	return p.bridge.Bind(name, ctxVal, fn)
}

// BindRaw registers a raw handler on the bridge.
func (p *Pane) BindRaw(name string, h bridge.RawHandler) error {
	return p.bridge.BindRaw(name, h)
}

// Start binds the loopback listener. Fatal errors propagate; nothing
// half-starts.
func (p *Pane) Start() error {
	return p.server.Start()
}

// Run blocks draining the UI loop until Terminate.
func (p *Pane) Run() error {
	return p.loop.Run()
}

// Terminate stops the loop and the listener. Thread-safe.
func (p *Pane) Terminate() {
	p.loop.Terminate()
	if err := p.server.Close(); err != nil {
		p.logger.Warn("listener close failed", zap.Error(err))
	}
}

// Invoke dispatches one front-end call. The bridge runs on a worker
// goroutine so a slow handler never stalls the caller (typically a
// transport read loop).
func (p *Pane) Invoke(token, name, args string) {
	go p.bridge.Invoke(token, name, args)
}

// Navigate points the engine at url, from the loop goroutine.
func (p *Pane) Navigate(url string) error {
	return p.onLoop(func(e Engine) error { return e.Navigate(url) })
}

// Eval runs script in the engine, from the loop goroutine.
func (p *Pane) Eval(script string) error {
	return p.onLoop(func(e Engine) error { return e.Eval(script) })
}

// PostResult delivers one envelope to the front-end. It implements
// bridge.Dispatcher: safe from any goroutine, never blocks, and a post
// after shutdown is dropped with a log line rather than a fault.
func (p *Pane) PostResult(env bridge.Envelope) {
	err := p.loop.Post(func() {
		if p.engine == nil {
			p.logger.Warn("result dropped, no engine", zap.String("token", env.Token))
			return
		}
		if err := p.engine.PostResult(env); err != nil {
			p.logger.Error("result delivery failed",
				zap.String("token", env.Token),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		p.logger.Warn("result dropped, loop terminated", zap.String("token", env.Token))
	}
}

// onLoop runs fn(engine) on the loop goroutine and waits for the outcome.
// Must not be called from a task already running on the loop. Termination
// unblocks the wait even when the queued task is discarded.
func (p *Pane) onLoop(fn func(Engine) error) error {
	out := make(chan error, 1)
	err := p.loop.Post(func() {
		if p.engine == nil {
			out <- ErrNoEngine
			return
		}
		out <- fn(p.engine)
	})
	if err != nil {
		return err
	}
	select {
	case err := <-out:
		return err
	case <-p.loop.Done():
		// The task may have completed just as the loop shut down; its
		// outcome wins over the shutdown report.
		select {
		case err := <-out:
			return err
		default:
			return dispatch.ErrClosed
		}
	}
}
