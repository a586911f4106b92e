// Package ws carries the call-bridge wire protocol between the served
// front-end and the host over a websocket.
//
// The page opens one socket; inbound frames are invocations, outbound
// frames are result envelopes, pushed script evaluations, and navigation
// orders. Delivery is per-token: nothing orders distinct calls against
// each other.
package ws

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/webpane/webpane/internal/bridge"
	"github.com/webpane/webpane/internal/infrastructure/logging"
	"github.com/webpane/webpane/internal/infrastructure/monitoring"
)

// ErrNoPage is returned when a frame must be delivered and no page is
// connected.
var ErrNoPage = errors.New("ws: no page connected")

// Frame is one websocket message in either direction.
type Frame struct {
	Type string `json:"type"` // ready | invoke | result | eval | navigate

	// invoke
	Token  string `json:"token,omitempty"`
	Method string `json:"method,omitempty"`
	Args   string `json:"args,omitempty"` // JSON array text, verbatim

	// result
	OK      bool   `json:"ok,omitempty"`
	Payload string `json:"payload,omitempty"`

	// eval / navigate
	Script string `json:"script,omitempty"`
	URL    string `json:"url,omitempty"`
}

const outboundDepth = 64

type conn struct {
	id   string
	sock *websocket.Conn
	out  chan Frame
}

// Transport accepts page connections and shuttles frames. It satisfies
// host.Engine, so a pane can drive a live page exactly like the embedded
// one.
type Transport struct {
	mu      sync.RWMutex
	conns   map[string]*conn
	invoke  func(token, name, args string)
	logger  *logging.Logger
	metrics *monitoring.Metrics

	upgrader websocket.Upgrader
}

// NewTransport creates an idle transport. Wire OnInvoke before mounting.
func NewTransport(logger *logging.Logger, metrics *monitoring.Metrics) *Transport {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transport{
		conns:   make(map[string]*conn),
		logger:  logger.Named("ws"),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			// The listener binds loopback only; the origin allow-list on
			// the HTTP surface governs cross-origin content access.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// OnInvoke wires inbound invocations, typically to Pane.Invoke. Set once
// before the transport is mounted.
func (t *Transport) OnInvoke(fn func(token, name, args string)) {
	t.invoke = fn
}

// Handler returns the gin handler performing the websocket upgrade.
func (t *Transport) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sock, err := t.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			t.logger.Error("upgrade failed", zap.Error(err))
			return
		}
		t.serve(sock)
	}
}

func (t *Transport) serve(sock *websocket.Conn) {
	cn := &conn{
		id:   uuid.New().String(),
		sock: sock,
		out:  make(chan Frame, outboundDepth),
	}

	t.mu.Lock()
	t.conns[cn.id] = cn
	t.mu.Unlock()
	if t.metrics != nil {
		t.metrics.WSConnections.Inc()
	}
	t.logger.Info("page connected", zap.String("conn", cn.id))

	go t.writeLoop(cn)
	cn.out <- Frame{Type: "ready"}
	t.readLoop(cn)

	t.mu.Lock()
	delete(t.conns, cn.id)
	t.mu.Unlock()
	close(cn.out)
	if t.metrics != nil {
		t.metrics.WSConnections.Dec()
	}
	t.logger.Info("page disconnected", zap.String("conn", cn.id))
}

func (t *Transport) readLoop(cn *conn) {
	for {
		var f Frame
		if err := cn.sock.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Debug("read loop ended", zap.String("conn", cn.id), zap.Error(err))
			}
			return
		}
		if t.metrics != nil {
			t.metrics.WSMessages.WithLabelValues("in").Inc()
		}

		switch f.Type {
		case "invoke":
			if t.invoke != nil {
				t.invoke(f.Token, f.Method, f.Args)
			}
		default:
			t.logger.Warn("unknown frame type",
				zap.String("conn", cn.id),
				zap.String("type", f.Type),
			)
		}
	}
}

func (t *Transport) writeLoop(cn *conn) {
	for f := range cn.out {
		if err := cn.sock.WriteJSON(f); err != nil {
			t.logger.Debug("write failed", zap.String("conn", cn.id), zap.Error(err))
			cn.sock.Close()
			return
		}
		if t.metrics != nil {
			t.metrics.WSMessages.WithLabelValues("out").Inc()
		}
	}
	cn.sock.Close()
}

// broadcast queues f on every live connection, dropping frames for
// connections whose outbound queue is full.
func (t *Transport) broadcast(f Frame) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.conns) == 0 {
		return ErrNoPage
	}
	for _, cn := range t.conns {
		select {
		case cn.out <- f:
		default:
			t.logger.Warn("outbound queue full, frame dropped", zap.String("conn", cn.id))
		}
	}
	return nil
}

// Navigate orders the page to a new location.
func (t *Transport) Navigate(url string) error {
	return t.broadcast(Frame{Type: "navigate", URL: url})
}

// Eval pushes script into the page.
func (t *Transport) Eval(script string) error {
	if t.metrics != nil {
		t.metrics.EvalsPushed.Inc()
	}
	return t.broadcast(Frame{Type: "eval", Script: script})
}

// PostResult delivers one envelope to the page's pending-promise table.
func (t *Transport) PostResult(env bridge.Envelope) error {
	return t.broadcast(Frame{
		Type:    "result",
		Token:   env.Token,
		OK:      env.OK,
		Payload: env.Payload,
	})
}
