package httpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/webpane/webpane/internal/content"
	"github.com/webpane/webpane/internal/infrastructure/logging"
	"github.com/webpane/webpane/internal/infrastructure/monitoring"
)

// Config holds listener configuration.
type Config struct {
	// Host must resolve to a loopback interface; Port 0 selects an
	// ephemeral port.
	Host string
	Port int
	// MaxConns caps concurrent connections; zero means unlimited.
	MaxConns int

	// AllowedOrigins is the exact-match origin allow-list. A request whose
	// Origin header matches an entry gets a mirroring
	// Access-Control-Allow-Origin header; anything else gets no header and
	// no error.
	AllowedOrigins []string

	RateLimitRPS     int
	RateLimitBurst   int
	RateLimitEnabled bool
}

// Server wraps the gin engine and the loopback listener.
type Server struct {
	cfg     Config
	engine  *gin.Engine
	content *content.Router
	logger  *logging.Logger

	httpSrv  *http.Server
	listener net.Listener
	base     string
	started  atomic.Bool
}

// New creates a server over the given content router. Mount transport
// handlers before Start.
func New(cfg Config, router *content.Router, logger *logging.Logger, metrics *monitoring.Metrics) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("httpd")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	if metrics != nil {
		engine.Use(monitoring.Middleware(metrics))
	}
	if cfg.RateLimitEnabled && cfg.RateLimitRPS > 0 {
		engine.Use(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}
	engine.Use(originAllow(cfg.AllowedOrigins))
	engine.Use(gzipResponses())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	s := &Server{
		cfg:     cfg,
		engine:  engine,
		content: router,
		logger:  logger,
	}
	engine.NoRoute(s.serveContent)
	return s
}

// Handle mounts an explicit route, e.g. the websocket bridge transport.
// Must be called before Start.
func (s *Server) Handle(method, path string, h gin.HandlerFunc) {
	s.engine.Handle(method, path, h)
}

// Start binds the loopback listener and begins serving in the background.
// A bind failure is fatal and returned immediately; nothing half-starts.
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("httpd: already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("httpd: bind %s: %w", addr, err)
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}

	s.listener = ln
	s.base = "http://" + ln.Addr().String()
	s.httpSrv = &http.Server{Handler: s.engine}

	s.logger.Info("listener started", zap.String("base", s.base))
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve loop stopped", zap.Error(err))
		}
	}()
	return nil
}

// BaseURL returns the stable base URL, empty before Start.
func (s *Server) BaseURL() string {
	return s.base
}

// URI synthesizes the full URL for a registered content path. It returns
// ok only for paths the router resolves to an explicit route.
func (s *Server) URI(path string) (string, bool) {
	if s.base == "" || !s.content.Has(path) {
		return "", false
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.base + path, true
}

// Close shuts the listener down, draining in-flight exchanges briefly.
func (s *Server) Close() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// Engine exposes the underlying engine for in-process tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) serveContent(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.String(http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.content.Serve(c.Writer, c.Request)
}
