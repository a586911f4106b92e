// Command webpane-demo serves a small embedded page over the loopback
// provider, binds a handful of host functions, and bridges the page to
// them over the websocket transport. Open the printed URL in a browser.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/webpane/webpane/internal/api/ws"
	"github.com/webpane/webpane/internal/bridge"
	"github.com/webpane/webpane/internal/content"
	"github.com/webpane/webpane/internal/host"
	"github.com/webpane/webpane/internal/httpd"
	"github.com/webpane/webpane/internal/infrastructure/config"
	"github.com/webpane/webpane/internal/infrastructure/logging"
	"github.com/webpane/webpane/internal/infrastructure/monitoring"
)

const indexPage = `<!DOCTYPE html>
<html>
<head><title>webpane demo</title></head>
<body>
<h1>webpane demo</h1>
<pre id="out"></pre>
<script src="/webpane.js"></script>
<script>
  const out = document.getElementById("out");
  const show = (line) => { out.textContent += line + "\n"; };
  webpane.invoke("add", 2, 3).then((sum) => show("add(2, 3) = " + sum));
  webpane.invoke("greet", "browser").then(show);
  webpane.invoke("uptime").then((s) => show("host up " + s + "s"));
  webpane.invoke("missing").catch((err) => show("missing: " + err.message));
</script>
</body>
</html>
`

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	dir := flag.String("dir", "", "Directory to serve under /static/ (optional)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	metrics := monitoring.NewMetrics()
	pane := host.New(host.Config{
		Server: httpd.Config{
			Host:             cfg.Server.Host,
			Port:             cfg.Server.Port,
			MaxConns:         cfg.Server.MaxConns,
			AllowedOrigins:   cfg.Content.AllowedOrigins,
			RateLimitRPS:     cfg.RateLimit.RequestsPerSecond,
			RateLimitBurst:   cfg.RateLimit.Burst,
			RateLimitEnabled: cfg.RateLimit.Enabled,
		},
		Content: content.Config{
			MaxFileBytes: cfg.Content.MaxFileBytes,
			NotFoundBody: cfg.Content.NotFoundBody,
		},
		Logger:  logger,
		Metrics: metrics,
	})

	started := time.Now()
	pane.Content().AddContent("/", "text/html", []byte(indexPage))
	pane.Content().AddContent("/webpane.js", "application/javascript", []byte(ws.PageScript))
	if *dir != "" {
		pane.Content().AddDir("/static/", *dir)
	}

	mustBind := func(name string, fn any) {
		if err := pane.Bind(name, nil, fn); err != nil {
			log.Fatalf("Failed to bind %s: %v", name, err)
		}
	}
	mustBind("add", func(a, b float64) float64 { return a + b })
	mustBind("greet", func(name string) string {
		return fmt.Sprintf("hello, %s", name)
	})
	mustBind("uptime", func() int64 {
		return int64(time.Since(started).Seconds())
	})
	mustBind("shutdown", func(ctx *bridge.Context) {
		logger.Info("shutdown requested by page", zap.String("token", ctx.Token))
		pane.Terminate()
	})

	transport := ws.NewTransport(logger, metrics)
	transport.OnInvoke(pane.Invoke)
	pane.AttachEngine(transport)
	pane.Server().Handle("GET", "/__bridge", transport.Handler())

	if err := pane.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	logger.Info("serving", zap.String("url", pane.Server().BaseURL()))
	fmt.Printf("open %s\n", pane.Server().BaseURL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		pane.Terminate()
	}()

	if err := pane.Run(); err != nil {
		log.Fatalf("Dispatch loop error: %v", err)
	}
}
