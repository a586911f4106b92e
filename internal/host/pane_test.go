package host

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpane/webpane/internal/bridge"
	"github.com/webpane/webpane/internal/dispatch"
	"github.com/webpane/webpane/internal/httpd"
	"github.com/webpane/webpane/internal/shared/id"
)

func newRunningPane(t *testing.T) (*Pane, *PageEngine) {
	t.Helper()
	engine, err := NewPageEngine(nil)
	require.NoError(t, err)

	p := New(Config{Server: httpd.Config{Host: "127.0.0.1"}})
	engine.OnInvoke(p.Invoke)
	p.AttachEngine(engine)

	go p.Run()
	t.Cleanup(p.Terminate)
	return p, engine
}

func callFromPage(t *testing.T, p *Pane, name, token, argsJSON string) {
	t.Helper()
	script := fmt.Sprintf("window.__webpane.invoke(%q, %q, %s)", name, token, argsJSON)
	require.NoError(t, p.Eval(script))
}

func waitResult(t *testing.T, engine *PageEngine, token string) PageResult {
	t.Helper()
	var res PageResult
	require.Eventually(t, func() bool {
		var ok bool
		res, ok = engine.Result(token)
		return ok
	}, 2*time.Second, 5*time.Millisecond, "no result for token %s", token)
	return res
}

func TestEndToEndTypedCall(t *testing.T) {
	p, engine := newRunningPane(t)
	require.NoError(t, p.Bind("add", nil, func(ctx *bridge.Context, a, b int) int {
		return a + b
	}))

	token := id.NewToken().String()
	callFromPage(t, p, "add", token, "[2,3]")

	res := waitResult(t, engine, token)
	assert.True(t, res.OK)
	assert.Equal(t, "5", res.Payload)
}

func TestEndToEndDecodeFailure(t *testing.T) {
	p, engine := newRunningPane(t)
	called := false
	require.NoError(t, p.Bind("add", nil, func(a, b int) int {
		called = true
		return a + b
	}))

	token := id.NewToken().String()
	callFromPage(t, p, "add", token, `[2,"x"]`)

	res := waitResult(t, engine, token)
	assert.False(t, res.OK)
	assert.Contains(t, res.Payload, "protocol error")
	assert.False(t, called)
}

func TestEndToEndVoidResult(t *testing.T) {
	p, engine := newRunningPane(t)
	require.NoError(t, p.Bind("ping", nil, func() {}))

	token := id.NewToken().String()
	callFromPage(t, p, "ping", token, "[]")

	res := waitResult(t, engine, token)
	assert.True(t, res.OK)
	assert.Equal(t, "", res.Payload)
}

func TestOutOfOrderCompletion(t *testing.T) {
	p, engine := newRunningPane(t)
	release := make(chan struct{})
	require.NoError(t, p.Bind("slow", nil, func() string {
		<-release
		return "slow"
	}))
	require.NoError(t, p.Bind("fast", nil, func() string {
		return "fast"
	}))

	slowTok := id.NewToken().String()
	fastTok := id.NewToken().String()
	callFromPage(t, p, "slow", slowTok, "[]")
	callFromPage(t, p, "fast", fastTok, "[]")

	// The fast call completes while the slow one is still pending.
	res := waitResult(t, engine, fastTok)
	assert.Equal(t, `"fast"`, res.Payload)
	_, done := engine.Result(slowTok)
	assert.False(t, done)

	close(release)
	res = waitResult(t, engine, slowTok)
	assert.Equal(t, `"slow"`, res.Payload)
}

func TestNavigate(t *testing.T) {
	p, engine := newRunningPane(t)
	require.NoError(t, p.Navigate("http://127.0.0.1:1234/index.html"))
	assert.Equal(t, "http://127.0.0.1:1234/index.html", engine.Location())
}

func TestEvalWithoutEngine(t *testing.T) {
	p := New(Config{Server: httpd.Config{Host: "127.0.0.1"}})
	go p.Run()
	defer p.Terminate()

	assert.ErrorIs(t, p.Eval("1+1"), ErrNoEngine)
}

func TestPostResultAfterTerminateIsDropped(t *testing.T) {
	p, _ := newRunningPane(t)
	p.Terminate()

	// Must not panic or block; the drop is logged, not fatal.
	p.PostResult(bridge.Success("tok-late", `"x"`))
}

func TestEvalErrorSurfaces(t *testing.T) {
	p, _ := newRunningPane(t)
	assert.Error(t, p.Eval("syntax error ((("))
}

func TestStartServesContent(t *testing.T) {
	p, _ := newRunningPane(t)
	p.Content().AddContent("/index.html", "text/html", []byte("<html>ok</html>"))
	require.NoError(t, p.Start())

	uri, ok := p.Server().URI("/index.html")
	require.True(t, ok)
	assert.Contains(t, uri, "http://127.0.0.1:")
}

func TestEvalQueuedAtTerminateUnblocks(t *testing.T) {
	p, _ := newRunningPane(t)

	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.loop.Post(func() { close(started); <-gate }))
	<-started

	evalErr := make(chan error, 1)
	go func() { evalErr <- p.Eval("1+1") }()
	time.Sleep(20 * time.Millisecond)

	p.Terminate()
	close(gate)

	select {
	case err := <-evalErr:
		assert.ErrorIs(t, err, dispatch.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Eval never returned after Terminate")
	}
}
