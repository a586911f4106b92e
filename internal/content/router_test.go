package content

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, r *Router, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	r.Serve(w, req)
	return w
}

func TestAddContentServesBody(t *testing.T) {
	r := NewRouter(Config{})
	r.AddContent("/login.htm", "text/html", []byte("<html>login</html>"))

	w := serve(t, r, "/login.htm")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html", w.Header().Get("Content-Type"))
	assert.Equal(t, "<html>login</html>", w.Body.String())
}

func TestQueryStringStrippedBeforeMatching(t *testing.T) {
	r := NewRouter(Config{})
	r.AddContent("/login.htm", "text/html", []byte("<html>login</html>"))

	w := serve(t, r, "/login.htm?x=1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>login</html>", w.Body.String())
}

func TestLongestPrefixWins(t *testing.T) {
	r := NewRouter(Config{})
	r.AddContent("/a", "text/plain", []byte("short"))
	r.AddContent("/a/b", "text/plain", []byte("long"))

	rt := r.Resolve("/a/b/c")
	require.NotNil(t, rt)
	assert.Equal(t, "/a/b", rt.Prefix())

	w := serve(t, r, "/a/b/c")
	assert.Equal(t, "long", w.Body.String())
}

func TestLongestPrefixWinsRegardlessOfOrder(t *testing.T) {
	r := NewRouter(Config{})
	r.AddContent("/a/b", "text/plain", []byte("long"))
	r.AddContent("/a", "text/plain", []byte("short"))

	rt := r.Resolve("/a/b/c")
	require.NotNil(t, rt)
	assert.Equal(t, "/a/b", rt.Prefix())
}

func TestEqualLengthTieFirstRegisteredWins(t *testing.T) {
	r := NewRouter(Config{})
	first := r.AddContent("/same", "text/plain", []byte("first"))
	r.AddContent("/SAME", "text/plain", []byte("second"))

	rt := r.Resolve("/same/x")
	require.NotNil(t, rt)
	assert.Same(t, first, rt)
}

func TestPrefixMatchIsCaseInsensitive(t *testing.T) {
	r := NewRouter(Config{})
	r.AddContent("/Index.HTM", "text/html", []byte("home"))

	w := serve(t, r, "/index.htm")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "home", w.Body.String())
}

func TestNoMatchServesNotFound(t *testing.T) {
	r := NewRouter(Config{})
	r.AddContent("/a", "text/plain", []byte("a"))

	w := serve(t, r, "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "404")
}

func TestNotFoundBodyOverride(t *testing.T) {
	r := NewRouter(Config{NotFoundBody: "<html>custom miss</html>"})

	w := serve(t, r, "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "<html>custom miss</html>", w.Body.String())
}

func TestBareRouteServesNotFoundUntilAttached(t *testing.T) {
	r := NewRouter(Config{})
	rt := r.Add("/pending")

	assert.Same(t, rt, r.Resolve("/pending"))
	w := serve(t, r, "/pending")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "404 Not Found")
}

func TestAddFileServesDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(path, []byte("console.log(1)"), 0o644))

	r := NewRouter(Config{})
	r.AddFile("/app.js", "application/javascript", path)

	w := serve(t, r, "/app.js")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/javascript", w.Header().Get("Content-Type"))
	assert.Equal(t, "console.log(1)", w.Body.String())
}

func TestFileOverCapIs500(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	r := NewRouter(Config{MaxFileBytes: 1024})
	r.AddFile("/big.bin", "application/octet-stream", path)

	w := serve(t, r, "/big.bin")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "internal error")
}

func TestUnreadableFileIs500(t *testing.T) {
	r := NewRouter(Config{})
	r.AddFile("/gone", "text/plain", filepath.Join(t.TempDir(), "absent.txt"))

	w := serve(t, r, "/gone")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHas(t *testing.T) {
	r := NewRouter(Config{})
	r.AddContent("/index.html", "text/html", []byte("x"))

	assert.True(t, r.Has("/index.html"))
	assert.True(t, r.Has("/index.html?v=2"))
	assert.False(t, r.Has("/other"))
}
