package content

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func TestDirServesFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"index.html":     "<html>home</html>",
		"css/style.css":  "body{}",
		"js/app.js":      "void 0",
		"assets/raw.bin": "\x00\x01",
	})

	r := NewRouter(Config{})
	r.AddDir("/static", root)

	w := serve(t, r, "/static/index.html")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "<html>home</html>", w.Body.String())

	w = serve(t, r, "/static/css/style.css")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "css")
}

func TestDirPrefixCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"page.html": "<p>ok</p>"})

	r := NewRouter(Config{})
	r.AddDir("/Static", root)

	w := serve(t, r, "/static/page.html")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExplicitRouteBeatsDir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"index.html": "from disk"})

	r := NewRouter(Config{})
	r.AddDir("/", root)
	r.AddContent("/index.html", "text/html", []byte("from memory"))

	w := serve(t, r, "/index.html")
	assert.Equal(t, "from memory", w.Body.String())
}

func TestDirOrderFirstOpenWins(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeFiles(t, rootA, map[string]string{"shared.txt": "A"})
	writeFiles(t, rootB, map[string]string{"shared.txt": "B", "only-b.txt": "B"})

	r := NewRouter(Config{})
	r.AddDir("/", rootA)
	r.AddDir("/", rootB)

	assert.Equal(t, "A", serve(t, r, "/shared.txt").Body.String())
	assert.Equal(t, "B", serve(t, r, "/only-b.txt").Body.String())
}

func TestDirRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	secret := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o644))

	r := NewRouter(Config{})
	r.AddDir("/files", filepath.Join(root, "pub"))

	w := serve(t, r, "/files/../../secret.txt")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDirPatternsRestrictServing(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ok.html":    "ok",
		"nested/a.c": "int main;",
	})

	r := NewRouter(Config{})
	r.AddDir("/", root, "**/*.html")

	assert.Equal(t, http.StatusOK, serve(t, r, "/ok.html").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, r, "/nested/a.c").Code)
}

func TestDirSkipsDirectories(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"sub/file.txt": "x"})

	r := NewRouter(Config{})
	r.AddDir("/", root)

	assert.Equal(t, http.StatusNotFound, serve(t, r, "/sub").Code)
}

func TestResolveMIMEKnownExtension(t *testing.T) {
	assert.Contains(t, ResolveMIME("whatever/app.json"), "application/json")
}
