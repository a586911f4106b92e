package content

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/webpane/webpane/internal/infrastructure/logging"
)

// DefaultMaxFileBytes caps static file reads when no explicit cap is set.
const DefaultMaxFileBytes = 32 << 20

const defaultNotFoundBody = "<html><body><h1>404 Not Found</h1></body></html>"

// ServeFunc produces a response for one resolved exchange.
type ServeFunc func(w http.ResponseWriter, r *http.Request) error

// Route is one registered mapping from a URL path prefix to a content
// producer. Created at registration time, immutable once serving starts.
type Route struct {
	prefix string
	mime   string
	serve  ServeFunc

	// Ctx is opaque per-route state owned by the registrant.
	Ctx any
}

// Prefix returns the registered path prefix.
func (rt *Route) Prefix() string { return rt.prefix }

// MIME returns the registered content type, empty for bare routes.
func (rt *Route) MIME() string { return rt.mime }

// Config holds router construction options.
type Config struct {
	// MaxFileBytes caps a single file read; zero means DefaultMaxFileBytes.
	MaxFileBytes int64
	// NotFoundBody overrides the default 404 HTML body when non-empty.
	NotFoundBody string
	Logger       *logging.Logger
}

// Router resolves request paths against registered routes and embedded
// directory tiers.
type Router struct {
	routes       []*Route
	dirs         []*Dir
	maxFileBytes int64
	notFoundBody string
	logger       *logging.Logger
}

// NewRouter creates an empty router.
func NewRouter(cfg Config) *Router {
	max := cfg.MaxFileBytes
	if max <= 0 {
		max = DefaultMaxFileBytes
	}
	body := cfg.NotFoundBody
	if body == "" {
		body = defaultNotFoundBody
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{
		maxFileBytes: max,
		notFoundBody: body,
		logger:       logger.Named("content"),
	}
}

// Add registers a bare route for prefix. Until content is attached it
// reports ErrNoContent, which the serve pipeline maps to the not-found
// responder.
func (r *Router) Add(prefix string) *Route {
	rt := &Route{prefix: prefix}
	rt.serve = func(w http.ResponseWriter, req *http.Request) error {
		return ErrNoContent
	}
	r.routes = append(r.routes, rt)
	return rt
}

// AddContent registers prefix serving an in-memory body with the given
// content type.
func (r *Router) AddContent(prefix, mimeType string, body []byte) *Route {
	rt := &Route{prefix: prefix, mime: mimeType}
	rt.serve = func(w http.ResponseWriter, req *http.Request) error {
		w.Header().Set("Content-Type", mimeType)
		w.WriteHeader(http.StatusOK)
		_, err := w.Write(body)
		return err
	}
	r.routes = append(r.routes, rt)
	return rt
}

// AddFile registers prefix serving a file from disk with the given content
// type. The file is read per request and capped at MaxFileBytes.
func (r *Router) AddFile(prefix, mimeType, path string) *Route {
	rt := &Route{prefix: prefix, mime: mimeType}
	rt.serve = func(w http.ResponseWriter, req *http.Request) error {
		data, err := r.readCapped(path)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", mimeType)
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(data)
		return err
	}
	r.routes = append(r.routes, rt)
	return rt
}

// AddDir registers an embedded directory fallback tier. Patterns, when
// given, are doublestar globs limiting which files under root are servable.
func (r *Router) AddDir(prefix, root string, patterns ...string) *Dir {
	d := &Dir{Prefix: prefix, Root: root, Patterns: patterns}
	r.dirs = append(r.dirs, d)
	return d
}

// Resolve returns the explicit route matching path, or nil. Any query
// string is stripped before matching; prefixes compare case-insensitively;
// the longest matching prefix wins, first registered among equal lengths.
func (r *Router) Resolve(path string) *Route {
	path = stripQuery(path)

	var best *Route
	for _, rt := range r.routes {
		if !hasPrefixFold(path, rt.prefix) {
			continue
		}
		if best == nil || len(rt.prefix) > len(best.prefix) {
			best = rt
		}
	}
	return best
}

// Has reports whether path resolves to an explicitly registered route.
func (r *Router) Has(path string) bool {
	return r.Resolve(path) != nil
}

// Serve runs the full resolution pipeline for one exchange: explicit
// routes, then directory tiers, then the not-found responder. Producer
// errors degrade to a 500 diagnostic; the caller's serve loop continues.
func (r *Router) Serve(w http.ResponseWriter, req *http.Request) {
	path := stripQuery(req.URL.Path)

	if rt := r.Resolve(path); rt != nil {
		if err := rt.serve(w, req); err != nil {
			if errors.Is(err, ErrNoContent) {
				r.ServeNotFound(w)
				return
			}
			r.logger.Error("route handler failed",
				zap.String("path", path),
				zap.String("prefix", rt.prefix),
				zap.Error(err),
			)
			serveError(w, err)
		}
		return
	}

	for _, d := range r.dirs {
		f, mimeType, ok := d.open(path)
		if !ok {
			continue
		}
		err := r.serveOpenFile(w, f, mimeType)
		f.Close()
		if err != nil {
			r.logger.Error("directory file read failed",
				zap.String("path", path),
				zap.String("root", d.Root),
				zap.Error(err),
			)
			serveError(w, err)
		}
		return
	}

	r.ServeNotFound(w)
}

// ServeNotFound writes the 404 responder body.
func (r *Router) ServeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, r.notFoundBody)
}

func (r *Router) serveOpenFile(w http.ResponseWriter, f *os.File, mimeType string) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > r.maxFileBytes {
		return fmt.Errorf("%w: %s is %d bytes, cap %d", ErrTooLarge, f.Name(), info.Size(), r.maxFileBytes)
	}

	w.Header().Set("Content-Type", mimeType)
	w.WriteHeader(http.StatusOK)
	_, err = io.Copy(w, io.LimitReader(f, r.maxFileBytes))
	return err
}

func (r *Router) readCapped(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > r.maxFileBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, cap %d", ErrTooLarge, path, info.Size(), r.maxFileBytes)
	}
	return os.ReadFile(path)
}

func serveError(w http.ResponseWriter, err error) {
	// Header writes after the producer already started streaming are
	// ignored by net/http; partial state is the documented degradation.
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "internal error: %v", err)
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
