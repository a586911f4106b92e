package content

import (
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
)

// MIMEResolver maps a local file path to a content type.
type MIMEResolver func(path string) string

// Dir is an embedded directory tier: requests whose path starts with
// Prefix are resolved to files under Root.
type Dir struct {
	Prefix string
	Root   string
	// Patterns, when non-empty, are doublestar globs matched against the
	// root-relative path; unmatched files are treated as absent.
	Patterns []string
	// MIME overrides the default resolver (extension first, content sniff
	// as fallback).
	MIME MIMEResolver
}

// open resolves path against this tier. It reports ok only when a regular
// file inside Root opens successfully.
func (d *Dir) open(path string) (*os.File, string, bool) {
	if !hasPrefixFold(path, d.Prefix) {
		return nil, "", false
	}

	rel := strings.TrimPrefix(path[len(d.Prefix):], "/")
	rel = filepath.FromSlash(rel)

	full := filepath.Join(d.Root, rel)
	// Join cleans the path; anything that escaped Root is a traversal
	// attempt and is treated as absent.
	if rebased, err := filepath.Rel(d.Root, full); err != nil || strings.HasPrefix(rebased, "..") {
		return nil, "", false
	}

	if len(d.Patterns) > 0 && !d.matches(filepath.ToSlash(rel)) {
		return nil, "", false
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, "", false
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, "", false
	}

	resolve := d.MIME
	if resolve == nil {
		resolve = ResolveMIME
	}
	return f, resolve(full), true
}

func (d *Dir) matches(rel string) bool {
	for _, p := range d.Patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// ResolveMIME resolves a content type by extension, falling back to
// content sniffing for unknown extensions.
func ResolveMIME(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		return mt.String()
	}
	return "application/octet-stream"
}
