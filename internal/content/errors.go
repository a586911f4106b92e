package content

import "errors"

var (
	// ErrTooLarge is returned when a static file exceeds the configured
	// read cap. Surfaced as a 500, never a panic.
	ErrTooLarge = errors.New("content: file exceeds size cap")

	// ErrNoContent is returned by routes registered without an attached
	// producer. The serve pipeline maps it to the not-found responder
	// rather than a 500.
	ErrNoContent = errors.New("content: route has no content attached")
)
