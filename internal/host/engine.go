package host

import "github.com/webpane/webpane/internal/bridge"

// Engine is the front-end side of the pane: something that can display a
// URL, run script, and complete pending calls. Implementations are only
// ever touched from the pane's loop goroutine.
type Engine interface {
	Navigate(url string) error
	Eval(script string) error
	PostResult(env bridge.Envelope) error
}
