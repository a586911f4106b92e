// Package host ties the content provider, the call bridge, and the
// dispatch loop into one collaborator surface for embedding applications.
//
// A Pane owns the UI loop. Everything that touches the attached front-end
// engine (navigation, script evaluation, result delivery) is funneled
// through the loop's goroutine; binding and invocation are safe from any
// goroutine.
package host
