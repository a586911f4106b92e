// Package bridge exposes named native functions to the embedded front-end.
//
// The front-end invokes a bound function with an opaque correlation token
// and a JSON array of arguments. Raw bindings receive the token and the
// array text verbatim. Typed bindings declare a Go function; its parameters
// are decoded from the array strictly and in order, the function is called,
// and the result (or error) is encoded into exactly one success- or
// failure-tagged envelope delivered through the host dispatch surface.
//
// Calls are independent: the bridge never serializes distinct tokens
// against each other, so concurrent invocations may complete out of order.
// The token is the only correlation mechanism.
package bridge
