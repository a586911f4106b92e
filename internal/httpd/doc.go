// Package httpd serves the front-end's assets over a loopback HTTP
// listener.
//
// All content requests funnel through the router's two-tier resolution; the
// handful of explicit routes (/healthz, /metrics, transport mounts) take
// precedence. The listener's resolved host:port is captured once at startup
// and used to synthesize the stable base URL handed to the front-end's
// navigation target.
package httpd
