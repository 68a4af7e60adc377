// Package nethttp implements transport.Transport on net/http.
//
// Every exchange runs on its own goroutine: it sends the request, reports
// headers, then reads the body into pooled buffers and hands each one to the
// listener as a chunk. When the listener applies backpressure the goroutine
// simply blocks in OnContent, which stops reads from the socket. Abort
// cancels the request context so the connection is closed instead of drained.
//
// HTTP/2 over TLS is enabled with golang.org/x/net/http2; cleartext HTTP/2
// (h2c) uses an http2.Transport directly.
package nethttp
