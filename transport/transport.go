// Package transport defines the boundary between the response engine and the
// component that moves bytes over the network.
//
// A Transport sends a request and reports what comes back through a Listener:
// headers once, then body chunks, then exactly one of OnComplete or OnFailure.
// The listener may block in OnContent to apply backpressure, so a transport
// must deliver events for an exchange from a goroutine dedicated to it and
// never from a loop shared with other exchanges.
package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/kbukum/asynchttp/chunk"
	"github.com/kbukum/asynchttp/response"
)

// Request describes an outbound HTTP request.
type Request struct {
	// Method is the HTTP method. Defaults to GET.
	Method string
	// URL is the absolute request URL.
	URL string
	// Header holds request headers.
	Header http.Header
	// Body is the request body; nil for none.
	Body io.Reader
	// ContentLength is the body length, or -1 if unknown. Zero with a non-nil
	// Body means unknown as well.
	ContentLength int64
}

// Listener receives the events of one exchange.
type Listener interface {
	OnHeaders(meta response.Meta)
	// OnContent may block. A non-nil error means the receiver is no longer
	// interested and the transport should stop reading; the chunk has been
	// released by then.
	OnContent(c *chunk.Chunk) error
	OnComplete()
	OnFailure(err error)
}

// Exchange is an in-flight request.
type Exchange interface {
	// Abort forces the connection down instead of draining it. It may return
	// before teardown finishes and is safe to call more than once.
	Abort(cause error)
}

// Transport sends requests asynchronously.
type Transport interface {
	// SendAsync starts the exchange and returns without waiting for the
	// response. An error means nothing was sent and l will not be called.
	SendAsync(ctx context.Context, req *Request, l Listener) (Exchange, error)
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, req *Request, l Listener) (Exchange, error)

// SendAsync calls f.
func (f Func) SendAsync(ctx context.Context, req *Request, l Listener) (Exchange, error) {
	return f(ctx, req, l)
}

// ExchangeFunc adapts a function to Exchange.
type ExchangeFunc func(cause error)

// Abort calls f.
func (f ExchangeFunc) Abort(cause error) { f(cause) }
