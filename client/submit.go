package client

import (
	"context"
	"net/http"

	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/extract"
	"github.com/kbukum/asynchttp/operation"
)

// Submit builds req against the client's base URL and default headers and
// submits it. It never blocks; a request that cannot be built yields a
// handle that has already failed.
func Submit[T any](ctx context.Context, c *Client, req Request, fn extract.Func[T]) *operation.Handle[T] {
	treq, err := c.build(req)
	if err != nil {
		return operation.Failed[T](err)
	}
	return operation.Submit(ctx, c.engine, treq, fn)
}

// Do submits req and waits for the result for at most the configured await
// timeout. On expiry the operation is cancelled so its connection and
// buffers are released, and a TIMEOUT error is returned. Cancelling ctx
// cancels the operation.
func Do[T any](ctx context.Context, c *Client, req Request, fn extract.Func[T]) (T, error) {
	h := Submit(ctx, c, req, fn)
	v, err := h.Await(c.cfg.AwaitTimeout)
	if apperrors.IsTimeout(err) {
		h.Cancel()
	}
	return v, err
}

// GetJSON fetches path and decodes a 2xx JSON body into T. Other statuses
// fail with an *extract.StatusError.
func GetJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	return Do(ctx, c, Request{
		Method:  http.MethodGet,
		Path:    path,
		Headers: map[string]string{"Accept": "application/json"},
	}, extract.RequireSuccess(extract.JSON[T]()))
}
