package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kbukum/asynchttp/response"
	"github.com/kbukum/asynchttp/sse"
)

// maxErrorBody bounds how much of an error response StatusError keeps.
const maxErrorBody = 4 << 10

// StatusError reports a response whose status the extractor refused.
type StatusError struct {
	StatusCode int
	// Body holds the first bytes of the response body.
	Body []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status HTTP %d", e.StatusCode)
}

// Bytes reads the whole body.
func Bytes() Func[[]byte] {
	return func(_ context.Context, resp *response.Response) ([]byte, error) {
		return io.ReadAll(resp.Body)
	}
}

// String reads the whole body as a string.
func String() Func[string] {
	return func(_ context.Context, resp *response.Response) (string, error) {
		var sb strings.Builder
		if _, err := io.Copy(&sb, resp.Body); err != nil {
			return "", err
		}
		return sb.String(), nil
	}
}

// Discard reads and drops the body, returning its length.
func Discard() Func[int64] {
	return func(_ context.Context, resp *response.Response) (int64, error) {
		return io.Copy(io.Discard, resp.Body)
	}
}

// Meta returns the status and headers without reading the body.
func Meta() Func[response.Meta] {
	return func(_ context.Context, resp *response.Response) (response.Meta, error) {
		return resp.Meta, nil
	}
}

// JSON decodes the body into T.
func JSON[T any]() Func[T] {
	return func(_ context.Context, resp *response.Response) (T, error) {
		var v T
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return v, fmt.Errorf("decode json: empty body")
			}
			return v, fmt.Errorf("decode json: %w", err)
		}
		return v, nil
	}
}

// Events collects every server-sent event in the body.
func Events() Func[[]sse.Event] {
	return func(ctx context.Context, resp *response.Response) ([]sse.Event, error) {
		var out []sse.Event
		_, err := EachEvent(func(ev sse.Event) error {
			out = append(out, ev)
			return nil
		})(ctx, resp)
		return out, err
	}
}

// EachEvent calls fn for every server-sent event as it arrives and returns the
// number of events seen. An error from fn stops reading.
func EachEvent(fn func(sse.Event) error) Func[int] {
	return func(ctx context.Context, resp *response.Response) (int, error) {
		r := sse.NewReader(resp.Body)
		n := 0
		for {
			if err := ctx.Err(); err != nil {
				return n, err
			}
			ev, err := r.Next()
			if err == io.EOF {
				return n, nil
			}
			if err != nil {
				return n, err
			}
			n++
			if err := fn(*ev); err != nil {
				return n, err
			}
		}
	}
}

// RequireSuccess fails with a StatusError unless the response is 2xx, and
// otherwise defers to fn.
func RequireSuccess[T any](fn Func[T]) Func[T] {
	return func(ctx context.Context, resp *response.Response) (T, error) {
		if !resp.IsSuccess() {
			var zero T
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return zero, &StatusError{StatusCode: resp.StatusCode, Body: body}
		}
		return fn(ctx, resp)
	}
}
