package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/kbukum/asynchttp/chunk"
	"github.com/kbukum/asynchttp/response"
	"github.com/kbukum/asynchttp/sse"
)

// complete returns a fully delivered response with the given body parts.
func complete(t *testing.T, status int, parts ...string) *response.Response {
	t.Helper()
	a, resp := stream(t, len(parts)+1, status, "Content-Type", "text/plain")
	for _, p := range parts {
		if err := a.OnContent(chunk.New([]byte(p), nil)); err != nil {
			t.Fatalf("content: %v", err)
		}
	}
	a.OnComplete()
	return resp
}

func TestBytesAndString(t *testing.T) {
	b, err := Bytes()(context.Background(), complete(t, 200, "ab", "cd"))
	if err != nil || string(b) != "abcd" {
		t.Errorf("Bytes: got %q, %v", b, err)
	}
	s, err := String()(context.Background(), complete(t, 200, "x", "", "y"))
	if err != nil || s != "xy" {
		t.Errorf("String: got %q, %v", s, err)
	}
}

func TestDiscard(t *testing.T) {
	n, err := Discard()(context.Background(), complete(t, 200, "1234", "56"))
	if err != nil || n != 6 {
		t.Errorf("expected 6 bytes, got %d, %v", n, err)
	}
}

func TestMeta(t *testing.T) {
	m, err := Meta()(context.Background(), complete(t, 204))
	if err != nil || m.StatusCode != 204 || m.Header.Get("content-type") != "text/plain" {
		t.Errorf("unexpected meta %+v, %v", m, err)
	}
}

func TestJSON(t *testing.T) {
	type user struct {
		Name string `json:"name"`
	}
	u, err := JSON[user]()(context.Background(), complete(t, 200, `{"na`, `me":"Alice"}`))
	if err != nil || u.Name != "Alice" {
		t.Errorf("expected Alice, got %+v, %v", u, err)
	}

	if _, err := JSON[user]()(context.Background(), complete(t, 200)); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestEvents(t *testing.T) {
	events, err := Events()(context.Background(), complete(t, 200, "data: one\n\nevent: x\n", "data: two\n\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].Data != "one" || events[1].Event != "x" || events[1].Data != "two" {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestEachEvent_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	n, err := EachEvent(func(sse.Event) error { return stop })(
		context.Background(), complete(t, 200, "data: 1\n\ndata: 2\n\n"))
	if !errors.Is(err, stop) || n != 1 {
		t.Errorf("expected stop after first event, got n=%d err=%v", n, err)
	}
}

func TestRequireSuccess(t *testing.T) {
	fn := RequireSuccess(String())

	if s, err := fn(context.Background(), complete(t, 200, "ok")); err != nil || s != "ok" {
		t.Errorf("expected ok, got %q, %v", s, err)
	}

	_, err := fn(context.Background(), complete(t, 503, "unavailable"))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != 503 || string(se.Body) != "unavailable" {
		t.Errorf("unexpected status error: %+v", se)
	}
}
