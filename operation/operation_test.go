package operation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	chunktest "github.com/kbukum/asynchttp/chunk/testutil"
	"github.com/kbukum/asynchttp/completion"
	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/extract"
	"github.com/kbukum/asynchttp/logger"
	"github.com/kbukum/asynchttp/observability"
	"github.com/kbukum/asynchttp/response"
	"github.com/kbukum/asynchttp/testutil"
	"github.com/kbukum/asynchttp/transport"
	transporttest "github.com/kbukum/asynchttp/transport/testutil"
)

const wait = 2 * time.Second

func newEngine(t *testing.T, capacity int, pool extract.PoolConfig) (*Engine, *transporttest.Transport) {
	t.Helper()
	tr := transporttest.New()
	p := extract.NewPool(pool)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()
		_ = p.Close(ctx)
	})
	return &Engine{
		Transport:       tr,
		Pool:            p,
		ChannelCapacity: capacity,
		Logger:          logger.Nop(),
	}, tr
}

func get(url string) *transport.Request {
	return &transport.Request{URL: url}
}

// balanced waits for the drain that follows resolution, then checks releases.
func balanced(t *testing.T, c *chunktest.Counter) {
	t.Helper()
	if !c.WaitReleased(c.Issued(), time.After(wait)) {
		t.Errorf("released %d of %d chunks", c.Released(), c.Issued())
	}
	c.AssertBalanced(t)
}

func waitAborted(t *testing.T, ex *transporttest.Exchange) {
	t.Helper()
	select {
	case <-ex.Aborted():
	case <-time.After(wait):
		t.Fatal("transport exchange was not aborted")
	}
}

func TestSubmit_StreamsBodyInOrder(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	counter := chunktest.NewCounter()

	h := Submit(context.Background(), e, get("http://example.com/a"), extract.String())
	ex := tr.Next()
	if ex.Request.Method != "GET" {
		t.Errorf("expected default method GET, got %q", ex.Request.Method)
	}

	ex.Headers(200, "Content-Type", "text/plain")
	if err := ex.Content(counter.String("abcd")); err != nil {
		t.Fatalf("Content: %v", err)
	}
	if err := ex.Content(counter.String("efghij")); err != nil {
		t.Fatalf("Content: %v", err)
	}
	ex.Complete()

	v, err := h.Await(wait)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if len(v) != 10 || v != "abcdefghij" {
		t.Errorf("expected abcdefghij, got %q", v)
	}
	if h.State() != completion.Succeeded {
		t.Errorf("expected succeeded, got %s", h.State())
	}
	meta, ok := h.Meta()
	if !ok || meta.StatusCode != 200 || meta.Header.Get("content-type") != "text/plain" {
		t.Errorf("unexpected meta: %+v ok=%v", meta, ok)
	}
	if h.ID() == "" {
		t.Error("expected an operation ID")
	}
	balanced(t, counter)
	if ex.AbortCount() != 0 {
		t.Error("a completed exchange must not be aborted")
	}
}

func TestSubmit_CapacityOneKeepsOrderUnderBackpressure(t *testing.T) {
	e, tr := newEngine(t, 1, extract.PoolConfig{})
	counter := chunktest.NewCounter()

	h := Submit(context.Background(), e, get("http://example.com/stream"), extract.String())
	ex := tr.Next()
	ex.Headers(200)

	parts := []string{"one,", "two,", "three,", "four,", "five"}
	produced := make(chan error, 1)
	go func() {
		for _, p := range parts {
			if err := ex.Content(counter.String(p)); err != nil {
				produced <- err
				return
			}
		}
		ex.Complete()
		produced <- nil
	}()

	v, err := h.Await(wait)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != strings.Join(parts, "") {
		t.Errorf("bytes out of order: %q", v)
	}
	if err := <-produced; err != nil {
		t.Fatalf("producer: %v", err)
	}
	balanced(t, counter)
}

func TestCancel_BeforeHeaders(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	h := Submit(context.Background(), e, get("http://example.com/slow"), extract.String())
	ex := tr.Next()

	if !h.Cancel() {
		t.Fatal("expected first Cancel to take effect")
	}
	if h.Cancel() {
		t.Error("second Cancel must report false")
	}
	if h.State() != completion.Cancelled {
		t.Fatalf("expected cancelled, got %s", h.State())
	}
	_, err := h.Await(wait)
	if !apperrors.IsCancelled(err) {
		t.Errorf("expected CANCELLED, got %v", err)
	}
	if h.asm.Channel() != nil {
		t.Error("no chunk channel may exist when cancelled before headers")
	}
	if h.asm.State() != response.Aborted {
		t.Errorf("expected aborted assembler, got %s", h.asm.State())
	}
	waitAborted(t, ex)
	if !apperrors.IsCancelled(ex.AbortCause()) {
		t.Errorf("expected cancel cause, got %v", ex.AbortCause())
	}

	// Late transport events are ignored.
	counter := chunktest.NewCounter()
	ex.Headers(200)
	if err := ex.Content(counter.String("late")); err == nil {
		t.Error("expected content after abort to be refused")
	}
	counter.AssertBalanced(t)
}

func TestCancel_MidStreamReleasesQueuedChunks(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	counter := chunktest.NewCounter()

	started := make(chan struct{})
	stall := func(ctx context.Context, _ *response.Response) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}
	h := Submit(context.Background(), e, get("http://example.com/big"), stall)
	ex := tr.Next()
	ex.Headers(200)
	_ = ex.Content(counter.String("abcd"))
	_ = ex.Content(counter.String("efgh"))
	<-started

	if !h.Cancel() {
		t.Fatal("expected Cancel to take effect")
	}
	if got := counter.Released(); got != 2 {
		t.Errorf("expected queued chunks released by cancel, got %d", got)
	}
	_, err := h.Await(wait)
	if !apperrors.IsCancelled(err) {
		t.Errorf("expected CANCELLED, got %v", err)
	}
	waitAborted(t, ex)

	if err := ex.Content(counter.String("more")); err == nil {
		t.Error("expected producer to be refused after cancel")
	}
	balanced(t, counter)
}

func TestCancel_WakesBlockedProducer(t *testing.T) {
	e, tr := newEngine(t, 1, extract.PoolConfig{})
	reader := withMetrics(t, e)
	counter := chunktest.NewCounter()

	stall := func(ctx context.Context, _ *response.Response) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	h := Submit(context.Background(), e, get("http://example.com/big"), stall)
	ex := tr.Next()
	ex.Headers(200)
	_ = ex.Content(counter.String("fills"))

	blocked := make(chan error, 1)
	go func() { blocked <- ex.Content(counter.String("blocks")) }()

	testutil.Eventually(t, func() bool {
		return metricSums(t, reader)["asynchttp.backpressure.waits"] >= 1
	}, "producer to suspend on the full channel")
	select {
	case err := <-blocked:
		t.Fatalf("offer should suspend at capacity, returned %v", err)
	default:
	}

	h.Cancel()
	select {
	case err := <-blocked:
		if err == nil {
			t.Error("expected suspended offer to fail after cancel")
		}
	case <-time.After(wait):
		t.Fatal("suspended producer was not woken by cancel")
	}
	balanced(t, counter)
}

func TestCancel_AfterCompletionIsNoop(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	h := Submit(context.Background(), e, get("http://example.com/"), extract.Discard())
	ex := tr.Next()
	ex.Headers(204)
	ex.Complete()

	if _, err := h.Await(wait); err != nil {
		t.Fatalf("Await: %v", err)
	}
	if h.Cancel() {
		t.Error("Cancel after completion must return false")
	}
	if h.State() != completion.Succeeded {
		t.Errorf("state changed by late cancel: %s", h.State())
	}
}

func TestSubmitContext_CancelAbortsOperation(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	h := Submit(ctx, e, get("http://example.com/"), extract.String())
	ex := tr.Next()
	cancel()

	select {
	case <-h.Done():
	case <-time.After(wait):
		t.Fatal("operation did not resolve after submit context was cancelled")
	}
	if h.State() != completion.Cancelled {
		t.Errorf("expected cancelled, got %s", h.State())
	}
	waitAborted(t, ex)
}

func TestSubmitContext_AlreadyCancelledSendsNothing(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := Submit(ctx, e, get("http://example.com/"), extract.String())
	if h.State() != completion.Cancelled {
		t.Fatalf("expected cancelled, got %s", h.State())
	}
	if n := len(tr.Exchanges()); n != 0 {
		t.Errorf("expected no exchange, got %d", n)
	}
}

func TestFailure_AfterOneChunk(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	counter := chunktest.NewCounter()

	h := Submit(context.Background(), e, get("http://example.com/"), extract.String())
	ex := tr.Next()
	ex.Headers(200)
	_ = ex.Content(counter.String("abcd"))
	ex.Fail(io.ErrUnexpectedEOF)

	_, err := h.Await(wait)
	if !apperrors.IsTransportFailure(err) {
		t.Fatalf("expected TRANSPORT_FAILURE, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
	balanced(t, counter)
}

func TestFailure_BeforeHeaders(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	h := Submit(context.Background(), e, get("http://example.com/"), extract.String())
	tr.Next().Fail(errors.New("connection refused"))

	_, err := h.Await(wait)
	if !apperrors.IsTransportFailure(err) {
		t.Fatalf("expected TRANSPORT_FAILURE, got %v", err)
	}
}

func TestProtocolViolation_ContentBeforeHeaders(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	counter := chunktest.NewCounter()

	h := Submit(context.Background(), e, get("http://example.com/"), extract.String())
	ex := tr.Next()
	err := ex.Content(counter.String("early"))
	if !apperrors.IsProtocolViolation(err) {
		t.Errorf("expected producer to see PROTOCOL_VIOLATION, got %v", err)
	}

	_, err = h.Await(wait)
	if !apperrors.IsProtocolViolation(err) {
		t.Fatalf("expected PROTOCOL_VIOLATION, got %v", err)
	}
	waitAborted(t, ex)
	counter.AssertBalanced(t)
}

func TestProtocolViolation_HeadersTwice(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	h := Submit(context.Background(), e, get("http://example.com/"), extract.String())
	ex := tr.Next()
	ex.Headers(200)
	ex.Headers(200)

	_, err := h.Await(wait)
	if !apperrors.IsProtocolViolation(err) {
		t.Fatalf("expected PROTOCOL_VIOLATION, got %v", err)
	}
	waitAborted(t, ex)
}

func TestDuplicateCompleteIgnored(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	counter := chunktest.NewCounter()

	h := Submit(context.Background(), e, get("http://example.com/"), extract.String())
	ex := tr.Next()
	ex.Headers(200)
	_ = ex.Content(counter.String("done"))
	ex.Complete()
	ex.Complete()
	ex.Fail(errors.New("late failure"))

	v, err := h.Await(wait)
	if err != nil || v != "done" {
		t.Fatalf("Await = %q, %v", v, err)
	}
	balanced(t, counter)
}

func TestExtractionFailure(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	counter := chunktest.NewCounter()

	h := Submit(context.Background(), e, get("http://example.com/"), extract.JSON[map[string]int]())
	ex := tr.Next()
	ex.Headers(200, "Content-Type", "application/json")
	_ = ex.Content(counter.String("{not json"))
	ex.Complete()

	_, err := h.Await(wait)
	if !apperrors.IsExtractionFailure(err) {
		t.Fatalf("expected EXTRACTION_FAILURE, got %v", err)
	}
	balanced(t, counter)
}

func TestAwait_TimeoutLeavesOperationRunning(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	h := Submit(context.Background(), e, get("http://example.com/"), extract.String())
	ex := tr.Next()

	_, err := h.Await(20 * time.Millisecond)
	if !apperrors.IsTimeout(err) {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if h.State() != completion.Pending {
		t.Fatalf("await timeout must not resolve the operation, got %s", h.State())
	}
	if ex.AbortCount() != 0 {
		t.Error("await timeout must not abort the exchange")
	}

	ex.Headers(200)
	_ = ex.Content(chunktest.NewCounter().String("late"))
	ex.Complete()
	if v, err := h.Await(wait); err != nil || v != "late" {
		t.Errorf("Await = %q, %v", v, err)
	}
}

func TestWait_ContextMapping(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	h := Submit(context.Background(), e, get("http://example.com/"), extract.String())
	tr.Next()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); !apperrors.IsTimeout(err) {
		t.Errorf("expected TIMEOUT for deadline, got %v", err)
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	if _, err := h.Wait(ctx2); !apperrors.IsCancelled(err) {
		t.Errorf("expected CANCELLED for cancelled wait, got %v", err)
	}
	if h.State() != completion.Pending {
		t.Errorf("wait must not resolve the operation, got %s", h.State())
	}
	h.Cancel()
}

func TestSendError(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	tr.SendErr = errors.New("dial tcp: no route to host")

	h := Submit(context.Background(), e, get("http://example.com/"), extract.String())
	_, err := h.Await(wait)
	if !apperrors.IsTransportFailure(err) {
		t.Fatalf("expected TRANSPORT_FAILURE, got %v", err)
	}
}

func TestInvalidInput(t *testing.T) {
	e, _ := newEngine(t, 4, extract.PoolConfig{})
	tests := []struct {
		name string
		e    *Engine
		req  *transport.Request
		fn   extract.Func[string]
	}{
		{"nil engine", nil, get("http://example.com/"), extract.String()},
		{"missing transport", &Engine{Pool: e.Pool}, get("http://example.com/"), extract.String()},
		{"negative capacity", &Engine{Transport: e.Transport, Pool: e.Pool, ChannelCapacity: -1}, get("http://example.com/"), extract.String()},
		{"nil request", e, nil, extract.String()},
		{"relative url", e, get("/users"), extract.String()},
		{"nil extractor", e, get("http://example.com/"), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := Submit(context.Background(), tc.e, tc.req, tc.fn)
			_, err := h.Await(wait)
			if !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
			if h.Cancel() {
				t.Error("cancel of a resolved operation must return false")
			}
		})
	}
}

func TestFailureLogCarriesRequestFields(t *testing.T) {
	var buf bytes.Buffer
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	e.Logger = logger.NewWithWriter(&logger.Config{Level: "warn", Format: "json"}, "test", &buf)

	h := Submit(context.Background(), e, get("http://example.com/orders"), extract.String())
	logged := make(chan struct{})
	h.OnComplete(func(string, error) { close(logged) })
	tr.Next().Fail(errors.New("connection reset"))
	<-logged

	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := map[string]interface{}{
		logger.FieldOperationID: h.ID(),
		logger.FieldMethod:      "GET",
		logger.FieldURL:         "http://example.com/orders",
		logger.FieldState:       observability.OutcomeFailed,
		logger.FieldErrorCode:   string(apperrors.ErrCodeTransportFailure),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
	if _, ok := line[logger.FieldDuration]; !ok {
		t.Error("missing duration field")
	}
	if _, ok := line[logger.FieldError]; !ok {
		t.Error("missing error field")
	}
}

func TestPoolRejectionAbortsExchange(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{Size: 1, QueueWait: -1})

	running := make(chan struct{})
	release := make(chan struct{})
	busy := func(ctx context.Context, _ *response.Response) (string, error) {
		close(running)
		<-release
		return "busy", nil
	}
	first := Submit(context.Background(), e, get("http://example.com/1"), busy)
	ex1 := tr.Next()
	ex1.Headers(200)
	ex1.Complete()
	<-running

	counter := chunktest.NewCounter()
	second := Submit(context.Background(), e, get("http://example.com/2"), extract.String())
	ex2 := tr.Next()
	ex2.Headers(200)

	_, err := second.Await(wait)
	if !apperrors.IsRejected(err) {
		t.Fatalf("expected REJECTED, got %v", err)
	}
	waitAborted(t, ex2)
	if err := ex2.Content(counter.String("x")); err == nil {
		t.Error("expected rejected operation to refuse content")
	}
	counter.AssertBalanced(t)

	close(release)
	if v, err := first.Await(wait); err != nil || v != "busy" {
		t.Errorf("first Await = %q, %v", v, err)
	}
}

func TestOnCompleteContinuation(t *testing.T) {
	e, tr := newEngine(t, 4, extract.PoolConfig{})
	h := Submit(context.Background(), e, get("http://example.com/"), extract.String())

	got := make(chan string, 1)
	h.OnComplete(func(v string, err error) { got <- v })

	ex := tr.Next()
	ex.Headers(200)
	_ = ex.Content(chunktest.NewCounter().String("cont"))
	ex.Complete()

	select {
	case v := <-got:
		if v != "cont" {
			t.Errorf("continuation got %q", v)
		}
	case <-time.After(wait):
		t.Fatal("continuation did not run")
	}
}

// withMetrics installs engine metrics backed by a manual reader.
func withMetrics(t *testing.T, e *Engine) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observability.NewEngineMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewEngineMetrics: %v", err)
	}
	e.Metrics = metrics
	return reader
}

func metricSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestTelemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	e, tr := newEngine(t, 4, extract.PoolConfig{})
	reader := withMetrics(t, e)
	e.Tracer = tp.Tracer("test")

	h := Submit(context.Background(), e, get("http://example.com/"), extract.String())
	// Continuations run in registration order, after the engine's own.
	resolved := make(chan error, 1)
	h.OnComplete(func(_ string, err error) { resolved <- err })

	ex := tr.Next()
	ex.Headers(200)
	_ = ex.Content(chunktest.NewCounter().String("0123456789"))
	ex.Complete()
	if err := <-resolved; err != nil {
		t.Fatalf("operation failed: %v", err)
	}

	sums := metricSums(t, reader)
	if sums["asynchttp.operations"] != 1 || sums["asynchttp.body.bytes"] != 10 || sums["asynchttp.operations.active"] != 0 {
		t.Errorf("unexpected metric sums: %v", sums)
	}

	var op sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == observability.SpanOperation {
			op = s
		}
	}
	if op == nil {
		t.Fatal("operation span not recorded")
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range op.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs[observability.AttrOutcome].AsString() != observability.OutcomeSucceeded {
		t.Errorf("outcome attribute = %v", attrs[observability.AttrOutcome])
	}
	if attrs[observability.AttrOperationID].AsString() != h.ID() {
		t.Errorf("operation id attribute = %v", attrs[observability.AttrOperationID])
	}
}

func TestFailed_ResolvesImmediately(t *testing.T) {
	cause := apperrors.InvalidInput("body", "cannot encode")
	h := Failed[string](cause)

	if h.State() != completion.Failed {
		t.Fatalf("state = %v, want Failed", h.State())
	}
	if _, err := h.Await(0); !errors.Is(err, cause) {
		t.Errorf("Await() error = %v", err)
	}
	if h.Cancel() {
		t.Error("Cancel on a failed handle returned true")
	}
	if _, ok := h.Meta(); ok {
		t.Error("a handle that never sent has no meta")
	}
	if h.ID() == "" {
		t.Error("expected an operation ID")
	}
}
