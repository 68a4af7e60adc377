package nethttp

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"

	"github.com/kbukum/asynchttp/chunk"
	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/logger"
	"github.com/kbukum/asynchttp/response"
	"github.com/kbukum/asynchttp/transport"
)

const keepAlive = 30 * time.Second

// Option configures a Transport.
type Option func(*Transport)

// WithObserver reports connection lease and release events to o.
func WithObserver(o transport.ConnObserver) Option {
	return func(t *Transport) { t.observer = o }
}

// WithLogger sets the logger. Defaults to logger.Get("nethttp").
func WithLogger(l *logger.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// Transport sends requests with net/http and streams bodies as chunks.
type Transport struct {
	client    *http.Client
	chunkSize int
	observer  transport.ConnObserver
	log       *logger.Logger

	bufs   sync.Pool
	nextID atomic.Uint64
	// buffers handed to listeners and not yet released
	outstanding atomic.Int64
}

var _ transport.Transport = (*Transport)(nil)

// New creates a Transport.
func New(cfg Config, opts ...Option) (*Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt, err := newRoundTripper(&cfg)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		// No client timeout: it would bound the body, which streams for as
		// long as the reader keeps up. Cancellation goes through the context.
		client:    &http.Client{Transport: rt},
		chunkSize: cfg.ChunkSize,
	}
	t.bufs.New = func() any {
		b := make([]byte, t.chunkSize)
		return &b
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = logger.Get("nethttp")
	} else {
		t.log = t.log.WithComponent("nethttp")
	}
	return t, nil
}

func newRoundTripper(cfg *Config) (http.RoundTripper, error) {
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, err
	}
	dialer := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: keepAlive}

	if cfg.H2C {
		return &http2.Transport{
			AllowHTTP:       true,
			TLSClientConfig: tlsCfg,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
			IdleConnTimeout: cfg.IdleConnTimeout,
		}, nil
	}

	ht := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		ExpectContinueTimeout: time.Second,
	}
	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(ht); err != nil {
			return nil, apperrors.Internal(err)
		}
	} else {
		// A non-nil empty map turns off the built-in HTTP/2 upgrade.
		ht.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}
	return ht, nil
}

// Outstanding returns the number of body buffers held by listeners.
func (t *Transport) Outstanding() int64 {
	return t.outstanding.Load()
}

// CloseIdleConnections closes pooled connections that are not in use.
func (t *Transport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

// SendAsync starts the exchange on its own goroutine.
func (t *Transport) SendAsync(ctx context.Context, req *transport.Request, l transport.Listener) (transport.Exchange, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("request", "request is required")
	}
	if l == nil {
		return nil, apperrors.InvalidInput("listener", "listener is required")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, cancel := context.WithCancelCause(ctx)
	ex := &exchange{t: t, id: t.nextID.Add(1), l: l, ctx: ctx, cancel: cancel}

	httpReq, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, ex.trace()), method, req.URL, req.Body)
	if err != nil {
		cancel(err)
		return nil, apperrors.InvalidInput("url", err.Error()).WithCause(err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}
	if req.Body != nil && req.ContentLength != 0 {
		httpReq.ContentLength = req.ContentLength
	}
	ex.route = httpReq.URL.Scheme + "://" + httpReq.URL.Host

	go ex.run(httpReq)
	return ex, nil
}

func (t *Transport) getBuf() *[]byte {
	t.outstanding.Add(1)
	return t.bufs.Get().(*[]byte)
}

func (t *Transport) putBuf(b *[]byte) {
	t.outstanding.Add(-1)
	t.bufs.Put(b)
}

// exchange is one request and the goroutine that streams its response.
type exchange struct {
	t      *Transport
	id     uint64
	route  string
	l      transport.Listener
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu     sync.Mutex
	leased *transport.ConnEvent
}

// Abort cancels the request context. The body read in flight fails and the
// connection is closed rather than returned to the pool.
func (e *exchange) Abort(cause error) {
	if cause == nil {
		cause = apperrors.Cancelled()
	}
	e.cancel(cause)
}

func (e *exchange) run(req *http.Request) {
	defer e.cancel(nil)
	defer e.release()

	resp, err := e.t.client.Do(req)
	if err != nil {
		e.fail(err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	e.l.OnHeaders(response.Meta{StatusCode: resp.StatusCode, Header: response.FromHTTP(resp.Header)})

	for {
		buf := e.t.getBuf()
		n, rerr := resp.Body.Read(*buf)
		if n > 0 {
			c := chunk.New((*buf)[:n], func() { e.t.putBuf(buf) })
			if err := e.l.OnContent(c); err != nil {
				// Cancel before Close so the body is not drained for reuse.
				e.cancel(err)
				return
			}
		} else {
			e.t.putBuf(buf)
		}

		switch {
		case rerr == io.EOF:
			e.l.OnComplete()
			return
		case rerr != nil:
			e.fail(rerr)
			return
		}
	}
}

func (e *exchange) fail(err error) {
	if cause := context.Cause(e.ctx); cause != nil {
		// Aborted on purpose; the listener is already terminal.
		e.t.log.Debug("exchange aborted", logger.Fields(
			logger.FieldRoute, e.route,
			logger.FieldError, cause.Error(),
		))
	}
	e.l.OnFailure(apperrors.TransportFailure(err).WithDetail("route", e.route))
}

func (e *exchange) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if e.t.observer == nil {
				return
			}
			ev := transport.ConnEvent{
				ID:       e.id,
				Route:    e.route,
				Reused:   info.Reused,
				IdleTime: info.IdleTime,
				At:       time.Now(),
			}
			// A redirect leases a new connection after releasing the last.
			e.release()
			e.mu.Lock()
			e.leased = &ev
			e.mu.Unlock()
			e.t.observer.ConnLeased(ev)
		},
	}
}

func (e *exchange) release() {
	e.mu.Lock()
	ev := e.leased
	e.leased = nil
	e.mu.Unlock()
	if ev == nil || e.t.observer == nil {
		return
	}
	ev.At = time.Now()
	e.t.observer.ConnReleased(*ev)
}
