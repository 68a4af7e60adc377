package poolmon

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/asynchttp/component"
	"github.com/kbukum/asynchttp/logger"
	"github.com/kbukum/asynchttp/observability"
	"github.com/kbukum/asynchttp/transport"
)

const componentName = "poolmon"

// RouteStats is a snapshot of one route's connection usage.
type RouteStats struct {
	Route string
	// Leased counts every lease.
	Leased uint64
	// Reused counts leases served from the idle pool, New the rest.
	Reused uint64
	New    uint64
	// InUse is the number of connections currently leased.
	InUse int
	// MaxInUse is the high-water mark of InUse.
	MaxInUse int
	// Stalls counts leases held past the stall threshold.
	Stalls uint64
}

type lease struct {
	ev      transport.ConnEvent
	stalled bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger. Defaults to logger.Get("poolmon").
func WithLogger(l *logger.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// WithMetrics reports stalls to metrics.
func WithMetrics(em *observability.EngineMetrics) Option {
	return func(m *Monitor) { m.metrics = em }
}

// Monitor records connection leases and reports stalls.
type Monitor struct {
	cfg     Config
	log     *logger.Logger
	metrics *observability.EngineMetrics
	now     func() time.Time

	mu     sync.Mutex
	routes map[string]*RouteStats
	active map[uint64]*lease

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

var (
	_ transport.ConnObserver = (*Monitor)(nil)
	_ component.Component    = (*Monitor)(nil)
	_ component.Describable  = (*Monitor)(nil)
)

// New creates a Monitor. It records events right away; Start only begins
// the stall sweep.
func New(cfg Config, opts ...Option) *Monitor {
	cfg.ApplyDefaults()
	m := &Monitor{
		cfg:    cfg,
		now:    time.Now,
		routes: make(map[string]*RouteStats),
		active: make(map[uint64]*lease),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Get(componentName)
	} else {
		m.log = m.log.WithComponent(componentName)
	}
	return m
}

// ConnLeased implements transport.ConnObserver.
func (m *Monitor) ConnLeased(ev transport.ConnEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs := m.routeLocked(ev.Route)
	rs.Leased++
	if ev.Reused {
		rs.Reused++
	} else {
		rs.New++
	}
	rs.InUse++
	rs.MaxInUse = max(rs.MaxInUse, rs.InUse)
	m.active[ev.ID] = &lease{ev: ev}
}

// ConnReleased implements transport.ConnObserver. Releases without a
// matching lease are ignored.
func (m *Monitor) ConnReleased(ev transport.ConnEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.active[ev.ID]
	if !ok {
		return
	}
	delete(m.active, ev.ID)
	m.routeLocked(l.ev.Route).InUse--
}

func (m *Monitor) routeLocked(route string) *RouteStats {
	rs, ok := m.routes[route]
	if !ok {
		rs = &RouteStats{Route: route}
		m.routes[route] = rs
	}
	return rs
}

// Stats returns a snapshot of every route seen, sorted by route.
func (m *Monitor) Stats() []RouteStats {
	m.mu.Lock()
	out := make([]RouteStats, 0, len(m.routes))
	for _, rs := range m.routes {
		out = append(out, *rs)
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b RouteStats) int { return strings.Compare(a.Route, b.Route) })
	return out
}

// Route returns the stats of one route.
func (m *Monitor) Route(route string) (RouteStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.routes[route]
	if !ok {
		return RouteStats{}, false
	}
	return *rs, true
}

// InUse returns the number of connections leased across all routes.
func (m *Monitor) InUse() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// sweep reports leases that crossed the threshold since the last sweep.
func (m *Monitor) sweep(ctx context.Context) {
	now := m.now()
	var stalled []transport.ConnEvent

	m.mu.Lock()
	for _, l := range m.active {
		if l.stalled || now.Sub(l.ev.At) < m.cfg.StallThreshold {
			continue
		}
		l.stalled = true
		m.routeLocked(l.ev.Route).Stalls++
		stalled = append(stalled, l.ev)
	}
	m.mu.Unlock()

	for _, ev := range stalled {
		m.metrics.ConnectionStall(ctx, ev.Route)
		m.log.Warn("connection held past stall threshold", logger.Fields(
			logger.FieldRoute, ev.Route,
			"exchange_id", ev.ID,
			logger.FieldDuration, now.Sub(ev.At).Milliseconds(),
		))
	}
}

// stalledCount returns leases currently past the threshold.
func (m *Monitor) stalledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.active {
		if l.stalled {
			n++
		}
	}
	return n
}

// Name implements component.Component.
func (m *Monitor) Name() string { return componentName }

// Start begins the periodic stall sweep. Starting twice is a no-op.
func (m *Monitor) Start(_ context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.stop != nil {
		return nil
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stop, m.done)

	m.log.Debug("connection monitor started", logger.Fields(
		"stall_threshold", m.cfg.StallThreshold.String(),
		"check_interval", m.cfg.CheckInterval.String(),
	))
	return nil
}

func (m *Monitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.sweep(context.Background())
		}
	}
}

// Stop ends the sweep and waits for it to exit or ctx to end.
func (m *Monitor) Stop(ctx context.Context) error {
	m.runMu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.runMu.Unlock()
	if stop == nil {
		return nil
	}

	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health reports degraded while any lease is stalled.
func (m *Monitor) Health(_ context.Context) component.Health {
	if n := m.stalledCount(); n > 0 {
		return component.Health{
			Name:    componentName,
			Status:  component.StatusDegraded,
			Message: fmt.Sprintf("%d connection(s) held longer than %s", n, m.cfg.StallThreshold),
		}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (m *Monitor) Describe() component.Description {
	m.mu.Lock()
	routes := len(m.routes)
	m.mu.Unlock()
	return component.Description{
		Name:    "Connection Monitor",
		Type:    "monitor",
		Details: fmt.Sprintf("stall_threshold=%s interval=%s routes=%d", m.cfg.StallThreshold, m.cfg.CheckInterval, routes),
	}
}
