package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/asynchttp/component"
)

// DefaultWait bounds Eventually and the stop performed during cleanup.
const DefaultWait = 5 * time.Second

// CleanupFunc is a function that performs cleanup, typically stopping a component.
type CleanupFunc func() error

// Setup starts a component and returns a function that stops it.
func Setup(c component.Component) (CleanupFunc, error) {
	return SetupWithContext(context.Background(), c)
}

// SetupWithContext starts a component with ctx and returns a function that
// stops it with the same context.
func SetupWithContext(ctx context.Context, c component.Component) (CleanupFunc, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return func() error { return c.Stop(ctx) }, nil
}

// Teardown stops a component.
func Teardown(c component.Component) error {
	return TeardownWithContext(context.Background(), c)
}

// TeardownWithContext stops a component with ctx.
func TeardownWithContext(ctx context.Context, c component.Component) error {
	return c.Stop(ctx)
}

// THelper ties component lifecycles to a test.
type THelper struct {
	t   testing.TB
	ctx context.Context
}

// T wraps a test to provide helper methods.
func T(t testing.TB) *THelper {
	return &THelper{t: t, ctx: context.Background()}
}

// WithContext sets the context passed to Start.
func (h *THelper) WithContext(ctx context.Context) *THelper {
	h.ctx = ctx
	return h
}

// Setup starts c and stops it when the test ends. Stop gets a fresh context
// bounded by DefaultWait, since the start context may be gone by then.
func (h *THelper) Setup(c component.Component) {
	h.t.Helper()
	if err := c.Start(h.ctx); err != nil {
		h.t.Fatalf("failed to start component %s: %v", c.Name(), err)
	}
	h.t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultWait)
		defer cancel()
		if err := c.Stop(ctx); err != nil {
			h.t.Errorf("failed to stop component %s: %v", c.Name(), err)
		}
	})
}

// RequireHealthy fails the test unless c reports healthy.
func (h *THelper) RequireHealthy(c component.Component) {
	h.t.Helper()
	if got := c.Health(h.ctx); got.Status != component.StatusHealthy {
		h.t.Fatalf("component %s is %s: %s", c.Name(), got.Status, got.Message)
	}
}

// Eventually polls cond until it holds or DefaultWait elapses.
func Eventually(t testing.TB, cond func() bool, what string) {
	t.Helper()
	EventuallyWithin(t, DefaultWait, cond, what)
}

// EventuallyWithin polls cond every few milliseconds until it holds or d
// elapses, then fails the test naming what was awaited.
func EventuallyWithin(t testing.TB, d time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %v waiting for %s", d, what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
