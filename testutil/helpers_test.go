package testutil_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/asynchttp/component"
	"github.com/kbukum/asynchttp/testutil"
)

type fakeComponent struct {
	started  atomic.Bool
	stopped  atomic.Bool
	startErr error
	status   component.HealthStatus
}

func (f *fakeComponent) Name() string { return "fake" }

func (f *fakeComponent) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Store(true)
	return nil
}

func (f *fakeComponent) Stop(context.Context) error {
	f.stopped.Store(true)
	return nil
}

func (f *fakeComponent) Health(context.Context) component.Health {
	status := f.status
	if status == "" {
		status = component.StatusHealthy
	}
	return component.Health{Name: f.Name(), Status: status}
}

func TestSetup_StartsAndStops(t *testing.T) {
	comp := &fakeComponent{}

	cleanup, err := testutil.Setup(comp)
	if err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	if !comp.started.Load() {
		t.Error("component should be started after Setup()")
	}
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup() failed: %v", err)
	}
	if !comp.stopped.Load() {
		t.Error("component should be stopped after cleanup()")
	}
}

func TestSetup_StartError(t *testing.T) {
	comp := &fakeComponent{startErr: errors.New("boom")}
	cleanup, err := testutil.Setup(comp)
	if err == nil || cleanup != nil {
		t.Fatal("expected start error and no cleanup")
	}
}

func TestTeardown(t *testing.T) {
	comp := &fakeComponent{}
	if err := testutil.Teardown(comp); err != nil {
		t.Fatalf("Teardown() failed: %v", err)
	}
	if !comp.stopped.Load() {
		t.Error("component should be stopped")
	}
}

func TestTHelper_SetupStopsOnCleanup(t *testing.T) {
	comp := &fakeComponent{}
	t.Run("inner", func(t *testing.T) {
		testutil.T(t).Setup(comp)
		testutil.T(t).RequireHealthy(comp)
		if comp.stopped.Load() {
			t.Error("component stopped before the test ended")
		}
	})
	if !comp.stopped.Load() {
		t.Error("component should be stopped after the subtest")
	}
}

func TestEventually(t *testing.T) {
	var n atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		n.Store(1)
	}()
	testutil.Eventually(t, func() bool { return n.Load() == 1 }, "flag set")
}
