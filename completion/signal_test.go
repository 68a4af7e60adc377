package completion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/kbukum/asynchttp/errors"
)

func TestSignal_Succeed(t *testing.T) {
	s := New[string]()
	if s.State() != Pending {
		t.Fatalf("expected pending, got %s", s.State())
	}
	if !s.Succeed("ok") {
		t.Fatal("expected first resolution to take effect")
	}

	v, err := s.Wait(context.Background())
	if err != nil || v != "ok" {
		t.Errorf("expected ok, got %q, %v", v, err)
	}
	if s.State() != Succeeded {
		t.Errorf("expected succeeded, got %s", s.State())
	}
	select {
	case <-s.Done():
	default:
		t.Error("expected Done to be closed")
	}
}

func TestSignal_Fail(t *testing.T) {
	s := New[int]()
	boom := errors.New("boom")
	s.Fail(boom)

	_, err := s.Wait(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if s.State() != Failed {
		t.Errorf("expected failed, got %s", s.State())
	}
}

func TestSignal_DoubleResolutionPanics(t *testing.T) {
	tests := []struct {
		name   string
		first  func(*Signal[int])
		second func(*Signal[int])
	}{
		{"succeed twice", func(s *Signal[int]) { s.Succeed(1) }, func(s *Signal[int]) { s.Succeed(2) }},
		{"fail after succeed", func(s *Signal[int]) { s.Succeed(1) }, func(s *Signal[int]) { s.Fail(errors.New("x")) }},
		{"succeed after fail", func(s *Signal[int]) { s.Fail(errors.New("x")) }, func(s *Signal[int]) { s.Succeed(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New[int]()
			tt.first(s)
			defer func() {
				if recover() == nil {
					t.Error("expected panic on double resolution")
				}
				v, _, _ := s.Result()
				if tt.name == "succeed twice" && v != 1 {
					t.Errorf("value was overwritten: %d", v)
				}
			}()
			tt.second(s)
		})
	}
}

func TestSignal_CancelWins(t *testing.T) {
	s := New[int]()
	if !s.Cancel() {
		t.Fatal("expected cancel to take effect")
	}
	if s.Cancel() {
		t.Error("second cancel should report false")
	}
	if s.Succeed(1) {
		t.Error("resolution after cancel should be dropped")
	}
	if s.Fail(errors.New("late")) {
		t.Error("failure after cancel should be dropped")
	}

	_, err := s.Wait(context.Background())
	if !apperrors.IsCancelled(err) {
		t.Errorf("expected CANCELLED, got %v", err)
	}
}

func TestSignal_CancelAfterResolution(t *testing.T) {
	s := New[int]()
	s.Succeed(7)
	if s.Cancel() {
		t.Error("cancel after success should report false")
	}
	v, err := s.Wait(context.Background())
	if err != nil || v != 7 {
		t.Errorf("expected 7, got %d, %v", v, err)
	}
}

func TestSignal_FailNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil error")
		}
	}()
	New[int]().Fail(nil)
}

func TestSignal_OnComplete(t *testing.T) {
	s := New[string]()
	var got []string
	s.OnComplete(func(v string, err error) { got = append(got, "before:"+v) })
	s.Succeed("x")
	s.OnComplete(func(v string, err error) { got = append(got, "after:"+v) })

	if len(got) != 2 || got[0] != "before:x" || got[1] != "after:x" {
		t.Errorf("unexpected continuations: %v", got)
	}
}

func TestSignal_WaitContextEnds(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if s.State() != Pending {
		t.Errorf("waiting must not resolve the signal, got %s", s.State())
	}
}

func TestSignal_ConcurrentResolversOneWins(t *testing.T) {
	for i := 0; i < 50; i++ {
		s := New[int]()
		var wg sync.WaitGroup
		wg.Add(2)
		var cancelled, succeeded bool
		go func() {
			defer wg.Done()
			cancelled = s.Cancel()
		}()
		go func() {
			defer wg.Done()
			defer func() { _ = recover() }()
			succeeded = s.Succeed(1)
		}()
		wg.Wait()

		if cancelled == succeeded {
			t.Fatalf("expected exactly one winner, cancelled=%v succeeded=%v", cancelled, succeeded)
		}
	}
}

func TestState_String(t *testing.T) {
	if Pending.String() != "pending" || Cancelled.String() != "cancelled" {
		t.Error("unexpected state names")
	}
	if Pending.Terminal() || !Failed.Terminal() {
		t.Error("unexpected terminal flags")
	}
}
