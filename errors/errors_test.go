package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestAppError_New_Retryable(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodeTransportFailure, true},
		{ErrCodeTimeout, true},
		{ErrCodeRejected, true},
		{ErrCodeProtocolViolation, false},
		{ErrCodeExtractionFailure, false},
		{ErrCodeCancelled, false},
		{ErrCodeChannelClosed, false},
		{ErrCodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "msg")
			if err.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v for %s", tt.retryable, tt.code)
			}
		})
	}
}

func TestAppError_Error_WithCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := TransportFailure(cause)
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
	if !strings.HasPrefix(err.Error(), string(ErrCodeTransportFailure)) {
		t.Errorf("expected code prefix, got %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected Unwrap to expose cause")
	}
}

func TestAppError_Is_MatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("await: %w", Cancelled())
	if !stderrors.Is(wrapped, Cancelled()) {
		t.Error("expected errors.Is to match cancellation by code")
	}
	if stderrors.Is(wrapped, Timeout("x", time.Second)) {
		t.Error("did not expect cancellation to match timeout")
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		fn   func(error) bool
	}{
		{"cancelled", Cancelled(), IsCancelled},
		{"timeout", Timeout("await", time.Second), IsTimeout},
		{"transport", TransportFailure(fmt.Errorf("eof")), IsTransportFailure},
		{"protocol", ProtocolViolation("content before headers"), IsProtocolViolation},
		{"extraction", ExtractionFailure(fmt.Errorf("bad json")), IsExtractionFailure},
		{"channel closed", ChannelClosed(), IsChannelClosed},
		{"rejected", Rejected(fmt.Errorf("full")), IsRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.fn(tt.err) {
				t.Errorf("predicate did not match %v", tt.err)
			}
			if !tt.fn(fmt.Errorf("wrapped: %w", tt.err)) {
				t.Errorf("predicate did not match wrapped %v", tt.err)
			}
			if tt.fn(fmt.Errorf("plain")) {
				t.Error("predicate matched a plain error")
			}
		})
	}
}

func TestHasCode_Nil(t *testing.T) {
	if HasCode(nil, ErrCodeCancelled) {
		t.Error("nil error must not carry a code")
	}
	if Code(fmt.Errorf("x")) != "" {
		t.Error("plain error must have empty code")
	}
}

func TestInvalidInput_Details(t *testing.T) {
	err := InvalidInput("url", "missing scheme")
	if err.Details["field"] != "url" {
		t.Errorf("expected field=url, got %v", err.Details["field"])
	}
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", err.Code)
	}
	if e := InvalidInput("", "x"); e.Details != nil {
		t.Error("expected no details when field is empty")
	}
}

func TestTimeout_Details(t *testing.T) {
	err := Timeout("await", 250*time.Millisecond)
	if err.Details["operation"] != "await" {
		t.Errorf("expected operation detail, got %v", err.Details)
	}
	if !strings.Contains(err.Message, "250ms") {
		t.Errorf("expected duration in message, got %q", err.Message)
	}
}

func TestAsAppError(t *testing.T) {
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("plain error should not convert")
	}
	e, ok := AsAppError(fmt.Errorf("wrap: %w", Internal(fmt.Errorf("boom"))))
	if !ok || e.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %v", e)
	}
}
