package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestRecoverableError_Error(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
		want   string
	}{
		{
			name:   "with reason and error",
			err:    errors.New("connection reset"),
			reason: "connection lost",
			want:   "connection lost: connection reset",
		},
		{
			name:   "with reason only",
			err:    nil,
			reason: "HTTP 503",
			want:   "HTTP 503",
		},
		{
			name: "with error only",
			err:  errors.New("connection reset"),
			want: "connection reset",
		},
		{
			name: "empty",
			want: "recoverable failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := NewRecoverableError(tt.err, tt.reason)
			if got := re.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassification(t *testing.T) {
	recoverable := NewRecoverableError(errors.New("boom"), "server trouble")
	fatal := NewFatalError(errors.New("gone"), "HTTP 404")
	wrapped := fmt.Errorf("attempt 3: %w", recoverable)
	wrappedFatal := fmt.Errorf("attempt 1: %w", fatal)

	tests := []struct {
		name            string
		err             error
		wantRecoverable bool
		wantFatal       bool
		wantReason      string
	}{
		{"recoverable", recoverable, true, false, "server trouble"},
		{"fatal", fatal, false, true, "HTTP 404"},
		{"wrapped recoverable", wrapped, true, false, "server trouble"},
		{"wrapped fatal", wrappedFatal, false, true, "HTTP 404"},
		{"plain error", errors.New("whatever"), false, false, ""},
		{"nil", nil, false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.wantRecoverable {
				t.Errorf("IsRecoverable() = %v, want %v", got, tt.wantRecoverable)
			}
			if got := IsFatal(tt.err); got != tt.wantFatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.wantFatal)
			}
			if got := FailureReason(tt.err); got != tt.wantReason {
				t.Errorf("FailureReason() = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code      int
		wantFatal bool
	}{
		{400, true},
		{403, true},
		{404, true},
		{429, true},
		{500, false},
		{502, false},
		{503, false},
	}

	for _, tt := range tests {
		err := ClassifyStatus(tt.code, "http://example.com/f.bin")
		if got := IsFatal(err); got != tt.wantFatal {
			t.Errorf("ClassifyStatus(%d): IsFatal = %v, want %v", tt.code, got, tt.wantFatal)
		}
		if got := IsRecoverable(err); got == tt.wantFatal {
			t.Errorf("ClassifyStatus(%d): IsRecoverable = %v, want %v", tt.code, got, !tt.wantFatal)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	underlying := errors.New("underlying")

	if got := NewRecoverableError(underlying, "x").Unwrap(); got != underlying {
		t.Errorf("RecoverableError.Unwrap() = %v, want %v", got, underlying)
	}
	if got := NewFatalError(underlying, "x").Unwrap(); got != underlying {
		t.Errorf("FatalError.Unwrap() = %v, want %v", got, underlying)
	}
	if !errors.Is(NewFatalError(underlying, "x"), underlying) {
		t.Error("errors.Is should reach the underlying error")
	}
}
