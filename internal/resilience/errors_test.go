package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("429"), 429), true},
		{"wrapped", fmt.Errorf("fetch: %w", NewTransientError(errors.New("503"), 503)), true},
		{"permanent", &PermanentError{Err: errors.New("404"), StatusCode: 404}, false},
		{"permanent wrapping transient", &PermanentError{Err: NewTransientError(errors.New("x"), 0)}, false},
		{"net timeout", timeoutErr{}, true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"pattern", errors.New("Get https://library.municode.com: i/o timeout"), true},
		{"plain", errors.New("parse error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPStatusClasses(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) || IsPermanentHTTPStatus(code) {
			t.Errorf("%d should be transient only", code)
		}
	}
	for _, code := range []int{403, 404, 410} {
		if !IsPermanentHTTPStatus(code) || IsTransientHTTPStatus(code) {
			t.Errorf("%d should be permanent only", code)
		}
	}
	if IsTransientHTTPStatus(200) || IsPermanentHTTPStatus(200) {
		t.Error("200 is neither")
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("base")
	if !errors.Is(NewTransientError(base, 500), base) {
		t.Error("transient should unwrap")
	}
	pe := &PermanentError{Err: base, StatusCode: 404}
	if !errors.Is(pe, base) || pe.Error() != "base" {
		t.Error("permanent should unwrap")
	}
}
