package model

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"sync", ModeSync, false},
		{"async", ModeAsync, false},
		{"virtual", ModeVirtual, false},
		{"coroutine", "", true},
		{"", "", true},
		{"SYNC", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnknownMode) {
			t.Errorf("ParseMode(%q) error = %v, want ErrUnknownMode", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := &Error{Kind: KindInterrupted, RequestID: 7, Err: context.Canceled}

	if !errors.Is(err, ErrInterrupted) {
		t.Error("errors.Is(err, ErrInterrupted) = false, want true")
	}
	if errors.Is(err, ErrRejected) {
		t.Error("errors.Is(err, ErrRejected) = true, want false")
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("errors.Is(err, context.Canceled) = false, want true via Unwrap")
	}
	if got := err.Error(); got != "request 7: interrupted: context canceled" {
		t.Errorf("Error() = %q", got)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed", &Error{Kind: KindRejected}, KindRejected},
		{"wrapped typed", fmt.Errorf("submit: %w", &Error{Kind: KindInterrupted}), KindInterrupted},
		{"sentinel", fmt.Errorf("%w: queue full", ErrRejected), KindRejected},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("%s: KindOf = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(1, nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}

	err := WrapError(42, fmt.Errorf("%w: pool saturated", ErrRejected))
	var we *Error
	if !errors.As(err, &we) {
		t.Fatalf("WrapError returned %T, want *Error", err)
	}
	if we.RequestID != 42 || we.Kind != KindRejected {
		t.Errorf("got request %d kind %q, want 42 rejected", we.RequestID, we.Kind)
	}

	if again := WrapError(42, err); again != err {
		t.Error("WrapError should not double-wrap an error for the same request")
	}
}

func TestNewSample(t *testing.T) {
	r := WorkResult{
		RequestID:      3,
		Mode:           ModeVirtual,
		DelayMillis:    120,
		ElapsedMillis:  121,
		ExecutorLabel:  LabelUnbounded,
		WorkerIdentity: "virtual-3",
		IsLightweight:  true,
	}
	s := NewSample(r)

	if s.ID == "" || s.CreatedAt.IsZero() {
		t.Errorf("sample missing id or timestamp: %+v", s)
	}
	if s.RequestID != 3 || s.Mode != ModeVirtual || s.ExecutorLabel != LabelUnbounded {
		t.Errorf("sample = %+v, want fields copied from result", s)
	}
	if !s.Lightweight || s.Worker != "virtual-3" {
		t.Errorf("sample worker = %q lightweight = %v", s.Worker, s.Lightweight)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		p    int
		want int64
	}{
		{0, 1},
		{50, 6},
		{95, 10},
		{99, 10},
		{100, 10},
		{-5, 1},
		{150, 10},
	}
	for _, tt := range tests {
		if got := Percentile(sorted, tt.p); got != tt.want {
			t.Errorf("Percentile(p=%d) = %d, want %d", tt.p, got, tt.want)
		}
	}

	if got := Percentile([]int64{3, 8}, 50); got != 8 {
		t.Errorf("Percentile([3 8], 50) = %d, want 8 (upper of two)", got)
	}

	if got := Percentile([]int64(nil), 50); got != 0 {
		t.Errorf("Percentile(empty) = %d, want 0", got)
	}
}
