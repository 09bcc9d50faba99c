package model

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects how a request is executed.
type Mode string

// Request modes.
const (
	ModeSync    Mode = "sync"
	ModeAsync   Mode = "async"
	ModeVirtual Mode = "virtual"
)

// Executor labels reported in WorkResult.ExecutorLabel.
const (
	LabelBoundedPool = "bounded-pool"
	LabelUnbounded   = "unbounded"
	LabelSync        = "sync"
)

// ErrUnknownMode is returned by ParseMode for anything but sync, async and
// virtual.
var ErrUnknownMode = errors.New("unknown mode")

// ParseMode converts s into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSync, ModeAsync, ModeVirtual:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownMode, s)
	}
}

// WorkRequest is a single accepted unit of work. RequestID is assigned from the
// process-wide counter when the request is accepted.
type WorkRequest struct {
	Input     string `json:"input"`
	RequestID uint64 `json:"request_id"`
}

// WorkResult is what a request produces once the simulated work finishes or
// fails. Error and ErrorKind are set only when the work failed.
type WorkResult struct {
	RequestID      uint64 `json:"request_id"`
	Mode           Mode   `json:"mode"`
	ResultText     string `json:"result,omitempty"`
	DelayMillis    int64  `json:"delay_ms,omitempty"`
	ElapsedMillis  int64  `json:"processing_time_ms"`
	ExecutorLabel  string `json:"executor"`
	WorkerIdentity string `json:"worker"`
	IsLightweight  bool   `json:"is_lightweight"`
	Error          string `json:"error,omitempty"`
	ErrorKind      Kind   `json:"error_kind,omitempty"`
}

// Failed reports whether r carries a structured failure.
func (r WorkResult) Failed() bool {
	return r.ErrorKind != ""
}

// Health is the snapshot returned by the health operation.
type Health struct {
	Status                string `json:"status"`
	RequestsProcessed     uint64 `json:"requests_processed"`
	CurrentWorkerIdentity string `json:"current_worker"`
}

// Sample is a recorded WorkResult, kept for the statistics endpoints.
type Sample struct {
	ID            string    `json:"id"`
	RequestID     uint64    `json:"request_id"`
	Mode          Mode      `json:"mode"`
	ExecutorLabel string    `json:"executor"`
	Worker        string    `json:"worker"`
	Lightweight   bool      `json:"is_lightweight"`
	DelayMillis   int64     `json:"delay_ms"`
	ElapsedMillis int64     `json:"processing_time_ms"`
	ErrorKind     Kind      `json:"error_kind,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewSample builds a Sample from a finished result.
func NewSample(r WorkResult) Sample {
	return Sample{
		ID:            NewID(),
		RequestID:     r.RequestID,
		Mode:          r.Mode,
		ExecutorLabel: r.ExecutorLabel,
		Worker:        r.WorkerIdentity,
		Lightweight:   r.IsLightweight,
		DelayMillis:   r.DelayMillis,
		ElapsedMillis: r.ElapsedMillis,
		ErrorKind:     r.ErrorKind,
		CreatedAt:     time.Now().UTC(),
	}
}
