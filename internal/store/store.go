package store

import (
	"context"

	"github.com/seantiz/threadbench/internal/model"
)

// ExecutorStats aggregates the samples recorded for one executor label.
// Latency figures only cover successful samples.
type ExecutorStats struct {
	Executor string  `json:"executor"`
	Count    int     `json:"count"`
	Errors   int     `json:"errors"`
	AvgMS    float64 `json:"avg_ms"`
	P50MS    int64   `json:"p50_ms"`
	P95MS    int64   `json:"p95_ms"`
	P99MS    int64   `json:"p99_ms"`
	MaxMS    int64   `json:"max_ms"`
}

// SampleStats holds aggregate statistics across all recorded samples.
type SampleStats struct {
	Total       int              `json:"total"`
	CountByMode map[string]int   `json:"count_by_mode"`
	ByExecutor  []*ExecutorStats `json:"by_executor"`
}

// Store records finished requests for the statistics endpoints.
type Store interface {
	RecordSample(ctx context.Context, s model.Sample) error
	ListSamples(ctx context.Context, limit, offset int) ([]model.Sample, int, error)
	GetStats(ctx context.Context) (*SampleStats, error)
	Close() error
}
