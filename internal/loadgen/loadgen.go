// Package loadgen drives a running threadbench server with concurrent
// requests and summarizes the latency each mode achieved.
package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seantiz/threadbench/internal/model"
)

// Defaults for a run.
const (
	DefaultRequests    = 1000
	DefaultConcurrency = 100
	DefaultInput       = "test"
	DefaultTimeout     = 30 * time.Second
)

// Config describes a load run. Each mode in Modes is driven in turn with
// Requests requests, at most Concurrency of them in flight.
type Config struct {
	BaseURL     string
	Modes       []model.Mode
	Requests    int
	Concurrency int
	Input       string
	Timeout     time.Duration
	Client      *http.Client
}

func (c *Config) normalize() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if len(c.Modes) == 0 {
		c.Modes = []model.Mode{model.ModeSync, model.ModeAsync, model.ModeVirtual}
	}
	if c.Requests <= 0 {
		c.Requests = DefaultRequests
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Input == "" {
		c.Input = DefaultInput
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Client == nil {
		c.Client = &http.Client{
			Timeout: c.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        c.Concurrency,
				MaxIdleConnsPerHost: c.Concurrency,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return nil
}

// Report summarizes one mode of a run. Latencies cover successful requests.
type Report struct {
	RunID      string         `json:"run_id"`
	Mode       model.Mode     `json:"mode"`
	Requests   int            `json:"requests"`
	Failures   int            `json:"failures"`
	Duration   time.Duration  `json:"duration"`
	Throughput float64        `json:"throughput"`
	Mean       time.Duration  `json:"mean"`
	StdDev     time.Duration  `json:"stddev"`
	P50        time.Duration  `json:"p50"`
	P95        time.Duration  `json:"p95"`
	P99        time.Duration  `json:"p99"`
	Max        time.Duration  `json:"max"`
	Executors  map[string]int `json:"executors"`
	ErrorKinds map[string]int `json:"error_kinds,omitempty"`
}

// Run drives every configured mode and returns one report per mode. Failed
// requests are counted in the report; only cancellation of ctx aborts the run.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) ([]Report, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	runID := model.NewID()
	reports := make([]Report, 0, len(cfg.Modes))
	for _, mode := range cfg.Modes {
		logger.Info("starting phase",
			"run_id", runID,
			"mode", mode,
			"requests", cfg.Requests,
			"concurrency", cfg.Concurrency,
		)

		rep, err := runPhase(ctx, cfg, mode)
		if err != nil {
			return reports, fmt.Errorf("%s phase: %w", mode, err)
		}
		rep.RunID = runID

		logger.Info("phase complete",
			"run_id", runID,
			"mode", mode,
			"failures", rep.Failures,
			"throughput", fmt.Sprintf("%.1f", rep.Throughput),
			"p50_ms", rep.P50.Milliseconds(),
			"p99_ms", rep.P99.Milliseconds(),
		)
		reports = append(reports, rep)
	}
	return reports, nil
}

// outcome is the client-side view of one request.
type outcome struct {
	latency   time.Duration
	executor  string
	errorKind string
}

func runPhase(ctx context.Context, cfg Config, mode model.Mode) (Report, error) {
	var (
		mu       sync.Mutex
		outcomes = make([]outcome, 0, cfg.Requests)
	)

	target := fmt.Sprintf("%s/v1/%s?input=%s", cfg.BaseURL, mode, url.QueryEscape(cfg.Input))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	start := time.Now()
	for range cfg.Requests {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o := do(gctx, cfg.Client, target)
			mu.Lock()
			outcomes = append(outcomes, o)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	return summarize(mode, outcomes, time.Since(start)), nil
}

// do issues one request. Transport errors, non-200 responses and structured
// async failures all count as failures.
func do(ctx context.Context, client *http.Client, target string) outcome {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return outcome{latency: time.Since(start), errorKind: "client"}
	}

	resp, err := client.Do(req)
	if err != nil {
		return outcome{latency: time.Since(start), errorKind: "transport"}
	}
	defer resp.Body.Close()

	var res model.WorkResult
	decodeErr := json.NewDecoder(resp.Body).Decode(&res)
	o := outcome{latency: time.Since(start), executor: res.ExecutorLabel}

	switch {
	case decodeErr != nil:
		o.errorKind = "decode"
	case res.Failed():
		o.errorKind = string(res.ErrorKind)
	case resp.StatusCode != http.StatusOK:
		o.errorKind = fmt.Sprintf("http_%d", resp.StatusCode)
	}
	return o
}

func summarize(mode model.Mode, outcomes []outcome, elapsed time.Duration) Report {
	rep := Report{
		Mode:      mode,
		Requests:  len(outcomes),
		Duration:  elapsed,
		Executors: make(map[string]int),
	}

	latencies := make([]time.Duration, 0, len(outcomes))
	for _, o := range outcomes {
		if o.executor != "" {
			rep.Executors[o.executor]++
		}
		if o.errorKind != "" {
			rep.Failures++
			if rep.ErrorKinds == nil {
				rep.ErrorKinds = make(map[string]int)
			}
			rep.ErrorKinds[o.errorKind]++
			continue
		}
		latencies = append(latencies, o.latency)
	}

	if elapsed > 0 {
		rep.Throughput = float64(len(outcomes)) / elapsed.Seconds()
	}
	if len(latencies) == 0 {
		return rep
	}

	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	rep.Mean = sum / time.Duration(len(latencies))

	var variance float64
	for _, l := range latencies {
		diff := float64(l - rep.Mean)
		variance += diff * diff
	}
	rep.StdDev = time.Duration(math.Sqrt(variance / float64(len(latencies))))

	rep.P50 = model.Percentile(latencies, 50)
	rep.P95 = model.Percentile(latencies, 95)
	rep.P99 = model.Percentile(latencies, 99)
	rep.Max = latencies[len(latencies)-1]
	return rep
}
