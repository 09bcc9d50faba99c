// Command loadgen drives a threadbench server and prints a latency comparison
// of its request modes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/seantiz/threadbench/internal/config"
	"github.com/seantiz/threadbench/internal/loadgen"
	"github.com/seantiz/threadbench/internal/model"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "threadbench base URL")
		modes       = flag.String("modes", "sync,async,virtual", "comma-separated modes to drive")
		requests    = flag.Int("n", loadgen.DefaultRequests, "requests per mode")
		concurrency = flag.Int("c", loadgen.DefaultConcurrency, "concurrent requests")
		input       = flag.String("input", loadgen.DefaultInput, "input sent with each request")
		timeout     = flag.Duration("timeout", loadgen.DefaultTimeout, "per-request timeout")
		format      = flag.String("format", "table", "output format: table or json")
		logLevel    = flag.String("log-level", "info", "log level: debug, info, warn or error")
	)
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		log.Fatalf("invalid log level: %v", err)
	}
	logger := config.NewLogger(os.Stderr, level, config.LogFormatText)

	parsed, err := parseModes(*modes)
	if err != nil {
		log.Fatalf("invalid modes: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reports, err := loadgen.Run(ctx, loadgen.Config{
		BaseURL:     *baseURL,
		Modes:       parsed,
		Requests:    *requests,
		Concurrency: *concurrency,
		Input:       *input,
		Timeout:     *timeout,
	}, logger)
	if err != nil {
		logger.Error("load run aborted", "error", err)
		if len(reports) == 0 {
			os.Exit(1)
		}
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(reports)
	default:
		err = loadgen.WriteTable(os.Stdout, reports)
	}
	if err != nil {
		log.Fatalf("write report: %v", err)
	}
}

func parseModes(s string) ([]model.Mode, error) {
	var modes []model.Mode
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, err := model.ParseMode(part)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("no modes in %q", s)
	}
	return modes, nil
}
