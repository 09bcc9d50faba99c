package config

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":8080")
	}
	if cfg.DBPath != ":memory:" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, ":memory:")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.AsyncStrategy != StrategyBounded {
		t.Errorf("AsyncStrategy = %q, want %q", cfg.AsyncStrategy, StrategyBounded)
	}
	if cfg.Pool.CoreSize != 200 || cfg.Pool.MaxSize != 500 || cfg.Pool.QueueCapacity != 1000 {
		t.Errorf("Pool = %+v, want core=200 max=500 queue=1000", cfg.Pool)
	}
	if cfg.Pool.Saturation != PolicyReject {
		t.Errorf("Saturation = %q, want %q", cfg.Pool.Saturation, PolicyReject)
	}
	if cfg.Simulator.MinDelay != 50*time.Millisecond || cfg.Simulator.MaxDelay != 200*time.Millisecond {
		t.Errorf("Simulator delays = [%s, %s], want [50ms, 200ms]", cfg.Simulator.MinDelay, cfg.Simulator.MaxDelay)
	}
	if cfg.Simulator.TailEvery != 10 || cfg.Simulator.TailExtra != 10*time.Millisecond {
		t.Errorf("Simulator tail = every %d +%s, want every 10 +10ms", cfg.Simulator.TailEvery, cfg.Simulator.TailExtra)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("THREADBENCH_LISTEN_ADDR", ":9090")
	t.Setenv("THREADBENCH_LOG_LEVEL", "debug")
	t.Setenv("THREADBENCH_ASYNC_STRATEGY", "unbounded")
	t.Setenv("THREADBENCH_POOL_CORE_SIZE", "4")
	t.Setenv("THREADBENCH_POOL_MAX_SIZE", "8")
	t.Setenv("THREADBENCH_POOL_QUEUE_CAPACITY", "16")
	t.Setenv("THREADBENCH_POOL_SATURATION", "block")
	t.Setenv("THREADBENCH_MIN_DELAY", "5ms")
	t.Setenv("THREADBENCH_MAX_DELAY", "7ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.AsyncStrategy != StrategyUnbounded {
		t.Errorf("AsyncStrategy = %q, want %q", cfg.AsyncStrategy, StrategyUnbounded)
	}
	if cfg.Pool.CoreSize != 4 || cfg.Pool.MaxSize != 8 || cfg.Pool.QueueCapacity != 16 {
		t.Errorf("Pool = %+v, want core=4 max=8 queue=16", cfg.Pool)
	}
	if cfg.Pool.Saturation != PolicyBlock {
		t.Errorf("Saturation = %q, want %q", cfg.Pool.Saturation, PolicyBlock)
	}
	if cfg.Simulator.MinDelay != 5*time.Millisecond || cfg.Simulator.MaxDelay != 7*time.Millisecond {
		t.Errorf("Simulator delays = [%s, %s], want [5ms, 7ms]", cfg.Simulator.MinDelay, cfg.Simulator.MaxDelay)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		want    string
	}{
		{"max below core", map[string]string{"THREADBENCH_POOL_CORE_SIZE": "10", "THREADBENCH_POOL_MAX_SIZE": "5"}, "below core size"},
		{"zero core", map[string]string{"THREADBENCH_POOL_CORE_SIZE": "0"}, "core size"},
		{"negative queue", map[string]string{"THREADBENCH_POOL_QUEUE_CAPACITY": "-1"}, "queue capacity"},
		{"unknown policy", map[string]string{"THREADBENCH_POOL_SATURATION": "drop"}, "saturation policy"},
		{"unknown strategy", map[string]string{"THREADBENCH_ASYNC_STRATEGY": "forkjoin"}, "async strategy"},
		{"inverted delays", map[string]string{"THREADBENCH_MIN_DELAY": "300ms"}, "delay range"},
		{"unknown format", map[string]string{"THREADBENCH_LOG_FORMAT": "xml"}, "log format"},
		{"bad level", map[string]string{"THREADBENCH_LOG_LEVEL": "loud"}, "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFrom(tt.environ)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, LogFormatJSON)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn, LogFormatText)

	logger.Info("hidden")
	logger.Warn("shown", "pool", "bounded")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "pool=bounded") {
		t.Errorf("text output = %q, want message and pool=bounded", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("text output to a buffer should not be colourised: %q", out)
	}
}

func TestIsTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	tests := []struct {
		name string
		w    io.Writer
	}{
		{"buffer", &bytes.Buffer{}},
		{"regular file", f},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if isTerminal(tt.w) {
				t.Errorf("isTerminal(%s) = true, want false", tt.name)
			}
		})
	}

	NewLogger(f, slog.LevelInfo, LogFormatText).Info("to file", "k", "v")
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "k=v") || strings.Contains(string(data), "\x1b[") {
		t.Errorf("file output = %q, want plain text with k=v", data)
	}
}
