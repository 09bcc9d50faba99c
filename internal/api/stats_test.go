package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/threadbench/internal/executor"
	"github.com/seantiz/threadbench/internal/model"
)

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Total != 0 || len(body.ByExecutor) != 0 {
		t.Errorf("stats = %+v, want empty", body)
	}
}

func TestGetStatsPopulated(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, mode := range []string{"sync", "sync", "async", "virtual"} {
		resp, err := http.Get(ts.URL + "/v1/" + mode)
		if err != nil {
			t.Fatalf("GET /v1/%s: %v", mode, err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats: %v", err)
	}
	defer resp.Body.Close()

	var body statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.Total != 4 || body.RequestsProcessed != 4 {
		t.Errorf("total = %d requests_processed = %d, want 4 and 4", body.Total, body.RequestsProcessed)
	}
	if body.ByMode["sync"] != 2 || body.ByMode["async"] != 1 || body.ByMode["virtual"] != 1 {
		t.Errorf("by_mode = %v", body.ByMode)
	}

	counts := make(map[string]int)
	for _, es := range body.ByExecutor {
		counts[es.Executor] = es.Count
		if es.P50MS < 5 {
			t.Errorf("%s p50 = %dms, want at least the 5ms minimum delay", es.Executor, es.P50MS)
		}
	}
	if counts[model.LabelSync] != 2 || counts[model.LabelBoundedPool] != 1 || counts[model.LabelUnbounded] != 1 {
		t.Errorf("by_executor counts = %v", counts)
	}
}

func TestListSamples(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for range 3 {
		resp, err := http.Get(ts.URL + "/v1/virtual")
		if err != nil {
			t.Fatalf("GET /v1/virtual: %v", err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/v1/samples?limit=2")
	if err != nil {
		t.Fatalf("GET /v1/samples: %v", err)
	}
	defer resp.Body.Close()

	var body listSamplesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Total != 3 || len(body.Samples) != 2 || body.Limit != 2 {
		t.Errorf("total = %d len = %d limit = %d, want 3, 2, 2", body.Total, len(body.Samples), body.Limit)
	}
	if len(body.Samples) > 0 && body.Samples[0].RequestID != 3 {
		t.Errorf("first sample request_id = %d, want 3 (newest first)", body.Samples[0].RequestID)
	}
}

func TestListSamplesDefaultLimit(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/samples?limit=-1&offset=-5")
	if err != nil {
		t.Fatalf("GET /v1/samples: %v", err)
	}
	defer resp.Body.Close()

	var body listSamplesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Limit != defaultListLimit || body.Offset != 0 {
		t.Errorf("limit = %d offset = %d, want %d and 0", body.Limit, body.Offset, defaultListLimit)
	}
	if body.Samples == nil {
		t.Error("samples = null, want []")
	}
}

func TestListExecutors(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/executors")
	if err != nil {
		t.Fatalf("GET /v1/executors: %v", err)
	}
	defer resp.Body.Close()

	var body []executor.StrategyInfo
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("got %d executors, want 2", len(body))
	}
	if body[0].Name != executor.KindBounded || body[0].Capabilities.CoreSize != 2 || body[0].Capabilities.Policy != executor.PolicyReject {
		t.Errorf("executors[0] = %+v", body[0])
	}
	if body[1].Name != executor.KindUnbounded || !body[1].Capabilities.Lightweight {
		t.Errorf("executors[1] = %+v", body[1])
	}
}
