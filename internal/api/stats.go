package api

import (
	"net/http"

	"github.com/seantiz/threadbench/internal/model"
	"github.com/seantiz/threadbench/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total             int                    `json:"total"`
	RequestsProcessed uint64                 `json:"requests_processed"`
	ByMode            map[string]int         `json:"by_mode"`
	ByExecutor        []*store.ExecutorStats `json:"by_executor"`
}

// listSamplesResponse wraps the paginated sample list.
type listSamplesResponse struct {
	Samples []model.Sample `json:"samples"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// flushSamples makes results returned before this request visible to the
// store reads that follow.
func (s *Server) flushSamples(r *http.Request) {
	if err := s.engine.Flush(r.Context()); err != nil {
		s.logger.Warn("flush samples", "error", err)
	}
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	s.flushSamples(r)

	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.logger.Error("get sample stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:             stats.Total,
		RequestsProcessed: s.engine.RequestsProcessed(),
		ByMode:            stats.CountByMode,
		ByExecutor:        stats.ByExecutor,
	})
}

func (s *Server) handleListSamples(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	s.flushSamples(r)

	samples, total, err := s.store.ListSamples(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list samples", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list samples")
		return
	}

	s.writeJSON(w, http.StatusOK, listSamplesResponse{
		Samples: samples,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}
