package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/threadbench/internal/model"
)

const defaultInput = "test"

// handleWork serves GET /v1/{mode}?input=. Async failures arrive as a
// structured result with status 200; sync and virtual failures carry the
// status of their error kind and the same result body.
func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	mode, err := model.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	input := r.URL.Query().Get("input")
	if input == "" {
		input = defaultInput
	}

	res, err := s.engine.Handle(r.Context(), mode, input)
	if err != nil {
		s.writeJSON(w, statusFor(err), res)
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}
