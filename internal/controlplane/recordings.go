package controlplane

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/dev-console/proxyd/internal/recorder"
	"github.com/dev-console/proxyd/internal/rulestore"
	"github.com/dev-console/proxyd/internal/util"
)

func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := recorder.Filter{
		Search: q.Get("search"),
		Method: q.Get("method"),
		Since:  util.ParseTimestamp(q.Get("since")),
	}
	if status := q.Get("status"); status != "" {
		filter.Status, _ = strconv.Atoi(status)
	}
	if min := q.Get("minDuration"); min != "" {
		filter.MinDuration, _ = strconv.ParseInt(min, 10, 64)
	}
	if max := q.Get("maxDuration"); max != "" {
		filter.MaxDuration, _ = strconv.ParseInt(max, 10, 64)
	}

	exchanges := s.recorder.Query(filter)
	out := make([]exchangeWire, len(exchanges))
	for i, e := range exchanges {
		out[i] = exchangeToWire(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRecording(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	e, ok := s.recorder.Get(id)
	if !ok {
		writeError(w, rulestore.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, exchangeToWire(e))
}

func (s *Server) clearRecordings(w http.ResponseWriter, r *http.Request) {
	s.recorder.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) replayRecording(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	e, ok := s.recorder.Get(id)
	if !ok {
		writeError(w, rulestore.ErrNotFound)
		return
	}
	resp := s.pipeline.Replay(r.Context(), e)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": resp.Status,
		"body":   string(resp.Body),
	})
}

func exchangeToWire(e *recorder.Exchange) exchangeWire {
	return exchangeWire{
		ID: e.ID, StartedAt: e.StartedAt.Format(time.RFC3339Nano),
		Method: e.Method, URL: e.URL,
		RequestHeaders: e.RequestHeaders, RequestBody: string(e.RequestBody),
		HasResponse: e.HasResponse, Status: e.Status,
		ResponseHeaders: e.ResponseHeaders, ResponseBody: string(e.ResponseBody),
		DurationMS: e.DurationMS, Synthetic: e.Synthetic,
	}
}
