package controlplane

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"

	"github.com/dev-console/proxyd/internal/rulestore"
)

func (s *Server) registerLatencyRoutes(r *mux.Router) {
	r.HandleFunc("/api/latency-stats", s.getLatencyStats).Methods(http.MethodGet)
	r.HandleFunc("/api/latency-stats/reset", s.resetLatencyStats).Methods(http.MethodPost)
	r.HandleFunc("/api/latency-rules", s.listLatencyRules).Methods(http.MethodGet)
	r.HandleFunc("/api/latency-rules", s.createLatencyRule).Methods(http.MethodPost)
	r.HandleFunc("/api/latency-rules/{id}", s.getLatencyRule).Methods(http.MethodGet)
	r.HandleFunc("/api/latency-rules/{id}", s.updateLatencyRule).Methods(http.MethodPut)
	r.HandleFunc("/api/latency-rules/{id}", s.deleteLatencyRule).Methods(http.MethodDelete)
	r.HandleFunc("/api/latency-rules/{id}/toggle", s.toggleLatencyRule).Methods(http.MethodPost)
}

func (s *Server) listLatencyRules(w http.ResponseWriter, r *http.Request) {
	rules := s.latencies.ListAll()
	out := make([]latencyRuleWire, len(rules))
	for i, rule := range rules {
		out[i] = latencyRuleToWire(rule)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getLatencyRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, ok := s.latencies.GetByID(id)
	if !ok {
		writeError(w, rulestore.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, latencyRuleToWire(rule))
}

func (s *Server) createLatencyRule(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	var wire latencyRuleWire
	if err := sonic.Unmarshal(body, &wire); err != nil {
		writeError(w, err)
		return
	}
	id := wire.ID
	if id == "" {
		id = newRuleID()
	}
	rule, err := wire.toRule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.latencies.Insert(rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, latencyRuleToWire(rule))
}

func (s *Server) updateLatencyRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	var wire latencyRuleWire
	if err := sonic.Unmarshal(body, &wire); err != nil {
		writeError(w, err)
		return
	}
	rule, err := wire.toRule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.latencies.ReplaceByID(id, rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, latencyRuleToWire(rule))
}

func (s *Server) deleteLatencyRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.latencies.DeleteByID(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleLatencyRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, err := s.latencies.ToggleByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, latencyRuleToWire(rule))
}

type latencyStatsWire struct {
	Global  ruleStatsWire            `json:"global"`
	PerRule map[string]ruleStatsWire `json:"per_rule"`
}

type ruleStatsWire struct {
	Hits  int64   `json:"hits"`
	Total int64   `json:"total_delay_ms"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	Avg   float64 `json:"avg"`
}

func (s *Server) getLatencyStats(w http.ResponseWriter, r *http.Request) {
	global, perRule := s.latencyInj.Stats()
	out := latencyStatsWire{
		Global:  ruleStatsWire{Hits: global.Hits, Total: global.Total, Min: global.Min, Max: global.Max, Avg: global.Avg()},
		PerRule: make(map[string]ruleStatsWire, len(perRule)),
	}
	for id, stats := range perRule {
		out.PerRule[id] = ruleStatsWire{Hits: stats.Hits, Total: stats.Total, Min: stats.Min, Max: stats.Max, Avg: stats.Avg()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) resetLatencyStats(w http.ResponseWriter, r *http.Request) {
	s.latencyInj.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}
