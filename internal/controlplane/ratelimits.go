package controlplane

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"

	"github.com/dev-console/proxyd/internal/rulestore"
)

func (s *Server) registerRateLimitRoutes(r *mux.Router) {
	r.HandleFunc("/api/rate-limits/stats", s.getRateLimitStats).Methods(http.MethodGet)
	r.HandleFunc("/api/rate-limits", s.listRateLimits).Methods(http.MethodGet)
	r.HandleFunc("/api/rate-limits", s.createRateLimit).Methods(http.MethodPost)
	r.HandleFunc("/api/rate-limits/{id}", s.getRateLimit).Methods(http.MethodGet)
	r.HandleFunc("/api/rate-limits/{id}", s.updateRateLimit).Methods(http.MethodPut)
	r.HandleFunc("/api/rate-limits/{id}", s.deleteRateLimit).Methods(http.MethodDelete)
	r.HandleFunc("/api/rate-limits/{id}/toggle", s.toggleRateLimit).Methods(http.MethodPost)
	r.HandleFunc("/api/rate-limits/{id}/reset", s.resetRateLimit).Methods(http.MethodPost)
}

func (s *Server) listRateLimits(w http.ResponseWriter, r *http.Request) {
	rules := s.rateLimits.ListAll()
	out := make([]rateLimitRuleWire, len(rules))
	for i, rule := range rules {
		out[i] = rateLimitRuleToWire(rule)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRateLimit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, ok := s.rateLimits.GetByID(id)
	if !ok {
		writeError(w, rulestore.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rateLimitRuleToWire(rule))
}

func (s *Server) createRateLimit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	var wire rateLimitRuleWire
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
	if err := s.rateLimits.Insert(rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rateLimitRuleToWire(rule))
}

func (s *Server) updateRateLimit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	var wire rateLimitRuleWire
	if err := sonic.Unmarshal(body, &wire); err != nil {
		writeError(w, err)
		return
	}
	rule, err := wire.toRule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.rateLimits.ReplaceByID(id, rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rateLimitRuleToWire(rule))
}

func (s *Server) deleteRateLimit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.rateLimits.DeleteByID(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleRateLimit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, err := s.rateLimits.ToggleByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rateLimitRuleToWire(rule))
}

func (s *Server) resetRateLimit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.rateLimits.GetByID(id); !ok {
		writeError(w, rulestore.ErrNotFound)
		return
	}
	s.rateLimiter.ResetRule(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getRateLimitStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rateLimiter.Stats())
}
