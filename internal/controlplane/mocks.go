package controlplane

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"

	"github.com/dev-console/proxyd/internal/rulestore"
)

func (s *Server) registerMockRoutes(r *mux.Router) {
	r.HandleFunc("/api/mocks", s.listMocks).Methods(http.MethodGet)
	r.HandleFunc("/api/mocks", s.createMock).Methods(http.MethodPost)
	r.HandleFunc("/api/mocks/{id}", s.getMock).Methods(http.MethodGet)
	r.HandleFunc("/api/mocks/{id}", s.updateMock).Methods(http.MethodPut)
	r.HandleFunc("/api/mocks/{id}", s.deleteMock).Methods(http.MethodDelete)
	r.HandleFunc("/api/mocks/{id}/toggle", s.toggleMock).Methods(http.MethodPost)
}

func (s *Server) listMocks(w http.ResponseWriter, r *http.Request) {
	rules := s.mocks.ListAll()
	out := make([]mockRuleWire, len(rules))
	for i, rule := range rules {
		out[i] = mockRuleToWire(rule)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, ok := s.mocks.GetByID(id)
	if !ok {
		writeError(w, rulestore.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, mockRuleToWire(rule))
}

func (s *Server) createMock(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	var wire mockRuleWire
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
	if err := s.mocks.Insert(rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mockRuleToWire(rule))
}

func (s *Server) updateMock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	var wire mockRuleWire
	if err := sonic.Unmarshal(body, &wire); err != nil {
		writeError(w, err)
		return
	}
	rule, err := wire.toRule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.mocks.ReplaceByID(id, rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mockRuleToWire(rule))
}

func (s *Server) deleteMock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.mocks.DeleteByID(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleMock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, err := s.mocks.ToggleByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mockRuleToWire(rule))
}
