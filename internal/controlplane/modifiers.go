package controlplane

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"

	"github.com/dev-console/proxyd/internal/rulestore"
)

func (s *Server) registerModifierRoutes(r *mux.Router) {
	r.HandleFunc("/api/modifiers", s.listModifiers).Methods(http.MethodGet)
	r.HandleFunc("/api/modifiers", s.createModifier).Methods(http.MethodPost)
	r.HandleFunc("/api/modifiers/{id}", s.getModifier).Methods(http.MethodGet)
	r.HandleFunc("/api/modifiers/{id}", s.updateModifier).Methods(http.MethodPut)
	r.HandleFunc("/api/modifiers/{id}", s.deleteModifier).Methods(http.MethodDelete)
	r.HandleFunc("/api/modifiers/{id}/toggle", s.toggleModifier).Methods(http.MethodPost)
}

func (s *Server) listModifiers(w http.ResponseWriter, r *http.Request) {
	rules := s.modifiers.ListAll()
	out := make([]modifierRuleWire, len(rules))
	for i, rule := range rules {
		out[i] = modifierRuleToWire(rule)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getModifier(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, ok := s.modifiers.GetByID(id)
	if !ok {
		writeError(w, rulestore.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, modifierRuleToWire(rule))
}

func (s *Server) createModifier(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	var wire modifierRuleWire
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
	if err := s.modifiers.Insert(rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, modifierRuleToWire(rule))
}

func (s *Server) updateModifier(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	var wire modifierRuleWire
	if err := sonic.Unmarshal(body, &wire); err != nil {
		writeError(w, err)
		return
	}
	rule, err := wire.toRule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.modifiers.ReplaceByID(id, rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modifierRuleToWire(rule))
}

func (s *Server) deleteModifier(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.modifiers.DeleteByID(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleModifier(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, err := s.modifiers.ToggleByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modifierRuleToWire(rule))
}
