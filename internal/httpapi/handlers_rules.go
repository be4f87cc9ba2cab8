package httpapi

import (
	"net/http"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.List(r.Context(), currentUser(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]ruleJSON, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleJSON(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rule, err := s.rules.Get(r.Context(), currentUser(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleJSON(*rule))
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleJSON
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rule, err := s.rules.Create(r.Context(), currentUser(r.Context()), req.model())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleJSON(*rule))
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req ruleJSON
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.ID = id
	rule, err := s.rules.Update(r.Context(), currentUser(r.Context()), req.model())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleJSON(*rule))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.rules.Delete(r.Context(), currentUser(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
