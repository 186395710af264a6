package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"worktrack/server/internal/rbac"
)

type generateKeyRequest struct {
	Role          string `json:"role"`
	Classroom     string `json:"classroom"`
	ExpiresInDays *int   `json:"expiresInDays,omitempty"`
}

func (s *Server) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())

	var req generateKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	key, err := s.keys.Issue(r.Context(), *caller, rbac.IssueRequest{
		Role:          req.Role,
		Classroom:     req.Classroom,
		ExpiresInDays: req.ExpiresInDays,
	})
	if err != nil {
		writeAuthzError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapSecretKeySummary(key))
}

func (s *Server) handleGeneratableRoles(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())
	roles := rbac.GeneratableRoles(caller.Role)
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"roles": roles})
}

func (s *Server) handleMyKeys(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())

	keys, err := s.store.KeysByIssuer(r.Context(), caller.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	summaries := make([]secretKeySummary, 0, len(keys))
	for _, key := range keys {
		summaries = append(summaries, mapSecretKeySummary(key))
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleDeactivateKey(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())

	if err := s.keys.Deactivate(r.Context(), *caller, chi.URLParam(r, "id")); err != nil {
		writeAuthzError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
