package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"docuquery/pkg/domain"
	"docuquery/pkg/service"
)

type adminUserCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Status   string `json:"status"`
	Password string `json:"password"`
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, admin domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		users, err := s.app.Users().List(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": users,
			"count": len(users),
		})
	case http.MethodPost:
		var req adminUserCreateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := s.app.Users().Create(r.Context(), service.NewUser{
			Name:     req.Name,
			Email:    req.Email,
			Role:     domain.Role(strings.ToLower(strings.TrimSpace(req.Role))),
			Status:   domain.UserStatus(strings.ToLower(strings.TrimSpace(req.Status))),
			Password: req.Password,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.audit(r, "docuquery.admin.user.create", "success", "user_id", admin.ID, "target_id", created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, admin domain.Identity) {
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		u, err := s.app.Users().Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case http.MethodPatch:
		var patch service.UserPatch
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if patch.Name == nil && patch.Email == nil && patch.Role == nil && patch.Status == nil {
			writeError(w, http.StatusBadRequest, "nothing to update")
			return
		}
		updated, err := s.app.Users().Update(r.Context(), id, patch)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.audit(r, "docuquery.admin.user.update", "success", "user_id", admin.ID, "target_id", id)
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.app.Users().Delete(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.audit(r, "docuquery.admin.user.delete", "success", "user_id", admin.ID, "target_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}
