package server

import (
	"encoding/json"
	"io"
	"net/http"

	"docuquery/pkg/domain"
	"docuquery/pkg/session"
)

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.establish(w, r, "docuquery.login", http.StatusOK, func(sess *session.Store) (domain.Identity, error) {
		return sess.Login(r.Context(), req.Email, req.Password)
	})
}

func (s *Server) handleGoogle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.establish(w, r, "docuquery.login.google", http.StatusOK, func(sess *session.Store) (domain.Identity, error) {
		return sess.LoginWithGoogle(r.Context())
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.establish(w, r, "docuquery.register", http.StatusCreated, func(sess *session.Store) (domain.Identity, error) {
		return sess.Register(r.Context(), req.Name, req.Email, req.Password)
	})
}

// establish runs a session transition on the caller's slot. A still valid
// bearer token keeps its slot; otherwise a new client is allocated.
func (s *Server) establish(w http.ResponseWriter, r *http.Request, event string, status int, fn func(*session.Store) (domain.Identity, error)) {
	clientID, token, err := s.clientFor(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sess, err := s.app.Session(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	id, err := fn(sess)
	if err != nil {
		s.audit(r, event, "fail", "reason", err.Error())
		writeServiceError(w, r, err)
		return
	}
	s.app.RecordLogin(id)
	s.audit(r, event, "success", "user_id", id.ID)
	writeJSON(w, status, authResponse{Token: token, User: id})
}

func (s *Server) clientFor(r *http.Request) (clientID, token string, err error) {
	if existing, ok := bearerToken(r); ok {
		if clientID, err := s.app.ClientFromToken(existing); err == nil {
			return clientID, existing, nil
		}
	}
	return s.app.NewClient()
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	clientID, err := s.app.ClientFromToken(token)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sess, err := s.app.Session(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := sess.Logout(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.app.ForgetClient(clientID)
	s.audit(r, "docuquery.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, id)
}
