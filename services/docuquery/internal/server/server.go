package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"docuquery/internal/util"
	"docuquery/pkg/domain"
	"docuquery/pkg/service"
	"docuquery/pkg/session"
	"docuquery/services/docuquery/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	AllowedOrigins []string
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
}

// Server exposes the DocuQuery REST API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	allowedOrigins []string
	trusted        *util.TrustedProxies
	maxUploadBytes int64
}

// New builds a server over an already constructed app.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		allowedOrigins: cfg.AllowedOrigins,
		trusted:        cfg.TrustedProxies,
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
	}
	s.routes()
	return s, nil
}

// Router returns the root handler with middleware applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.allowedOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog("docuquery", s.trusted, h)
	return util.WithRequestID(h)
}

// apiPaths are the routes below in OpenAPI path syntax.
var apiPaths = []string{
	"/healthz",
	"/api/auth/login",
	"/api/auth/google",
	"/api/auth/register",
	"/api/auth/logout",
	"/api/auth/me",
	"/api/documents",
	"/api/documents/{id}",
	"/api/ingestions",
	"/api/ingestions/stream",
	"/api/ingestions/{id}",
	"/api/ingestions/{id}/retry",
	"/api/qa",
	"/api/qa/history",
	"/api/dashboard",
	"/api/admin/users",
	"/api/admin/users/{id}",
}

// APIPaths lists every served route in OpenAPI path syntax.
func APIPaths() []string {
	return slices.Clone(apiPaths)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/google", s.handleGoogle)
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))

	// documents, ingestions and questions (auth required)
	s.mux.Handle("/api/documents", s.authenticated(s.handleDocuments))
	s.mux.Handle("/api/documents/", s.authenticated(s.handleDocumentByID))
	s.mux.Handle("/api/ingestions", s.authenticated(s.handleIngestions))
	s.mux.Handle("/api/ingestions/stream", s.authenticated(s.handleIngestionStream))
	s.mux.Handle("/api/ingestions/", s.authenticated(s.handleIngestionByID))
	s.mux.Handle("/api/qa", s.authenticated(s.handleAsk))
	s.mux.Handle("/api/qa/history", s.authenticated(s.handleHistory))
	s.mux.Handle("/api/dashboard", s.authenticated(s.handleDashboard))

	// admin
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/", s.adminOnly(s.handleAdminUserByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ping(r.Context()); err != nil {
		slog.Warn("health check failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "session backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.Identity)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.authorize(r, "docuquery.authorize")
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s.audit(r, "docuquery.authorize", "success", "user_id", id.ID)
		next(w, r.WithContext(withIdentityLogger(r.Context(), id)), id)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.authorize(r, "docuquery.admin.authorize")
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !id.IsAdmin() {
			s.audit(r, "docuquery.admin.authorize", "fail", "user_id", id.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.audit(r, "docuquery.admin.authorize", "success", "user_id", id.ID)
		next(w, r.WithContext(withIdentityLogger(r.Context(), id)), id)
	})
}

func (s *Server) authorize(r *http.Request, event string) (domain.Identity, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, event, "fail", "reason", "missing_token")
		return domain.Identity{}, false
	}
	id, _, err := s.app.Identity(r.Context(), token)
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, app.ErrNoSession) {
			reason = "no_session"
		}
		s.audit(r, event, "fail", "reason", reason)
		return domain.Identity{}, false
	}
	return id, true
}

func withIdentityLogger(ctx context.Context, id domain.Identity) context.Context {
	return util.ContextWithLogger(ctx, util.LoggerFromContext(ctx).With("user_id", id.ID))
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service and session errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, session.ErrUserExists), errors.Is(err, service.ErrEmailExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, session.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &maxBytes):
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 50 << 20
	}
	return value
}
