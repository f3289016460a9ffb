package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docuquery/internal/util"
	"docuquery/pkg/domain"
	"docuquery/pkg/service"
)

type uploadMetadata struct {
	Title    string `json:"title"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		docs, err := s.app.Documents().List(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": docs,
			"count": len(docs),
		})
	case http.MethodPost:
		s.handleUpload(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

// handleUpload accepts a multipart "file" field or JSON metadata.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<20))
	req := service.UploadRequest{UploadedBy: id.Name}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				writeServiceError(w, r, err)
				return
			}
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required (field: file)")
			return
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			writeServiceError(w, r, fmt.Errorf("read upload: %w", err))
			return
		}
		req.Title = r.FormValue("title")
		req.FileName = header.Filename
		req.ContentType = header.Header.Get("Content-Type")
		req.Content = content
		req.Size = int64(len(content))
	} else {
		var meta uploadMetadata
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&meta); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Title = meta.Title
		req.FileName = meta.FileName
		req.Size = meta.Size
	}
	doc, err := s.app.Documents().Upload(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// /api/documents/{id}
func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	docID := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if docID == "" || strings.Contains(docID, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		doc, err := s.app.Documents().Get(r.Context(), docID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := s.app.Documents().Delete(r.Context(), docID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleIngestions(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	list, err := s.app.Ingestions().List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": list,
		"count": len(list),
	})
}

// /api/ingestions/{id} or /api/ingestions/{id}/retry
func (s *Server) handleIngestionByID(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/api/ingestions/")
	parts := strings.SplitN(path, "/", 2)
	ingID := parts[0]
	if ingID == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "retry" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		ing, err := s.app.Ingestions().Retry(r.Context(), ingID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ing)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ing, err := s.app.Ingestions().Get(r.Context(), ingID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ing)
}

// handleIngestionStream pushes one "ingestions" event per snapshot until the
// client goes away.
func (s *Server) handleIngestionStream(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sub, err := s.app.Ingestions().Subscribe(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for snapshot := range sub.C() {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			util.LoggerFromContext(r.Context()).Error("encode ingestion snapshot", "err", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: ingestions\ndata: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}
