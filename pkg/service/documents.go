package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"docuquery/pkg/domain"
	"docuquery/pkg/storage"
	"docuquery/pkg/store"
)

// DocumentOptions tunes upload validation. Zero values disable the checks.
type DocumentOptions struct {
	MaxUploadBytes    int64
	AllowedExtensions []string
}

// UploadRequest describes one uploaded file. Content may be nil when only
// metadata is submitted.
type UploadRequest struct {
	Title       string
	FileName    string
	Size        int64
	ContentType string
	Content     []byte
	UploadedBy  string
}

// DocumentService manages document records and their uploaded bytes.
type DocumentService struct {
	repo       store.DocumentRepository
	ingestions *IngestionService
	objects    storage.ObjectStore
	latency    Latency
	opts       DocumentOptions
	ids        *sequence
	now        func() time.Time
}

// NewDocumentService builds the service. objects may be nil, in which case
// uploaded bytes are only inspected and then dropped.
func NewDocumentService(repo store.DocumentRepository, ingestions *IngestionService, objects storage.ObjectStore, latency Latency, opts DocumentOptions) *DocumentService {
	return &DocumentService{
		repo:       repo,
		ingestions: ingestions,
		objects:    objects,
		latency:    latency,
		opts:       opts,
		ids: newSequence(func() ([]string, error) {
			list, err := repo.ListDocuments()
			if err != nil {
				return nil, err
			}
			ids := make([]string, len(list))
			for i, d := range list {
				ids[i] = d.ID
			}
			return ids, nil
		}),
		now: time.Now,
	}
}

// List returns documents whose title or type contains query, ignoring case.
func (s *DocumentService) List(ctx context.Context, query string) ([]domain.Document, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return docs, nil
	}
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.Title), q) || strings.Contains(strings.ToLower(d.Type), q) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (domain.Document, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return domain.Document{}, err
	}
	d, ok, err := s.repo.GetDocument(id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	if !ok {
		return domain.Document{}, ErrNotFound
	}
	return d, nil
}

// Upload creates a document in status processing and links a new
// in-progress ingestion to it.
func (s *DocumentService) Upload(ctx context.Context, req UploadRequest) (domain.Document, error) {
	name := strings.TrimSpace(req.FileName)
	if name == "" {
		return domain.Document{}, fmt.Errorf("%w: file name required", ErrInvalidInput)
	}
	typ := domain.TypeFromName(name)
	if len(s.opts.AllowedExtensions) > 0 && !slices.ContainsFunc(s.opts.AllowedExtensions, func(ext string) bool {
		return strings.EqualFold(strings.TrimPrefix(ext, "."), typ)
	}) {
		return domain.Document{}, fmt.Errorf("%w: file type %s not allowed", ErrInvalidInput, typ)
	}
	size := req.Size
	if req.Content != nil {
		size = int64(len(req.Content))
	}
	if size < 0 {
		return domain.Document{}, fmt.Errorf("%w: negative size", ErrInvalidInput)
	}
	if s.opts.MaxUploadBytes > 0 && size > s.opts.MaxUploadBytes {
		return domain.Document{}, fmt.Errorf("%w: file exceeds %s", ErrInvalidInput, domain.FormatSize(s.opts.MaxUploadBytes))
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = domain.TitleFromName(name)
	}

	totalPages := EstimatePages(size)
	if n, ok, err := CountPages(name, req.Content); err != nil {
		slog.Warn("page count failed, using size estimate", "file", name, "err", err)
	} else if ok && n > 0 {
		totalPages = n
	}

	if err := s.latency.Wait(ctx); err != nil {
		return domain.Document{}, err
	}

	id, err := s.ids.Next()
	if err != nil {
		return domain.Document{}, fmt.Errorf("next document id: %w", err)
	}
	now := s.now().UTC()
	doc := domain.Document{
		ID:         id,
		Title:      title,
		Type:       typ,
		Size:       domain.FormatSize(size),
		SizeBytes:  size,
		UploadedBy: req.UploadedBy,
		UploadDate: now.Format(domain.UploadDateLayout),
		Status:     domain.DocumentProcessing,
		CreatedAt:  now,
	}
	if s.objects != nil && req.Content != nil {
		doc.StorageKey = path.Join("documents", id, filepath.Base(name))
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := s.objects.Put(ctx, doc.StorageKey, bytes.NewReader(req.Content), size, contentType); err != nil {
			return domain.Document{}, fmt.Errorf("store upload: %w", err)
		}
	}
	if err := s.repo.SaveDocument(doc); err != nil {
		s.discardObject(doc)
		return domain.Document{}, fmt.Errorf("save document: %w", err)
	}
	if s.ingestions != nil {
		if _, err := s.ingestions.start(doc, totalPages); err != nil {
			if derr := s.repo.DeleteDocument(doc.ID); derr != nil {
				slog.Warn("roll back document failed", "document_id", doc.ID, "err", derr)
			}
			s.discardObject(doc)
			return domain.Document{}, err
		}
	}
	return doc, nil
}

// discardObject removes bytes stored for a document that was not kept.
func (s *DocumentService) discardObject(doc domain.Document) {
	if s.objects == nil || doc.StorageKey == "" {
		return
	}
	if err := s.objects.Delete(context.Background(), doc.StorageKey); err != nil {
		slog.Warn("discard stored upload failed", "document_id", doc.ID, "key", doc.StorageKey, "err", err)
	}
}

// Delete removes exactly one document and its stored bytes.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := s.latency.Wait(ctx); err != nil {
		return err
	}
	doc, ok, err := s.repo.GetDocument(id)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := s.repo.DeleteDocument(id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if s.objects != nil && doc.StorageKey != "" {
		if err := s.objects.Delete(ctx, doc.StorageKey); err != nil {
			slog.Warn("delete stored upload failed", "document_id", id, "key", doc.StorageKey, "err", err)
		}
	}
	return nil
}
