package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docuquery/pkg/domain"
	"docuquery/pkg/store"
)

// IngestionService exposes the simulated processing records.
type IngestionService struct {
	repo    store.IngestionRepository
	docs    store.DocumentRepository
	latency Latency
	ids     *sequence
	hub     *broadcaster
	now     func() time.Time
}

func NewIngestionService(repo store.IngestionRepository, docs store.DocumentRepository, latency Latency) *IngestionService {
	return &IngestionService{
		repo:    repo,
		docs:    docs,
		latency: latency,
		ids: newSequence(func() ([]string, error) {
			list, err := repo.ListIngestions()
			if err != nil {
				return nil, err
			}
			ids := make([]string, len(list))
			for i, ing := range list {
				ids[i] = ing.ID
			}
			return ids, nil
		}),
		hub: newBroadcaster(),
		now: time.Now,
	}
}

// List returns ingestions whose document title contains query, ignoring case.
// An empty query returns everything.
func (s *IngestionService) List(ctx context.Context, query string) ([]domain.Ingestion, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return nil, err
	}
	list, err := s.repo.ListIngestions()
	if err != nil {
		return nil, fmt.Errorf("list ingestions: %w", err)
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return list, nil
	}
	out := make([]domain.Ingestion, 0, len(list))
	for _, ing := range list {
		if strings.Contains(strings.ToLower(ing.DocumentTitle), q) {
			out = append(out, ing)
		}
	}
	return out, nil
}

func (s *IngestionService) Get(ctx context.Context, id string) (domain.Ingestion, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return domain.Ingestion{}, err
	}
	ing, ok, err := s.repo.GetIngestion(id)
	if err != nil {
		return domain.Ingestion{}, fmt.Errorf("get ingestion: %w", err)
	}
	if !ok {
		return domain.Ingestion{}, ErrNotFound
	}
	return ing, nil
}

// Retry restarts a failed ingestion from page zero.
func (s *IngestionService) Retry(ctx context.Context, id string) (domain.Ingestion, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return domain.Ingestion{}, err
	}
	ing, err := s.repo.UpdateIngestion(id, func(ing *domain.Ingestion) error {
		if ing.Status != domain.IngestionFailed {
			return fmt.Errorf("%w: ingestion is %s, only failed ingestions can be retried", ErrInvalidInput, ing.Status)
		}
		ing.Status = domain.IngestionInProgress
		ing.ProcessedPages = 0
		ing.StartTime = s.now().UTC()
		ing.EndTime = nil
		ing.Error = ""
		return nil
	})
	if err != nil {
		return domain.Ingestion{}, fmt.Errorf("retry ingestion: %w", err)
	}
	s.setDocumentStatus(ing.DocumentID, domain.DocumentProcessing)
	s.publish()
	return ing, nil
}

// Subscribe returns a subscription that first yields the current snapshot and
// then a fresh one after every change. It is closed when ctx ends or Close is called.
func (s *IngestionService) Subscribe(ctx context.Context) (*Subscription, error) {
	list, err := s.repo.ListIngestions()
	if err != nil {
		return nil, fmt.Errorf("list ingestions: %w", err)
	}
	return s.hub.subscribe(ctx, list), nil
}

// start records a new in-progress ingestion for doc.
func (s *IngestionService) start(doc domain.Document, totalPages int) (domain.Ingestion, error) {
	id, err := s.ids.Next()
	if err != nil {
		return domain.Ingestion{}, fmt.Errorf("next ingestion id: %w", err)
	}
	ing := domain.Ingestion{
		ID:            id,
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Status:        domain.IngestionInProgress,
		StartTime:     s.now().UTC(),
		TotalPages:    totalPages,
	}
	if err := s.repo.SaveIngestion(ing); err != nil {
		return domain.Ingestion{}, fmt.Errorf("save ingestion: %w", err)
	}
	s.publish()
	return ing, nil
}

func (s *IngestionService) publish() {
	if s.hub.len() == 0 {
		return
	}
	list, err := s.repo.ListIngestions()
	if err != nil {
		slog.Error("ingestion snapshot failed", "err", err)
		return
	}
	s.hub.publish(list)
}

func (s *IngestionService) setDocumentStatus(docID string, status domain.DocumentStatus) {
	if docID == "" || s.docs == nil {
		return
	}
	_, err := s.docs.UpdateDocument(docID, func(d *domain.Document) error {
		d.Status = status
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("update document status failed", "document_id", docID, "status", status, "err", err)
	}
}
