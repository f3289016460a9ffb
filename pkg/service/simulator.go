package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"docuquery/pkg/domain"
)

// SimulatorConfig controls how fast simulated ingestions progress.
type SimulatorConfig struct {
	Interval     time.Duration
	PagesPerTick int
	// FailureRate is the chance per tick that an in-progress ingestion fails.
	FailureRate float64
}

// Simulator advances in-progress ingestions on a clock.
type Simulator struct {
	ingestions *IngestionService
	cfg        SimulatorConfig
	roll       func() float64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSimulator(ingestions *IngestionService, cfg SimulatorConfig) *Simulator {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.PagesPerTick <= 0 {
		cfg.PagesPerTick = 4
	}
	return &Simulator{ingestions: ingestions, cfg: cfg, roll: rand.Float64}
}

// Start runs the clock in the background. A second Start is a no-op.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop halts the clock and waits for the running tick to finish.
func (s *Simulator) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Simulator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(); err != nil {
				slog.Error("ingestion tick failed", "err", err)
			}
		}
	}
}

// Tick advances every in-progress ingestion once and reports how many changed.
func (s *Simulator) Tick() (int, error) {
	list, err := s.ingestions.repo.ListIngestions()
	if err != nil {
		return 0, fmt.Errorf("list ingestions: %w", err)
	}
	changed := 0
	for _, ing := range list {
		if ing.Status != domain.IngestionInProgress {
			continue
		}
		updated, err := s.ingestions.repo.UpdateIngestion(ing.ID, s.advance)
		if err != nil {
			slog.Error("advance ingestion failed", "ingestion_id", ing.ID, "err", err)
			continue
		}
		changed++
		switch updated.Status {
		case domain.IngestionCompleted:
			slog.Debug("ingestion completed", "ingestion_id", updated.ID, "pages", updated.TotalPages)
			s.ingestions.setDocumentStatus(updated.DocumentID, domain.DocumentProcessed)
		case domain.IngestionFailed:
			slog.Debug("ingestion failed", "ingestion_id", updated.ID, "error", updated.Error)
			s.ingestions.setDocumentStatus(updated.DocumentID, domain.DocumentFailed)
		}
	}
	if changed > 0 {
		s.ingestions.publish()
	}
	return changed, nil
}

func (s *Simulator) advance(ing *domain.Ingestion) error {
	if ing.Status != domain.IngestionInProgress {
		return nil
	}
	now := s.ingestions.now().UTC()
	if s.cfg.FailureRate > 0 && s.roll() < s.cfg.FailureRate {
		ing.Status = domain.IngestionFailed
		ing.Error = fmt.Sprintf("Unable to extract text from page %d", ing.ProcessedPages+1)
		ing.EndTime = &now
		return nil
	}
	ing.ProcessedPages += s.cfg.PagesPerTick
	if ing.ProcessedPages >= ing.TotalPages {
		ing.ProcessedPages = ing.TotalPages
		ing.Status = domain.IngestionCompleted
		ing.EndTime = &now
	}
	return nil
}
