package service

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"docuquery/pkg/domain"
	"docuquery/pkg/store"
)

const recentIngestions = 5

// DashboardService aggregates document and ingestion figures.
type DashboardService struct {
	docs       store.DocumentRepository
	ingestions store.IngestionRepository
	latency    Latency
}

func NewDashboardService(docs store.DocumentRepository, ingestions store.IngestionRepository, latency Latency) *DashboardService {
	return &DashboardService{docs: docs, ingestions: ingestions, latency: latency}
}

// Summary counts documents by status and type and lists the most recently
// started ingestions.
func (s *DashboardService) Summary(ctx context.Context) (domain.Summary, error) {
	var (
		docs []domain.Document
		ings []domain.Ingestion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.latency.Wait(gctx); err != nil {
			return err
		}
		list, err := s.docs.ListDocuments()
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		docs = list
		return nil
	})
	g.Go(func() error {
		if err := s.latency.Wait(gctx); err != nil {
			return err
		}
		list, err := s.ingestions.ListIngestions()
		if err != nil {
			return fmt.Errorf("list ingestions: %w", err)
		}
		ings = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Summary{}, err
	}

	sum := domain.Summary{
		TotalDocuments: len(docs),
		ByStatus:       make(map[domain.DocumentStatus]int),
		ByType:         make(map[string]int),
	}
	for _, d := range docs {
		sum.ByStatus[d.Status]++
		sum.ByType[d.Type]++
	}
	sort.SliceStable(ings, func(i, j int) bool {
		return ings[i].StartTime.After(ings[j].StartTime)
	})
	if len(ings) > recentIngestions {
		ings = ings[:recentIngestions]
	}
	sum.RecentIngestions = ings
	return sum, nil
}
