package store

import (
	"time"

	"docuquery/pkg/domain"
)

// Seed loads the canned demo collections. Timestamps are relative to now.
func Seed(s Store, now time.Time) error {
	now = now.UTC()
	day := 24 * time.Hour
	ptr := func(t time.Time) *time.Time { return &t }

	users := []domain.User{
		{ID: "1", Name: "Admin User", Email: "admin@example.com", Role: domain.RoleAdmin, Status: domain.StatusActive, CreatedAt: now.Add(-90 * day), LastLogin: ptr(now.Add(-2 * time.Hour))},
		{ID: "2", Name: "Regular User", Email: "user@example.com", Role: domain.RoleUser, Status: domain.StatusActive, CreatedAt: now.Add(-60 * day), LastLogin: ptr(now.Add(-26 * time.Hour))},
		{ID: "3", Name: "Jane Cooper", Email: "jane.cooper@example.com", Role: domain.RoleUser, Status: domain.StatusActive, CreatedAt: now.Add(-30 * day), LastLogin: ptr(now.Add(-5 * day))},
		{ID: "4", Name: "Robert Fox", Email: "robert.fox@example.com", Role: domain.RoleUser, Status: domain.StatusInactive, CreatedAt: now.Add(-45 * day)},
	}
	for _, u := range users {
		if err := s.SaveUser(u); err != nil {
			return err
		}
	}

	docs := []domain.Document{
		seedDocument("1", "Q2 2023 Financial Report", "PDF", 2_516_582, "Admin User", now.Add(-20*day), domain.DocumentProcessed),
		seedDocument("2", "Marketing Strategy 2023", "DOCX", 1_153_434, "Regular User", now.Add(-15*day), domain.DocumentProcessed),
		seedDocument("3", "Employee Handbook", "PDF", 3_984_588, "Admin User", now.Add(-10*day), domain.DocumentProcessed),
		seedDocument("4", "Product Specifications", "PDF", 5_452_595, "Regular User", now.Add(-2*day), domain.DocumentProcessing),
		seedDocument("5", "Client Contract Template", "DOCX", 251_904, "Admin User", now.Add(-1*day), domain.DocumentFailed),
	}
	for _, d := range docs {
		if err := s.SaveDocument(d); err != nil {
			return err
		}
	}

	ingestions := []domain.Ingestion{
		{ID: "1", DocumentID: "1", DocumentTitle: "Q2 2023 Financial Report", Status: domain.IngestionCompleted, StartTime: now.Add(-20 * day), EndTime: ptr(now.Add(-20*day + 4*time.Minute)), ProcessedPages: 42, TotalPages: 42},
		{ID: "2", DocumentID: "2", DocumentTitle: "Marketing Strategy 2023", Status: domain.IngestionCompleted, StartTime: now.Add(-15 * day), EndTime: ptr(now.Add(-15*day + 2*time.Minute)), ProcessedPages: 18, TotalPages: 18},
		{ID: "3", DocumentID: "3", DocumentTitle: "Employee Handbook", Status: domain.IngestionCompleted, StartTime: now.Add(-10 * day), EndTime: ptr(now.Add(-10*day + 7*time.Minute)), ProcessedPages: 64, TotalPages: 64},
		{ID: "4", DocumentID: "4", DocumentTitle: "Product Specifications", Status: domain.IngestionInProgress, StartTime: now.Add(-10 * time.Minute), ProcessedPages: 12, TotalPages: 56},
		{ID: "5", DocumentID: "5", DocumentTitle: "Client Contract Template", Status: domain.IngestionFailed, StartTime: now.Add(-1 * day), EndTime: ptr(now.Add(-1*day + time.Minute)), ProcessedPages: 3, TotalPages: 9, Error: "Unable to extract text from page 4"},
	}
	for _, ing := range ingestions {
		if err := s.SaveIngestion(ing); err != nil {
			return err
		}
	}
	return nil
}

func seedDocument(id, title, typ string, size int64, by string, uploaded time.Time, status domain.DocumentStatus) domain.Document {
	return domain.Document{
		ID:         id,
		Title:      title,
		Type:       typ,
		Size:       domain.FormatSize(size),
		SizeBytes:  size,
		UploadedBy: by,
		UploadDate: uploaded.Format(domain.UploadDateLayout),
		Status:     status,
		CreatedAt:  uploaded,
	}
}
