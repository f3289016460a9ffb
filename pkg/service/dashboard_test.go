package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"docuquery/pkg/domain"
)

func TestSummaryCountsSeedData(t *testing.T) {
	svc, _ := newSeededServices(t)
	sum, err := svc.Dashboard.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalDocuments != 5 {
		t.Fatalf("total = %d, want 5", sum.TotalDocuments)
	}
	if sum.ByStatus[domain.DocumentProcessed] != 3 || sum.ByStatus[domain.DocumentProcessing] != 1 || sum.ByStatus[domain.DocumentFailed] != 1 {
		t.Fatalf("unexpected status counts: %+v", sum.ByStatus)
	}
	if sum.ByType["PDF"] != 3 || sum.ByType["DOCX"] != 2 {
		t.Fatalf("unexpected type counts: %+v", sum.ByType)
	}
	if len(sum.RecentIngestions) != 5 || sum.RecentIngestions[0].ID != "4" {
		t.Fatalf("unexpected recent ingestions: %+v", sum.RecentIngestions)
	}
	for i := 1; i < len(sum.RecentIngestions); i++ {
		if sum.RecentIngestions[i].StartTime.After(sum.RecentIngestions[i-1].StartTime) {
			t.Fatalf("recent ingestions not sorted newest first")
		}
	}
}

func TestSummaryLimitsRecentIngestions(t *testing.T) {
	svc, _ := newSeededServices(t)
	for i := 0; i < 3; i++ {
		if _, err := svc.Documents.Upload(context.Background(), UploadRequest{FileName: "extra.txt", Size: 10}); err != nil {
			t.Fatalf("upload: %v", err)
		}
	}
	sum, _ := svc.Dashboard.Summary(context.Background())
	if len(sum.RecentIngestions) != 5 {
		t.Fatalf("recent = %d, want 5", len(sum.RecentIngestions))
	}
}

func TestSummaryCanceled(t *testing.T) {
	svc, _ := newSeededServices(t)
	svc.Dashboard.latency = Latency{Min: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := svc.Dashboard.Summary(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("summary: got %v, want context.DeadlineExceeded", err)
	}
}
