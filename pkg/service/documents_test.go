package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docuquery/pkg/domain"
	"docuquery/pkg/storage"
	"docuquery/pkg/store"
)

func TestUploadCreatesProcessingDocumentAndIngestion(t *testing.T) {
	svc, st := newSeededServices(t)
	ctx := context.Background()
	before, _ := st.ListDocuments()

	doc, err := svc.Documents.Upload(ctx, UploadRequest{
		Title:      "Quarterly Notes",
		FileName:   "notes.txt",
		Content:    []byte(strings.Repeat("a", 7000)),
		UploadedBy: "Admin User",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.ID != "6" || doc.Status != domain.DocumentProcessing || doc.Type != "TXT" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Size != "6.8 KB" {
		t.Fatalf("size = %q, want %q", doc.Size, "6.8 KB")
	}
	after, _ := st.ListDocuments()
	if len(after) != len(before)+1 {
		t.Fatalf("documents = %d, want %d", len(after), len(before)+1)
	}

	ings, _ := st.ListIngestions()
	last := ings[len(ings)-1]
	if last.DocumentID != doc.ID || last.Status != domain.IngestionInProgress || last.ProcessedPages != 0 {
		t.Fatalf("unexpected linked ingestion: %+v", last)
	}
	if last.TotalPages != 3 {
		t.Fatalf("total pages = %d, want 3", last.TotalPages)
	}
}

func TestUploadDefaultsTitleAndEstimatesPages(t *testing.T) {
	svc, st := newSeededServices(t)
	doc, err := svc.Documents.Upload(context.Background(), UploadRequest{FileName: "Board Deck.pptx", Size: 250 * 1024})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.Title != "Board Deck" || doc.Type != "PPTX" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	ings, _ := st.ListIngestions()
	if got := ings[len(ings)-1].TotalPages; got != 3 {
		t.Fatalf("estimated pages = %d, want 3", got)
	}
}

func TestUploadInvalidPDFFallsBackToEstimate(t *testing.T) {
	svc, st := newSeededServices(t)
	if _, err := svc.Documents.Upload(context.Background(), UploadRequest{FileName: "broken.pdf", Content: []byte("not a pdf")}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	ings, _ := st.ListIngestions()
	if got := ings[len(ings)-1].TotalPages; got != 1 {
		t.Fatalf("pages = %d, want 1", got)
	}
}

func TestUploadValidation(t *testing.T) {
	st := store.NewMemoryStore()
	svc := New(st, nil, Config{Documents: DocumentOptions{MaxUploadBytes: 10, AllowedExtensions: []string{".pdf", "txt"}}})
	ctx := context.Background()

	cases := []UploadRequest{
		{FileName: ""},
		{FileName: "image.png", Size: 1},
		{FileName: "big.txt", Size: 11},
	}
	for _, req := range cases {
		if _, err := svc.Documents.Upload(ctx, req); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("upload %+v: got %v, want ErrInvalidInput", req, err)
		}
	}
	if _, err := svc.Documents.Upload(ctx, UploadRequest{FileName: "ok.TXT", Size: 10}); err != nil {
		t.Fatalf("upload allowed file: %v", err)
	}
	docs, _ := st.ListDocuments()
	if len(docs) != 1 {
		t.Fatalf("documents = %d, want 1", len(docs))
	}
}

func TestUploadCanceledContextDoesNotMutate(t *testing.T) {
	svc, st := newSeededServices(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before, _ := st.ListDocuments()
	if _, err := svc.Documents.Upload(ctx, UploadRequest{FileName: "late.txt", Size: 5}); !errors.Is(err, context.Canceled) {
		t.Fatalf("upload: got %v, want context.Canceled", err)
	}
	after, _ := st.ListDocuments()
	if len(after) != len(before) {
		t.Fatalf("canceled upload changed the collection")
	}
}

func TestDeleteDocumentRemovesExactlyOne(t *testing.T) {
	svc, st := newSeededServices(t)
	ctx := context.Background()
	before, _ := st.ListDocuments()

	if err := svc.Documents.Delete(ctx, "999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete unknown: got %v, want ErrNotFound", err)
	}
	if after, _ := st.ListDocuments(); len(after) != len(before) {
		t.Fatalf("failed delete changed the collection")
	}

	if err := svc.Documents.Delete(ctx, "2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after, _ := st.ListDocuments()
	if len(after) != len(before)-1 {
		t.Fatalf("documents = %d, want %d", len(after), len(before)-1)
	}
	for i, d := range after {
		if d.ID == "2" {
			t.Fatalf("document 2 still present")
		}
		want := before[i]
		if i >= 1 {
			want = before[i+1]
		}
		if d != want {
			t.Fatalf("document %d changed: %+v, want %+v", i, d, want)
		}
	}
}

func TestUploadAndDeleteManageStoredBytes(t *testing.T) {
	st := store.NewMemoryStore()
	objects, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	svc := New(st, objects, Config{})
	ctx := context.Background()

	doc, err := svc.Documents.Upload(ctx, UploadRequest{FileName: "page.html", Content: []byte("<html><body><p>Hello</p><script>x()</script></body></html>")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	stored, _, _ := st.GetDocument(doc.ID)
	if stored.StorageKey == "" {
		t.Fatalf("expected storage key")
	}
	if _, err := objects.Get(ctx, stored.StorageKey); err != nil {
		t.Fatalf("stored bytes missing: %v", err)
	}
	if err := svc.Documents.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := objects.Get(ctx, stored.StorageKey); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("stored bytes should be removed, got %v", err)
	}
}

// failingStore rejects writes of one record kind.
type failingStore struct {
	*store.MemoryStore
	failDocuments  bool
	failIngestions bool
}

func (f *failingStore) SaveDocument(d domain.Document) error {
	if f.failDocuments {
		return errors.New("documents table unavailable")
	}
	return f.MemoryStore.SaveDocument(d)
}

func (f *failingStore) SaveIngestion(ing domain.Ingestion) error {
	if f.failIngestions {
		return errors.New("ingestions table unavailable")
	}
	return f.MemoryStore.SaveIngestion(ing)
}

func TestFailedUploadLeavesNothingBehind(t *testing.T) {
	for _, st := range []*failingStore{
		{MemoryStore: store.NewMemoryStore(), failDocuments: true},
		{MemoryStore: store.NewMemoryStore(), failIngestions: true},
	} {
		objects, err := storage.NewFileStore(t.TempDir())
		if err != nil {
			t.Fatalf("file store: %v", err)
		}
		svc := New(st, objects, Config{})
		ctx := context.Background()

		if _, err := svc.Documents.Upload(ctx, UploadRequest{FileName: "notes.txt", Content: []byte("hello")}); err == nil {
			t.Fatalf("expected upload error")
		}
		if docs, _ := st.ListDocuments(); len(docs) != 0 {
			t.Fatalf("documents left after failed upload: %+v", docs)
		}
		if _, err := objects.Get(ctx, "documents/1/notes.txt"); !errors.Is(err, storage.ErrObjectNotFound) {
			t.Fatalf("stored bytes left after failed upload: %v", err)
		}
	}
}

func TestListDocumentsFiltersByTitleAndType(t *testing.T) {
	svc, _ := newSeededServices(t)
	ctx := context.Background()
	docx, err := svc.Documents.List(ctx, "docx")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docx) != 2 {
		t.Fatalf("docx documents = %d, want 2", len(docx))
	}
	hand, _ := svc.Documents.List(ctx, "HANDBOOK")
	if len(hand) != 1 || hand[0].Title != "Employee Handbook" {
		t.Fatalf("unexpected search result: %+v", hand)
	}
	all, _ := svc.Documents.List(ctx, "  ")
	if len(all) != 5 {
		t.Fatalf("all documents = %d, want 5", len(all))
	}
}
