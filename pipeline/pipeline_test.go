package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/config"
	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "t.db"), 4)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, config.Default(), nil, nil, nil, nil, nil), s
}

func TestReprocessRejectsDocumentInProgress(t *testing.T) {
	p, s := newTestPipeline(t)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, store.Document{Path: "/a.pdf", Filename: "a.pdf", FileHash: "h", Size: 1, Type: "pdf", Status: store.StatusRunning})
	if err != nil {
		t.Fatalf("upsert doc: %v", err)
	}

	err = p.Reprocess(ctx, docID, backend.ModeBalanced)
	if err == nil {
		t.Fatal("expected an error reprocessing a running document")
	}
	if docerr.CategoryOf(err) != docerr.CategoryValidation {
		t.Errorf("expected CategoryValidation, got %v", docerr.CategoryOf(err))
	}

	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		t.Fatalf("get doc: %v", err)
	}
	if doc.Status != store.StatusRunning {
		t.Errorf("expected status to remain running, got %q", doc.Status)
	}
}
