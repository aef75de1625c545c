package comparison

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/docintel/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "t.db"), 4)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func setupDoc(t *testing.T, s *store.Store, ctx context.Context, path, text, hash string) int64 {
	t.Helper()
	docID, err := s.UpsertDocument(ctx, store.Document{
		Path: path, Filename: path, FileHash: hash, Size: int64(len(text)), Type: "pdf", Status: store.StatusComplete,
	})
	if err != nil {
		t.Fatalf("upsert document: %v", err)
	}
	_, err = s.InsertOCRResult(ctx, store.OCRResult{
		DocumentID: docID, ExtractedText: text, TextLength: len(text), Mode: "native", PageCount: 1, ContentHash: hash + "-ocr",
	}, nil)
	if err != nil {
		t.Fatalf("insert ocr result: %v", err)
	}
	return docID
}

func TestCompareIdenticalDocumentsHighSimilarity(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	docA := setupDoc(t, s, ctx, "/a.pdf", "the total amount due is $500", "ha")
	docB := setupDoc(t, s, ctx, "/b.pdf", "the total amount due is $500", "hb")

	c, err := e.Compare(ctx, docA, docB)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if c.SimilarityRatio < 0.99 {
		t.Errorf("expected near-identical similarity, got %f", c.SimilarityRatio)
	}
}

func TestCompareCachesResult(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	docA := setupDoc(t, s, ctx, "/a.pdf", "hello world", "ha")
	docB := setupDoc(t, s, ctx, "/b.pdf", "hello there", "hb")

	first, err := e.Compare(ctx, docA, docB)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	second, err := e.Compare(ctx, docA, docB)
	if err != nil {
		t.Fatalf("compare again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected cached comparison to be reused, got ids %d and %d", first.ID, second.ID)
	}
}

func TestCompareDivergentTextLowSimilarity(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	docA := setupDoc(t, s, ctx, "/a.pdf", "completely different opening statement about liability", "ha")
	docB := setupDoc(t, s, ctx, "/b.pdf", "xyz", "hb")

	c, err := e.Compare(ctx, docA, docB)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if c.SimilarityRatio > 0.3 {
		t.Errorf("expected low similarity for divergent text, got %f", c.SimilarityRatio)
	}
}
