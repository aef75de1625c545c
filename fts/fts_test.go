package fts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/docintel/store"
)

func newTestIndex(t *testing.T) (*Index, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestSearchAndContentHash(t *testing.T) {
	idx, s := newTestIndex(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, store.Document{Path: "/a.pdf", Filename: "a.pdf", FileHash: "h", Size: 1, Type: "pdf", Status: store.StatusPending})
	ocrID, _ := s.InsertOCRResult(ctx, store.OCRResult{DocumentID: docID, ExtractedText: "t", TextLength: 1, Mode: "native", PageCount: 1, ContentHash: "h2"}, nil)
	if _, err := s.InsertChunks(ctx, []store.Chunk{
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 0, CharacterStart: 0, CharacterEnd: 20, Text: "knowledge graph edges", TextHash: "h3", EmbeddingStatus: "pending"},
	}); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	results, err := idx.Search(ctx, "knowledge graph", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	h1, err := idx.ContentHash(ctx)
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	if h1 == "" {
		t.Fatal("expected non-empty content hash")
	}

	h2, err := idx.ContentHash(ctx)
	if err != nil {
		t.Fatalf("content hash second call: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected deterministic content hash, got %q vs %q", h1, h2)
	}
}

func TestRebuild(t *testing.T) {
	idx, s := newTestIndex(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, store.Document{Path: "/b.pdf", Filename: "b.pdf", FileHash: "h", Size: 1, Type: "pdf", Status: store.StatusPending})
	ocrID, _ := s.InsertOCRResult(ctx, store.OCRResult{DocumentID: docID, ExtractedText: "t", TextLength: 1, Mode: "native", PageCount: 1, ContentHash: "h2"}, nil)
	s.InsertChunks(ctx, []store.Chunk{
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 0, CharacterStart: 0, CharacterEnd: 20, Text: "rebuild target text", TextHash: "h3", EmbeddingStatus: "pending"},
	})

	if err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	results, err := idx.Search(ctx, "rebuild target", 10)
	if err != nil {
		t.Fatalf("search after rebuild: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result after rebuild, got %d", len(results))
	}
}

func TestSnippetHighlightsMatch(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog near the river bank"
	s := Snippet(text, "fox", 10)
	if s == "" {
		t.Fatal("expected non-empty snippet")
	}
	if !contains(s, "**fox**") {
		t.Fatalf("expected bolded match, got %q", s)
	}
}

func TestSnippetNoMatchTruncates(t *testing.T) {
	text := "completely unrelated content that goes on for a while past the radius window"
	s := Snippet(text, "zzz", 10)
	if !contains(s, "...") {
		t.Fatalf("expected truncation marker, got %q", s)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
