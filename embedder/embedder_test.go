package embedder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/store"
	"github.com/brunobiangulo/docintel/vectorindex"
)

type fakeEmbedder struct {
	dim int
}

func (f *fakeEmbedder) Dim() int { return f.dim }

func (f *fakeEmbedder) Embed(ctx context.Context, batch []string, task backend.TaskType) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i := range batch {
		v := make([]float32, f.dim)
		v[0] = float32(i + 1)
		out[i] = v
	}
	return out, nil
}

func newTestFacade(t *testing.T) (*Facade, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "t.db"), 4)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	idx := vectorindex.New(s)
	return New(&fakeEmbedder{dim: 4}, idx, nil), s
}

func TestEmbedChunksRejectsEmptyBatch(t *testing.T) {
	f, _ := newTestFacade(t)
	if _, err := f.EmbedChunks(context.Background(), nil, "v1", nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestEmbedChunksPersistsVectors(t *testing.T) {
	f, s := newTestFacade(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, store.Document{Path: "/a.pdf", Filename: "a.pdf", FileHash: "h", Size: 1, Type: "pdf", Status: store.StatusPending})
	ocrID, _ := s.InsertOCRResult(ctx, store.OCRResult{DocumentID: docID, ExtractedText: "t", TextLength: 1, Mode: "native", PageCount: 1, ContentHash: "h2"}, nil)
	ids, err := s.InsertChunks(ctx, []store.Chunk{
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 0, CharacterStart: 0, CharacterEnd: 4, Text: "one", TextHash: "th1", EmbeddingStatus: "pending"},
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 1, CharacterStart: 4, CharacterEnd: 8, Text: "two", TextHash: "th2", EmbeddingStatus: "pending"},
	})
	if err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	chunks, err := s.GetChunksByDocument(ctx, docID)
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}

	embIDs, err := f.EmbedChunks(ctx, chunks, "v1", nil)
	if err != nil {
		t.Fatalf("embed chunks: %v", err)
	}
	if len(embIDs) != 2 {
		t.Fatalf("expected 2 embedding ids, got %d", len(embIDs))
	}

	for i, id := range ids {
		got, err := s.GetChunk(ctx, id)
		if err != nil {
			t.Fatalf("get chunk %d: %v", i, err)
		}
		if got.EmbeddingStatus != "complete" {
			t.Errorf("chunk %d embedding status: got %q", i, got.EmbeddingStatus)
		}
	}
}

func TestEmbedQueryRejectsEmpty(t *testing.T) {
	f, _ := newTestFacade(t)
	if _, err := f.EmbedQuery(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestEmbedQueryReturnsVector(t *testing.T) {
	f, _ := newTestFacade(t)
	v, err := f.EmbedQuery(context.Background(), "search text")
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	if len(v) != 4 {
		t.Fatalf("expected dim 4, got %d", len(v))
	}
}
