package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/config"
	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/store"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Dim() int { return f.dim }
func (f *fakeEmbedder) Embed(ctx context.Context, batch []string, task backend.TaskType) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i := range batch {
		v := make([]float32, f.dim)
		for j := range v {
			v[j] = 0.1
		}
		out[i] = v
	}
	return out, nil
}

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "t.db"), 4)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	cfg := config.Default()
	cfg.EmbeddingDim = 4
	return New(s, &fakeEmbedder{dim: 4}, nil, cfg), s
}

func TestBM25FindsMatchingChunk(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, store.Document{Path: "/a.pdf", Filename: "a.pdf", FileHash: "h", Size: 1, Type: "pdf", Status: store.StatusComplete})
	ocrID, _ := s.InsertOCRResult(ctx, store.OCRResult{DocumentID: docID, ExtractedText: "t", TextLength: 1, Mode: "native", PageCount: 1, ContentHash: "h2"}, nil)
	_, err := s.InsertChunks(ctx, []store.Chunk{
		{DocumentID: docID, OCRResultID: ocrID, Text: "the invoice is overdue", CharacterStart: 0, CharacterEnd: 23, ChunkIndex: 0},
	})
	if err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	results, err := e.BM25(ctx, "invoice", Options{})
	if err != nil {
		t.Fatalf("bm25: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestBM25RejectsEmptyQuery(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.BM25(ctx, "   ", Options{})
	if err == nil {
		t.Fatal("expected an error for a whitespace-only query")
	}
	if docerr.CategoryOf(err) != docerr.CategoryValidation {
		t.Errorf("expected CategoryValidation, got %v", docerr.CategoryOf(err))
	}
}

func TestHybridRejectsEmptyQuery(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, _, err := e.Hybrid(ctx, "", Options{})
	if err == nil {
		t.Fatal("expected an error for an empty query")
	}
	if docerr.CategoryOf(err) != docerr.CategoryValidation {
		t.Errorf("expected CategoryValidation, got %v", docerr.CategoryOf(err))
	}
}

func TestSemanticReturnsNearestChunk(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, store.Document{Path: "/a.pdf", Filename: "a.pdf", FileHash: "h", Size: 1, Type: "pdf", Status: store.StatusComplete})
	ocrID, _ := s.InsertOCRResult(ctx, store.OCRResult{DocumentID: docID, ExtractedText: "t", TextLength: 1, Mode: "native", PageCount: 1, ContentHash: "h2"}, nil)
	chunkIDs, _ := s.InsertChunks(ctx, []store.Chunk{
		{DocumentID: docID, OCRResultID: ocrID, Text: "chunk text", CharacterStart: 0, CharacterEnd: 10, ChunkIndex: 0},
	})

	_, err := s.InsertEmbedding(ctx, store.Embedding{ChunkID: &chunkIDs[0], ModelVersion: "test"}, []float32{0.1, 0.1, 0.1, 0.1})
	if err != nil {
		t.Fatalf("insert embedding: %v", err)
	}

	results, err := e.Semantic(ctx, "query", Options{})
	if err != nil {
		t.Fatalf("semantic: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestHybridFusesBothMethods(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, store.Document{Path: "/a.pdf", Filename: "a.pdf", FileHash: "h", Size: 1, Type: "pdf", Status: store.StatusComplete})
	ocrID, _ := s.InsertOCRResult(ctx, store.OCRResult{DocumentID: docID, ExtractedText: "t", TextLength: 1, Mode: "native", PageCount: 1, ContentHash: "h2"}, nil)
	chunkIDs, _ := s.InsertChunks(ctx, []store.Chunk{
		{DocumentID: docID, OCRResultID: ocrID, Text: "the invoice is overdue", CharacterStart: 0, CharacterEnd: 23, ChunkIndex: 0},
	})
	_, err := s.InsertEmbedding(ctx, store.Embedding{ChunkID: &chunkIDs[0], ModelVersion: "test"}, []float32{0.1, 0.1, 0.1, 0.1})
	if err != nil {
		t.Fatalf("insert embedding: %v", err)
	}

	results, _, err := e.Hybrid(ctx, "invoice", Options{})
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 fused result, got %d", len(results))
	}
}

func TestFuseRRFCombinesRanks(t *testing.T) {
	bm25 := []store.RetrievalResult{{ChunkID: 1}, {ChunkID: 2}}
	vector := []store.RetrievalResult{{ChunkID: 2}, {ChunkID: 3}}

	fused, info := FuseRRF(bm25, vector, 1.0, 1.0, 60)
	if len(fused) != 3 {
		t.Fatalf("expected 3 distinct results, got %d", len(fused))
	}
	if fused[0].ChunkID != 2 {
		t.Errorf("expected chunk 2 (present in both lists) to rank first, got %d", fused[0].ChunkID)
	}
	if len(info[2].Methods) != 2 {
		t.Errorf("expected chunk 2 to have both methods recorded, got %v", info[2].Methods)
	}
}

func TestExpandQueryAddsStaticSynonyms(t *testing.T) {
	expanded := ExpandQuery("plaintiff amount", nil)
	found := false
	for _, t2 := range expanded {
		if t2 == "claimant" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected synonym expansion to include 'claimant', got %v", expanded)
	}
}

func TestExpandQueryRespectsCoherenceFloor(t *testing.T) {
	clusters := []Cluster{{Terms: []string{"invoice", "payment"}, CoherenceScore: 0.1}}
	expanded := ExpandQuery("invoice", clusters)
	for _, t2 := range expanded {
		if t2 == "payment" {
			t.Errorf("expected low-coherence cluster to be ignored, got %v", expanded)
		}
	}
}

func TestAssembleContextTruncatesLowerPrioritySectionsFirst(t *testing.T) {
	results := []store.RetrievalResult{{ChunkID: 1, Filename: "a.pdf", Text: "short excerpt"}}
	facts := []EntityFact{{Source: "Acme", Rel: "owes", Target: "Bob", Weight: 0.9}}

	ctx := AssembleContext(results, []string{"Acme Corp"}, facts, 1000)
	if ctx == "" {
		t.Fatal("expected non-empty context")
	}

	tight := AssembleContext(results, []string{"Acme Corp"}, facts, len("## Excerpts\n[1] a.pdf: short excerpt"))
	if len(tight) == 0 {
		t.Fatal("expected excerpts to survive a tight budget")
	}
}
