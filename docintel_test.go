package docintel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/config"
	"github.com/brunobiangulo/docintel/store"
)

type fakeOCR struct{}

func (fakeOCR) Process(ctx context.Context, filePath string, mode backend.Mode) (*backend.OCRResult, error) {
	text := "Acme Corp signed a contract with Globex Inc on January 5, 2024."
	return &backend.OCRResult{
		Text:         text,
		TextLength:   len(text),
		PageCount:    1,
		PageOffsets:  []backend.PageOffset{{PageNumber: 1, CharStart: 0, CharEnd: len(text)}},
		QualityScore: 0.95,
		Duration:     time.Millisecond,
	}, nil
}

type fakeVLM struct{}

func (fakeVLM) Describe(ctx context.Context, imageBytes []byte, prompt string, mediaResolution string) (*backend.VLMResult, error) {
	return &backend.VLMResult{Description: "no images", Confidence: 1.0}, nil
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Dim() int { return f.dim }

func (f fakeEmbedder) Embed(ctx context.Context, batch []string, task backend.TaskType) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i := range batch {
		v := make([]float32, f.dim)
		v[0] = float32(i + 1)
		out[i] = v
	}
	return out, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "docintel.db")
	cfg.EmbeddingDim = 4
	cfg.MaxConcurrentDocuments = 2

	eng, err := New(cfg, Backends{
		OCR:      fakeOCR{},
		VLM:      fakeVLM{},
		Embedder: fakeEmbedder{dim: 4},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestIngestRunsPipelineToComplete(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "contract.txt", "placeholder; real text comes from fakeOCR")
	docID, err := eng.Ingest(ctx, path, backend.ModeBalanced)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if docID == 0 {
		t.Fatal("expected non-zero document ID")
	}

	doc, err := eng.Store().GetDocument(ctx, docID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Status != store.StatusComplete {
		t.Errorf("status = %q, want %q", doc.Status, store.StatusComplete)
	}
}

func TestIngestSkipsReprocessOnUnchangedHash(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "contract.txt", "same bytes both times")
	first, err := eng.Ingest(ctx, path, backend.ModeBalanced)
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	second, err := eng.Ingest(ctx, path, backend.ModeBalanced)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if first != second {
		t.Errorf("expected same document ID on unchanged hash, got %d and %d", first, second)
	}
}

func TestUpdateReingestsOnChangedHash(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "contract.txt", "version one")
	docID, err := eng.Ingest(ctx, path, backend.ModeBalanced)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := os.WriteFile(path, []byte("version two, now longer"), 0o644); err != nil {
		t.Fatalf("rewriting fixture: %v", err)
	}
	changed, err := eng.Update(ctx, path, backend.ModeBalanced)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !changed {
		t.Error("expected Update to report a change after editing the file")
	}

	doc, err := eng.Store().GetDocumentByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if doc.ID != docID {
		t.Errorf("expected update to reuse document ID %d, got %d", docID, doc.ID)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "contract.txt", "to be deleted")
	docID, err := eng.Ingest(ctx, path, backend.ModeBalanced)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := eng.Delete(ctx, docID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := eng.Store().GetDocument(ctx, docID); err == nil {
		t.Error("expected GetDocument to fail after Delete")
	}
}

func TestReprocessRejectsDocumentNotCompleteOrFailed(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "contract.txt", "in flight")
	docID, err := eng.Ingest(ctx, path, backend.ModeBalanced)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := eng.Store().UpdateDocumentStatus(ctx, docID, store.StatusRunning); err != nil {
		t.Fatalf("UpdateDocumentStatus: %v", err)
	}

	err = eng.Reprocess(ctx, docID, backend.ModeBalanced)
	if err == nil {
		t.Fatal("expected an error reprocessing a running document")
	}
}

func TestReprocessAllowsCompleteDocument(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "contract.txt", "ready to redo")
	docID, err := eng.Ingest(ctx, path, backend.ModeBalanced)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := eng.Reprocess(ctx, docID, backend.ModeBalanced); err != nil {
		t.Fatalf("Reprocess: %v", err)
	}

	doc, err := eng.Store().GetDocument(ctx, docID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Status != store.StatusComplete {
		t.Errorf("status = %q, want %q", doc.Status, store.StatusComplete)
	}
}

func TestListDocumentsReturnsIngested(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	pathA := writeTempFile(t, "a.txt", "doc a")
	pathB := writeTempFile(t, "b.txt", "doc b")
	if _, err := eng.Ingest(ctx, pathA, backend.ModeBalanced); err != nil {
		t.Fatalf("Ingest a: %v", err)
	}
	if _, err := eng.Ingest(ctx, pathB, backend.ModeBalanced); err != nil {
		t.Fatalf("Ingest b: %v", err)
	}

	docs, err := eng.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len(docs) = %d, want 2", len(docs))
	}
}
