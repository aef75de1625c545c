//go:build cgo

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func sampleDoc(path string) Document {
	return Document{
		Path:     path,
		Filename: "test.pdf",
		FileHash: "sha256:abc123",
		Size:     1024,
		Type:     "pdf",
		Status:   StatusPending,
	}
}

func insertOCR(t *testing.T, s *Store, ctx context.Context, docID int64) int64 {
	t.Helper()
	id, err := s.InsertOCRResult(ctx, OCRResult{
		DocumentID:    docID,
		ExtractedText: "sample text",
		TextLength:    11,
		Mode:          "native",
		PageCount:     1,
		ContentHash:   "sha256:ocr1",
	}, nil)
	if err != nil {
		t.Fatalf("insert ocr result: %v", err)
	}
	return id
}

func TestUpsertAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("/tmp/test.pdf")
	id, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero document id")
	}

	got, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("getting document by id: %v", err)
	}
	if got.Path != doc.Path {
		t.Errorf("path: got %q, want %q", got.Path, doc.Path)
	}
	if got.Status != StatusPending {
		t.Errorf("status: got %q, want %q", got.Status, StatusPending)
	}
}

func TestGetDocumentByPathNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetDocumentByPath(ctx, "/nonexistent")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpsertDocumentUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("/tmp/update.pdf")
	id1, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	doc.FileHash = "sha256:def456"
	doc.Status = StatusComplete
	id2, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("upsert returned different id: %d vs %d", id2, id1)
	}

	got, err := s.GetDocument(ctx, id1)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.FileHash != "sha256:def456" {
		t.Errorf("file_hash not updated: got %q", got.FileHash)
	}
}

func TestListDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/a.pdf", "/b.pdf", "/c.pdf"} {
		if _, err := s.UpsertDocument(ctx, sampleDoc(p)); err != nil {
			t.Fatalf("insert doc: %v", err)
		}
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(docs))
	}
}

func TestDeleteDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, sampleDoc("/delete.pdf"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ocrID := insertOCR(t, s, ctx, docID)

	chunkIDs, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 0, CharacterStart: 0, CharacterEnd: 9,
			Text: "chunk one", TextHash: "sha256:c1", EmbeddingStatus: "pending"},
	})
	if err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	if _, err := s.InsertEmbedding(ctx, Embedding{
		ChunkID: &chunkIDs[0], Model: "test", ModelVersion: "1", TaskType: "document",
		SourceText: "chunk one", ContentHash: "sha256:e1",
	}, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("insert embedding: %v", err)
	}

	if err := s.DeleteDocument(ctx, docID); err != nil {
		t.Fatalf("delete document: %v", err)
	}

	if _, err := s.GetDocument(ctx, docID); err != sql.ErrNoRows {
		t.Fatalf("expected document gone, got err=%v", err)
	}

	remaining, err := s.GetChunksByDocument(ctx, docID)
	if err != nil {
		t.Fatalf("get chunks after delete: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected 0 chunks after cascade, got %d", len(remaining))
	}
}

func TestInsertAndGetChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, sampleDoc("/chunks.pdf"))
	if err != nil {
		t.Fatalf("upsert doc: %v", err)
	}
	ocrID := insertOCR(t, s, ctx, docID)

	chunks := []Chunk{
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 0, CharacterStart: 0, CharacterEnd: 11,
			Text: "first chunk", TextHash: "sha256:c0", EmbeddingStatus: "pending"},
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 1, CharacterStart: 11, CharacterEnd: 23,
			Text: "second chunk", TextHash: "sha256:c1", EmbeddingStatus: "pending"},
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 2, CharacterStart: 23, CharacterEnd: 34,
			Text: "third chunk", TextHash: "sha256:c2", EmbeddingStatus: "pending"},
	}

	ids, err := s.InsertChunks(ctx, chunks)
	if err != nil {
		t.Fatalf("inserting chunks: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}

	got, err := s.GetChunksByDocument(ctx, docID)
	if err != nil {
		t.Fatalf("getting chunks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if got[0].Text != "first chunk" {
		t.Errorf("first chunk text: got %q", got[0].Text)
	}
	if got[2].Text != "third chunk" {
		t.Errorf("third chunk text: got %q", got[2].Text)
	}
}

func TestInsertEmbeddingAndVectorSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, sampleDoc("/vec.pdf"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ocrID := insertOCR(t, s, ctx, docID)

	ids, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 0, CharacterStart: 0, CharacterEnd: 13,
			Text: "alpha content", TextHash: "sha256:a", EmbeddingStatus: "pending"},
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 1, CharacterStart: 13, CharacterEnd: 25,
			Text: "beta content", TextHash: "sha256:b", EmbeddingStatus: "pending"},
	})
	if err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	if _, err := s.InsertEmbedding(ctx, Embedding{ChunkID: &ids[0], Model: "m", ModelVersion: "1",
		TaskType: "document", SourceText: "alpha content", ContentHash: "sha256:e0"}, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("embedding 0: %v", err)
	}
	if _, err := s.InsertEmbedding(ctx, Embedding{ChunkID: &ids[1], Model: "m", ModelVersion: "1",
		TaskType: "document", SourceText: "beta content", ContentHash: "sha256:e1"}, []float32{0, 1, 0, 0}); err != nil {
		t.Fatalf("embedding 1: %v", err)
	}

	results, err := s.VectorSearch(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Text != "alpha content" {
		t.Errorf("expected nearest to be 'alpha content', got %q", results[0].Text)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("expected first result score (%f) > second (%f)", results[0].Score, results[1].Score)
	}
}

func TestFTSSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, sampleDoc("/fts.pdf"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ocrID := insertOCR(t, s, ctx, docID)

	chunks := []Chunk{
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 0, CharacterStart: 0, CharacterEnd: 44,
			Text: "the quick brown fox jumps over the lazy dog", TextHash: "sha256:h0", EmbeddingStatus: "pending"},
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 1, CharacterStart: 44, CharacterEnd: 89,
			Text: "artificial intelligence and machine learning", TextHash: "sha256:h1", EmbeddingStatus: "pending"},
	}
	if _, err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	results, err := s.FTSSearch(ctx, "artificial intelligence", 10)
	if err != nil {
		t.Fatalf("fts search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one FTS result")
	}
	if results[0].Text != "artificial intelligence and machine learning" {
		t.Errorf("top FTS result: got %q", results[0].Text)
	}
	if results[0].Score <= 0 {
		t.Errorf("expected positive score, got %f", results[0].Score)
	}
}

func TestFTSSearchNoMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, sampleDoc("/fts2.pdf"))
	ocrID := insertOCR(t, s, ctx, docID)
	s.InsertChunks(ctx, []Chunk{
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 0, CharacterStart: 0, CharacterEnd: 11,
			Text: "hello world", TextHash: "sha256:h", EmbeddingStatus: "pending"},
	})

	results, err := s.FTSSearch(ctx, "zzzyyyxxx", 10)
	if err != nil {
		t.Fatalf("fts search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results for nonsense query, got %d", len(results))
	}
}

func TestUpsertEntityAndSearchByTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, sampleDoc("/entities.pdf"))

	id1, err := s.UpsertEntity(ctx, Entity{DocumentID: docID, Type: "person", RawText: "Alice", NormalizedText: "alice", Confidence: 0.9})
	if err != nil {
		t.Fatalf("upsert e1: %v", err)
	}
	id2, err := s.UpsertEntity(ctx, Entity{DocumentID: docID, Type: "organization", RawText: "Acme Corp", NormalizedText: "acme corp", Confidence: 0.8})
	if err != nil {
		t.Fatalf("upsert e2: %v", err)
	}
	if id1 == 0 || id2 == 0 {
		t.Fatal("expected non-zero entity ids")
	}

	found, err := s.SearchEntitiesByTerms(ctx, []string{"acme"}, 10)
	if err != nil {
		t.Fatalf("search by terms: %v", err)
	}
	if len(found) != 1 || found[0].NormalizedText != "acme corp" {
		t.Fatalf("expected to find acme corp, got %+v", found)
	}
}

func TestUpsertEntityUpdateRaisesConfidence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, sampleDoc("/entities2.pdf"))
	e := Entity{DocumentID: docID, Type: "person", RawText: "Alice", NormalizedText: "alice", Confidence: 0.5}
	id1, err := s.UpsertEntity(ctx, e)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	e.Confidence = 0.9
	id2, err := s.UpsertEntity(ctx, e)
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("expected same id, got %d vs %d", id2, id1)
	}

	got, err := s.GetEntity(ctx, id1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Confidence != 0.9 {
		t.Errorf("expected confidence raised to 0.9, got %f", got.Confidence)
	}
}

func TestGraphSearchViaMentions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, sampleDoc("/graph.pdf"))
	ocrID := insertOCR(t, s, ctx, docID)
	chunkIDs, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 0, CharacterStart: 0, CharacterEnd: 20,
			Text: "Alice works at Acme", TextHash: "sha256:g0", EmbeddingStatus: "pending"},
	})
	if err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	aliceID, err := s.UpsertEntityAndMention(ctx,
		Entity{DocumentID: docID, Type: "person", RawText: "Alice", NormalizedText: "alice", Confidence: 0.9},
		EntityMention{ChunkID: chunkIDs[0], CharacterStart: 0, CharacterEnd: 5})
	if err != nil {
		t.Fatalf("upsert+mention: %v", err)
	}

	results, err := s.GraphSearch(ctx, []int64{aliceID}, 10)
	if err != nil {
		t.Fatalf("graph search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one graph search result")
	}
	if results[0].Text != "Alice works at Acme" {
		t.Errorf("graph result text: got %q", results[0].Text)
	}
}

func TestGraphSearchEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result, err := s.GraphSearch(ctx, []int64{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil for empty entity ids, got %v", result)
	}
}

func TestKnowledgeGraphNodesAndEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	aliceNode, err := s.InsertNode(ctx, KnowledgeNode{Type: "person", CanonicalName: "Alice", NormalizedName: "alice"})
	if err != nil {
		t.Fatalf("insert node: %v", err)
	}
	acmeNode, err := s.InsertNode(ctx, KnowledgeNode{Type: "organization", CanonicalName: "Acme", NormalizedName: "acme"})
	if err != nil {
		t.Fatalf("insert node: %v", err)
	}

	edgeID, err := s.UpsertEdge(ctx, KnowledgeEdge{SourceNodeID: aliceNode, TargetNodeID: acmeNode,
		RelationshipType: "requires", Weight: 1.0, EvidenceCount: 1})
	if err != nil {
		t.Fatalf("upsert edge: %v", err)
	}
	if edgeID == 0 {
		t.Fatal("expected non-zero edge id")
	}

	edges, err := s.GetEdgesForNode(ctx, aliceNode)
	if err != nil {
		t.Fatalf("get edges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}

	// Re-upsert merges evidence instead of duplicating the row.
	if _, err := s.UpsertEdge(ctx, KnowledgeEdge{SourceNodeID: aliceNode, TargetNodeID: acmeNode,
		RelationshipType: "requires", Weight: 1.0, EvidenceCount: 1}); err != nil {
		t.Fatalf("re-upsert edge: %v", err)
	}
	all, err := s.AllEdges(ctx)
	if err != nil {
		t.Fatalf("all edges: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected edge merge, got %d edges", len(all))
	}
	if all[0].EvidenceCount != 2 {
		t.Errorf("expected evidence count 2 after merge, got %d", all[0].EvidenceCount)
	}
}

func TestDeleteDocumentData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, sampleDoc("/deldata.pdf"))
	ocrID := insertOCR(t, s, ctx, docID)
	chunkIDs, err := s.InsertChunks(ctx, []Chunk{
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 0, CharacterStart: 0, CharacterEnd: 8,
			Text: "keep me?", TextHash: "sha256:k0", EmbeddingStatus: "pending"},
		{DocumentID: docID, OCRResultID: ocrID, ChunkIndex: 1, CharacterStart: 8, CharacterEnd: 15,
			Text: "and me?", TextHash: "sha256:k1", EmbeddingStatus: "pending"},
	})
	if err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	if _, err := s.InsertEmbedding(ctx, Embedding{ChunkID: &chunkIDs[0], Model: "m", ModelVersion: "1",
		TaskType: "document", SourceText: "keep me?", ContentHash: "sha256:ek0"}, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("embedding: %v", err)
	}
	if _, err := s.InsertEmbedding(ctx, Embedding{ChunkID: &chunkIDs[1], Model: "m", ModelVersion: "1",
		TaskType: "document", SourceText: "and me?", ContentHash: "sha256:ek1"}, []float32{0, 1, 0, 0}); err != nil {
		t.Fatalf("embedding: %v", err)
	}

	if _, err := s.UpsertEntityAndMention(ctx,
		Entity{DocumentID: docID, Type: "term", RawText: "E", NormalizedText: "e", Confidence: 0.5},
		EntityMention{ChunkID: chunkIDs[0], CharacterStart: 0, CharacterEnd: 1}); err != nil {
		t.Fatalf("upsert+mention: %v", err)
	}

	if err := s.DeleteDocumentData(ctx, docID); err != nil {
		t.Fatalf("delete document data: %v", err)
	}

	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		t.Fatalf("document should still exist: %v", err)
	}
	if doc.Path != "/deldata.pdf" {
		t.Errorf("path: got %q", doc.Path)
	}

	remaining, err := s.GetChunksByDocument(ctx, docID)
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected 0 chunks after data delete, got %d", len(remaining))
	}

	results, err := s.VectorSearch(ctx, []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("vector search after delete: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 vector results after data delete, got %d", len(results))
	}
}

func TestDeleteDocumentDataDecrementsNodeDocumentCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, sampleDoc("/kgdel.pdf"))
	entityID, err := s.UpsertEntity(ctx, Entity{DocumentID: docID, Type: "organization", RawText: "Acme", NormalizedText: "acme", Confidence: 0.9})
	if err != nil {
		t.Fatalf("upsert entity: %v", err)
	}

	nodeID, err := s.InsertNode(ctx, KnowledgeNode{Type: "organization", CanonicalName: "Acme", NormalizedName: "acme", DocumentCount: 2})
	if err != nil {
		t.Fatalf("insert node: %v", err)
	}
	if _, err := s.LinkNodeEntity(ctx, NodeEntityLink{NodeID: nodeID, EntityID: entityID, SimilarityScore: 1, ResolutionMethod: "exact"}); err != nil {
		t.Fatalf("link node entity: %v", err)
	}

	if err := s.DeleteDocumentData(ctx, docID); err != nil {
		t.Fatalf("delete document data: %v", err)
	}

	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if node.DocumentCount != 1 {
		t.Errorf("expected document_count decremented to 1, got %d", node.DocumentCount)
	}
}

func TestArchiveDocumentKGWritesSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, sampleDoc("/kgarchive.pdf"))
	entityID, err := s.UpsertEntity(ctx, Entity{DocumentID: docID, Type: "person", RawText: "Bob", NormalizedText: "bob", Confidence: 0.9})
	if err != nil {
		t.Fatalf("upsert entity: %v", err)
	}
	nodeID, err := s.InsertNode(ctx, KnowledgeNode{Type: "person", CanonicalName: "Bob", NormalizedName: "bob", DocumentCount: 1})
	if err != nil {
		t.Fatalf("insert node: %v", err)
	}
	if _, err := s.LinkNodeEntity(ctx, NodeEntityLink{NodeID: nodeID, EntityID: entityID, SimilarityScore: 1, ResolutionMethod: "exact"}); err != nil {
		t.Fatalf("link node entity: %v", err)
	}

	archiveDir := filepath.Join(t.TempDir(), "kg-archives")
	if err := s.ArchiveDocumentKG(ctx, docID, archiveDir); err != nil {
		t.Fatalf("archive kg: %v", err)
	}

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 archive file, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(archiveDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read archive file: %v", err)
	}
	var snapshot KGSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snapshot.DocumentID != docID {
		t.Errorf("snapshot document_id: got %d, want %d", snapshot.DocumentID, docID)
	}
	if len(snapshot.Nodes) != 1 || snapshot.Nodes[0].ID != nodeID {
		t.Errorf("expected snapshot to contain node %d, got %+v", nodeID, snapshot.Nodes)
	}
}

func TestArchiveDocumentKGSkipsDocumentWithNoEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, sampleDoc("/noarchive.pdf"))
	archiveDir := filepath.Join(t.TempDir(), "kg-archives")

	if err := s.ArchiveDocumentKG(ctx, docID, archiveDir); err != nil {
		t.Fatalf("archive kg: %v", err)
	}
	if _, err := os.Stat(archiveDir); !os.IsNotExist(err) {
		t.Errorf("expected no archive directory to be created, got err=%v", err)
	}
}

func TestTagTargetAndGetTagsForTarget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, _ := s.UpsertDocument(ctx, sampleDoc("/tags.pdf"))

	if err := s.TagTarget(ctx, "reviewed", TagKindDocument, docID); err != nil {
		t.Fatalf("tag target: %v", err)
	}
	if err := s.TagTarget(ctx, "important", TagKindDocument, docID); err != nil {
		t.Fatalf("tag target: %v", err)
	}

	tags, err := s.GetTagsForTarget(ctx, TagKindDocument, docID)
	if err != nil {
		t.Fatalf("get tags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}

	if err := s.UntagTarget(ctx, "reviewed", TagKindDocument, docID); err != nil {
		t.Fatalf("untag: %v", err)
	}
	tags, err = s.GetTagsForTarget(ctx, TagKindDocument, docID)
	if err != nil {
		t.Fatalf("get tags after untag: %v", err)
	}
	if len(tags) != 1 || tags[0] != "important" {
		t.Fatalf("expected only 'important' tag remaining, got %v", tags)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertDocument(ctx, sampleDoc("/stats.pdf")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.Documents != 1 {
		t.Errorf("expected 1 document, got %d", stats.Documents)
	}
}
