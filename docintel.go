// Package docintel wires the document intelligence store's components
// into one façade, mirroring the teacher's root goreason.go Engine:
// a single entry point that owns the store and every orchestrator
// built on top of it, opened once from a Config and closed once at
// shutdown.
package docintel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/comparison"
	"github.com/brunobiangulo/docintel/config"
	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/embedder"
	"github.com/brunobiangulo/docintel/kg"
	"github.com/brunobiangulo/docintel/ocr"
	"github.com/brunobiangulo/docintel/pipeline"
	"github.com/brunobiangulo/docintel/provenance"
	"github.com/brunobiangulo/docintel/search"
	"github.com/brunobiangulo/docintel/store"
	"github.com/brunobiangulo/docintel/tags"
	"github.com/brunobiangulo/docintel/vectorindex"
	"github.com/brunobiangulo/docintel/vlm"
)

// Engine is the top-level document intelligence store: it owns the
// SQLite-backed store and composes every orchestrator (OCR, embedding,
// VLM, knowledge-graph resolution, pipeline, search, comparison,
// tagging) over it.
type Engine struct {
	cfg        config.Config
	store      *store.Store
	prov       *provenance.Tracker
	index      *vectorindex.Index
	ocr        *ocr.Orchestrator
	embed      *embedder.Facade
	vlm        *vlm.Orchestrator
	resolver   *kg.Resolver
	pipeline   *pipeline.Pipeline
	search     *search.Engine
	comparison *comparison.Engine
	tags       *tags.Manager
}

// Backends bundles the external collaborators an Engine drives. A
// caller assembles these from whichever providers config.Config names
// (local, ollama, openai, ...) before calling New.
type Backends struct {
	OCR      backend.OCRBackend
	VLM      backend.VLMBackend
	Embedder backend.Embedder
	Reranker backend.Reranker
}

// New opens the store at cfg's resolved database path and wires every
// component over it. The caller is responsible for constructing the
// Backends (OCR/VLM/embedder/reranker implementations) since those
// depend on which provider cfg selects.
func New(cfg config.Config, b Backends) (*Engine, error) {
	dbPath := cfg.ResolveDBPath()
	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	prov := provenance.New(s)
	index := vectorindex.New(s)
	ocrOrch := ocr.New(s, b.OCR, prov)
	embed := embedder.New(b.Embedder, index, prov)
	vlmOrch := vlm.New(s, b.VLM, prov)
	resolver := kg.NewResolver(s, cfg)

	loader := func(ctx context.Context, imageID int64) ([]byte, error) {
		img, err := s.GetImage(ctx, imageID)
		if err != nil {
			return nil, err
		}
		if img.Path == "" {
			return nil, docerr.New(docerr.CategoryImageExtractionFailed, "image has no stored path")
		}
		return os.ReadFile(img.Path)
	}

	pl := pipeline.New(s, cfg, ocrOrch, embed, vlmOrch, resolver, loader)
	searchEngine := search.New(s, b.Embedder, b.Reranker, cfg)
	cmp := comparison.New(s)
	tagMgr := tags.New(s)

	return &Engine{
		cfg:        cfg,
		store:      s,
		prov:       prov,
		index:      index,
		ocr:        ocrOrch,
		embed:      embed,
		vlm:        vlmOrch,
		resolver:   resolver,
		pipeline:   pl,
		search:     searchEngine,
		comparison: cmp,
		tags:       tagMgr,
	}, nil
}

// Store returns the underlying store for diagnostic or administrative
// access.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Search returns the hybrid retrieval engine.
func (e *Engine) Search() *search.Engine {
	return e.search
}

// Tags returns the polymorphic tag manager.
func (e *Engine) Tags() *tags.Manager {
	return e.tags
}

// Close releases the underlying store's connections.
func (e *Engine) Close() error {
	return e.store.Close()
}

// IngestOption configures a single Ingest call.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	forceReprocess bool
	metadata       map[string]string
}

// WithForceReprocess re-runs the pipeline even if the file's content
// hash matches the stored document.
func WithForceReprocess() IngestOption {
	return func(o *ingestOptions) { o.forceReprocess = true }
}

// WithIngestMetadata attaches caller-supplied metadata to the document
// record.
func WithIngestMetadata(m map[string]string) IngestOption {
	return func(o *ingestOptions) { o.metadata = m }
}

// Ingest registers a document by path and runs it through the
// pipeline (OCR through knowledge-graph resolution). If a document at
// the same path already exists with an unchanged content hash, Ingest
// returns its existing ID without reprocessing.
func (e *Engine) Ingest(ctx context.Context, path string, mode backend.Mode, opts ...IngestOption) (int64, error) {
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return 0, fmt.Errorf("hashing file: %w", err)
	}

	if !options.forceReprocess {
		if existing, err := e.store.GetDocumentByPath(ctx, absPath); err == nil && existing.FileHash == hash {
			return existing.ID, nil
		}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("statting file: %w", err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(absPath), "."))
	docID, err := e.store.UpsertDocument(ctx, store.Document{
		Path:     absPath,
		Filename: filepath.Base(absPath),
		FileHash: hash,
		Size:     info.Size(),
		Type:     ext,
		Status:   store.StatusPending,
	})
	if err != nil {
		return 0, fmt.Errorf("upserting document: %w", err)
	}

	for k, v := range options.metadata {
		if err := e.tags.Apply(ctx, k+":"+v, store.TagKindDocument, docID); err != nil {
			slog.Warn("ingest: tagging metadata failed", "doc_id", docID, "key", k, "error", err)
		}
	}

	slog.Info("ingest: processing document", "path", absPath, "doc_id", docID)
	if err := e.pipeline.ProcessDocument(ctx, docID, mode); err != nil {
		return docID, fmt.Errorf("processing document: %w", err)
	}
	return docID, nil
}

// Update re-hashes path and re-ingests if the content changed. It
// reports whether a reprocess happened.
func (e *Engine) Update(ctx context.Context, path string, mode backend.Mode) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolving path: %w", err)
	}
	existing, err := e.store.GetDocumentByPath(ctx, absPath)
	if err != nil {
		_, err := e.Ingest(ctx, absPath, mode)
		return err == nil, err
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return false, fmt.Errorf("hashing file: %w", err)
	}
	if hash == existing.FileHash {
		return false, nil
	}
	if _, err := e.Ingest(ctx, absPath, mode, WithForceReprocess()); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateResult reports the outcome of a single document's update
// check within UpdateAll.
type UpdateResult struct {
	DocumentID int64
	Path       string
	Changed    bool
	Err        error
}

// UpdateAll checks every ingested document for a changed content hash
// and re-ingests those that changed.
func (e *Engine) UpdateAll(ctx context.Context, mode backend.Mode) ([]UpdateResult, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	results := make([]UpdateResult, 0, len(docs))
	for _, d := range docs {
		changed, err := e.Update(ctx, d.Path, mode)
		results = append(results, UpdateResult{DocumentID: d.ID, Path: d.Path, Changed: changed, Err: err})
	}
	return results, nil
}

// Delete removes a document and every chunk, embedding, image,
// entity, and provenance record derived from it.
func (e *Engine) Delete(ctx context.Context, documentID int64) error {
	archiveDir := e.cfg.KGArchiveDir
	if archiveDir == "" {
		archiveDir = "kg-archives"
	}
	if err := e.store.ArchiveDocumentKG(ctx, documentID, archiveDir); err != nil {
		return fmt.Errorf("archiving knowledge graph: %w", err)
	}
	// DeleteDocument decrements knowledge_nodes.document_count for this
	// document's linked nodes as part of its DeleteDocumentData cascade.
	return e.store.DeleteDocument(ctx, documentID)
}

// ListDocuments returns every ingested document.
func (e *Engine) ListDocuments(ctx context.Context) ([]store.Document, error) {
	return e.store.ListDocuments(ctx)
}

// ProcessPending runs the pipeline over every document not yet
// complete, bounded by cfg.MaxConcurrentDocuments.
func (e *Engine) ProcessPending(ctx context.Context, mode backend.Mode) ([]pipeline.Result, error) {
	return e.pipeline.ProcessPending(ctx, mode, e.cfg.MaxConcurrentDocuments)
}

// Reprocess wipes a document's derived data and reruns the pipeline
// from OCR, so a changed extraction rule or a corrected source file
// doesn't leave stale chunks, embeddings, or entities behind.
func (e *Engine) Reprocess(ctx context.Context, documentID int64, mode backend.Mode) error {
	return e.pipeline.Reprocess(ctx, documentID, mode)
}

// Compare diffs two documents at text, structural, and entity level,
// cross-referencing the knowledge graph for contradictions.
func (e *Engine) Compare(ctx context.Context, docA, docB int64) (*store.Comparison, error) {
	return e.comparison.Compare(ctx, docA, docB)
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
