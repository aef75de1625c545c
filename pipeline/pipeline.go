// Package pipeline drives a document through every processing stage —
// OCR, chunking, embedding, image description, entity extraction, and
// knowledge-graph resolution — with per-stage resumability and bounded
// concurrency across documents, in the spirit of the teacher's
// graph.Builder/Engine.Ingest orchestration.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/chunker"
	"github.com/brunobiangulo/docintel/config"
	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/embedder"
	"github.com/brunobiangulo/docintel/entity"
	"github.com/brunobiangulo/docintel/kg"
	"github.com/brunobiangulo/docintel/ocr"
	"github.com/brunobiangulo/docintel/store"
	"github.com/brunobiangulo/docintel/vlm"
)

// State is a document's position in the processing pipeline. Unlike
// store.Document.Status (the coarse pending/running/complete/failed
// lifecycle), State is derived on the fly from what data already
// exists, so a resumed run never redoes a completed stage even
// without a persisted stage column.
type State string

const (
	StatePending      State = "pending"
	StateOCRDone      State = "ocr_done"
	StateChunked      State = "chunked"
	StateEmbedded     State = "embedded"
	StateImagesDone   State = "images_done"
	StateVLMDone      State = "vlm_done"
	StateEntitiesDone State = "entities_done"
	StateKGDone       State = "kg_done"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)

// ImageLoader retrieves the raw bytes of an extracted image for VLM
// description; callers without image bytes on hand (e.g. images that
// were never persisted to disk) can return an empty map entry.
type ImageLoader func(ctx context.Context, imageID int64) ([]byte, error)

// Pipeline wires every stage orchestrator against one store.
type Pipeline struct {
	store       *store.Store
	cfg         config.Config
	ocr         *ocr.Orchestrator
	embedder    *embedder.Facade
	vlm         *vlm.Orchestrator
	resolver    *kg.Resolver
	loadImage   ImageLoader
	chunkFn     func(text string) []chunker.Window
}

func New(s *store.Store, cfg config.Config, o *ocr.Orchestrator, e *embedder.Facade, v *vlm.Orchestrator, r *kg.Resolver, loader ImageLoader) *Pipeline {
	p := &Pipeline{store: s, cfg: cfg, ocr: o, embedder: e, vlm: v, resolver: r, loadImage: loader}
	p.chunkFn = func(text string) []chunker.Window {
		return chunker.Fixed(len(text), cfg.ChunkSize, cfg.ChunkOverlap)
	}
	return p
}

// DetermineState inspects existing derived data to figure out how far
// a document has already progressed.
func (p *Pipeline) DetermineState(ctx context.Context, docID int64) (State, error) {
	doc, err := p.store.GetDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	if doc.Status == store.StatusFailed {
		return StateFailed, nil
	}

	chunks, err := p.store.GetChunksByDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		if doc.PageCount != nil {
			return StateOCRDone, nil
		}
		return StatePending, nil
	}

	allEmbedded := true
	for _, c := range chunks {
		if c.EmbeddingStatus != "complete" {
			allEmbedded = false
			break
		}
	}
	if !allEmbedded {
		return StateChunked, nil
	}

	images, err := p.store.GetImagesByDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return StateEmbedded, nil
	}
	allDescribed := true
	for _, img := range images {
		if img.VLMStatus != "complete" && img.VLMStatus != "failed" {
			allDescribed = false
			break
		}
	}
	if !allDescribed {
		return StateImagesDone, nil
	}

	entities, err := p.store.GetEntitiesByDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	if len(entities) == 0 {
		return StateVLMDone, nil
	}

	resolved := true
	for _, e := range entities {
		if _, err := p.store.GetNodeForEntity(ctx, e.ID); err != nil {
			resolved = false
			break
		}
	}
	if !resolved {
		return StateEntitiesDone, nil
	}

	return StateComplete, nil
}

// ProcessDocument runs every stage a document hasn't completed yet,
// in order, stopping at the first failure. A failure in one stage
// does not roll back prior stages — they remain usable and the next
// ProcessDocument call resumes from where it left off.
func (p *Pipeline) ProcessDocument(ctx context.Context, docID int64, mode backend.Mode) error {
	state, err := p.DetermineState(ctx, docID)
	if err != nil {
		return err
	}
	if state == StateFailed {
		return docerr.New(docerr.CategoryInternal, "document previously failed; clear error before reprocessing")
	}

	if state == StatePending {
		if _, err := p.ocr.ProcessDocument(ctx, docID, mode); err != nil {
			return err
		}
		state = StateOCRDone
	}

	if state == StateOCRDone {
		if err := p.chunkDocument(ctx, docID); err != nil {
			return err
		}
		state = StateChunked
	}

	if state == StateChunked {
		if err := p.embedDocument(ctx, docID); err != nil {
			return err
		}
		state = StateEmbedded
	}

	if state == StateEmbedded {
		state = StateImagesDone
	}

	if state == StateImagesDone {
		if err := p.describeImages(ctx, docID); err != nil {
			return err
		}
		state = StateVLMDone
	}

	if state == StateVLMDone {
		if err := p.extractEntities(ctx, docID); err != nil {
			return err
		}
		state = StateEntitiesDone
	}

	if state == StateEntitiesDone {
		if err := p.resolveKnowledgeGraph(ctx, docID); err != nil {
			return err
		}
		state = StateKGDone
	}

	return p.store.UpdateDocumentStatus(ctx, docID, store.StatusComplete)
}

func (p *Pipeline) chunkDocument(ctx context.Context, docID int64) error {
	ocrResult, err := p.store.GetLatestOCRResult(ctx, docID)
	if err != nil {
		return docerr.Wrap(docerr.CategoryInternal, "no OCR result to chunk", err)
	}

	windows := p.chunkFn(ocrResult.ExtractedText)
	chunks := make([]store.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = store.Chunk{
			DocumentID:          docID,
			OCRResultID:         ocrResult.ID,
			ChunkIndex:          i,
			CharacterStart:      w.CharacterStart,
			CharacterEnd:        w.CharacterEnd,
			OverlapWithPrevious: w.OverlapWithPrevious,
			OverlapWithNext:     w.OverlapWithNext,
			Text:                ocrResult.ExtractedText[w.CharacterStart:w.CharacterEnd],
			IsAtomic:            w.IsAtomic,
			EmbeddingStatus:     "pending",
		}
	}
	_, err = p.store.InsertChunks(ctx, chunks)
	return err
}

func (p *Pipeline) embedDocument(ctx context.Context, docID int64) error {
	chunks, err := p.store.GetChunksByDocument(ctx, docID)
	if err != nil {
		return err
	}
	var pending []store.Chunk
	for _, c := range chunks {
		if c.EmbeddingStatus != "complete" {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	_, err = p.embedder.EmbedChunks(ctx, pending, "v1", nil)
	return err
}

func (p *Pipeline) describeImages(ctx context.Context, docID int64) error {
	images, err := p.store.GetImagesByDocument(ctx, docID)
	if err != nil {
		return err
	}
	if len(images) == 0 || p.vlm == nil {
		return nil
	}

	var ids []int64
	bytes := map[int64][]byte{}
	for _, img := range images {
		if img.VLMStatus == "complete" {
			continue
		}
		ids = append(ids, img.ID)
		if p.loadImage != nil {
			if b, err := p.loadImage(ctx, img.ID); err == nil {
				bytes[img.ID] = b
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return p.vlm.Describe(ctx, ids, bytes, "")
}

func (p *Pipeline) extractEntities(ctx context.Context, docID int64) error {
	chunks, err := p.store.GetChunksByDocument(ctx, docID)
	if err != nil {
		return err
	}

	var all []entity.Candidate
	for _, c := range chunks {
		all = append(all, entity.Extract(c)...)
	}
	merged := entity.MergeByTypeAndNormalized(all)

	for _, cand := range merged {
		for _, m := range cand.Mentions {
			if _, err := p.store.UpsertEntityAndMention(ctx, store.Entity{
				DocumentID:     docID,
				Type:           string(cand.Type),
				RawText:        cand.RawText,
				NormalizedText: cand.NormalizedText,
				Confidence:     cand.Confidence,
			}, store.EntityMention{
				ChunkID:        m.ChunkID,
				CharacterStart: m.CharacterStart,
				CharacterEnd:   m.CharacterEnd,
				ContextSnippet: m.ContextSnippet,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) resolveKnowledgeGraph(ctx context.Context, docID int64) error {
	if p.resolver == nil {
		return nil
	}
	entities, err := p.store.GetEntitiesByDocument(ctx, docID)
	if err != nil {
		return err
	}

	nodeIDs := make([]int64, 0, len(entities))
	for _, e := range entities {
		mentions, err := p.store.GetMentionsByEntity(ctx, e.ID)
		if err != nil {
			return err
		}
		nodeID, err := p.resolver.Resolve(ctx, e, len(mentions))
		if err != nil {
			return err
		}
		nodeIDs = append(nodeIDs, nodeID)
	}

	var occs []kg.CoOccurrence
	for i := 0; i < len(nodeIDs); i++ {
		for j := i + 1; j < len(nodeIDs); j++ {
			occs = append(occs, kg.CoOccurrence{
				SourceNodeID: nodeIDs[i],
				TargetNodeID: nodeIDs[j],
				RelationType: "co_occurs",
				DocumentID:   docID,
			})
		}
	}
	return kg.UpsertCoOccurrences(ctx, p.store, occs)
}

// Result is one document's outcome from a batch run.
type Result struct {
	DocumentID int64
	Err        error
}

// ProcessPending runs ProcessDocument over every non-complete document
// with bounded concurrency, in the teacher's semaphore+waitgroup
// style. A failure on one document doesn't stop the batch.
func (p *Pipeline) ProcessPending(ctx context.Context, mode backend.Mode, maxConcurrent int) ([]Result, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = p.cfg.MaxConcurrentDocuments
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	docs, err := p.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []Result

	for _, d := range docs {
		if d.Status == store.StatusComplete {
			continue
		}
		d := d
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			err := p.ProcessDocument(ctx, d.ID, mode)
			mu.Lock()
			results = append(results, Result{DocumentID: d.ID, Err: err})
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results, nil
}

// Reprocess wipes a document's derived data and reruns the pipeline
// from OCR, so a changed source file or a revised extraction rule
// doesn't leave stale chunks, embeddings, or entities behind.
func (p *Pipeline) Reprocess(ctx context.Context, docID int64, mode backend.Mode) error {
	doc, err := p.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Status != store.StatusComplete && doc.Status != store.StatusFailed {
		return docerr.New(docerr.CategoryValidation, "document must be complete or failed to reprocess", "status", doc.Status)
	}

	if err := p.store.DeleteDocumentData(ctx, docID); err != nil {
		return fmt.Errorf("wiping derived data: %w", err)
	}
	if err := p.store.UpdateDocumentStatus(ctx, docID, store.StatusPending); err != nil {
		return err
	}
	return p.ProcessDocument(ctx, docID, mode)
}
