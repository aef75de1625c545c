// Package ocr drives documents through an OCR backend, persisting the
// extracted text, page offsets, images, and OCR_RESULT provenance.
package ocr

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/hash"
	"github.com/brunobiangulo/docintel/provenance"
	"github.com/brunobiangulo/docintel/store"
)

// DefaultMaxConcurrent is the batch's default per-run parallelism.
const DefaultMaxConcurrent = 3

// Orchestrator drives the OCR stage of the pipeline.
type Orchestrator struct {
	store   *store.Store
	backend backend.OCRBackend
	prov    *provenance.Tracker
	timeout time.Duration
}

func New(s *store.Store, b backend.OCRBackend, prov *provenance.Tracker) *Orchestrator {
	return &Orchestrator{store: s, backend: b, prov: prov, timeout: 15 * time.Minute}
}

// WithTimeout overrides the default 15-minute per-call timeout.
func (o *Orchestrator) WithTimeout(d time.Duration) *Orchestrator {
	o.timeout = d
	return o
}

// ProcessDocument drives a single document through OCR. Retries
// exactly once on a timeout; any other failure transitions the
// document straight to failed.
func (o *Orchestrator) ProcessDocument(ctx context.Context, docID int64, mode backend.Mode) (*store.OCRResult, error) {
	doc, err := o.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, docerr.Wrap(docerr.CategoryDocumentNotFound, "document not found", err)
	}

	if err := o.store.UpdateDocumentStatus(ctx, docID, store.StatusRunning); err != nil {
		return nil, err
	}

	result, err := o.runWithRetry(ctx, doc.Path, mode)
	if err != nil {
		if setErr := o.store.SetDocumentError(ctx, docID, err.Error()); setErr != nil {
			slog.Error("ocr: failed to record document error", "document_id", docID, "error", setErr)
		}
		return nil, docerr.Wrap(docerr.CategoryOCRAPIError, "OCR processing failed", err)
	}

	contentHash := hash.String(result.Text)

	var offsets []store.PageOffset
	for _, p := range result.PageOffsets {
		offsets = append(offsets, store.PageOffset{PageNumber: p.PageNumber, CharStart: p.CharStart, CharEnd: p.CharEnd})
	}

	ocrRow := store.OCRResult{
		DocumentID:     docID,
		ExtractedText:  result.Text,
		TextLength:     result.TextLength,
		Mode:           string(mode),
		PageCount:      result.PageCount,
		QualityScore:   &result.QualityScore,
		CostCents:      result.CostCents,
		ContentHash:    contentHash,
		DurationMS:     result.Duration.Milliseconds(),
	}

	var provID *int64
	if o.prov != nil {
		rec, err := o.prov.Create(ctx, provenance.Record{
			Type:             provenance.TypeOCRResult,
			ContentHash:      contentHash,
			InputHash:        doc.FileHash,
			FileHash:         doc.FileHash,
			RootDocumentID:   &docID,
			ParentIDs:        parentIDs(doc.ProvenanceID),
			Processor:        "ocr-orchestrator",
			ProcessorVersion: "1",
			DurationMS:       result.Duration.Milliseconds(),
		})
		if err != nil {
			return nil, err
		}
		provID = &rec.ID
		ocrRow.ProvenanceID = provID
	}

	ocrID, err := o.store.InsertOCRResult(ctx, ocrRow, offsets)
	if err != nil {
		o.store.SetDocumentError(ctx, docID, err.Error())
		return nil, err
	}

	for _, img := range result.Images {
		imgHash := hash.Bytes(img.Bytes)
		if _, err := o.store.InsertImage(ctx, store.Image{
			DocumentID:  docID,
			OCRResultID: ocrID,
			PageNumber:  img.PageNumber,
			BBoxX:       img.BBoxX,
			BBoxY:       img.BBoxY,
			BBoxW:       img.BBoxW,
			BBoxH:       img.BBoxH,
			Format:      img.Format,
			Width:       img.Width,
			Height:      img.Height,
			BlockType:   img.BlockType,
			ContentHash: imgHash,
		}); err != nil {
			slog.Warn("ocr: failed to persist extracted image", "document_id", docID, "error", err)
		}
	}

	if err := o.store.UpdateDocumentPageCount(ctx, docID, result.PageCount); err != nil {
		return nil, err
	}
	if err := o.store.UpdateDocumentStatus(ctx, docID, store.StatusComplete); err != nil {
		return nil, err
	}

	return o.store.GetOCRResult(ctx, ocrID)
}

func (o *Orchestrator) runWithRetry(ctx context.Context, path string, mode backend.Mode) (*backend.OCRResult, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	result, err := o.backend.Process(cctx, path, mode)
	cancel()
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	cctx2, cancel2 := context.WithTimeout(ctx, o.timeout)
	defer cancel2()
	return o.backend.Process(cctx2, path, mode)
}

func parentIDs(id *int64) []int64 {
	if id == nil {
		return nil
	}
	return []int64{*id}
}

// ProcessPendingResult is one document's outcome from a ProcessPending run.
type ProcessPendingResult struct {
	DocumentID int64
	OCRResult  *store.OCRResult
	Err        error
}

// ProcessPending processes every pending document, up to maxConcurrent
// at a time. A per-document failure does not stop the batch.
func (o *Orchestrator) ProcessPending(ctx context.Context, mode backend.Mode, maxConcurrent int) ([]ProcessPendingResult, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	docs, err := o.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	var pending []store.Document
	for _, d := range docs {
		if d.Status == store.StatusPending {
			pending = append(pending, d)
		}
	}

	results := make([]ProcessPendingResult, len(pending))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, doc := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, doc store.Document) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := o.ProcessDocument(ctx, doc.ID, mode)
			results[i] = ProcessPendingResult{DocumentID: doc.ID, OCRResult: res, Err: err}
		}(i, doc)
	}
	wg.Wait()

	return results, nil
}
