// Package vlm describes extracted images via a vision-language
// backend, deduplicating repeated images (headers, footers, logos) by
// content hash before paying for a fresh description.
package vlm

import (
	"context"

	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/provenance"
	"github.com/brunobiangulo/docintel/store"
)

// DefaultPrompt is used when a caller doesn't supply one.
const DefaultPrompt = "Describe this image in detail, including any text visible within it."

// Orchestrator drives the VLM description stage.
type Orchestrator struct {
	store   *store.Store
	backend backend.VLMBackend
	prov    *provenance.Tracker
}

func New(s *store.Store, b backend.VLMBackend, prov *provenance.Tracker) *Orchestrator {
	return &Orchestrator{store: s, backend: b, prov: prov}
}

// Describe processes a batch of image ids. An image whose content
// hash matches another already-described image (excluding itself)
// is described by copying that result with zero tokens charged,
// marked deduped.
func (o *Orchestrator) Describe(ctx context.Context, imageIDs []int64, imageBytes map[int64][]byte, prompt string) error {
	if prompt == "" {
		prompt = DefaultPrompt
	}

	for _, id := range imageIDs {
		img, err := o.store.GetImage(ctx, id)
		if err != nil {
			return docerr.Wrap(docerr.CategoryImageExtractionFailed, "image not found", err)
		}

		existing, err := o.store.FindImageByContentHash(ctx, img.ContentHash)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != img.ID {
			if err := o.store.UpdateImageVLMResult(ctx, id, existing.VLMDescription, existing.VLMStructured, *orZero(existing.VLMConfidence), 0, true); err != nil {
				return err
			}
			continue
		}

		bytes := imageBytes[id]
		result, err := o.backend.Describe(ctx, bytes, prompt, "")
		if err != nil {
			if setErr := o.store.SetImageVLMError(ctx, id, err.Error()); setErr != nil {
				return setErr
			}
			continue
		}

		if o.prov != nil {
			parent := parentIDs(img.ProvenanceID)
			if _, err := o.prov.Create(ctx, provenance.Record{
				Type:             provenance.TypeVLMDescription,
				ContentHash:      img.ContentHash,
				InputHash:        img.ContentHash,
				ParentIDs:        parent,
				Processor:        "vlm-orchestrator",
				ProcessorVersion: "1",
			}); err != nil {
				return err
			}
		}

		if err := o.store.UpdateImageVLMResult(ctx, id, result.Description, result.StructuredData, result.Confidence, result.TokensUsed, false); err != nil {
			return err
		}
	}
	return nil
}

func orZero(v *float64) *float64 {
	if v == nil {
		zero := 0.0
		return &zero
	}
	return v
}

func parentIDs(id *int64) []int64 {
	if id == nil {
		return nil
	}
	return []int64{*id}
}
