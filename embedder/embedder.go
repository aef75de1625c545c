// Package embedder batches chunk (or image/extraction) text through
// an embedder backend and persists the resulting vectors.
package embedder

import (
	"context"

	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/provenance"
	"github.com/brunobiangulo/docintel/store"
	"github.com/brunobiangulo/docintel/vectorindex"
)

// Facade embeds chunk batches and writes both the embeddings row and
// its vector in one call per chunk.
type Facade struct {
	backend backend.Embedder
	index   *vectorindex.Index
	prov    *provenance.Tracker
}

func New(b backend.Embedder, idx *vectorindex.Index, prov *provenance.Tracker) *Facade {
	return &Facade{backend: b, index: idx, prov: prov}
}

// EmbedChunks embeds every chunk's text in one backend batch call and
// persists an embeddings row + vector per chunk. Returns the
// embedding ids in the same order as chunks.
func (f *Facade) EmbedChunks(ctx context.Context, chunks []store.Chunk, modelVersion string, parentProvenanceIDs map[int64]int64) ([]int64, error) {
	if len(chunks) == 0 {
		return nil, docerr.New(docerr.CategoryValidation, "embed batch must not be empty")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := f.backend.Embed(ctx, texts, backend.TaskDocument)
	if err != nil {
		return nil, docerr.Wrap(docerr.CategoryEmbeddingFailed, "embedding batch", err)
	}
	if len(vectors) != len(chunks) {
		return nil, docerr.New(docerr.CategoryEmbeddingFailed, "backend returned a mismatched vector count")
	}

	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != f.index.Dim() {
			return nil, docerr.New(docerr.CategoryEmbeddingFailed, "backend returned a vector of the wrong dimension")
		}

		var provID *int64
		if f.prov != nil {
			parent := parentProvenanceIDs[c.ID]
			rec, err := f.prov.Create(ctx, provenance.Record{
				Type:             provenance.TypeEmbedding,
				ContentHash:      c.TextHash,
				InputHash:        c.TextHash,
				ParentIDs:        nonZeroIDs(parent),
				Processor:        "embedder",
				ProcessorVersion: modelVersion,
			})
			if err != nil {
				return nil, err
			}
			provID = &rec.ID
		}

		chunkID := c.ID
		id, err := f.index.Insert(ctx, store.Embedding{
			ChunkID:      &chunkID,
			Model:        modelVersionLabel(f.backend),
			ModelVersion: modelVersion,
			TaskType:     string(backend.TaskDocument),
			SourceText:   c.Text,
			ContentHash:  c.TextHash,
			ProvenanceID: provID,
		}, vectors[i])
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// EmbedQuery embeds a single query string in query task mode.
func (f *Facade) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if query == "" {
		return nil, docerr.New(docerr.CategoryValidation, "query must not be empty")
	}
	vectors, err := f.backend.Embed(ctx, []string{query}, backend.TaskQuery)
	if err != nil {
		return nil, docerr.Wrap(docerr.CategoryEmbeddingFailed, "embedding query", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != f.index.Dim() {
		return nil, docerr.New(docerr.CategoryEmbeddingFailed, "backend returned an unexpected query vector")
	}
	return vectors[0], nil
}

func nonZeroIDs(id int64) []int64 {
	if id == 0 {
		return nil
	}
	return []int64{id}
}

func modelVersionLabel(b backend.Embedder) string {
	return "embedder"
}
