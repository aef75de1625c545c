// Package vectorindex wraps the store's vec0-backed vector table with
// the narrow insert/delete/search contract the search layer needs,
// keeping the embedding table and the vector table writes on the same
// transaction boundary that the store owns.
package vectorindex

import (
	"context"
	"fmt"

	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/store"
)

// Index is a thin façade over the store's embedding + vec0 operations.
type Index struct {
	store *store.Store
}

func New(s *store.Store) *Index {
	return &Index{store: s}
}

// Dim is the fixed vector dimension this index was opened with.
func (idx *Index) Dim() int {
	return idx.store.EmbeddingDim()
}

// Insert stores vector under a new embedding row described by e,
// returning the embedding id. Rejects vectors whose length doesn't
// match Dim().
func (idx *Index) Insert(ctx context.Context, e store.Embedding, vector []float32) (int64, error) {
	if len(vector) != idx.Dim() {
		return 0, docerr.New(docerr.CategoryEmbeddingFailed,
			fmt.Sprintf("vector length %d does not match index dimension %d", len(vector), idx.Dim()))
	}
	id, err := idx.store.InsertEmbedding(ctx, e, vector)
	if err != nil {
		return 0, docerr.Wrap(docerr.CategoryEmbeddingFailed, "inserting embedding", err)
	}
	return id, nil
}

// Delete removes an embedding and its vector. Deleting an embedding
// row always deletes its vector in the same call, keeping C
// consistent with the embeddings table per the store's contract.
func (idx *Index) Delete(ctx context.Context, embeddingID int64) error {
	return idx.store.DeleteEmbedding(ctx, embeddingID)
}

// Search returns the k nearest chunk-backed embeddings to query by the
// vec0 table's L2 distance, resolved to their owning chunk and document.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]store.RetrievalResult, error) {
	if len(query) != idx.Dim() {
		return nil, docerr.New(docerr.CategoryEmbeddingFailed,
			fmt.Sprintf("query vector length %d does not match index dimension %d", len(query), idx.Dim()))
	}
	return idx.store.VectorSearch(ctx, query, k)
}
