// Package fts wraps the store's chunks_fts virtual table with the
// content-integrity and rebuild contract spec §4.2 requires on top of
// SQLite's own MATCH search.
package fts

import (
	"context"
	"strings"

	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/hash"
	"github.com/brunobiangulo/docintel/store"
)

// Index wraps the chunks_fts virtual table. Row maintenance happens
// via the table's own AFTER triggers on the chunks table; this type
// adds search, rebuild, and the integrity hash.
type Index struct {
	store *store.Store
}

func New(s *store.Store) *Index {
	return &Index{store: s}
}

// Search runs a MATCH query and returns the top limit chunks by
// BM25, sign-flipped so higher scores are better.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]store.RetrievalResult, error) {
	results, err := idx.store.FTSSearch(ctx, query, limit)
	if err != nil {
		return nil, docerr.Wrap(docerr.CategoryInternal, "fts search failed", err)
	}
	return results, nil
}

// Rebuild drops and repopulates chunks_fts from the chunks table,
// used after bulk writes that bypassed the per-row triggers (e.g. a
// restored backup) or to repair a corrupted index.
func (idx *Index) Rebuild(ctx context.Context) error {
	_, err := idx.store.DB().ExecContext(ctx, "INSERT INTO chunks_fts(chunks_fts) VALUES ('rebuild')")
	if err != nil {
		return docerr.Wrap(docerr.CategoryInternal, "rebuilding fts index", err)
	}
	return nil
}

// ContentHash computes sha256(concat(chunk_id:chunk_text_hash for
// chunk_id in chunks ordered by id)), the content-integrity hash spec
// §4.2 defines for detecting index/table drift.
func (idx *Index) ContentHash(ctx context.Context) (string, error) {
	rows, err := idx.store.DB().QueryContext(ctx, "SELECT id, text_hash FROM chunks ORDER BY id")
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var id int64
		var textHash string
		if err := rows.Scan(&id, &textHash); err != nil {
			return "", err
		}
		parts = append(parts, itoa(id)+":"+textHash)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return hash.Concat(parts...), nil
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var b []byte
	for v > 0 {
		b = append([]byte{byte('0' + v%10)}, b...)
		v /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

// Snippet extracts a short highlighted excerpt of text around the
// first occurrence of any query term, wrapping matches in **bold**
// markdown the way the teacher's retrieval snippets do.
func Snippet(text, query string, radius int) string {
	terms := strings.Fields(query)
	lowerText := strings.ToLower(text)
	matchAt := -1
	matchLen := 0
	for _, term := range terms {
		term = strings.Trim(term, `"`)
		if term == "" {
			continue
		}
		if i := strings.Index(lowerText, strings.ToLower(term)); i != -1 {
			if matchAt == -1 || i < matchAt {
				matchAt = i
				matchLen = len(term)
			}
		}
	}
	if matchAt == -1 {
		if len(text) <= 2*radius {
			return text
		}
		return text[:2*radius] + "..."
	}

	start := matchAt - radius
	if start < 0 {
		start = 0
	}
	end := matchAt + matchLen + radius
	if end > len(text) {
		end = len(text)
	}

	snippet := text[start:matchAt] + "**" + text[matchAt:matchAt+matchLen] + "**" + text[matchAt+matchLen:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}
