package store

import (
	"context"
	"database/sql"
)

// Chunk represents a row in the chunks table: a character-addressed
// span of a document's OCR text.
type Chunk struct {
	ID                  int64  `json:"id"`
	DocumentID          int64  `json:"document_id"`
	OCRResultID         int64  `json:"ocr_result_id"`
	ChunkIndex          int    `json:"chunk_index"`
	CharacterStart      int    `json:"character_start"`
	CharacterEnd        int    `json:"character_end"`
	PageNumber          *int   `json:"page_number,omitempty"`
	PageRangeStart      *int   `json:"page_range_start,omitempty"`
	PageRangeEnd        *int   `json:"page_range_end,omitempty"`
	OverlapWithPrevious int    `json:"overlap_with_previous"`
	OverlapWithNext     int    `json:"overlap_with_next"`
	Text                string `json:"text"`
	TextHash            string `json:"text_hash"`
	EmbeddingStatus     string `json:"embedding_status"`
	IsAtomic            bool   `json:"is_atomic"`
	ProvenanceID        *int64 `json:"provenance_id,omitempty"`
}

const selectChunkCols = `id, document_id, ocr_result_id, chunk_index, character_start, character_end,
	page_number, page_range_start, page_range_end, overlap_with_previous, overlap_with_next,
	text, text_hash, embedding_status, is_atomic, provenance_id`

func scanChunk(row interface{ Scan(dest ...interface{}) error }) (*Chunk, error) {
	c := &Chunk{}
	var page, rangeStart, rangeEnd sql.NullInt64
	var atomic int
	var provID sql.NullInt64
	if err := row.Scan(&c.ID, &c.DocumentID, &c.OCRResultID, &c.ChunkIndex, &c.CharacterStart, &c.CharacterEnd,
		&page, &rangeStart, &rangeEnd, &c.OverlapWithPrevious, &c.OverlapWithNext,
		&c.Text, &c.TextHash, &c.EmbeddingStatus, &atomic, &provID); err != nil {
		return nil, err
	}
	if page.Valid {
		v := int(page.Int64)
		c.PageNumber = &v
	}
	if rangeStart.Valid {
		v := int(rangeStart.Int64)
		c.PageRangeStart = &v
	}
	if rangeEnd.Valid {
		v := int(rangeEnd.Int64)
		c.PageRangeEnd = &v
	}
	c.IsAtomic = atomic != 0
	if provID.Valid {
		c.ProvenanceID = &provID.Int64
	}
	return c, nil
}

// InsertChunks inserts a batch of chunks for one document/OCR result
// in a single transaction and returns their assigned IDs in order.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) ([]int64, error) {
	ids := make([]int64, len(chunks))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (document_id, ocr_result_id, chunk_index, character_start, character_end,
				page_number, page_range_start, page_range_end, overlap_with_previous, overlap_with_next,
				text, text_hash, embedding_status, is_atomic, provenance_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, c := range chunks {
			atomic := 0
			if c.IsAtomic {
				atomic = 1
			}
			res, err := stmt.ExecContext(ctx, c.DocumentID, c.OCRResultID, c.ChunkIndex,
				c.CharacterStart, c.CharacterEnd, c.PageNumber, c.PageRangeStart, c.PageRangeEnd,
				c.OverlapWithPrevious, c.OverlapWithNext, c.Text, c.TextHash,
				c.EmbeddingStatus, atomic, nullInt64(c.ProvenanceID))
			if err != nil {
				return err
			}
			ids[i], err = res.LastInsertId()
			if err != nil {
				return err
			}
		}
		return nil
	})
	return ids, err
}

// GetChunksByDocument returns all chunks for a document, ordered by
// position.
func (s *Store) GetChunksByDocument(ctx context.Context, docID int64) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectChunkCols+" FROM chunks WHERE document_id = ? ORDER BY chunk_index", docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}

// GetChunk returns a single chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id int64) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectChunkCols+" FROM chunks WHERE id = ?", id)
	return scanChunk(row)
}

// UpdateChunkEmbeddingStatus flips a chunk's embedding_status once the
// embedder facade has (or hasn't) produced a vector for it.
func (s *Store) UpdateChunkEmbeddingStatus(ctx context.Context, chunkID int64, status string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE chunks SET embedding_status = ? WHERE id = ?", status, chunkID)
	return err
}

// FTSSearch performs a full-text search over chunk text using FTS5
// BM25 ranking. FTS5's native rank is negative (lower is better); the
// score returned here is sign-flipped so higher is always better,
// matching the vector and graph result scales it gets fused with.
func (s *Store) FTSSearch(ctx context.Context, query string, limit int) ([]RetrievalResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.rowid, f.rank, c.document_id, c.text, c.page_number,
			d.filename, d.path
		FROM chunks_fts f
		JOIN chunks c ON c.id = f.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RetrievalResult
	for rows.Next() {
		var r RetrievalResult
		var rank float64
		var page sql.NullInt64
		if err := rows.Scan(&r.ChunkID, &rank, &r.DocumentID, &r.Text, &page, &r.Filename, &r.Path); err != nil {
			return nil, err
		}
		if page.Valid {
			v := int(page.Int64)
			r.PageNumber = &v
		}
		r.Score = -rank
		results = append(results, r)
	}
	return results, rows.Err()
}

// RetrievalResult holds a chunk with its retrieval score and document
// info, the common shape vector/FTS/graph search all return so RRF
// fusion can treat them uniformly.
type RetrievalResult struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID int64   `json:"document_id"`
	Text       string  `json:"text"`
	PageNumber *int    `json:"page_number,omitempty"`
	Filename   string  `json:"filename"`
	Path       string  `json:"path"`
	Score      float64 `json:"score"`
}
