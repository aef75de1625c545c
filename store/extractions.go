package store

import (
	"context"
	"database/sql"
)

// Extraction holds structured content derived from a document that
// doesn't fit the chunk model directly (VLM structured-data passes,
// form-fill results), kept addressable so embeddings can be generated
// over it like any other source.
type Extraction struct {
	ID             int64  `json:"id"`
	DocumentID     int64  `json:"document_id"`
	ChunkID        *int64 `json:"chunk_id,omitempty"`
	ExtractionType string `json:"extraction_type"`
	Content        string `json:"content"`
	ContentHash    string `json:"content_hash"`
	ProvenanceID   *int64 `json:"provenance_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// InsertExtraction stores a structured extraction.
func (s *Store) InsertExtraction(ctx context.Context, e Extraction) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO extractions (document_id, chunk_id, extraction_type, content, content_hash, provenance_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.DocumentID, nullInt64(e.ChunkID), e.ExtractionType, e.Content, e.ContentHash, nullInt64(e.ProvenanceID))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetExtraction returns an extraction by ID.
func (s *Store) GetExtraction(ctx context.Context, id int64) (*Extraction, error) {
	e := &Extraction{}
	var chunkID sql.NullInt64
	var provID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, chunk_id, extraction_type, content, content_hash, provenance_id, created_at
		FROM extractions WHERE id = ?
	`, id).Scan(&e.ID, &e.DocumentID, &chunkID, &e.ExtractionType, &e.Content, &e.ContentHash, &provID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if chunkID.Valid {
		e.ChunkID = &chunkID.Int64
	}
	if provID.Valid {
		e.ProvenanceID = &provID.Int64
	}
	return e, nil
}

// GetExtractionsByDocument returns every extraction for a document.
func (s *Store) GetExtractionsByDocument(ctx context.Context, docID int64) ([]Extraction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_id, extraction_type, content, content_hash, provenance_id, created_at
		FROM extractions WHERE document_id = ?
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var extractions []Extraction
	for rows.Next() {
		var e Extraction
		var chunkID sql.NullInt64
		var provID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.DocumentID, &chunkID, &e.ExtractionType, &e.Content, &e.ContentHash, &provID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if chunkID.Valid {
			e.ChunkID = &chunkID.Int64
		}
		if provID.Valid {
			e.ProvenanceID = &provID.Int64
		}
		extractions = append(extractions, e)
	}
	return extractions, rows.Err()
}
