package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
)

// Embedding represents a stored vector, polymorphic over its source
// (exactly one of ChunkID/ImageID/ExtractionID is set, enforced by the
// embeddings table's CHECK constraint).
type Embedding struct {
	ID                 int64  `json:"id"`
	ChunkID            *int64 `json:"chunk_id,omitempty"`
	ImageID            *int64 `json:"image_id,omitempty"`
	ExtractionID       *int64 `json:"extraction_id,omitempty"`
	Model              string `json:"model"`
	ModelVersion       string `json:"model_version"`
	TaskType           string `json:"task_type"`
	Device             string `json:"device,omitempty"`
	SourceText         string `json:"source_text"`
	SourceFileMetadata string `json:"source_file_metadata,omitempty"`
	ContentHash        string `json:"content_hash"`
	ProvenanceID       *int64 `json:"provenance_id,omitempty"`
}

var errEmbeddingSource = errors.New("store: embedding must reference exactly one of chunk, image or extraction")

// InsertEmbedding stores the embedding row and its vec0 entry in one
// transaction, so a reader never observes one without the other.
func (s *Store) InsertEmbedding(ctx context.Context, e Embedding, vector []float32) (int64, error) {
	sources := 0
	for _, v := range []*int64{e.ChunkID, e.ImageID, e.ExtractionID} {
		if v != nil {
			sources++
		}
	}
	if sources != 1 {
		return 0, errEmbeddingSource
	}
	if len(vector) != s.embeddingDim {
		return 0, errors.New("store: embedding vector length does not match configured dimension")
	}

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (chunk_id, image_id, extraction_id, model, model_version,
				task_type, device, source_text, source_file_metadata, content_hash, provenance_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, nullInt64(e.ChunkID), nullInt64(e.ImageID), nullInt64(e.ExtractionID),
			e.Model, e.ModelVersion, e.TaskType, nullString(e.Device), e.SourceText,
			nullString(e.SourceFileMetadata), e.ContentHash, nullInt64(e.ProvenanceID))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO vec_embeddings (embedding_id, embedding) VALUES (?, ?)",
			id, serializeFloat32(vector))
		if err != nil {
			return err
		}

		if e.ChunkID != nil {
			_, err = tx.ExecContext(ctx, "UPDATE chunks SET embedding_status = 'complete' WHERE id = ?", *e.ChunkID)
		}
		return err
	})
	return id, err
}

// DeleteEmbedding removes both the embeddings row and its vec0 entry.
func (s *Store) DeleteEmbedding(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_embeddings WHERE embedding_id = ?", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE id = ?", id)
		return err
	})
}

// VectorSearch performs a KNN search over vec_embeddings, returning
// the top-k nearest chunks. Images/extractions are excluded since
// search operates over chunk text; callers needing cross-modal
// results query vec_embeddings directly via vectorindex.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]RetrievalResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.embedding_id, v.distance, e.chunk_id, c.document_id, c.text, c.page_number,
			d.filename, d.path
		FROM vec_embeddings v
		JOIN embeddings e ON e.id = v.embedding_id
		JOIN chunks c ON c.id = e.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE v.embedding MATCH ? AND k = ? AND e.chunk_id IS NOT NULL
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RetrievalResult
	for rows.Next() {
		var embeddingID int64
		var distance float64
		var r RetrievalResult
		var page sql.NullInt64
		if err := rows.Scan(&embeddingID, &distance, &r.ChunkID, &r.DocumentID, &r.Text, &page,
			&r.Filename, &r.Path); err != nil {
			return nil, err
		}
		if page.Valid {
			v := int(page.Int64)
			r.PageNumber = &v
		}
		// vec_embeddings declares no distance metric, so sqlite-vec
		// returns L2 distance; the score is 1 - distance, higher is nearer.
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetEmbeddingByChunk returns the embedding stored for a chunk, if any.
func (s *Store) GetEmbeddingByChunk(ctx context.Context, chunkID int64) (*Embedding, error) {
	e := &Embedding{}
	var chunkID2, imageID, extractionID, provID sql.NullInt64
	var device, sourceMeta sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chunk_id, image_id, extraction_id, model, model_version, task_type,
			device, source_text, source_file_metadata, content_hash, provenance_id
		FROM embeddings WHERE chunk_id = ?
	`, chunkID).Scan(&e.ID, &chunkID2, &imageID, &extractionID, &e.Model, &e.ModelVersion, &e.TaskType,
		&device, &e.SourceText, &sourceMeta, &e.ContentHash, &provID)
	if err != nil {
		return nil, err
	}
	if chunkID2.Valid {
		e.ChunkID = &chunkID2.Int64
	}
	if imageID.Valid {
		e.ImageID = &imageID.Int64
	}
	if extractionID.Valid {
		e.ExtractionID = &extractionID.Int64
	}
	e.Device = device.String
	e.SourceFileMetadata = sourceMeta.String
	if provID.Valid {
		e.ProvenanceID = &provID.Int64
	}
	return e, nil
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
