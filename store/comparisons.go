package store

import (
	"context"
	"database/sql"
)

// Comparison stores the result of diffing two documents: text,
// structural and entity-level diffs plus a narrative summary.
type Comparison struct {
	ID              int64  `json:"id"`
	DocumentIDA     int64  `json:"document_id_a"`
	DocumentIDB     int64  `json:"document_id_b"`
	SimilarityRatio float64 `json:"similarity_ratio"`
	TextDiff        string `json:"text_diff,omitempty"`
	StructuralDiff  string `json:"structural_diff,omitempty"`
	EntityDiff      string `json:"entity_diff,omitempty"`
	Summary         string `json:"summary,omitempty"`
	ContentHash     string `json:"content_hash"`
	ProvenanceID    *int64 `json:"provenance_id,omitempty"`
	DurationMS      int64  `json:"duration_ms"`
	CreatedAt       string `json:"created_at"`
}

// InsertComparison stores a comparison result.
func (s *Store) InsertComparison(ctx context.Context, c Comparison) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comparisons (document_id_a, document_id_b, similarity_ratio, text_diff,
			structural_diff, entity_diff, summary, content_hash, provenance_id, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.DocumentIDA, c.DocumentIDB, c.SimilarityRatio, nullString(c.TextDiff), nullString(c.StructuralDiff),
		nullString(c.EntityDiff), nullString(c.Summary), c.ContentHash, nullInt64(c.ProvenanceID), c.DurationMS)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetComparison returns a comparison by ID.
func (s *Store) GetComparison(ctx context.Context, id int64) (*Comparison, error) {
	c := &Comparison{}
	var textDiff, structDiff, entityDiff, summary sql.NullString
	var provID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id_a, document_id_b, similarity_ratio, text_diff, structural_diff,
			entity_diff, summary, content_hash, provenance_id, duration_ms, created_at
		FROM comparisons WHERE id = ?
	`, id).Scan(&c.ID, &c.DocumentIDA, &c.DocumentIDB, &c.SimilarityRatio, &textDiff, &structDiff,
		&entityDiff, &summary, &c.ContentHash, &provID, &c.DurationMS, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.TextDiff = textDiff.String
	c.StructuralDiff = structDiff.String
	c.EntityDiff = entityDiff.String
	c.Summary = summary.String
	if provID.Valid {
		c.ProvenanceID = &provID.Int64
	}
	return c, nil
}

// FindComparison looks up a cached comparison between two documents
// in either order, so re-comparing doesn't redo the work.
func (s *Store) FindComparison(ctx context.Context, docA, docB int64) (*Comparison, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id FROM comparisons
		WHERE (document_id_a = ? AND document_id_b = ?) OR (document_id_a = ? AND document_id_b = ?)
		ORDER BY id DESC LIMIT 1
	`, docA, docB, docB, docA)
	var id int64
	if err := row.Scan(&id); err != nil {
		return nil, err
	}
	return s.GetComparison(ctx, id)
}
