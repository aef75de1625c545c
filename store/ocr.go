package store

import (
	"context"
	"database/sql"
)

// OCRResult represents a single OCR pass over a document.
type OCRResult struct {
	ID            int64   `json:"id"`
	DocumentID    int64   `json:"document_id"`
	ExtractedText string  `json:"extracted_text"`
	TextLength    int     `json:"text_length"`
	Mode          string  `json:"mode"`
	PageCount     int     `json:"page_count"`
	QualityScore  *float64 `json:"quality_score,omitempty"`
	CostCents     float64 `json:"cost_cents"`
	ContentHash   string  `json:"content_hash"`
	DurationMS    int64   `json:"duration_ms"`
	ProvenanceID  *int64  `json:"provenance_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// PageOffset maps a page number to its character range within the
// owning OCR result's extracted text.
type PageOffset struct {
	PageNumber int `json:"page_number"`
	CharStart  int `json:"char_start"`
	CharEnd    int `json:"char_end"`
}

// InsertOCRResult stores an OCR pass and its page offsets atomically.
func (s *Store) InsertOCRResult(ctx context.Context, r OCRResult, offsets []PageOffset) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO ocr_results (document_id, extracted_text, text_length, mode,
				page_count, quality_score, cost_cents, content_hash, duration_ms, provenance_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.DocumentID, r.ExtractedText, r.TextLength, r.Mode, r.PageCount,
			nullFloat64(r.QualityScore), r.CostCents, r.ContentHash, r.DurationMS, nullInt64(r.ProvenanceID))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}

		if len(offsets) > 0 {
			stmt, err := tx.PrepareContext(ctx,
				"INSERT INTO page_offsets (ocr_result_id, page_number, char_start, char_end) VALUES (?, ?, ?, ?)")
			if err != nil {
				return err
			}
			defer stmt.Close()
			for _, o := range offsets {
				if _, err := stmt.ExecContext(ctx, id, o.PageNumber, o.CharStart, o.CharEnd); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return id, err
}

// GetOCRResult returns an OCR result by ID.
func (s *Store) GetOCRResult(ctx context.Context, id int64) (*OCRResult, error) {
	r := &OCRResult{}
	var quality sql.NullFloat64
	var provID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, extracted_text, text_length, mode, page_count,
			quality_score, cost_cents, content_hash, duration_ms, provenance_id, created_at
		FROM ocr_results WHERE id = ?
	`, id).Scan(&r.ID, &r.DocumentID, &r.ExtractedText, &r.TextLength, &r.Mode, &r.PageCount,
		&quality, &r.CostCents, &r.ContentHash, &r.DurationMS, &provID, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if quality.Valid {
		r.QualityScore = &quality.Float64
	}
	if provID.Valid {
		r.ProvenanceID = &provID.Int64
	}
	return r, nil
}

// GetLatestOCRResult returns the most recent OCR pass for a document.
func (s *Store) GetLatestOCRResult(ctx context.Context, documentID int64) (*OCRResult, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM ocr_results WHERE document_id = ? ORDER BY id DESC LIMIT 1", documentID).Scan(&id)
	if err != nil {
		return nil, err
	}
	return s.GetOCRResult(ctx, id)
}

// GetPageOffsets returns the page offset table for an OCR result.
func (s *Store) GetPageOffsets(ctx context.Context, ocrResultID int64) ([]PageOffset, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT page_number, char_start, char_end FROM page_offsets WHERE ocr_result_id = ? ORDER BY page_number",
		ocrResultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offsets []PageOffset
	for rows.Next() {
		var o PageOffset
		if err := rows.Scan(&o.PageNumber, &o.CharStart, &o.CharEnd); err != nil {
			return nil, err
		}
		offsets = append(offsets, o)
	}
	return offsets, rows.Err()
}
