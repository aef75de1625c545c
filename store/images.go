package store

import (
	"context"
	"database/sql"
)

// Image represents an extracted page image or figure, independently
// describable by the VLM orchestrator.
type Image struct {
	ID               int64    `json:"id"`
	DocumentID       int64    `json:"document_id"`
	OCRResultID      int64    `json:"ocr_result_id"`
	PageNumber       int      `json:"page_number"`
	BBoxX            float64  `json:"bbox_x"`
	BBoxY            float64  `json:"bbox_y"`
	BBoxW            float64  `json:"bbox_w"`
	BBoxH            float64  `json:"bbox_h"`
	Format           string   `json:"format"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	Path             string   `json:"path"`
	BlockType        string   `json:"block_type,omitempty"`
	IsHeaderFooter   bool     `json:"is_header_footer"`
	ContentHash      string   `json:"content_hash"`
	VLMStatus        string   `json:"vlm_status"`
	VLMDescription   string   `json:"vlm_description,omitempty"`
	VLMStructured    string   `json:"vlm_structured_data,omitempty"`
	VLMConfidence    *float64 `json:"vlm_confidence,omitempty"`
	VLMTokensUsed    int      `json:"vlm_tokens_used"`
	VLMDeduped       bool     `json:"vlm_deduped"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	ProvenanceID     *int64   `json:"provenance_id,omitempty"`
}

const selectImageCols = `id, document_id, ocr_result_id, page_number, bbox_x, bbox_y, bbox_w, bbox_h,
	format, width, height, path, block_type, is_header_footer, content_hash,
	vlm_status, vlm_description, vlm_structured_data, vlm_confidence, vlm_tokens_used,
	vlm_deduped, error_message, provenance_id`

func scanImage(row interface{ Scan(dest ...interface{}) error }) (*Image, error) {
	img := &Image{}
	var blockType, vlmDesc, vlmStruct, errMsg sql.NullString
	var vlmConf sql.NullFloat64
	var headerFooter, deduped int
	var provID sql.NullInt64
	if err := row.Scan(&img.ID, &img.DocumentID, &img.OCRResultID, &img.PageNumber,
		&img.BBoxX, &img.BBoxY, &img.BBoxW, &img.BBoxH, &img.Format, &img.Width, &img.Height,
		&img.Path, &blockType, &headerFooter, &img.ContentHash,
		&img.VLMStatus, &vlmDesc, &vlmStruct, &vlmConf, &img.VLMTokensUsed,
		&deduped, &errMsg, &provID); err != nil {
		return nil, err
	}
	img.BlockType = blockType.String
	img.IsHeaderFooter = headerFooter != 0
	img.VLMDescription = vlmDesc.String
	img.VLMStructured = vlmStruct.String
	if vlmConf.Valid {
		img.VLMConfidence = &vlmConf.Float64
	}
	img.VLMDeduped = deduped != 0
	img.ErrorMessage = errMsg.String
	if provID.Valid {
		img.ProvenanceID = &provID.Int64
	}
	return img, nil
}

// InsertImage stores an extracted image, defaulting vlm_status to
// "pending" until the VLM orchestrator processes it.
func (s *Store) InsertImage(ctx context.Context, img Image) (int64, error) {
	if img.VLMStatus == "" {
		img.VLMStatus = "pending"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO images (document_id, ocr_result_id, page_number, bbox_x, bbox_y, bbox_w, bbox_h,
			format, width, height, path, block_type, is_header_footer, content_hash, vlm_status, provenance_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, img.DocumentID, img.OCRResultID, img.PageNumber, img.BBoxX, img.BBoxY, img.BBoxW, img.BBoxH,
		img.Format, img.Width, img.Height, img.Path, nullString(img.BlockType),
		boolToInt(img.IsHeaderFooter), img.ContentHash, img.VLMStatus, nullInt64(img.ProvenanceID))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetImagesByDocument returns all images extracted from a document.
func (s *Store) GetImagesByDocument(ctx context.Context, docID int64) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectImageCols+" FROM images WHERE document_id = ? ORDER BY page_number, id", docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// GetImage returns a single image by ID.
func (s *Store) GetImage(ctx context.Context, id int64) (*Image, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectImageCols+" FROM images WHERE id = ?", id)
	return scanImage(row)
}

// FindImageByContentHash looks up an already-described image sharing
// the same content hash, letting the VLM orchestrator dedupe repeated
// header/footer logos across pages instead of re-describing them.
func (s *Store) FindImageByContentHash(ctx context.Context, hash string) (*Image, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectImageCols+" FROM images WHERE content_hash = ? AND vlm_status = 'complete' LIMIT 1", hash)
	img, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return img, err
}

// UpdateImageVLMResult records the outcome of a VLM description pass.
func (s *Store) UpdateImageVLMResult(ctx context.Context, imageID int64, description, structuredData string, confidence float64, tokensUsed int, deduped bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE images SET vlm_status = 'complete', vlm_description = ?, vlm_structured_data = ?,
			vlm_confidence = ?, vlm_tokens_used = ?, vlm_deduped = ?
		WHERE id = ?
	`, description, nullString(structuredData), confidence, tokensUsed, boolToInt(deduped), imageID)
	return err
}

// SetImageVLMError records a VLM failure for an image.
func (s *Store) SetImageVLMError(ctx context.Context, imageID int64, message string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE images SET vlm_status = 'failed', error_message = ? WHERE id = ?", message, imageID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
