package store

import (
	"context"
	"database/sql"
)

// Document represents a row in the documents table.
type Document struct {
	ID           int64  `json:"id"`
	Path         string `json:"path"`
	Filename     string `json:"filename"`
	FileHash     string `json:"file_hash"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	PageCount    *int   `json:"page_count,omitempty"`
	ProvenanceID *int64 `json:"provenance_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Document lifecycle statuses, mirrored by pipeline.State.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// UpsertDocument inserts or updates a document record keyed by path.
// Returns the document ID.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, filename, file_hash, size, type, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			file_hash = excluded.file_hash,
			size = excluded.size,
			type = excluded.type,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`, doc.Path, doc.Filename, doc.FileHash, doc.Size, doc.Type, doc.Status)
	if err != nil {
		return 0, err
	}

	// An upsert that takes the UPDATE branch leaves LastInsertId at the
	// connection's previous insert, so the id is read back by path.
	var id int64
	row := s.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE path = ?", doc.Path)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func scanDocument(row interface {
	Scan(dest ...interface{}) error
}) (*Document, error) {
	doc := &Document{}
	var pageCount sql.NullInt64
	var provID sql.NullInt64
	var errMsg sql.NullString
	if err := row.Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.FileHash, &doc.Size,
		&doc.Type, &doc.Status, &pageCount, &provID, &errMsg, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if pageCount.Valid {
		pc := int(pageCount.Int64)
		doc.PageCount = &pc
	}
	if provID.Valid {
		doc.ProvenanceID = &provID.Int64
	}
	doc.ErrorMessage = errMsg.String
	return doc, nil
}

const selectDocumentCols = `id, path, filename, file_hash, size, type, status, page_count, provenance_id, error_message, created_at, updated_at`

// GetDocumentByPath retrieves a document by its file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectDocumentCols+" FROM documents WHERE path = ?", path)
	return scanDocument(row)
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectDocumentCols+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

// ListDocuments returns all documents ordered by creation time.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectDocumentCols+" FROM documents ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus updates just the status field.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// SetDocumentError records a failure message and flips status to failed.
func (s *Store) SetDocumentError(ctx context.Context, id int64, message string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		StatusFailed, message, id)
	return err
}

// UpdateDocumentPageCount records the page count once OCR completes.
func (s *Store) UpdateDocumentPageCount(ctx context.Context, id int64, pageCount int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET page_count = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		pageCount, id)
	return err
}

// SetDocumentProvenance attaches the root provenance record ID.
func (s *Store) SetDocumentProvenance(ctx context.Context, id, provenanceID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET provenance_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		provenanceID, id)
	return err
}

// DeleteDocument removes a document and cascades to all related data.
// Derived rows are wiped first (including the vec0 entries that
// foreign keys can't reach), then the document row itself.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	if err := s.DeleteDocumentData(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	return err
}

// DeleteDocumentData removes every derived artifact for a document
// (OCR results, chunks, images, embeddings, entities, extractions) but
// keeps the document row itself, so a reprocess can start from a clean
// slate without losing the document's identity or provenance anchor.
func (s *Store) DeleteDocumentData(ctx context.Context, docID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// vec0 virtual tables have no foreign keys, so embedding_ids
		// must be swept out explicitly before the owning rows go away.
		rows, err := tx.QueryContext(ctx, `
			SELECT e.id FROM embeddings e
			LEFT JOIN chunks c ON c.id = e.chunk_id
			LEFT JOIN images i ON i.id = e.image_id
			LEFT JOIN extractions x ON x.id = e.extraction_id
			WHERE c.document_id = ? OR i.document_id = ? OR x.document_id = ?
		`, docID, docID, docID)
		if err != nil {
			return err
		}
		var embeddingIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			embeddingIDs = append(embeddingIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, id := range embeddingIDs {
			if _, err := tx.ExecContext(ctx, "DELETE FROM vec_embeddings WHERE embedding_id = ?", id); err != nil {
				return err
			}
		}

		if err := decrementNodeDocumentCounts(ctx, tx, docID); err != nil {
			return err
		}

		stmts := []string{
			"DELETE FROM embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)",
			"DELETE FROM embeddings WHERE image_id IN (SELECT id FROM images WHERE document_id = ?)",
			"DELETE FROM embeddings WHERE extraction_id IN (SELECT id FROM extractions WHERE document_id = ?)",
			"DELETE FROM entity_mentions WHERE entity_id IN (SELECT id FROM entities WHERE document_id = ?)",
			"DELETE FROM node_entity_links WHERE entity_id IN (SELECT id FROM entities WHERE document_id = ?)",
			"DELETE FROM entities WHERE document_id = ?",
			"DELETE FROM extractions WHERE document_id = ?",
			"DELETE FROM images WHERE document_id = ?",
			"DELETE FROM chunks WHERE document_id = ?",
			"DELETE FROM ocr_results WHERE document_id = ?",
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, docID); err != nil {
				return err
			}
		}
		return nil
	})
}
