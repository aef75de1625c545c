package store

import (
	"context"
	"database/sql"
)

// ProvenanceRecord is a single node in the provenance DAG. The
// provenance package owns the invariants (chain_depth, parent hash
// chasing); this is the bare row shape.
type ProvenanceRecord struct {
	ID                int64   `json:"id"`
	Type              string  `json:"type"`
	SourceType        string  `json:"source_type,omitempty"`
	RootDocumentID    *int64  `json:"root_document_id,omitempty"`
	ContentHash       string  `json:"content_hash"`
	InputHash         string  `json:"input_hash,omitempty"`
	FileHash          string  `json:"file_hash,omitempty"`
	Processor         string  `json:"processor"`
	ProcessorVersion  string  `json:"processor_version"`
	ProcessingParams  string  `json:"processing_params,omitempty"`
	DurationMS        int64   `json:"duration_ms"`
	QualityScore      *float64 `json:"quality_score,omitempty"`
	ParentIDs         string  `json:"parent_ids"` // JSON array of ints
	ChainDepth        int     `json:"chain_depth"`
	ChainPath         string  `json:"chain_path"` // JSON array of ints
	CreatedAt         string  `json:"created_at"`
}

const selectProvenanceCols = `id, type, source_type, root_document_id, content_hash, input_hash, file_hash,
	processor, processor_version, processing_params, duration_ms, quality_score,
	parent_ids, chain_depth, chain_path, created_at`

func scanProvenance(row interface{ Scan(dest ...interface{}) error }) (*ProvenanceRecord, error) {
	r := &ProvenanceRecord{}
	var sourceType, inputHash, fileHash, params sql.NullString
	var rootDocID sql.NullInt64
	var quality sql.NullFloat64
	if err := row.Scan(&r.ID, &r.Type, &sourceType, &rootDocID, &r.ContentHash, &inputHash, &fileHash,
		&r.Processor, &r.ProcessorVersion, &params, &r.DurationMS, &quality,
		&r.ParentIDs, &r.ChainDepth, &r.ChainPath, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.SourceType = sourceType.String
	if rootDocID.Valid {
		r.RootDocumentID = &rootDocID.Int64
	}
	r.InputHash = inputHash.String
	r.FileHash = fileHash.String
	r.ProcessingParams = params.String
	if quality.Valid {
		r.QualityScore = &quality.Float64
	}
	return r, nil
}

// InsertProvenanceRecord stores a provenance DAG node. Callers (the
// provenance package) are responsible for computing chain_depth and
// chain_path before calling this.
func (s *Store) InsertProvenanceRecord(ctx context.Context, r ProvenanceRecord) (int64, error) {
	if r.ParentIDs == "" {
		r.ParentIDs = "[]"
	}
	if r.ChainPath == "" {
		r.ChainPath = "[]"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO provenance_records (type, source_type, root_document_id, content_hash, input_hash,
			file_hash, processor, processor_version, processing_params, duration_ms, quality_score,
			parent_ids, chain_depth, chain_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Type, nullString(r.SourceType), nullInt64(r.RootDocumentID), r.ContentHash, nullString(r.InputHash),
		nullString(r.FileHash), r.Processor, r.ProcessorVersion, nullString(r.ProcessingParams),
		r.DurationMS, nullFloat64(r.QualityScore), r.ParentIDs, r.ChainDepth, r.ChainPath)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetProvenanceRecord returns a single provenance record by ID.
func (s *Store) GetProvenanceRecord(ctx context.Context, id int64) (*ProvenanceRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectProvenanceCols+" FROM provenance_records WHERE id = ?", id)
	return scanProvenance(row)
}

// ListProvenanceByRoot returns every provenance record anchored to a
// root document, ordered by chain_depth, the order the DAG was built.
func (s *Store) ListProvenanceByRoot(ctx context.Context, rootDocumentID int64) ([]ProvenanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectProvenanceCols+" FROM provenance_records WHERE root_document_id = ? ORDER BY chain_depth, id",
		rootDocumentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ProvenanceRecord
	for rows.Next() {
		r, err := scanProvenance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}
