package store

import (
	"context"
	"database/sql"
	"strings"
)

// Entity represents a single document's mention of a named thing,
// prior to cross-document resolution onto a knowledge_nodes row.
type Entity struct {
	ID             int64  `json:"id"`
	DocumentID     int64  `json:"document_id"`
	Type           string `json:"type"`
	RawText        string `json:"raw_text"`
	NormalizedText string `json:"normalized_text"`
	Confidence     float64 `json:"confidence"`
	Metadata       string `json:"metadata,omitempty"`
	ProvenanceID   *int64 `json:"provenance_id,omitempty"`
}

// EntityMention anchors an entity back to the exact chunk span it was
// found in.
type EntityMention struct {
	ID             int64  `json:"id"`
	EntityID       int64  `json:"entity_id"`
	ChunkID        int64  `json:"chunk_id"`
	PageNumber     *int   `json:"page_number,omitempty"`
	CharacterStart int    `json:"character_start"`
	CharacterEnd   int    `json:"character_end"`
	ContextSnippet string `json:"context_snippet,omitempty"`
}

func scanEntity(row interface{ Scan(dest ...interface{}) error }) (*Entity, error) {
	e := &Entity{}
	var metadata sql.NullString
	var provID sql.NullInt64
	if err := row.Scan(&e.ID, &e.DocumentID, &e.Type, &e.RawText, &e.NormalizedText,
		&e.Confidence, &metadata, &provID); err != nil {
		return nil, err
	}
	e.Metadata = metadata.String
	if provID.Valid {
		e.ProvenanceID = &provID.Int64
	}
	return e, nil
}

const selectEntityCols = `id, document_id, type, raw_text, normalized_text, confidence, metadata, provenance_id`

// UpsertEntity inserts or updates an entity keyed by
// (document_id, type, normalized_text). Returns the entity ID.
func (s *Store) UpsertEntity(ctx context.Context, e Entity) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (document_id, type, raw_text, normalized_text, confidence, metadata, provenance_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, type, normalized_text) DO UPDATE SET
			confidence = MAX(entities.confidence, excluded.confidence),
			metadata = excluded.metadata
	`, e.DocumentID, e.Type, e.RawText, e.NormalizedText, e.Confidence, nullString(e.Metadata), nullInt64(e.ProvenanceID))
	if err != nil {
		return 0, err
	}
	// An upsert that takes the UPDATE branch leaves LastInsertId at the
	// connection's previous insert, so the id is read back by key.
	var id int64
	row := s.db.QueryRowContext(ctx,
		"SELECT id FROM entities WHERE document_id = ? AND type = ? AND normalized_text = ?",
		e.DocumentID, e.Type, e.NormalizedText)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// UpsertEntityAndMention atomically upserts an entity and records a
// mention, so a retry after a partial failure can't leave an entity
// with no mentions or a mention pointing at nothing.
func (s *Store) UpsertEntityAndMention(ctx context.Context, e Entity, m EntityMention) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entities (document_id, type, raw_text, normalized_text, confidence, metadata, provenance_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(document_id, type, normalized_text) DO UPDATE SET
				confidence = MAX(entities.confidence, excluded.confidence),
				metadata = excluded.metadata
		`, e.DocumentID, e.Type, e.RawText, e.NormalizedText, e.Confidence, nullString(e.Metadata), nullInt64(e.ProvenanceID))
		if err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx,
			"SELECT id FROM entities WHERE document_id = ? AND type = ? AND normalized_text = ?",
			e.DocumentID, e.Type, e.NormalizedText)
		if err := row.Scan(&id); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO entity_mentions (entity_id, chunk_id, page_number, character_start, character_end, context_snippet)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, m.ChunkID, m.PageNumber, m.CharacterStart, m.CharacterEnd, nullString(m.ContextSnippet))
		return err
	})
	return id, err
}

// GetEntitiesByDocument returns every entity extracted from a document.
func (s *Store) GetEntitiesByDocument(ctx context.Context, docID int64) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectEntityCols+" FROM entities WHERE document_id = ?", docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

// GetEntity returns a single entity by ID.
func (s *Store) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectEntityCols+" FROM entities WHERE id = ?", id)
	return scanEntity(row)
}

// GetMentionsByEntity returns every mention recorded for an entity.
func (s *Store) GetMentionsByEntity(ctx context.Context, entityID int64) ([]EntityMention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, chunk_id, page_number, character_start, character_end, context_snippet
		FROM entity_mentions WHERE entity_id = ?
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentions []EntityMention
	for rows.Next() {
		var m EntityMention
		var page sql.NullInt64
		var snippet sql.NullString
		if err := rows.Scan(&m.ID, &m.EntityID, &m.ChunkID, &page, &m.CharacterStart, &m.CharacterEnd, &snippet); err != nil {
			return nil, err
		}
		if page.Valid {
			v := int(page.Int64)
			m.PageNumber = &v
		}
		m.ContextSnippet = snippet.String
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}

// AllEntities returns every entity in the database, used by the
// knowledge graph builder's resolution pass.
func (s *Store) AllEntities(ctx context.Context) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectEntityCols+" FROM entities")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

// SearchEntitiesByTerms finds entities whose normalized text contains
// any of the given terms as substrings. Terms shorter than 4
// characters are dropped as noise, the same threshold the KG-aware
// search boost uses to avoid matching on stopwords.
func (s *Store) SearchEntitiesByTerms(ctx context.Context, terms []string, limit int) ([]Entity, error) {
	if limit == 0 {
		limit = 50
	}
	var conditions []string
	var args []interface{}
	for _, t := range terms {
		if len(t) < 4 {
			continue
		}
		conditions = append(conditions, "normalized_text LIKE ?")
		args = append(args, "%"+strings.ToLower(t)+"%")
	}
	if len(conditions) == 0 {
		return nil, nil
	}

	query := "SELECT " + selectEntityCols + " FROM entities WHERE " + strings.Join(conditions, " OR ") + " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}
