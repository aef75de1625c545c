package store

import "context"

// TagKind enumerates the entity kinds a tag can be attached to.
type TagKind string

const (
	TagKindDocument   TagKind = "document"
	TagKindChunk      TagKind = "chunk"
	TagKindImage      TagKind = "image"
	TagKindExtraction TagKind = "extraction"
	TagKindCluster    TagKind = "cluster"
)

// Tag is a user-defined label, shared across whatever kinds of
// targets it's applied to.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UpsertTag creates a tag by name if it doesn't already exist and
// returns its ID either way.
func (s *Store) UpsertTag(ctx context.Context, name string) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name)
	if err != nil {
		return 0, err
	}
	// When the insert is skipped LastInsertId keeps the connection's
	// previous insert, so the id is read back by name.
	var id int64
	row := s.db.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// TagTarget applies a tag (by name) to a polymorphic target.
func (s *Store) TagTarget(ctx context.Context, tagName string, kind TagKind, targetID int64) error {
	tagID, err := s.UpsertTag(ctx, tagName)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO entity_tags (tag_id, kind, target_id) VALUES (?, ?, ?)",
		tagID, string(kind), targetID)
	return err
}

// UntagTarget removes a tag (by name) from a target.
func (s *Store) UntagTarget(ctx context.Context, tagName string, kind TagKind, targetID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM entity_tags WHERE target_id = ? AND kind = ? AND tag_id = (
			SELECT id FROM tags WHERE name = ?
		)
	`, targetID, string(kind), tagName)
	return err
}

// GetTagsForTarget returns every tag name attached to a target.
func (s *Store) GetTagsForTarget(ctx context.Context, kind TagKind, targetID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name FROM entity_tags et JOIN tags t ON t.id = et.tag_id
		WHERE et.kind = ? AND et.target_id = ?
	`, string(kind), targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// GetTargetsForTag returns every (kind, target_id) pair carrying a
// given tag name.
func (s *Store) GetTargetsForTag(ctx context.Context, tagName string) ([]TaggedTarget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT et.kind, et.target_id FROM entity_tags et JOIN tags t ON t.id = et.tag_id
		WHERE t.name = ?
	`, tagName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []TaggedTarget
	for rows.Next() {
		var tt TaggedTarget
		if err := rows.Scan(&tt.Kind, &tt.TargetID); err != nil {
			return nil, err
		}
		targets = append(targets, tt)
	}
	return targets, rows.Err()
}

// TaggedTarget is one (kind, id) pair carrying a tag.
type TaggedTarget struct {
	Kind     TagKind `json:"kind"`
	TargetID int64   `json:"target_id"`
}
