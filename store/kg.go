package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// KnowledgeNode is a cross-document canonical entity.
type KnowledgeNode struct {
	ID             int64  `json:"id"`
	Type           string `json:"type"`
	CanonicalName  string `json:"canonical_name"`
	NormalizedName string `json:"normalized_name"`
	Aliases        string `json:"aliases"` // JSON array
	DocumentCount  int    `json:"document_count"`
	MentionCount   int    `json:"mention_count"`
	EdgeCount      int    `json:"edge_count"`
	AvgConfidence  float64 `json:"avg_confidence"`
	Metadata       string `json:"metadata,omitempty"`
	ProvenanceID   *int64 `json:"provenance_id,omitempty"`
}

// KnowledgeEdge is a typed, weighted relationship between two nodes.
type KnowledgeEdge struct {
	ID                 int64   `json:"id"`
	SourceNodeID        int64   `json:"source_node_id"`
	TargetNodeID        int64   `json:"target_node_id"`
	RelationshipType     string  `json:"relationship_type"`
	Weight               float64 `json:"weight"`
	NormalizedWeight     float64 `json:"normalized_weight"`
	EvidenceCount        int     `json:"evidence_count"`
	DocumentIDs          string  `json:"document_ids"` // JSON array
	ValidFrom            *string `json:"valid_from,omitempty"`
	ValidTo              *string `json:"valid_to,omitempty"`
	ContradictionCount   int     `json:"contradiction_count"`
}

// NodeEntityLink records which per-document entity resolved onto
// which canonical node, and how.
type NodeEntityLink struct {
	ID               int64   `json:"id"`
	NodeID           int64   `json:"node_id"`
	EntityID         int64   `json:"entity_id"`
	SimilarityScore  float64 `json:"similarity_score"`
	ResolutionMethod string  `json:"resolution_method"`
}

const selectNodeCols = `id, type, canonical_name, normalized_name, aliases, document_count,
	mention_count, edge_count, avg_confidence, metadata, provenance_id`

func scanNode(row interface{ Scan(dest ...interface{}) error }) (*KnowledgeNode, error) {
	n := &KnowledgeNode{}
	var metadata sql.NullString
	var provID sql.NullInt64
	if err := row.Scan(&n.ID, &n.Type, &n.CanonicalName, &n.NormalizedName, &n.Aliases,
		&n.DocumentCount, &n.MentionCount, &n.EdgeCount, &n.AvgConfidence, &metadata, &provID); err != nil {
		return nil, err
	}
	n.Metadata = metadata.String
	if provID.Valid {
		n.ProvenanceID = &provID.Int64
	}
	return n, nil
}

// InsertNode creates a new canonical knowledge node.
func (s *Store) InsertNode(ctx context.Context, n KnowledgeNode) (int64, error) {
	if n.Aliases == "" {
		n.Aliases = "[]"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_nodes (type, canonical_name, normalized_name, aliases,
			document_count, mention_count, edge_count, avg_confidence, metadata, provenance_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.Type, n.CanonicalName, n.NormalizedName, n.Aliases, n.DocumentCount, n.MentionCount,
		n.EdgeCount, n.AvgConfidence, nullString(n.Metadata), nullInt64(n.ProvenanceID))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetNode returns a single knowledge node by ID.
func (s *Store) GetNode(ctx context.Context, id int64) (*KnowledgeNode, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectNodeCols+" FROM knowledge_nodes WHERE id = ?", id)
	return scanNode(row)
}

// FindNodesByType returns all nodes of a given type, used by the
// resolver to scope candidate matching to same-typed entities.
func (s *Store) FindNodesByType(ctx context.Context, entityType string) ([]KnowledgeNode, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectNodeCols+" FROM knowledge_nodes WHERE type = ?", entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []KnowledgeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// AllNodes returns every knowledge node.
func (s *Store) AllNodes(ctx context.Context) ([]KnowledgeNode, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectNodeCols+" FROM knowledge_nodes")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []KnowledgeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// UpdateNodeStats refreshes a node's rollup counters after a new
// entity resolves onto it.
func (s *Store) UpdateNodeStats(ctx context.Context, nodeID int64, documentCount, mentionCount int, avgConfidence float64, aliases string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_nodes SET document_count = ?, mention_count = ?, avg_confidence = ?, aliases = ?
		WHERE id = ?
	`, documentCount, mentionCount, avgConfidence, aliases, nodeID)
	return err
}

// LinkNodeEntity records that a per-document entity resolved onto a
// canonical node.
func (s *Store) LinkNodeEntity(ctx context.Context, l NodeEntityLink) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO node_entity_links (node_id, entity_id, similarity_score, resolution_method)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(node_id, entity_id) DO UPDATE SET
			similarity_score = excluded.similarity_score, resolution_method = excluded.resolution_method
	`, l.NodeID, l.EntityID, l.SimilarityScore, l.ResolutionMethod)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetNodeForEntity returns the canonical node an entity resolved to,
// if any.
func (s *Store) GetNodeForEntity(ctx context.Context, entityID int64) (*KnowledgeNode, error) {
	var nodeID int64
	err := s.db.QueryRowContext(ctx, "SELECT node_id FROM node_entity_links WHERE entity_id = ?", entityID).Scan(&nodeID)
	if err != nil {
		return nil, err
	}
	return s.GetNode(ctx, nodeID)
}

// UpsertEdge inserts a new typed edge or, if one already exists
// between the same ordered pair and relationship type, merges
// evidence (raising weight and evidence_count, unioning document IDs).
func (s *Store) UpsertEdge(ctx context.Context, e KnowledgeEdge) (int64, error) {
	if e.DocumentIDs == "" {
		e.DocumentIDs = "[]"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_edges (source_node_id, target_node_id, relationship_type, weight,
			normalized_weight, evidence_count, document_ids, valid_from, valid_to, contradiction_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_node_id, target_node_id, relationship_type) DO UPDATE SET
			weight = knowledge_edges.weight + excluded.weight,
			evidence_count = knowledge_edges.evidence_count + 1,
			document_ids = (SELECT json_group_array(value) FROM (
				SELECT value FROM json_each(knowledge_edges.document_ids)
				UNION SELECT value FROM json_each(excluded.document_ids)))
	`, e.SourceNodeID, e.TargetNodeID, e.RelationshipType, e.Weight, e.NormalizedWeight,
		e.EvidenceCount, e.DocumentIDs, e.ValidFrom, e.ValidTo, e.ContradictionCount)
	if err != nil {
		return 0, err
	}
	// An upsert that takes the UPDATE branch leaves LastInsertId at the
	// connection's previous insert, so the id is read back by key.
	var id int64
	row := s.db.QueryRowContext(ctx,
		"SELECT id FROM knowledge_edges WHERE source_node_id = ? AND target_node_id = ? AND relationship_type = ?",
		e.SourceNodeID, e.TargetNodeID, e.RelationshipType)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetEdgesForNode returns every edge incident to a node, in either
// direction.
func (s *Store) GetEdgesForNode(ctx context.Context, nodeID int64) ([]KnowledgeEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_node_id, target_node_id, relationship_type, weight, normalized_weight,
			evidence_count, document_ids, valid_from, valid_to, contradiction_count
		FROM knowledge_edges WHERE source_node_id = ? OR target_node_id = ?
	`, nodeID, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

// AllEdges returns every knowledge edge, used by contradiction
// detection and normalized-weight recomputation.
func (s *Store) AllEdges(ctx context.Context) ([]KnowledgeEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_node_id, target_node_id, relationship_type, weight, normalized_weight,
			evidence_count, document_ids, valid_from, valid_to, contradiction_count
		FROM knowledge_edges
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]KnowledgeEdge, error) {
	var edges []KnowledgeEdge
	for rows.Next() {
		var e KnowledgeEdge
		var validFrom, validTo sql.NullString
		if err := rows.Scan(&e.ID, &e.SourceNodeID, &e.TargetNodeID, &e.RelationshipType, &e.Weight,
			&e.NormalizedWeight, &e.EvidenceCount, &e.DocumentIDs, &validFrom, &validTo, &e.ContradictionCount); err != nil {
			return nil, err
		}
		if validFrom.Valid {
			e.ValidFrom = &validFrom.String
		}
		if validTo.Valid {
			e.ValidTo = &validTo.String
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// UpdateEdgeNormalizedWeight sets the per-node-normalized weight
// (weight / max incident weight), recomputed by kg.Builder whenever
// the edge set around a node changes.
func (s *Store) UpdateEdgeNormalizedWeight(ctx context.Context, edgeID int64, normalizedWeight float64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE knowledge_edges SET normalized_weight = ? WHERE id = ?", normalizedWeight, edgeID)
	return err
}

// IncrementEdgeContradictionCount bumps an edge's contradiction
// counter when the comparison engine finds a conflicting edge on the
// same node pair in another document.
func (s *Store) IncrementEdgeContradictionCount(ctx context.Context, edgeID int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE knowledge_edges SET contradiction_count = contradiction_count + 1 WHERE id = ?", edgeID)
	return err
}

// KGSnapshot is a point-in-time capture of the portion of the
// knowledge graph a document touches: the nodes its entities resolved
// onto, the links recording that resolution, and every edge incident
// to those nodes.
type KGSnapshot struct {
	DocumentID int64            `json:"document_id"`
	ArchivedAt string           `json:"archived_at"`
	Nodes      []KnowledgeNode  `json:"nodes"`
	Edges      []KnowledgeEdge  `json:"edges"`
	Links      []NodeEntityLink `json:"links"`
}

// documentKGSnapshot gathers the knowledge nodes a document's entities
// resolved onto, the node_entity_links rows recording that resolution,
// and every edge incident to those nodes.
func (s *Store) documentKGSnapshot(ctx context.Context, docID int64) (*KGSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT nel.id, nel.node_id, nel.entity_id, nel.similarity_score, nel.resolution_method
		FROM node_entity_links nel
		JOIN entities e ON e.id = nel.entity_id
		WHERE e.document_id = ?
	`, docID)
	if err != nil {
		return nil, err
	}
	var links []NodeEntityLink
	nodeIDs := map[int64]bool{}
	for rows.Next() {
		var l NodeEntityLink
		if err := rows.Scan(&l.ID, &l.NodeID, &l.EntityID, &l.SimilarityScore, &l.ResolutionMethod); err != nil {
			rows.Close()
			return nil, err
		}
		links = append(links, l)
		nodeIDs[l.NodeID] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snapshot := &KGSnapshot{DocumentID: docID, Links: links}
	edgeIDs := map[int64]bool{}
	for nodeID := range nodeIDs {
		node, err := s.GetNode(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		snapshot.Nodes = append(snapshot.Nodes, *node)

		edges, err := s.GetEdgesForNode(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if edgeIDs[e.ID] {
				continue
			}
			edgeIDs[e.ID] = true
			snapshot.Edges = append(snapshot.Edges, e)
		}
	}
	return snapshot, nil
}

// ArchiveDocumentKG snapshots the subgraph a document's entities are
// linked to and writes it as indented JSON under archiveDir, named by
// document ID and timestamp. Called before DeleteDocumentData tears
// down the document's entities and node_entity_links rows, so the
// resolution history survives the document's deletion. A document with
// no resolved entities writes nothing.
func (s *Store) ArchiveDocumentKG(ctx context.Context, docID int64, archiveDir string) error {
	snapshot, err := s.documentKGSnapshot(ctx, docID)
	if err != nil {
		return err
	}
	if len(snapshot.Nodes) == 0 {
		return nil
	}
	snapshot.ArchivedAt = time.Now().UTC().Format(time.RFC3339)

	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("creating kg archive directory: %w", err)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling kg snapshot: %w", err)
	}
	name := fmt.Sprintf("doc-%d-%s.json", docID, time.Now().Format("20060102-150405"))
	return os.WriteFile(filepath.Join(archiveDir, name), data, 0644)
}

// queryExecer is the subset of *sql.DB and *sql.Tx that
// decrementNodeDocumentCounts needs, so it can run either standalone
// or as part of DeleteDocumentData's transaction.
type queryExecer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DecrementNodeDocumentCounts lowers document_count by one for every
// distinct node this document's entities resolved onto, undoing the
// increment kg.Resolver applied when the document was ingested.
// Counts never go below zero.
func (s *Store) DecrementNodeDocumentCounts(ctx context.Context, docID int64) error {
	return decrementNodeDocumentCounts(ctx, s.db, docID)
}

func decrementNodeDocumentCounts(ctx context.Context, exec queryExecer, docID int64) error {
	rows, err := exec.QueryContext(ctx, `
		SELECT DISTINCT nel.node_id
		FROM node_entity_links nel
		JOIN entities e ON e.id = nel.entity_id
		WHERE e.document_id = ?
	`, docID)
	if err != nil {
		return err
	}
	var nodeIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		nodeIDs = append(nodeIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range nodeIDs {
		if _, err := exec.ExecContext(ctx,
			"UPDATE knowledge_nodes SET document_count = MAX(document_count - 1, 0) WHERE id = ?", id); err != nil {
			return err
		}
	}
	return nil
}

// GraphSearch finds chunks reachable from a set of entity IDs via
// their mentions, weighted by the best incident edge weight of the
// node each entity resolves to. Unresolved entities fall back to a
// neutral weight so a document still benefits from direct entity
// mentions before cross-document resolution runs.
func (s *Store) GraphSearch(ctx context.Context, entityIDs []int64, limit int) ([]RetrievalResult, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT m.chunk_id,
			COALESCE((
				SELECT MAX(ke.weight) FROM node_entity_links nel
				JOIN knowledge_edges ke ON ke.source_node_id = nel.node_id OR ke.target_node_id = nel.node_id
				WHERE nel.entity_id = m.entity_id
			), 0.5),
			c.document_id, c.text, c.page_number, d.filename, d.path
		FROM entity_mentions m
		JOIN chunks c ON c.id = m.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE m.entity_id IN (?` + repeatPlaceholders(len(entityIDs)-1) + `)
		LIMIT ?`

	args := make([]interface{}, 0, len(entityIDs)+1)
	for _, id := range entityIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RetrievalResult
	for rows.Next() {
		var r RetrievalResult
		var page sql.NullInt64
		if err := rows.Scan(&r.ChunkID, &r.Score, &r.DocumentID, &r.Text, &page, &r.Filename, &r.Path); err != nil {
			return nil, err
		}
		if page.Valid {
			v := int(page.Int64)
			r.PageNumber = &v
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
