package store

import "fmt"

// schemaSQL returns the DDL for every table, trigger and virtual table
// the store owns. embeddingDim controls the vec0 virtual table
// dimension (fixed globally per the configured embedding model,
// default 768).
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Document registry with hash-based change detection
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    file_hash TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    type TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    page_count INTEGER,
    provenance_id INTEGER,
    error_message TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(file_hash);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

-- One OCR pass per document (re-ingest creates a new row, old one is
-- superseded; the document's derived data is wiped and rebuilt).
CREATE TABLE IF NOT EXISTS ocr_results (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    extracted_text TEXT NOT NULL,
    text_length INTEGER NOT NULL,
    mode TEXT NOT NULL,
    page_count INTEGER NOT NULL DEFAULT 0,
    quality_score REAL,
    cost_cents REAL DEFAULT 0,
    content_hash TEXT NOT NULL,
    duration_ms INTEGER DEFAULT 0,
    provenance_id INTEGER,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_ocr_results_document ON ocr_results(document_id);

CREATE TABLE IF NOT EXISTS page_offsets (
    id INTEGER PRIMARY KEY,
    ocr_result_id INTEGER NOT NULL REFERENCES ocr_results(id) ON DELETE CASCADE,
    page_number INTEGER NOT NULL,
    char_start INTEGER NOT NULL,
    char_end INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_page_offsets_ocr ON page_offsets(ocr_result_id);

-- Structured extractions (e.g. VLM structured-data passes, form
-- fills) that embeddings can be generated over without a chunk.
CREATE TABLE IF NOT EXISTS extractions (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    chunk_id INTEGER,
    extraction_type TEXT NOT NULL,
    content TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    provenance_id INTEGER,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_extractions_document ON extractions(document_id);

-- Chunks over OCR text, character-offset addressed.
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    ocr_result_id INTEGER NOT NULL REFERENCES ocr_results(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL,
    character_start INTEGER NOT NULL,
    character_end INTEGER NOT NULL,
    page_number INTEGER,
    page_range_start INTEGER,
    page_range_end INTEGER,
    overlap_with_previous INTEGER DEFAULT 0,
    overlap_with_next INTEGER DEFAULT 0,
    text TEXT NOT NULL,
    text_hash TEXT NOT NULL,
    embedding_status TEXT NOT NULL DEFAULT 'pending',
    is_atomic INTEGER NOT NULL DEFAULT 0,
    provenance_id INTEGER,
    UNIQUE(document_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_ocr_result ON chunks(ocr_result_id);

-- Vector embeddings via sqlite-vec. One row per embedding id, keyed
-- 1:1 to the embeddings table below.
CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
    embedding_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Full-text search via FTS5, Porter-stemmed, kept in sync by triggers.
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    text,
    content='chunks',
    content_rowid='id',
    tokenize='porter unicode61'
);
CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, text) VALUES (new.id, new.text);
END;
CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.id, old.text);
END;
CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.id, old.text);
    INSERT INTO chunks_fts(rowid, text) VALUES (new.id, new.text);
END;

-- Extracted page images / figures, independently VLM-describable.
CREATE TABLE IF NOT EXISTS images (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    ocr_result_id INTEGER NOT NULL REFERENCES ocr_results(id) ON DELETE CASCADE,
    page_number INTEGER NOT NULL,
    bbox_x REAL, bbox_y REAL, bbox_w REAL, bbox_h REAL,
    format TEXT NOT NULL,
    width INTEGER, height INTEGER,
    path TEXT NOT NULL,
    block_type TEXT,
    is_header_footer INTEGER NOT NULL DEFAULT 0,
    content_hash TEXT NOT NULL,
    vlm_status TEXT NOT NULL DEFAULT 'pending',
    vlm_description TEXT,
    vlm_structured_data TEXT,
    vlm_confidence REAL,
    vlm_tokens_used INTEGER DEFAULT 0,
    vlm_deduped INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    provenance_id INTEGER
);
CREATE INDEX IF NOT EXISTS idx_images_document ON images(document_id);
CREATE INDEX IF NOT EXISTS idx_images_content_hash ON images(content_hash);

-- One embedding vector per chunk/image/extraction. Polymorphic source,
-- enforced exclusive by the CHECK below.
CREATE TABLE IF NOT EXISTS embeddings (
    id INTEGER PRIMARY KEY,
    chunk_id INTEGER REFERENCES chunks(id) ON DELETE CASCADE,
    image_id INTEGER REFERENCES images(id) ON DELETE CASCADE,
    extraction_id INTEGER REFERENCES extractions(id) ON DELETE CASCADE,
    model TEXT NOT NULL,
    model_version TEXT NOT NULL,
    task_type TEXT NOT NULL,
    device TEXT,
    source_text TEXT NOT NULL,
    source_file_metadata JSON,
    content_hash TEXT NOT NULL,
    provenance_id INTEGER,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    CHECK ((chunk_id IS NOT NULL) + (image_id IS NOT NULL) + (extraction_id IS NOT NULL) = 1)
);
CREATE INDEX IF NOT EXISTS idx_embeddings_chunk ON embeddings(chunk_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_image ON embeddings(image_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_extraction ON embeddings(extraction_id);

-- Per-document entity mentions, not yet resolved across documents.
CREATE TABLE IF NOT EXISTS entities (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    raw_text TEXT NOT NULL,
    normalized_text TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 0,
    metadata JSON,
    provenance_id INTEGER,
    UNIQUE(document_id, type, normalized_text)
);
CREATE INDEX IF NOT EXISTS idx_entities_document ON entities(document_id);
CREATE INDEX IF NOT EXISTS idx_entities_normalized ON entities(normalized_text);

CREATE TABLE IF NOT EXISTS entity_mentions (
    id INTEGER PRIMARY KEY,
    entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    chunk_id INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
    page_number INTEGER,
    character_start INTEGER NOT NULL,
    character_end INTEGER NOT NULL,
    context_snippet TEXT
);
CREATE INDEX IF NOT EXISTS idx_entity_mentions_entity ON entity_mentions(entity_id);
CREATE INDEX IF NOT EXISTS idx_entity_mentions_chunk ON entity_mentions(chunk_id);

-- Cross-document canonical nodes the knowledge graph builder resolves
-- entities onto.
CREATE TABLE IF NOT EXISTS knowledge_nodes (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    canonical_name TEXT NOT NULL,
    normalized_name TEXT NOT NULL,
    aliases JSON NOT NULL DEFAULT '[]',
    document_count INTEGER NOT NULL DEFAULT 0,
    mention_count INTEGER NOT NULL DEFAULT 0,
    edge_count INTEGER NOT NULL DEFAULT 0,
    avg_confidence REAL NOT NULL DEFAULT 0,
    metadata JSON,
    provenance_id INTEGER
);
CREATE INDEX IF NOT EXISTS idx_knowledge_nodes_type ON knowledge_nodes(type);
CREATE INDEX IF NOT EXISTS idx_knowledge_nodes_normalized ON knowledge_nodes(normalized_name);

CREATE TABLE IF NOT EXISTS knowledge_edges (
    id INTEGER PRIMARY KEY,
    source_node_id INTEGER NOT NULL REFERENCES knowledge_nodes(id) ON DELETE CASCADE,
    target_node_id INTEGER NOT NULL REFERENCES knowledge_nodes(id) ON DELETE CASCADE,
    relationship_type TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 0,
    normalized_weight REAL NOT NULL DEFAULT 0,
    evidence_count INTEGER NOT NULL DEFAULT 1,
    document_ids JSON NOT NULL DEFAULT '[]',
    valid_from DATETIME,
    valid_to DATETIME,
    contradiction_count INTEGER NOT NULL DEFAULT 0,
    UNIQUE(source_node_id, target_node_id, relationship_type)
);
CREATE INDEX IF NOT EXISTS idx_knowledge_edges_source ON knowledge_edges(source_node_id);
CREATE INDEX IF NOT EXISTS idx_knowledge_edges_target ON knowledge_edges(target_node_id);

CREATE TABLE IF NOT EXISTS node_entity_links (
    id INTEGER PRIMARY KEY,
    node_id INTEGER NOT NULL REFERENCES knowledge_nodes(id) ON DELETE CASCADE,
    entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    similarity_score REAL NOT NULL DEFAULT 1.0,
    resolution_method TEXT NOT NULL,
    UNIQUE(node_id, entity_id)
);
CREATE INDEX IF NOT EXISTS idx_node_entity_links_node ON node_entity_links(node_id);
CREATE INDEX IF NOT EXISTS idx_node_entity_links_entity ON node_entity_links(entity_id);

-- The provenance DAG. root_document_id anchors every record back to
-- the document that started the chain; parent_ids/chain_path/chain_depth
-- are the DAG edges, recomputed at Create time, never mutated after.
CREATE TABLE IF NOT EXISTS provenance_records (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    source_type TEXT,
    root_document_id INTEGER REFERENCES documents(id) ON DELETE CASCADE,
    content_hash TEXT NOT NULL,
    input_hash TEXT,
    file_hash TEXT,
    processor TEXT NOT NULL DEFAULT '',
    processor_version TEXT NOT NULL DEFAULT '',
    processing_params JSON,
    duration_ms INTEGER DEFAULT 0,
    quality_score REAL,
    parent_ids JSON NOT NULL DEFAULT '[]',
    chain_depth INTEGER NOT NULL DEFAULT 0,
    chain_path JSON NOT NULL DEFAULT '[]',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_provenance_root ON provenance_records(root_document_id);
CREATE INDEX IF NOT EXISTS idx_provenance_type ON provenance_records(type);

CREATE TABLE IF NOT EXISTS comparisons (
    id INTEGER PRIMARY KEY,
    document_id_a INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    document_id_b INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    similarity_ratio REAL NOT NULL DEFAULT 0,
    text_diff JSON,
    structural_diff JSON,
    entity_diff JSON,
    summary TEXT,
    content_hash TEXT NOT NULL,
    provenance_id INTEGER,
    duration_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_comparisons_a ON comparisons(document_id_a);
CREATE INDEX IF NOT EXISTS idx_comparisons_b ON comparisons(document_id_b);

-- Polymorphic user tags over {document,chunk,image,extraction,cluster}.
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entity_tags (
    id INTEGER PRIMARY KEY,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    target_id INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(tag_id, kind, target_id)
);
CREATE INDEX IF NOT EXISTS idx_entity_tags_target ON entity_tags(kind, target_id);
`, embeddingDim)
}
