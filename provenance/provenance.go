// Package provenance maintains the content-addressed DAG that links
// every derived artifact back to the bytes it was computed from.
package provenance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/hash"
	"github.com/brunobiangulo/docintel/store"
)

// Type is one of the closed set of provenance record kinds.
type Type string

const (
	TypeDocument         Type = "DOCUMENT"
	TypeOCRResult        Type = "OCR_RESULT"
	TypeChunk            Type = "CHUNK"
	TypeImage            Type = "IMAGE"
	TypeEmbedding        Type = "EMBEDDING"
	TypeVLMDescription   Type = "VLM_DESCRIPTION"
	TypeEntityExtraction Type = "ENTITY_EXTRACTION"
	TypeKnowledgeGraph   Type = "KNOWLEDGE_GRAPH"
	TypeComparison       Type = "COMPARISON"
	TypeFormFill         Type = "FORM_FILL"
)

// Record is the caller-facing shape for a new provenance node. ID is
// left zero; Tracker.Create computes ChainDepth and ChainPath.
type Record struct {
	Type             Type
	SourceType       string
	RootDocumentID   *int64
	ContentHash      string
	InputHash        string
	FileHash         string
	Processor        string
	ProcessorVersion string
	ProcessingParams map[string]any
	DurationMS       int64
	QualityScore     *float64
	ParentIDs        []int64
}

// Tracker owns the provenance DAG against a single store.
type Tracker struct {
	store *store.Store
}

func New(s *store.Store) *Tracker {
	return &Tracker{store: s}
}

// Create persists r after validating every parent id exists and the
// chain_depth invariant (max(parent.chain_depth) + 1, or 0 for a
// parentless DOCUMENT record).
func (t *Tracker) Create(ctx context.Context, r Record) (*store.ProvenanceRecord, error) {
	var maxParentDepth = -1
	for _, pid := range r.ParentIDs {
		parent, err := t.store.GetProvenanceRecord(ctx, pid)
		if err != nil {
			return nil, docerr.Wrap(docerr.CategoryProvenanceNotFound,
				fmt.Sprintf("parent provenance record %d not found", pid), err)
		}
		if parent.ChainDepth > maxParentDepth {
			maxParentDepth = parent.ChainDepth
		}
	}

	chainDepth := 0
	chainPath := []string{string(r.Type)}
	if len(r.ParentIDs) > 0 {
		chainDepth = maxParentDepth + 1
		// chain_path is the root-to-here type sequence; take it from
		// the deepest parent and append this record's type.
		var deepest *store.ProvenanceRecord
		for _, pid := range r.ParentIDs {
			p, err := t.store.GetProvenanceRecord(ctx, pid)
			if err != nil {
				return nil, err
			}
			if deepest == nil || p.ChainDepth > deepest.ChainDepth {
				deepest = p
			}
		}
		var parentPath []string
		if err := json.Unmarshal([]byte(deepest.ChainPath), &parentPath); err != nil {
			return nil, docerr.Wrap(docerr.CategoryInternal, "decoding parent chain_path", err)
		}
		chainPath = append(parentPath, string(r.Type))
	} else if r.Type != TypeDocument {
		return nil, docerr.New(docerr.CategoryValidation,
			"only DOCUMENT provenance records may have zero parents")
	}

	parentIDsJSON, err := json.Marshal(r.ParentIDs)
	if err != nil {
		return nil, err
	}
	chainPathJSON, err := json.Marshal(chainPath)
	if err != nil {
		return nil, err
	}
	var paramsJSON string
	if r.ProcessingParams != nil {
		b, err := json.Marshal(r.ProcessingParams)
		if err != nil {
			return nil, err
		}
		paramsJSON = string(b)
	}

	row := store.ProvenanceRecord{
		Type:             string(r.Type),
		SourceType:       r.SourceType,
		RootDocumentID:   r.RootDocumentID,
		ContentHash:      r.ContentHash,
		InputHash:        r.InputHash,
		FileHash:         r.FileHash,
		Processor:        r.Processor,
		ProcessorVersion: r.ProcessorVersion,
		ProcessingParams: paramsJSON,
		DurationMS:       r.DurationMS,
		QualityScore:     r.QualityScore,
		ParentIDs:        string(parentIDsJSON),
		ChainDepth:       chainDepth,
		ChainPath:        string(chainPathJSON),
	}

	id, err := t.store.InsertProvenanceRecord(ctx, row)
	if err != nil {
		return nil, docerr.Wrap(docerr.CategoryInternal, "inserting provenance record", err)
	}
	return t.store.GetProvenanceRecord(ctx, id)
}

// Get returns a single provenance record by id.
func (t *Tracker) Get(ctx context.Context, id int64) (*store.ProvenanceRecord, error) {
	r, err := t.store.GetProvenanceRecord(ctx, id)
	if err != nil {
		return nil, docerr.Wrap(docerr.CategoryProvenanceNotFound, "provenance record not found", err)
	}
	return r, nil
}

// GetChain walks a record's parents back to its root DOCUMENT,
// returning records ordered root-first.
func (t *Tracker) GetChain(ctx context.Context, id int64) ([]store.ProvenanceRecord, error) {
	var chain []store.ProvenanceRecord
	cur, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for {
		chain = append([]store.ProvenanceRecord{*cur}, chain...)
		var parentIDs []int64
		if err := json.Unmarshal([]byte(cur.ParentIDs), &parentIDs); err != nil {
			return nil, err
		}
		if len(parentIDs) == 0 {
			break
		}
		// Follow the first parent; multi-parent chains fan in but the
		// principal lineage is the first listed parent by convention.
		cur, err = t.Get(ctx, parentIDs[0])
		if err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// GetSubtree returns every provenance record anchored to a root
// document, in chain_depth order.
func (t *Tracker) GetSubtree(ctx context.Context, rootDocumentID int64) ([]store.ProvenanceRecord, error) {
	return t.store.ListProvenanceByRoot(ctx, rootDocumentID)
}

// GetChildren returns every record whose parent_ids includes id.
func (t *Tracker) GetChildren(ctx context.Context, id int64) ([]store.ProvenanceRecord, error) {
	r, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	root := r.RootDocumentID
	if root == nil {
		root = &r.ID
	}
	all, err := t.store.ListProvenanceByRoot(ctx, *root)
	if err != nil {
		return nil, err
	}
	var children []store.ProvenanceRecord
	for _, rec := range all {
		var parentIDs []int64
		if err := json.Unmarshal([]byte(rec.ParentIDs), &parentIDs); err != nil {
			continue
		}
		for _, pid := range parentIDs {
			if pid == id {
				children = append(children, rec)
				break
			}
		}
	}
	return children, nil
}

// VerifyOptions controls which invariants Verify checks.
type VerifyOptions struct {
	VerifyContent bool
	VerifyChain   bool
}

// StepResult is the per-record outcome of a Verify call.
type StepResult struct {
	RecordID      int64  `json:"record_id"`
	Type          string `json:"type"`
	OK            bool   `json:"ok"`
	ExpectedHash  string `json:"expected_hash,omitempty"`
	ComputedHash  string `json:"computed_hash,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// ArtifactHasher recomputes the current content hash of the artifact
// a provenance record of a given type points at. The pipeline wires
// this to store accessors; provenance itself has no opinion on how
// artifacts are stored.
type ArtifactHasher func(ctx context.Context, r store.ProvenanceRecord) (string, error)

// Verify recomputes content hashes along id's chain and asserts the
// input_hash/content_hash linkage the DAG invariant requires. A
// hash mismatch is reported, never auto-repaired.
func (t *Tracker) Verify(ctx context.Context, id int64, opts VerifyOptions, hasher ArtifactHasher) ([]StepResult, error) {
	chain, err := t.GetChain(ctx, id)
	if err != nil {
		return nil, err
	}

	var results []StepResult
	for i, rec := range chain {
		res := StepResult{RecordID: rec.ID, Type: rec.Type, OK: true}

		if opts.VerifyContent && hasher != nil {
			computed, err := hasher(ctx, rec)
			if err != nil {
				res.OK = false
				res.FailureReason = err.Error()
			} else {
				res.ExpectedHash = rec.ContentHash
				res.ComputedHash = computed
				if !hash.Equal(rec.ContentHash, computed) {
					res.OK = false
					res.FailureReason = "INTEGRITY_VERIFICATION_FAILED"
				}
			}
		}

		if opts.VerifyChain && i > 0 {
			parent := chain[i-1]
			principal := rec.InputHash
			if principal == "" {
				principal = rec.FileHash
			}
			if principal != "" && !hash.Equal(principal, parent.ContentHash) {
				res.OK = false
				if res.FailureReason == "" {
					res.FailureReason = "PROVENANCE_CHAIN_BROKEN"
				}
			}
		}

		results = append(results, res)
	}
	return results, nil
}
