// Package comparison diffs two documents at three levels — raw text,
// structure, and entity sets — and cross-references the knowledge
// graph for contradictions between their claims. It leans on
// sergi/go-diff the way intelligencedev-manifold's file_editor package
// uses it for patch preview, rather than hand-rolling an LCS diff.
package comparison

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/brunobiangulo/docintel/kg"
	"github.com/brunobiangulo/docintel/store"
)

// Engine compares documents already present in a store.
type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Compare diffs docA against docB, caching the result so a repeat
// comparison of the same pair is a lookup instead of a recompute.
func (e *Engine) Compare(ctx context.Context, docA, docB int64) (*store.Comparison, error) {
	if cached, err := e.store.FindComparison(ctx, docA, docB); err == nil {
		return cached, nil
	}

	start := time.Now()

	textA, err := e.store.GetLatestOCRResult(ctx, docA)
	if err != nil {
		return nil, fmt.Errorf("loading document A text: %w", err)
	}
	textB, err := e.store.GetLatestOCRResult(ctx, docB)
	if err != nil {
		return nil, fmt.Errorf("loading document B text: %w", err)
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(textA.ExtractedText, textB.ExtractedText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	textDiff := dmp.DiffPrettyText(diffs)
	similarity := similarityRatio(dmp, diffs, textA.ExtractedText, textB.ExtractedText)

	structuralDiff, err := e.structuralDiff(ctx, docA, docB)
	if err != nil {
		return nil, err
	}

	entityDiff, contradictions, err := e.entityDiff(ctx, docA, docB)
	if err != nil {
		return nil, err
	}

	c := store.Comparison{
		DocumentIDA:     docA,
		DocumentIDB:     docB,
		SimilarityRatio: similarity,
		TextDiff:        textDiff,
		StructuralDiff:  structuralDiff,
		EntityDiff:      entityDiff,
		Summary:         summarize(similarity, contradictions),
		ContentHash:     pairHash(textA.ContentHash, textB.ContentHash),
		DurationMS:      time.Since(start).Milliseconds(),
	}

	id, err := e.store.InsertComparison(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return &c, nil
}

// similarityRatio expresses the diff as a 0..1 fraction of characters
// in common, the way dmp.DiffLevenshtein is normally interpreted.
func similarityRatio(dmp *diffmatchpatch.DiffMatchPatch, diffs []diffmatchpatch.Diff, a, b string) float64 {
	editDistance := dmp.DiffLevenshtein(diffs)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1.0
	}
	ratio := 1.0 - float64(editDistance)/float64(longest)
	if ratio < 0 {
		ratio = 0
	}
	return ratio
}

type structuralSummary struct {
	PageCountA  int `json:"page_count_a"`
	PageCountB  int `json:"page_count_b"`
	ChunkCountA int `json:"chunk_count_a"`
	ChunkCountB int `json:"chunk_count_b"`
	ImageCountA int `json:"image_count_a"`
	ImageCountB int `json:"image_count_b"`
}

func (e *Engine) structuralDiff(ctx context.Context, docA, docB int64) (string, error) {
	chunksA, err := e.store.GetChunksByDocument(ctx, docA)
	if err != nil {
		return "", err
	}
	chunksB, err := e.store.GetChunksByDocument(ctx, docB)
	if err != nil {
		return "", err
	}
	imagesA, err := e.store.GetImagesByDocument(ctx, docA)
	if err != nil {
		return "", err
	}
	imagesB, err := e.store.GetImagesByDocument(ctx, docB)
	if err != nil {
		return "", err
	}
	docAInfo, err := e.store.GetDocument(ctx, docA)
	if err != nil {
		return "", err
	}
	docBInfo, err := e.store.GetDocument(ctx, docB)
	if err != nil {
		return "", err
	}

	s := structuralSummary{
		ChunkCountA: len(chunksA),
		ChunkCountB: len(chunksB),
		ImageCountA: len(imagesA),
		ImageCountB: len(imagesB),
	}
	if docAInfo.PageCount != nil {
		s.PageCountA = *docAInfo.PageCount
	}
	if docBInfo.PageCount != nil {
		s.PageCountB = *docBInfo.PageCount
	}

	out, err := json.Marshal(s)
	return string(out), err
}

type entityDiffSummary struct {
	OnlyInA         []string             `json:"only_in_a"`
	OnlyInB         []string             `json:"only_in_b"`
	Shared          []string             `json:"shared"`
	Contradictions  []kg.Contradiction   `json:"contradictions,omitempty"`
}

func (e *Engine) entityDiff(ctx context.Context, docA, docB int64) (string, []kg.Contradiction, error) {
	entitiesA, err := e.store.GetEntitiesByDocument(ctx, docA)
	if err != nil {
		return "", nil, err
	}
	entitiesB, err := e.store.GetEntitiesByDocument(ctx, docB)
	if err != nil {
		return "", nil, err
	}

	setA := map[string]bool{}
	for _, ent := range entitiesA {
		setA[ent.Type+"|"+ent.NormalizedText] = true
	}
	setB := map[string]bool{}
	for _, ent := range entitiesB {
		setB[ent.Type+"|"+ent.NormalizedText] = true
	}

	var onlyA, onlyB, shared []string
	for k := range setA {
		if setB[k] {
			shared = append(shared, k)
		} else {
			onlyA = append(onlyA, k)
		}
	}
	for k := range setB {
		if !setA[k] {
			onlyB = append(onlyB, k)
		}
	}
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	sort.Strings(shared)

	nodeIDs := map[int64]bool{}
	for _, ent := range entitiesA {
		if node, err := e.store.GetNodeForEntity(ctx, ent.ID); err == nil {
			nodeIDs[node.ID] = true
		}
	}

	var contradictions []kg.Contradiction
	for nodeID := range nodeIDs {
		found, err := kg.DetectContradictions(ctx, e.store, nodeID, docA, docB)
		if err != nil {
			return "", nil, err
		}
		contradictions = append(contradictions, found...)
	}
	sort.Slice(contradictions, func(i, j int) bool {
		return severityWeight(contradictions[i].Severity) < severityWeight(contradictions[j].Severity)
	})

	out, err := json.Marshal(entityDiffSummary{
		OnlyInA:        onlyA,
		OnlyInB:        onlyB,
		Shared:         shared,
		Contradictions: contradictions,
	})
	return string(out), contradictions, err
}

func severityWeight(s kg.Severity) int {
	switch s {
	case kg.SeverityHigh:
		return 0
	case kg.SeverityMedium:
		return 1
	default:
		return 2
	}
}

func summarize(similarity float64, contradictions []kg.Contradiction) string {
	high, medium, low := 0, 0, 0
	for _, c := range contradictions {
		switch c.Severity {
		case kg.SeverityHigh:
			high++
		case kg.SeverityMedium:
			medium++
		default:
			low++
		}
	}
	if len(contradictions) == 0 {
		return fmt.Sprintf("%.0f%% textually similar, no contradictions detected", similarity*100)
	}
	return fmt.Sprintf("%.0f%% textually similar, %d high / %d medium / %d low severity contradictions",
		similarity*100, high, medium, low)
}

func pairHash(hashA, hashB string) string {
	if hashA > hashB {
		hashA, hashB = hashB, hashA
	}
	sum := sha256.Sum256([]byte(hashA + "|" + hashB))
	return hex.EncodeToString(sum[:])
}
