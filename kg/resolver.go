// Package kg resolves per-document entity mentions onto canonical
// cross-document knowledge nodes and maintains the weighted edges
// between them.
package kg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/brunobiangulo/docintel/config"
	"github.com/brunobiangulo/docintel/store"
)

// Resolver links entities to knowledge_nodes, creating new nodes when
// no existing candidate clears its type's threshold.
type Resolver struct {
	store      *store.Store
	thresholds config.Config
}

func NewResolver(s *store.Store, cfg config.Config) *Resolver {
	return &Resolver{store: s, thresholds: cfg}
}

// Resolve links a single entity to a knowledge node, creating one if
// no existing candidate of the same type clears its acceptance
// threshold. Returns the resolved node id.
func (r *Resolver) Resolve(ctx context.Context, e store.Entity, mentionCount int) (int64, error) {
	candidates, err := r.store.FindNodesByType(ctx, e.Type)
	if err != nil {
		return 0, err
	}

	threshold := r.thresholds.Threshold(e.Type)
	var best *store.KnowledgeNode
	var bestScore float64

	for i := range candidates {
		score := Score(e.Type, e.NormalizedText, candidates[i].NormalizedName)
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}

	var nodeID int64
	isNewLinkForDoc := false
	if best != nil && bestScore >= threshold {
		nodeID = best.ID
	} else {
		id, err := r.store.InsertNode(ctx, store.KnowledgeNode{
			Type:           e.Type,
			CanonicalName:  e.RawText,
			NormalizedName: e.NormalizedText,
			DocumentCount:  0,
			MentionCount:   0,
			AvgConfidence:  e.Confidence,
		})
		if err != nil {
			return 0, err
		}
		nodeID = id
		isNewLinkForDoc = true
	}

	_, err = r.store.GetNodeForEntity(ctx, e.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		isNewLinkForDoc = true
	}

	method := "exact"
	if bestScore < 1.0 {
		method = "fuzzy"
	}
	if _, err := r.store.LinkNodeEntity(ctx, store.NodeEntityLink{
		NodeID:           nodeID,
		EntityID:         e.ID,
		SimilarityScore:  bestScore,
		ResolutionMethod: method,
	}); err != nil {
		return 0, err
	}

	node, err := r.store.GetNode(ctx, nodeID)
	if err != nil {
		return 0, err
	}
	docCount := node.DocumentCount
	if isNewLinkForDoc {
		docCount++
	}
	newMentionCount := node.MentionCount + mentionCount
	n := float64(docCount)
	newAvgConf := node.AvgConfidence
	if n > 0 {
		newAvgConf = (node.AvgConfidence*(n-1) + e.Confidence) / n
	}
	if err := r.store.UpdateNodeStats(ctx, nodeID, docCount, newMentionCount, newAvgConf, node.Aliases); err != nil {
		return 0, err
	}

	return nodeID, nil
}

// Score dispatches to the matching strategy appropriate for an
// entity type, per spec §4.6: exact match, Sørensen-Dice, initial
// expansion, abbreviation expansion, case-number/amount/location
// handling.
func Score(entityType, a, b string) float64 {
	a, b = strings.TrimSpace(strings.ToLower(a)), strings.TrimSpace(strings.ToLower(b))
	if a == b {
		return 1.0
	}

	switch entityType {
	case "organization":
		if ExpandAbbreviation(a) == ExpandAbbreviation(b) {
			return 0.97
		}
	case "person":
		if InitialExpansionMatch(a, b) {
			return 0.95
		}
	case "case_number":
		if NormalizeCaseNumber(a) == NormalizeCaseNumber(b) {
			return 0.99
		}
		return 0.0
	case "amount":
		if amountsEqualWithinTolerance(a, b, 0.01) {
			return 0.98
		}
		return 0.0
	case "location":
		if strings.Contains(a, b) || strings.Contains(b, a) {
			return 0.9
		}
	}

	return SorensenDice(a, b)
}

// SorensenDice computes character-bigram Sørensen-Dice similarity:
// 2*|A∩B| / (|A|+|B|). Strings shorter than 2 chars return 0.0 unless
// identical (handled by the exact-match short-circuit in Score).
func SorensenDice(a, b string) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 0.0
	}

	bigramsA := bigramMultiset(a)
	bigramsB := bigramMultiset(b)

	intersection := 0
	for bg, countA := range bigramsA {
		if countB, ok := bigramsB[bg]; ok {
			if countA < countB {
				intersection += countA
			} else {
				intersection += countB
			}
		}
	}

	total := sumCounts(bigramsA) + sumCounts(bigramsB)
	if total == 0 {
		return 0.0
	}
	return 2 * float64(intersection) / float64(total)
}

func bigramMultiset(s string) map[string]int {
	runes := []rune(s)
	m := map[string]int{}
	for i := 0; i+1 < len(runes); i++ {
		m[string(runes[i:i+2])]++
	}
	return m
}

func sumCounts(m map[string]int) int {
	total := 0
	for _, c := range m {
		total += c
	}
	return total
}

// InitialExpansionMatch reports whether a and b could be the same
// person name with one written using an initial ("J. Smith" vs
// "John Smith"): same last token, and first tokens agree on the
// shared initial.
func InitialExpansionMatch(a, b string) bool {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	if ta[len(ta)-1] != tb[len(tb)-1] {
		return false
	}
	fa := strings.TrimRight(ta[0], ".")
	fb := strings.TrimRight(tb[0], ".")
	if fa == fb {
		return true
	}
	if len(fa) == 1 && strings.HasPrefix(fb, fa) {
		return true
	}
	if len(fb) == 1 && strings.HasPrefix(fa, fb) {
		return true
	}
	return false
}

var orgAbbreviations = map[string]string{
	"corp.":  "corporation",
	"corp":   "corporation",
	"inc.":   "incorporated",
	"inc":    "incorporated",
	"llc":    "limited liability company",
	"ltd.":   "limited",
	"ltd":    "limited",
	"co.":    "company",
	"co":     "company",
	"llp":    "limited liability partnership",
}

// ExpandAbbreviation expands common organization-suffix abbreviations
// so "Acme Corp." and "Acme Corporation" normalize to the same form.
func ExpandAbbreviation(s string) string {
	tokens := strings.Fields(s)
	for i, t := range tokens {
		if expanded, ok := orgAbbreviations[strings.ToLower(t)]; ok {
			tokens[i] = expanded
		}
	}
	return strings.Join(tokens, " ")
}

// NormalizeCaseNumber strips punctuation/prefixes so "No. 24-CV-001"
// and "Case No: 24-CV-001" compare equal.
func NormalizeCaseNumber(s string) string {
	s = strings.ToLower(s)
	for _, prefix := range []string{"case no.", "case no", "docket no.", "docket no", "no."} {
		s = strings.TrimPrefix(s, prefix)
	}
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == ':' || r == '#' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func amountsEqualWithinTolerance(a, b string, tolerancePct float64) bool {
	na, ok1 := parseAmount(a)
	nb, ok2 := parseAmount(b)
	if !ok1 || !ok2 || nb == 0 {
		return false
	}
	diff := na - nb
	if diff < 0 {
		diff = -diff
	}
	return diff/nb <= tolerancePct
}

func parseAmount(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	var v float64
	var frac float64 = 1
	seenDot := false
	for _, r := range b.String() {
		if r == '.' {
			seenDot = true
			continue
		}
		d := float64(r - '0')
		if seenDot {
			frac /= 10
			v += d * frac
		} else {
			v = v*10 + d
		}
	}
	return v, true
}
