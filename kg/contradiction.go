package kg

import (
	"context"
	"sort"
	"strings"

	"github.com/brunobiangulo/docintel/store"
)

// Severity ranks how strongly two documents disagree about the same
// relationship.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Contradiction is a single detected disagreement between two
// documents' claims about the same entity relationship.
type Contradiction struct {
	EntityNodeID     int64
	RelationshipType string
	TargetA          string
	TargetB          string
	DocumentIDA      int64
	DocumentIDB      int64
	Severity         Severity
}

// amountRelationTypes are relationship types whose target is a
// monetary amount; a numeric mismatch here is a HIGH severity
// contradiction (e.g. two invoices disagreeing on a total).
var amountRelationTypes = map[string]bool{
	"amount_owed": true,
	"total":       true,
	"balance":     true,
	"payment":     true,
}

// dateRelationTypes get MEDIUM severity on mismatch: dates drift
// across drafts more often than amounts do, but still matter.
var dateRelationTypes = map[string]bool{
	"date":     true,
	"deadline": true,
	"due_date": true,
}

// DetectContradictions compares edges touching nodeID sourced from
// docA and docB and flags relationship types where the two documents
// claim different targets. Results are deduplicated by
// (entity, rel_type, target1, target2, severity) and sorted
// HIGH -> MEDIUM -> LOW.
func DetectContradictions(ctx context.Context, s *store.Store, nodeID, docA, docB int64) ([]Contradiction, error) {
	edges, err := s.GetEdgesForNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	byType := map[string][]store.KnowledgeEdge{}
	for _, e := range edges {
		if !containsDocID(e.DocumentIDs, docA) && !containsDocID(e.DocumentIDs, docB) {
			continue
		}
		byType[e.RelationshipType] = append(byType[e.RelationshipType], e)
	}

	seen := map[string]bool{}
	var out []Contradiction

	for relType, group := range byType {
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if !edgeDisagrees(a, b, nodeID) {
					continue
				}
				sev := severityFor(relType)
				targetA, targetB := edgeTargetLabel(a, nodeID), edgeTargetLabel(b, nodeID)
				key := dedupKey(nodeID, relType, targetA, targetB, sev)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, Contradiction{
					EntityNodeID:     nodeID,
					RelationshipType: relType,
					TargetA:          targetA,
					TargetB:          targetB,
					DocumentIDA:      docA,
					DocumentIDB:      docB,
					Severity:         sev,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return severityRank(out[i].Severity) < severityRank(out[j].Severity) })
	return out, nil
}

func edgeDisagrees(a, b store.KnowledgeEdge, nodeID int64) bool {
	return edgeTargetLabel(a, nodeID) != edgeTargetLabel(b, nodeID)
}

func edgeTargetLabel(e store.KnowledgeEdge, fromNode int64) string {
	other := e.TargetNodeID
	if e.TargetNodeID == fromNode {
		other = e.SourceNodeID
	}
	return itoa(other)
}

func severityFor(relType string) Severity {
	if amountRelationTypes[relType] {
		return SeverityHigh
	}
	if dateRelationTypes[relType] {
		return SeverityMedium
	}
	return SeverityLow
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

func dedupKey(nodeID int64, relType, targetA, targetB string, sev Severity) string {
	if targetA > targetB {
		targetA, targetB = targetB, targetA
	}
	return itoa(nodeID) + "|" + relType + "|" + targetA + "|" + targetB + "|" + string(sev)
}

func containsDocID(documentIDsJSON string, docID int64) bool {
	return strings.Contains(documentIDsJSON, itoa(docID))
}
