package kg

import (
	"context"

	"github.com/brunobiangulo/docintel/store"
)

// CoOccurrence records two nodes mentioned together within a document,
// the unit of evidence edge upserts are built from.
type CoOccurrence struct {
	SourceNodeID int64
	TargetNodeID int64
	RelationType string
	DocumentID   int64
}

// UpsertCoOccurrences records co-occurrence edges for a document's
// resolved entities, normalizing the node pair so (A,B) and (B,A)
// always land on the same edge row, then renormalizes every edge
// weight incident to the touched nodes.
func UpsertCoOccurrences(ctx context.Context, s *store.Store, occs []CoOccurrence) error {
	touched := map[int64]bool{}
	for _, o := range occs {
		src, tgt := o.SourceNodeID, o.TargetNodeID
		if src > tgt {
			src, tgt = tgt, src
		}
		if src == tgt {
			continue
		}

		docs := "[" + itoa(o.DocumentID) + "]"
		if _, err := s.UpsertEdge(ctx, store.KnowledgeEdge{
			SourceNodeID:     src,
			TargetNodeID:     tgt,
			RelationshipType: o.RelationType,
			Weight:           1.0,
			EvidenceCount:    1,
			DocumentIDs:      docs,
		}); err != nil {
			return err
		}
		touched[src] = true
		touched[tgt] = true
	}

	for nodeID := range touched {
		if err := RenormalizeNodeEdges(ctx, s, nodeID); err != nil {
			return err
		}
	}
	return nil
}

// RenormalizeNodeEdges recomputes normalized_weight = weight / max(weight)
// across every edge incident to nodeID.
func RenormalizeNodeEdges(ctx context.Context, s *store.Store, nodeID int64) error {
	edges, err := s.GetEdgesForNode(ctx, nodeID)
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}

	maxWeight := 0.0
	for _, e := range edges {
		if e.Weight > maxWeight {
			maxWeight = e.Weight
		}
	}
	if maxWeight == 0 {
		return nil
	}

	for _, e := range edges {
		normalized := e.Weight / maxWeight
		if err := s.UpdateEdgeNormalizedWeight(ctx, e.ID, normalized); err != nil {
			return err
		}
	}
	return nil
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
