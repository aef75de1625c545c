package search

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/brunobiangulo/docintel/store"
)

// staticSynonyms is a small domain-agnostic synonym table consulted
// before any corpus-learned expansion.
var staticSynonyms = map[string][]string{
	"agreement":    {"contract"},
	"contract":     {"agreement"},
	"plaintiff":    {"claimant"},
	"defendant":    {"respondent"},
	"amount":       {"sum", "total"},
	"physician":    {"doctor"},
	"medication":   {"drug", "prescription"},
	"organization": {"company", "entity"},
}

// Cluster is a corpus-learned group of co-occurring terms strong
// enough to expand a query with, above the coherence floor.
type Cluster struct {
	Terms          []string
	CoherenceScore float64
}

const coherenceFloor = 0.3
const maxExpansionTermsPerCluster = 3

// ExpandQuery appends static synonyms and, for terms participating in
// a sufficiently coherent corpus cluster, up to 3 cluster terms per
// match. The original query terms always come first.
func ExpandQuery(query string, clusters []Cluster) []string {
	terms := ExtractQueryTerms(query)
	seen := map[string]bool{}
	expanded := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			expanded = append(expanded, t)
		}
		for _, syn := range staticSynonyms[t] {
			if !seen[syn] {
				seen[syn] = true
				expanded = append(expanded, syn)
			}
		}
	}

	for _, t := range terms {
		for _, c := range clusters {
			if c.CoherenceScore <= coherenceFloor {
				continue
			}
			if !containsTerm(c.Terms, t) {
				continue
			}
			added := 0
			for _, ct := range c.Terms {
				if added >= maxExpansionTermsPerCluster {
					break
				}
				if ct == t || seen[ct] {
					continue
				}
				seen[ct] = true
				expanded = append(expanded, ct)
				added++
			}
		}
	}

	return expanded
}

func containsTerm(terms []string, t string) bool {
	for _, x := range terms {
		if x == t {
			return true
		}
	}
	return false
}

// LearnClusters derives co-occurrence clusters from a corpus's
// resolved entities: canonical nodes mentioned across the same set of
// documents form a cluster, scored by how tightly their document sets
// overlap (Jaccard over document IDs).
func LearnClusters(ctx context.Context, s *store.Store) ([]Cluster, error) {
	entities, err := s.AllEntities(ctx)
	if err != nil {
		return nil, err
	}

	docsByTerm := map[string]map[int64]bool{}
	for _, ent := range entities {
		node, err := s.GetNodeForEntity(ctx, ent.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		set, ok := docsByTerm[node.NormalizedName]
		if !ok {
			set = map[int64]bool{}
			docsByTerm[node.NormalizedName] = set
		}
		set[ent.DocumentID] = true
	}

	terms := make([]string, 0, len(docsByTerm))
	for t := range docsByTerm {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	var clusters []Cluster
	used := map[string]bool{}
	for i, a := range terms {
		if used[a] {
			continue
		}
		group := []string{a}
		for _, b := range terms[i+1:] {
			if used[b] {
				continue
			}
			score := jaccard(docsByTerm[a], docsByTerm[b])
			if score > coherenceFloor {
				group = append(group, b)
				used[b] = true
			}
		}
		if len(group) > 1 {
			used[a] = true
			clusters = append(clusters, Cluster{Terms: group, CoherenceScore: clusterCoherence(docsByTerm, group)})
		}
	}
	return clusters, nil
}

func jaccard(a, b map[int64]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func clusterCoherence(docsByTerm map[string]map[int64]bool, terms []string) float64 {
	if len(terms) < 2 {
		return 0
	}
	total := 0.0
	pairs := 0
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			total += jaccard(docsByTerm[terms[i]], docsByTerm[terms[j]])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}
