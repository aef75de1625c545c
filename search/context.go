package search

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/docintel/store"
)

// EntityFact is a single (entity, relationship, target) fact pulled
// from the knowledge graph for inclusion in assembled context.
type EntityFact struct {
	Source string
	Rel    string
	Target string
	Weight float64
}

// AssembleContext builds a RAG prompt context from ranked excerpts and
// knowledge-graph facts, in three sections: Excerpts, Entity Context,
// Entity Relationships. Sections are filled in priority order and the
// lowest-priority sections are truncated first when maxChars is
// exceeded.
func AssembleContext(results []store.RetrievalResult, entityNames []string, facts []EntityFact, maxChars int) string {
	excerpts := renderExcerpts(results, entityNames)
	entityCtx := renderEntityContext(entityNames)
	relationships := renderRelationships(facts)

	sections := []string{excerpts, entityCtx, relationships}
	if maxChars <= 0 {
		return strings.Join(nonEmpty(sections), "\n\n")
	}

	// Truncate lowest-priority (last) sections first.
	budget := maxChars
	kept := make([]string, len(sections))
	for i := 0; i < len(sections); i++ {
		if sections[i] == "" {
			continue
		}
		if len(sections[i]) <= budget {
			kept[i] = sections[i]
			budget -= len(sections[i])
		} else if budget > 0 {
			kept[i] = sections[i][:budget] + "\n...(truncated)"
			budget = 0
		}
	}
	return strings.Join(nonEmpty(kept), "\n\n")
}

func renderExcerpts(results []store.RetrievalResult, relevanceTerms []string) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Excerpts\n")
	for i, r := range results {
		page := ""
		if r.PageNumber != nil {
			page = fmt.Sprintf(" p.%d", *r.PageNumber)
		}
		fmt.Fprintf(&b, "[%d] %s%s: %s\n", i+1, r.Filename, page, ExtractSnippet(r.Text, relevanceTerms))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEntityContext(names []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Entity Context\n")
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRelationships(facts []EntityFact) string {
	if len(facts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Entity Relationships\n")
	for _, f := range facts {
		fmt.Fprintf(&b, "- %s %s %s (weight %.2f)\n", f.Source, f.Rel, f.Target, f.Weight)
	}
	return strings.TrimRight(b.String(), "\n")
}

func nonEmpty(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
