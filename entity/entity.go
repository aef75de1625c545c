// Package entity identifies typed named mentions in a document's
// chunks. It's a heuristic regex-based extractor in the style of the
// teacher's preExtractIdentifiers pre-pass, generalized from
// technical-identifier hints into full entity extraction since this
// repo has no LLM extraction stage of its own.
package entity

import (
	"regexp"
	"sort"
	"strings"

	"github.com/brunobiangulo/docintel/store"
)

var (
	reDate        = regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`)
	reAmount      = regexp.MustCompile(`\$\s?[\d,]+(?:\.\d{2})?|\b\d+(?:\.\d+)?\s?(?:USD|EUR|GBP)\b`)
	reCaseNumber  = regexp.MustCompile(`\b(?:No\.|Case\s+No\.?|Docket\s+No\.?)\s*[:#]?\s*[\w-]+\b`)
	reOrgSuffix   = regexp.MustCompile(`\b[A-Z][\w&.,'-]*(?:\s+[A-Z][\w&.,'-]*)*\s+(?:Inc|Corp|Corporation|LLC|Ltd|Company|Co|LLP|Group)\b\.?`)
	rePersonName  = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z]\.)?\s+[A-Z][a-z]+\b`)
	reLocation    = regexp.MustCompile(`\b[A-Z][a-z]+(?:,\s*[A-Z]{2})\b`)
	reMedication  = regexp.MustCompile(`\b[A-Z][a-z]+(?:mycin|cillin|azole|statin|pril|sartan|olol|dipine)\b`)
)

// Type is one of the spec's closed entity type set.
type Type string

const (
	TypePerson        Type = "person"
	TypeOrganization   Type = "organization"
	TypeLocation       Type = "location"
	TypeDate           Type = "date"
	TypeAmount         Type = "amount"
	TypeCaseNumber     Type = "case_number"
	TypeMedication     Type = "medication"
	TypeDiagnosis      Type = "diagnosis"
	TypeMedicalDevice  Type = "medical_device"
	TypeOther          Type = "other"
)

// Mention is a single occurrence of a candidate entity within a chunk.
type Mention struct {
	ChunkID        int64
	CharacterStart int
	CharacterEnd   int
	ContextSnippet string
}

// Candidate is a deduplicated (type, normalized) entity with every
// mention that produced it.
type Candidate struct {
	Type           Type
	RawText        string
	NormalizedText string
	Confidence     float64
	Mentions       []Mention
}

type pattern struct {
	typ        Type
	re         *regexp.Regexp
	confidence float64
}

var patterns = []pattern{
	{TypeDate, reDate, 0.9},
	{TypeAmount, reAmount, 0.85},
	{TypeCaseNumber, reCaseNumber, 0.85},
	{TypeMedication, reMedication, 0.6},
	{TypeOrganization, reOrgSuffix, 0.8},
	{TypeLocation, reLocation, 0.55},
	{TypePerson, rePersonName, 0.5},
}

// Extract scans a chunk's text for entity candidates, returning one
// Candidate per distinct (type, normalized) pair with the chunk's
// mentions attached. Multiple chunks should be merged by the caller
// on (type, normalized) to deduplicate across a whole document.
func Extract(chunk store.Chunk) []Candidate {
	byKey := map[string]*Candidate{}
	var order []string

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(chunk.Text, -1) {
			raw := chunk.Text[loc[0]:loc[1]]
			normalized := Normalize(raw)
			key := string(p.typ) + "|" + normalized

			c, ok := byKey[key]
			if !ok {
				c = &Candidate{Type: p.typ, RawText: raw, NormalizedText: normalized, Confidence: p.confidence}
				byKey[key] = c
				order = append(order, key)
			}

			c.Mentions = append(c.Mentions, Mention{
				ChunkID:        chunk.ID,
				CharacterStart: chunk.CharacterStart + loc[0],
				CharacterEnd:   chunk.CharacterStart + loc[1],
				ContextSnippet: contextWindow(chunk.Text, loc[0], loc[1], 40),
			})
		}
	}

	sort.Strings(order)
	candidates := make([]Candidate, 0, len(order))
	for _, k := range order {
		candidates = append(candidates, *byKey[k])
	}
	return candidates
}

// Normalize lowercases and trims an entity's raw text, the canonical
// form used for (type, normalized) deduplication and KG matching.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func contextWindow(text string, start, end, radius int) string {
	s := start - radius
	if s < 0 {
		s = 0
	}
	e := end + radius
	if e > len(text) {
		e = len(text)
	}
	return text[s:e]
}

// MergeByTypeAndNormalized deduplicates candidates from multiple
// chunks across a document, summing their mentions.
func MergeByTypeAndNormalized(candidates []Candidate) []Candidate {
	byKey := map[string]*Candidate{}
	var order []string
	for _, c := range candidates {
		key := string(c.Type) + "|" + c.NormalizedText
		existing, ok := byKey[key]
		if !ok {
			cc := c
			byKey[key] = &cc
			order = append(order, key)
			continue
		}
		existing.Mentions = append(existing.Mentions, c.Mentions...)
		if c.Confidence > existing.Confidence {
			existing.Confidence = c.Confidence
		}
	}
	sort.Strings(order)
	merged := make([]Candidate, 0, len(order))
	for _, k := range order {
		merged = append(merged, *byKey[k])
	}
	return merged
}
