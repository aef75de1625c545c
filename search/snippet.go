package search

import (
	"strings"
	"unicode"
)

// snippetMaxLen bounds how much of a chunk's text ends up in an
// assembled excerpt once it's trimmed down to the sentences most
// relevant to the query terms.
const snippetMaxLen = 300

// ExtractSnippet returns the 1-2 sentences of text most relevant to
// queryTerms, falling back to the first snippetMaxLen characters when
// nothing scores above zero (e.g. the match came from the vector leg,
// not a literal term overlap).
func ExtractSnippet(text string, queryTerms []string) string {
	if len(text) <= snippetMaxLen {
		return text
	}
	terms := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		terms[strings.ToLower(t)] = true
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return text[:snippetMaxLen] + "..."
	}

	type scored struct {
		text  string
		score int
	}
	scoredSentences := make([]scored, len(sentences))
	for i, s := range sentences {
		overlap := 0
		for w := range significantWords(s) {
			if terms[w] {
				overlap++
			}
		}
		scoredSentences[i] = scored{text: s, score: overlap}
	}

	bestIdx := 0
	for i, s := range scoredSentences {
		if s.score > scoredSentences[bestIdx].score {
			bestIdx = i
		}
	}
	if scoredSentences[bestIdx].score == 0 {
		return text[:snippetMaxLen] + "..."
	}

	result := scoredSentences[bestIdx].text
	if len(result) < snippetMaxLen && len(scoredSentences) > 1 {
		candidateIdx, candidateScore := -1, 0
		for _, delta := range []int{1, -1} {
			adj := bestIdx + delta
			if adj >= 0 && adj < len(scoredSentences) && scoredSentences[adj].score > candidateScore {
				candidateScore = scoredSentences[adj].score
				candidateIdx = adj
			}
		}
		if candidateIdx >= 0 && candidateScore > 0 {
			combined := result + " " + scoredSentences[candidateIdx].text
			if candidateIdx < bestIdx {
				combined = scoredSentences[candidateIdx].text + " " + result
			}
			if len(combined) <= snippetMaxLen {
				result = combined
			}
		}
	}
	return result
}

func significantWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) >= 4 && !snippetStopWords[w] {
			words[w] = true
		}
	}
	return words
}

func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				if s := strings.TrimSpace(cur.String()); s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

var snippetStopWords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true,
	"have": true, "been": true, "were": true, "they": true,
	"their": true, "will": true, "would": true, "could": true,
	"should": true, "about": true, "which": true, "there": true,
	"these": true, "those": true, "then": true, "than": true,
	"them": true, "what": true, "when": true, "where": true,
	"your": true, "more": true, "some": true, "such": true,
	"only": true, "also": true, "very": true, "just": true,
	"into": true, "over": true, "each": true, "does": true,
	"most": true, "after": true, "before": true, "other": true,
	"being": true, "same": true, "both": true, "between": true,
}
