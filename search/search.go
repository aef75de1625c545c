// Package search implements the retrieval operations over a document
// store: lexical BM25, dense semantic kNN, hybrid RRF fusion with a
// knowledge-graph entity boost, and RAG context assembly.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/brunobiangulo/docintel/backend"
	"github.com/brunobiangulo/docintel/config"
	"github.com/brunobiangulo/docintel/docerr"
	"github.com/brunobiangulo/docintel/store"
)

// Engine ties a store to an embedder and config for hybrid retrieval.
type Engine struct {
	store    *store.Store
	embedder backend.Embedder
	reranker backend.Reranker
	cfg      config.Config
}

func New(s *store.Store, embedder backend.Embedder, reranker backend.Reranker, cfg config.Config) *Engine {
	return &Engine{store: s, embedder: embedder, reranker: reranker, cfg: cfg}
}

// Options configures a single search call.
type Options struct {
	Limit           int
	DocumentID      *int64 // restrict to a single document when set
	SimilarityFloor float64 // minimum vector similarity to keep a semantic result, 0 = no floor
	Rerank          bool
}

func (o Options) withDefaults() Options {
	if o.Limit == 0 {
		o.Limit = 20
	}
	return o
}

// BM25 runs lexical search alone.
func (e *Engine) BM25(ctx context.Context, query string, opts Options) ([]store.RetrievalResult, error) {
	opts = opts.withDefaults()
	if len(strings.Fields(query)) == 0 {
		return nil, docerr.New(docerr.CategoryValidation, "query must contain at least one non-whitespace term")
	}
	ftsQuery := toFTSQuery(query)
	results, err := e.store.FTSSearch(ctx, ftsQuery, opts.Limit)
	if err != nil {
		return nil, err
	}
	return filterByDocument(results, opts.DocumentID), nil
}

// Semantic embeds the query and runs a dense kNN search.
func (e *Engine) Semantic(ctx context.Context, query string, opts Options) ([]store.RetrievalResult, error) {
	opts = opts.withDefaults()
	vectors, err := e.embedder.Embed(ctx, []string{query}, backend.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	results, err := e.store.VectorSearch(ctx, vectors[0], opts.Limit)
	if err != nil {
		return nil, err
	}
	results = filterByDocument(results, opts.DocumentID)
	if opts.SimilarityFloor > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Score >= opts.SimilarityFloor {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	return results, nil
}

// Hybrid runs BM25 and semantic search in parallel, fuses with RRF,
// boosts chunks mentioning entities matched in the query, and
// optionally reranks the top results.
func (e *Engine) Hybrid(ctx context.Context, query string, opts Options) ([]store.RetrievalResult, map[int64]ResultInfo, error) {
	opts = opts.withDefaults()
	if len(strings.Fields(query)) == 0 {
		return nil, nil, docerr.New(docerr.CategoryValidation, "query must contain at least one non-whitespace term")
	}

	bm25Ch := make(chan []store.RetrievalResult, 1)
	vecCh := make(chan []store.RetrievalResult, 1)
	errCh := make(chan error, 2)

	go func() {
		r, err := e.BM25(ctx, query, opts)
		if err != nil {
			errCh <- err
			bm25Ch <- nil
			return
		}
		errCh <- nil
		bm25Ch <- r
	}()
	go func() {
		r, err := e.Semantic(ctx, query, opts)
		if err != nil {
			errCh <- err
			vecCh <- nil
			return
		}
		errCh <- nil
		vecCh <- r
	}()

	bm25Results := <-bm25Ch
	vecResults := <-vecCh
	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if bm25Results == nil && vecResults == nil && firstErr != nil {
		return nil, nil, firstErr
	}

	k := e.cfg.RRFConstant
	if k == 0 {
		k = 60
	}
	fused, info := FuseRRF(bm25Results, vecResults, e.cfg.WeightBM25, e.cfg.WeightVector, k)

	boosted, err := e.entityBoostedChunks(ctx, query)
	if err == nil && len(boosted) > 0 {
		fused = ApplyEntityBoost(fused, boosted, e.cfg.EntityBoost)
	}

	if len(fused) > opts.Limit {
		fused = fused[:opts.Limit]
	}

	if opts.Rerank && e.reranker != nil {
		fused, err = e.rerank(ctx, query, fused)
		if err != nil {
			return nil, nil, err
		}
	}

	return fused, info, nil
}

// entityBoostedChunks finds entities whose normalized text contains a
// query term and returns the set of chunk ids where one of those
// entities is mentioned, used to give matching results a boost. The
// match is against per-document entities only; knowledge-node
// canonical names and aliases are not consulted.
func (e *Engine) entityBoostedChunks(ctx context.Context, query string) (map[int64]bool, error) {
	terms := ExtractQueryTerms(query)
	entities, err := e.store.SearchEntitiesByTerms(ctx, terms, 20)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}

	boosted := map[int64]bool{}
	for _, ent := range entities {
		mentions, err := e.store.GetMentionsByEntity(ctx, ent.ID)
		if err != nil {
			continue
		}
		for _, m := range mentions {
			boosted[m.ChunkID] = true
		}
	}
	return boosted, nil
}

func (e *Engine) rerank(ctx context.Context, query string, results []store.RetrievalResult) ([]store.RetrievalResult, error) {
	top := results
	if len(top) > 20 {
		top = top[:20]
	}
	candidates := make([]backend.RerankCandidate, len(top))
	for i, r := range top {
		candidates[i] = backend.RerankCandidate{ID: r.ChunkID, Text: r.Text}
	}
	scored, err := e.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	scoreByID := map[int64]float64{}
	for _, s := range scored {
		scoreByID[s.ID] = s.Score
	}
	out := make([]store.RetrievalResult, len(top))
	copy(out, top)
	for i := range out {
		if sc, ok := scoreByID[out[i].ChunkID]; ok {
			out[i].Score = sc * 10 // remap to a 0-10 scale
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out, nil
}

func filterByDocument(results []store.RetrievalResult, docID *int64) []store.RetrievalResult {
	if docID == nil {
		return results
	}
	out := results[:0]
	for _, r := range results {
		if r.DocumentID == *docID {
			out = append(out, r)
		}
	}
	return out
}

// toFTSQuery turns free text into an AND-joined FTS5 MATCH expression,
// quoting each whitespace-separated word (with any double quotes
// removed) so FTS5 operators in the input are matched as plain terms.
func toFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return query
	}
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, "") + `"`
	}
	return strings.Join(fields, " AND ")
}

// ExtractQueryTerms returns the query's lowercased whitespace-separated
// words in query order, for downstream matching (entity lookups,
// synonym expansion). The words are not sorted or deduplicated.
func ExtractQueryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	return fields
}
