package search

import (
	"sort"

	"github.com/brunobiangulo/docintel/store"
)

// ResultInfo records which retrieval methods contributed to a fused
// result and at what rank, for callers that want a trace.
type ResultInfo struct {
	Methods  []string
	BM25Rank int
	VecRank  int
}

// FuseRRF combines BM25 and vector result lists with Reciprocal Rank
// Fusion: score(d) = weightBM25/(k+rankBM25(d)) + weightVector/(k+rankVector(d)).
// A result present in only one list still scores from that list alone.
func FuseRRF(bm25, vector []store.RetrievalResult, weightBM25, weightVector float64, k int) ([]store.RetrievalResult, map[int64]ResultInfo) {
	type entry struct {
		result store.RetrievalResult
		score  float64
		info   ResultInfo
	}
	fused := map[int64]*entry{}

	for rank, r := range bm25 {
		e, ok := fused[r.ChunkID]
		if !ok {
			e = &entry{result: r}
			fused[r.ChunkID] = e
		}
		e.score += weightBM25 / float64(k+rank+1)
		e.info.Methods = append(e.info.Methods, "bm25")
		e.info.BM25Rank = rank + 1
	}

	for rank, r := range vector {
		e, ok := fused[r.ChunkID]
		if !ok {
			e = &entry{result: r}
			fused[r.ChunkID] = e
		}
		e.score += weightVector / float64(k+rank+1)
		e.info.Methods = append(e.info.Methods, "vector")
		e.info.VecRank = rank + 1
	}

	entries := make([]*entry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].score > entries[j].score })

	results := make([]store.RetrievalResult, len(entries))
	info := make(map[int64]ResultInfo, len(entries))
	for i, e := range entries {
		results[i] = e.result
		results[i].Score = e.score
		info[e.result.ChunkID] = e.info
	}
	return results, info
}

// ApplyEntityBoost raises the score of results whose chunk is among
// boostedChunkIDs by boost, additively, after RRF fusion.
func ApplyEntityBoost(results []store.RetrievalResult, boostedChunkIDs map[int64]bool, boost float64) []store.RetrievalResult {
	if len(boostedChunkIDs) == 0 || boost == 0 {
		return results
	}
	out := make([]store.RetrievalResult, len(results))
	copy(out, results)
	for i := range out {
		if boostedChunkIDs[out[i].ChunkID] {
			out[i].Score += boost
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
