// Package chunker splits OCR text into overlapping character-offset
// windows. All three variants (Fixed, PageAware, AtomicAware) are pure
// functions over plain offsets so they can be tested without a store.
package chunker

import "sort"

// DefaultSize and DefaultOverlapRatio match spec defaults: 2000
// character windows with a 10% overlap.
const (
	DefaultSize         = 2000
	DefaultOverlapRatio = 0.10
)

// Window is one emitted chunk before it's persisted: half-open
// character offsets into the source text plus overlap metadata.
type Window struct {
	CharacterStart      int
	CharacterEnd        int
	OverlapWithPrevious int
	OverlapWithNext     int
	IsAtomic            bool
}

// Fixed splits text of length L into overlapping windows of size S
// with overlap O = round(S*r). Step K = S - O. No trailing window of
// length <= O is emitted.
func Fixed(length, size int, overlapRatio float64) []Window {
	if size <= 0 {
		size = DefaultSize
	}
	overlap := int(float64(size)*overlapRatio + 0.5)
	if overlap >= size {
		overlap = size - 1
	}
	step := size - overlap
	if step <= 0 {
		step = 1
	}

	var windows []Window
	for start := 0; start < length; start += step {
		end := start + size
		if end > length {
			end = length
		}
		if start > 0 && end-start <= overlap {
			// Trailing remainder no bigger than the overlap itself
			// isn't worth emitting as its own chunk.
			break
		}
		windows = append(windows, Window{CharacterStart: start, CharacterEnd: end})
		if end == length {
			break
		}
	}

	for i := range windows {
		if i > 0 {
			windows[i].OverlapWithPrevious = overlap
		}
		if i < len(windows)-1 {
			windows[i].OverlapWithNext = overlap
		}
	}
	return windows
}

// PageRange is a page's [CharStart, CharEnd) span over the OCR text,
// as recorded in the page offsets table.
type PageRange struct {
	PageNumber int
	CharStart  int
	CharEnd    int
}

// PagedWindow is a Window stamped with the page it falls in.
type PagedWindow struct {
	Window
	PageNumber int
}

// PageAware chunks each page's span independently so a chunk never
// crosses a page boundary, using Fixed within each page.
func PageAware(pages []PageRange, size int, overlapRatio float64) []PagedWindow {
	var out []PagedWindow
	for _, p := range pages {
		pageLen := p.CharEnd - p.CharStart
		if pageLen <= 0 {
			continue
		}
		for _, w := range Fixed(pageLen, size, overlapRatio) {
			out = append(out, PagedWindow{
				Window: Window{
					CharacterStart:      p.CharStart + w.CharacterStart,
					CharacterEnd:        p.CharStart + w.CharacterEnd,
					OverlapWithPrevious: w.OverlapWithPrevious,
					OverlapWithNext:     w.OverlapWithNext,
				},
				PageNumber: p.PageNumber,
			})
		}
	}
	return out
}

// Region is an atomic span (Table, Code, Figure, TableGroup) that
// must never be split across a chunk boundary.
type Region struct {
	Start int
	End   int
}

// AtomicAware chunks text the way Fixed does, except a cut that would
// fall strictly inside a region is pushed out to the region's end; a
// region bigger than size becomes its own oversize chunk, IsAtomic true.
func AtomicAware(length, size int, overlapRatio float64, regions []Region) []Window {
	if size <= 0 {
		size = DefaultSize
	}
	overlap := int(float64(size)*overlapRatio + 0.5)
	if overlap >= size {
		overlap = size - 1
	}
	step := size - overlap
	if step <= 0 {
		step = 1
	}

	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	regionContaining := func(p int) (Region, bool) {
		for _, r := range sorted {
			if p > r.Start && p < r.End {
				return r, true
			}
		}
		return Region{}, false
	}

	var windows []Window
	cursor := 0
	for cursor < length {
		// An oversize region starting exactly at cursor becomes its
		// own atomic chunk.
		if r, ok := regionStartingAt(sorted, cursor); ok && r.End-r.Start > size {
			windows = append(windows, Window{CharacterStart: r.Start, CharacterEnd: r.End, IsAtomic: true})
			cursor = r.End
			continue
		}

		end := cursor + size
		if end > length {
			end = length
		}
		if r, ok := regionContaining(end); ok {
			end = r.End
		}
		if cursor > 0 && end-cursor <= overlap {
			break
		}

		windows = append(windows, Window{CharacterStart: cursor, CharacterEnd: end})
		if end >= length {
			break
		}

		next := end - overlap
		if next <= cursor {
			next = end
		}
		// Don't let the next window's start fall inside a region either.
		if r, ok := regionContaining(next); ok {
			next = r.Start
			if next <= cursor {
				next = end
			}
		}
		cursor = next
	}

	for i := range windows {
		if i > 0 {
			windows[i].OverlapWithPrevious = overlap
		}
		if i < len(windows)-1 {
			windows[i].OverlapWithNext = overlap
		}
	}
	return windows
}

func regionStartingAt(sorted []Region, p int) (Region, bool) {
	for _, r := range sorted {
		if r.Start == p {
			return r, true
		}
	}
	return Region{}, false
}

// Mention is the span shape BoundaryReport checks against chunk
// windows; it mirrors the fields entity.Mention carries without
// importing that package.
type Mention struct {
	ID             int64
	CharacterStart int
	CharacterEnd   int
}

// CrossingMention is a mention whose span straddles a chunk boundary.
type CrossingMention struct {
	Mention    Mention
	ChunkIndex int
}

// BoundaryReport flags mentions whose [start, end) spans a chunk
// boundary, for monitoring chunking quality against entity extraction.
func BoundaryReport(windows []Window, mentions []Mention) []CrossingMention {
	var crossings []CrossingMention
	for _, m := range mentions {
		for i, w := range windows {
			if m.CharacterStart >= w.CharacterStart && m.CharacterStart < w.CharacterEnd && m.CharacterEnd > w.CharacterEnd {
				crossings = append(crossings, CrossingMention{Mention: m, ChunkIndex: i})
				break
			}
		}
	}
	return crossings
}
