package chunker

import "testing"

func TestFixedBasic(t *testing.T) {
	windows := Fixed(100, 40, 0.10)
	if len(windows) == 0 {
		t.Fatal("expected at least one window")
	}
	if windows[0].CharacterStart != 0 {
		t.Fatalf("expected first window to start at 0, got %d", windows[0].CharacterStart)
	}
	last := windows[len(windows)-1]
	if last.CharacterEnd != 100 {
		t.Fatalf("expected last window to reach length, got %d", last.CharacterEnd)
	}
}

func TestFixedNoTrailingOverlapOnlyTail(t *testing.T) {
	// size=40, overlap=4, step=36. length=76 -> windows [0,40) then
	// [36,76) exactly reaches length, no short tail.
	windows := Fixed(76, 40, 0.10)
	for _, w := range windows {
		length := w.CharacterEnd - w.CharacterStart
		if length <= 4 && w.CharacterStart != 0 {
			t.Fatalf("found trailing window no bigger than overlap: %+v", w)
		}
	}
}

func TestFixedOverlapFields(t *testing.T) {
	windows := Fixed(100, 40, 0.10)
	if len(windows) < 2 {
		t.Fatal("need at least 2 windows for this test")
	}
	if windows[0].OverlapWithPrevious != 0 {
		t.Errorf("first window should have no overlap with previous")
	}
	if windows[len(windows)-1].OverlapWithNext != 0 {
		t.Errorf("last window should have no overlap with next")
	}
	if windows[0].OverlapWithNext == 0 {
		t.Errorf("expected non-zero overlap with next for first window")
	}
}

func TestFixedContiguity(t *testing.T) {
	windows := Fixed(500, 100, 0.10)
	for i := 1; i < len(windows); i++ {
		gotOverlap := windows[i-1].CharacterEnd - windows[i].CharacterStart
		if gotOverlap != windows[i-1].OverlapWithNext {
			t.Errorf("window %d: end-start gap %d != recorded overlap %d", i, gotOverlap, windows[i-1].OverlapWithNext)
		}
	}
}

func TestPageAwareNeverCrossesPageBoundary(t *testing.T) {
	pages := []PageRange{
		{PageNumber: 1, CharStart: 0, CharEnd: 150},
		{PageNumber: 2, CharStart: 150, CharEnd: 300},
	}
	windows := PageAware(pages, 100, 0.10)
	for _, w := range windows {
		if w.CharacterStart < 150 && w.CharacterEnd > 150 {
			t.Fatalf("window crosses page boundary: %+v", w)
		}
	}
}

func TestPageAwareSetsPageNumber(t *testing.T) {
	pages := []PageRange{{PageNumber: 7, CharStart: 0, CharEnd: 50}}
	windows := PageAware(pages, 100, 0.10)
	for _, w := range windows {
		if w.PageNumber != 7 {
			t.Fatalf("expected page number 7, got %d", w.PageNumber)
		}
	}
}

func TestAtomicAwareExtendsAroundRegion(t *testing.T) {
	// Region [30, 60) would otherwise be split by a cut around 40.
	windows := AtomicAware(200, 40, 0.10, []Region{{Start: 30, End: 60}})
	for _, w := range windows {
		if w.CharacterEnd > 30 && w.CharacterEnd < 60 {
			t.Fatalf("window cuts inside atomic region: %+v", w)
		}
	}
}

func TestAtomicAwareOversizeRegionBecomesOwnChunk(t *testing.T) {
	windows := AtomicAware(300, 40, 0.10, []Region{{Start: 50, End: 200}})
	found := false
	for _, w := range windows {
		if w.CharacterStart == 50 && w.CharacterEnd == 200 {
			found = true
			if !w.IsAtomic {
				t.Error("expected oversize region chunk to be marked atomic")
			}
		}
	}
	if !found {
		t.Fatal("expected an oversize region to become its own chunk")
	}
}

func TestBoundaryReportDetectsCrossing(t *testing.T) {
	windows := []Window{{CharacterStart: 0, CharacterEnd: 50}, {CharacterStart: 50, CharacterEnd: 100}}
	mentions := []Mention{{ID: 1, CharacterStart: 45, CharacterEnd: 55}}
	crossings := BoundaryReport(windows, mentions)
	if len(crossings) != 1 {
		t.Fatalf("expected 1 crossing mention, got %d", len(crossings))
	}
	if crossings[0].ChunkIndex != 0 {
		t.Errorf("expected crossing attributed to chunk 0, got %d", crossings[0].ChunkIndex)
	}
}

func TestBoundaryReportIgnoresContainedMentions(t *testing.T) {
	windows := []Window{{CharacterStart: 0, CharacterEnd: 50}}
	mentions := []Mention{{ID: 1, CharacterStart: 10, CharacterEnd: 20}}
	crossings := BoundaryReport(windows, mentions)
	if len(crossings) != 0 {
		t.Fatalf("expected no crossings, got %d", len(crossings))
	}
}
