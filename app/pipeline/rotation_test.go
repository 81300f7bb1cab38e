package pipeline

import (
	"testing"
	"time"

	"github.com/lysyi3m/awesome-comb/app/catalog"
)

func TestRotationCandidatesOldestFirst(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t1.Add(48 * time.Hour)

	snapshot := catalog.NewSnapshot()
	snapshot.Lists["a/list"] = &catalog.ListEntry{Items: []catalog.Item{
		{URL: "https://github.com/x/newest", LastEnriched: &t3, Metadata: catalog.NewResolved(1, "", nil)},
		{URL: "https://github.com/x/oldest", LastEnriched: &t1, Metadata: catalog.NewResolved(2, "", nil)},
	}}
	snapshot.Lists["b/list"] = &catalog.ListEntry{Items: []catalog.Item{
		{URL: "https://github.com/x/middle", LastEnriched: &t2, Metadata: catalog.NewResolved(3, "", nil)},
		{URL: "https://github.com/x/never-enriched"},
		{URL: "https://github.com/x/dead", LastEnriched: &t1, Metadata: catalog.NewNotFound(t1)},
	}}

	candidates := RotationCandidates(snapshot, 2)

	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].URL != "https://github.com/x/oldest" {
		t.Errorf("Expected oldest first, got %s", candidates[0].URL)
	}
	if candidates[1].URL != "https://github.com/x/middle" {
		t.Errorf("Expected middle second, got %s", candidates[1].URL)
	}
}

func TestRotationSkipsUnenrichedAndDead(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	snapshot := catalog.NewSnapshot()
	snapshot.Lists["a/list"] = &catalog.ListEntry{Items: []catalog.Item{
		{URL: "https://github.com/x/plain"},
		{URL: "https://github.com/x/dead", LastEnriched: &t1, Metadata: catalog.NewNotFound(t1)},
	}}

	if got := RotationCandidates(snapshot, 10); len(got) != 0 {
		t.Errorf("Expected no candidates, got %d", len(got))
	}
}

func TestRotationDeterministicTieBreak(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	snapshot := catalog.NewSnapshot()
	snapshot.Lists["a/list"] = &catalog.ListEntry{Items: []catalog.Item{
		{URL: "https://github.com/x/bbb", LastEnriched: &t1, Metadata: catalog.NewResolved(1, "", nil)},
		{URL: "https://github.com/x/aaa", LastEnriched: &t1, Metadata: catalog.NewResolved(1, "", nil)},
	}}

	candidates := RotationCandidates(snapshot, 1)
	if len(candidates) != 1 || candidates[0].URL != "https://github.com/x/aaa" {
		t.Errorf("Expected URL tie-break to pick aaa, got %+v", candidates)
	}
}

func TestRotationCandidatesAreLiveReferences(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	snapshot := catalog.NewSnapshot()
	snapshot.Lists["a/list"] = &catalog.ListEntry{Items: []catalog.Item{
		{URL: "https://github.com/x/tool", LastEnriched: &t1, Metadata: catalog.NewResolved(1, "", nil)},
	}}

	candidates := RotationCandidates(snapshot, 1)
	candidates[0].Metadata = catalog.NewResolved(99, "Go", nil)

	meta, _ := snapshot.Lists["a/list"].Items[0].Metadata.Resolved()
	if meta.Stars != 99 {
		t.Error("Rotation candidates must reference snapshot items, not copies")
	}
}

func TestReap(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	snapshot := catalog.NewSnapshot()
	snapshot.Lists["a/list"] = &catalog.ListEntry{Items: []catalog.Item{
		{URL: "https://github.com/x/alive", Metadata: catalog.NewResolved(5, "", nil)},
		{URL: "https://github.com/x/dead", Metadata: catalog.NewNotFound(t1)},
		{URL: "https://github.com/x/pending"},
	}}

	blocklist := catalog.NewBlocklist()
	reaped := Reap(snapshot, blocklist)

	if reaped != 1 {
		t.Errorf("Expected 1 reaped item, got %d", reaped)
	}

	items := snapshot.Lists["a/list"].Items
	if len(items) != 2 {
		t.Fatalf("Expected 2 surviving items, got %d", len(items))
	}
	for _, item := range items {
		if item.URL == "https://github.com/x/dead" {
			t.Error("Dead item survived reaping")
		}
	}

	if !blocklist.Contains("https://github.com/x/dead") {
		t.Error("Reaped URL must join the blocklist")
	}
	if blocklist.Contains("https://github.com/x/pending") {
		t.Error("Pending item must not be blocklisted")
	}
}
