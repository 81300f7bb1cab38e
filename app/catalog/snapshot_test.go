package catalog

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotRecount(t *testing.T) {
	snapshot := NewSnapshot()
	snapshot.Lists["a/awesome-go"] = &ListEntry{
		Items: []Item{{URL: "https://github.com/x/one"}, {URL: "https://github.com/x/two"}},
	}
	snapshot.Lists["b/awesome-python"] = &ListEntry{
		Items: []Item{{URL: "https://github.com/y/three"}},
	}

	snapshot.Recount()

	if snapshot.ListCount != 2 {
		t.Errorf("Expected list count 2, got %d", snapshot.ListCount)
	}
	if snapshot.ItemCount != 3 {
		t.Errorf("Expected item count 3, got %d", snapshot.ItemCount)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json.gz")

	parsed := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	enriched := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)

	snapshot := NewSnapshot()
	snapshot.GeneratedAt = time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)
	snapshot.Lists["a/awesome-go"] = &ListEntry{
		LastParsed: parsed,
		Items: []Item{
			{
				Name:         "gin",
				URL:          "https://github.com/gin-gonic/gin",
				Description:  "HTTP web framework",
				Category:     "Web Frameworks",
				LastEnriched: &enriched,
				Metadata:     NewResolved(80000, "Go", nil),
			},
			{
				Name:     "ghost",
				URL:      "https://github.com/gone/ghost",
				Category: "Web Frameworks",
				Metadata: NewNotFound(enriched),
			},
		},
	}
	snapshot.Recount()

	if err := snapshot.Save(path); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected snapshot, got nil")
	}

	entry, ok := loaded.Lists["a/awesome-go"]
	if !ok {
		t.Fatal("Expected entry for a/awesome-go")
	}
	if !entry.LastParsed.Equal(parsed) {
		t.Errorf("Expected last parsed %v, got %v", parsed, entry.LastParsed)
	}
	if len(entry.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(entry.Items))
	}

	meta, ok := entry.Items[0].Metadata.Resolved()
	if !ok {
		t.Fatal("Expected resolved metadata on first item")
	}
	if meta.Stars != 80000 {
		t.Errorf("Expected 80000 stars, got %d", meta.Stars)
	}
	if entry.Items[0].LastEnriched == nil || !entry.Items[0].LastEnriched.Equal(enriched) {
		t.Errorf("Expected last enriched %v, got %v", enriched, entry.Items[0].LastEnriched)
	}

	if !entry.Items[1].Metadata.IsNotFound() {
		t.Error("Expected not-found metadata on second item")
	}

	if loaded.ItemCount != 2 {
		t.Errorf("Expected item count 2, got %d", loaded.ItemCount)
	}
}

func TestLoadSnapshotAbsent(t *testing.T) {
	snapshot, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json.gz"))
	if err != nil {
		t.Fatalf("Expected no error for absent snapshot, got: %v", err)
	}
	if snapshot != nil {
		t.Error("Expected nil snapshot on first run")
	}
}
