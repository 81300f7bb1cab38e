package pipeline

import (
	"log/slog"
	"sort"

	"github.com/lysyi3m/awesome-comb/app/catalog"
)

// RotationCandidates selects the oldest-enriched resolved items across the
// whole snapshot for re-verification. The slice is bounded so every run pays
// a fixed recheck cost, while over enough runs every item cycles through.
// Ties on the timestamp break by URL so the selection is deterministic.
func RotationCandidates(snapshot *catalog.Snapshot, size int) []*catalog.Item {
	if size <= 0 {
		return nil
	}

	var candidates []*catalog.Item
	for _, entry := range snapshot.Lists {
		for i := range entry.Items {
			item := &entry.Items[i]
			if item.LastEnriched == nil {
				continue
			}
			if _, ok := item.Metadata.Resolved(); !ok {
				continue
			}
			candidates = append(candidates, item)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.LastEnriched.Equal(*b.LastEnriched) {
			return a.LastEnriched.Before(*b.LastEnriched)
		}
		return a.URL < b.URL
	})

	if len(candidates) > size {
		candidates = candidates[:size]
	}
	return candidates
}

// Reap removes every confirmed-dead item from its source's list and records
// its URL in the blocklist so no future parse can resurrect it. Returns the
// number of reaped items.
func Reap(snapshot *catalog.Snapshot, blocklist *catalog.Blocklist) int {
	reaped := 0

	for sourceID, entry := range snapshot.Lists {
		kept := entry.Items[:0]
		for _, item := range entry.Items {
			if item.Metadata.IsNotFound() {
				blocklist.Add(item.URL)
				slog.Info("Reaping dead item", "source", sourceID, "url", item.URL)
				reaped++
				continue
			}
			kept = append(kept, item)
		}
		entry.Items = kept
	}

	return reaped
}
