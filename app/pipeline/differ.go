package pipeline

import (
	"github.com/lysyi3m/awesome-comb/app/catalog"
)

// DiffResult partitions a freshly parsed item list against the previous
// snapshot entry by canonical URL. Added + Unchanged + Updated is exactly the
// new authoritative item set for the source; Removed items vanish without a
// tombstone.
type DiffResult struct {
	Added     []catalog.Item
	Removed   []catalog.Item
	Unchanged []catalog.Item
	Updated   []catalog.Item

	// Merged is the authoritative item list in new-parse order, with
	// enrichment state carried forward where identity matched.
	Merged []catalog.Item
}

// Diff compares the previous item list of one source (possibly empty) with a
// newly parsed list. Identity is the canonical URL. Content drift (name or
// description) moves an item to Updated but never invalidates its existing
// enrichment record: metadata and lastEnriched are carried forward verbatim
// for both unchanged and updated items. The partition is deterministic for
// identical inputs.
func Diff(old, new []catalog.Item) DiffResult {
	var result DiffResult

	previous := make(map[string]catalog.Item, len(old))
	for _, item := range old {
		previous[item.URL] = item
	}

	current := make(map[string]bool, len(new))
	for _, item := range new {
		current[item.URL] = true
	}

	for _, item := range new {
		prev, existed := previous[item.URL]
		if !existed {
			result.Added = append(result.Added, item)
			result.Merged = append(result.Merged, item)
			continue
		}

		item.Metadata = prev.Metadata
		item.LastEnriched = prev.LastEnriched

		if item.Name == prev.Name && item.Description == prev.Description {
			result.Unchanged = append(result.Unchanged, item)
		} else {
			result.Updated = append(result.Updated, item)
		}
		result.Merged = append(result.Merged, item)
	}

	for _, item := range old {
		if !current[item.URL] {
			result.Removed = append(result.Removed, item)
		}
	}

	return result
}
