package search

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/lysyi3m/awesome-comb/app/catalog"
)

// IndexedItem is one catalog item as stored in the companion search index
// consumed by the downstream query layer.
type IndexedItem struct {
	SourceID    string
	Name        string
	URL         string
	Description string
	Category    string
	Subcategory string
	Language    string
	Stars       int
}

// Rebuild recreates the searchable-index artifact from the finished
// in-memory snapshot. The previous index is dropped first: the snapshot is
// the single source of truth, so incrementally updating the index is not
// worth the bookkeeping.
func Rebuild(path string, snapshot *catalog.Snapshot) (int, error) {
	if err := os.RemoveAll(path); err != nil {
		return 0, fmt.Errorf("failed to drop previous index: %w", err)
	}

	idx, err := bleve.New(path, buildIndexMapping())
	if err != nil {
		return 0, fmt.Errorf("failed to create index: %w", err)
	}
	defer idx.Close()

	indexed := 0
	batch := idx.NewBatch()

	for sourceID, entry := range snapshot.Lists {
		for _, item := range entry.Items {
			doc := IndexedItem{
				SourceID:    sourceID,
				Name:        item.Name,
				URL:         item.URL,
				Description: item.Description,
				Category:    item.Category,
				Subcategory: item.Subcategory,
			}
			if meta, ok := item.Metadata.Resolved(); ok {
				doc.Language = meta.Language
				doc.Stars = meta.Stars
			}

			if err := batch.Index(sourceID+"|"+item.URL, doc); err != nil {
				return indexed, fmt.Errorf("failed to index item %s: %w", item.URL, err)
			}
			indexed++

			if batch.Size() >= 500 {
				if err := idx.Batch(batch); err != nil {
					return indexed, fmt.Errorf("failed to flush index batch: %w", err)
				}
				batch = idx.NewBatch()
			}
		}
	}

	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return indexed, fmt.Errorf("failed to flush index batch: %w", err)
		}
	}

	return indexed, nil
}

func buildIndexMapping() mapping.IndexMapping {
	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = "en"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("SourceID", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("Name", nameFieldMapping)
	docMapping.AddFieldMappingsAt("URL", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("Description", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Category", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Subcategory", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Language", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("Stars", bleve.NewNumericFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
