package catalog

import "time"

// Item is one harvested tool/library entry. Within a source it is identified
// by its canonical URL: the same URL across runs means the same logical item
// even when the name or description changed upstream.
type Item struct {
	Name         string      `json:"name"`
	URL          string      `json:"url"`
	Description  string      `json:"description"`
	Category     string      `json:"category"`
	Subcategory  string      `json:"subcategory,omitempty"`
	LastEnriched *time.Time  `json:"last_enriched,omitempty"`
	Metadata     *Enrichment `json:"metadata,omitempty"`
}
