package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the source registry file. A missing or malformed registry is the
// one fatal startup condition of the pipeline, so errors here are returned
// rather than logged.
func Load(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var sources []Source
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse registry YAML: %w", err)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("registry %s contains no sources", path)
	}

	for i, s := range sources {
		if s.ID == "" {
			return nil, fmt.Errorf("registry entry %d has no id", i)
		}
		if !strings.Contains(s.ID, "/") {
			return nil, fmt.Errorf("registry entry %q is not in owner/name form", s.ID)
		}
	}

	return sources, nil
}

// Select applies the run-selection surface to the full source list. The
// filter is applied first, then the start/count range over the filtered list.
func Select(sources []Source, sel Selection) []Source {
	selected := sources

	if sel.Filter != "" {
		filtered := make([]Source, 0, len(selected))
		for _, s := range selected {
			if strings.Contains(s.ID, sel.Filter) {
				filtered = append(filtered, s)
			}
		}
		selected = filtered
	}

	if sel.Start > 0 {
		if sel.Start >= len(selected) {
			return nil
		}
		selected = selected[sel.Start:]
	}

	if sel.Count > 0 && sel.Count < len(selected) {
		selected = selected[:sel.Count]
	}

	return selected
}
