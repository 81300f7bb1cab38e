package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Blocklist is the persistent set of confirmed-dead item URLs. It only ever
// grows: URLs are added when the reaper confirms a repository is gone, and
// the set is consulted before diffing so reaped items cannot resurrect even
// while their source document still lists them.
type Blocklist struct {
	urls map[string]struct{}
}

func NewBlocklist() *Blocklist {
	return &Blocklist{urls: make(map[string]struct{})}
}

func (b *Blocklist) Add(url string) {
	b.urls[url] = struct{}{}
}

func (b *Blocklist) Contains(url string) bool {
	_, ok := b.urls[url]
	return ok
}

func (b *Blocklist) Len() int {
	return len(b.urls)
}

// URLs returns the blocked URLs sorted, for stable persistence.
func (b *Blocklist) URLs() []string {
	urls := make([]string, 0, len(b.urls))
	for url := range b.urls {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Filter strips blocklisted items from a freshly parsed list.
func (b *Blocklist) Filter(items []Item) []Item {
	if len(b.urls) == 0 {
		return items
	}
	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if !b.Contains(item.URL) {
			kept = append(kept, item)
		}
	}
	return kept
}

// LoadBlocklist reads the flat URL-list artifact. An absent file yields an
// empty blocklist.
func LoadBlocklist(path string) (*Blocklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewBlocklist(), nil
		}
		return nil, fmt.Errorf("failed to read blocklist: %w", err)
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("failed to parse blocklist: %w", err)
	}

	b := NewBlocklist()
	for _, url := range urls {
		b.Add(url)
	}
	return b, nil
}

// Save rewrites the full deduplicated blocklist atomically.
func (b *Blocklist) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create blocklist directory: %w", err)
	}

	data, err := json.MarshalIndent(b.URLs(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode blocklist: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write blocklist: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace blocklist: %w", err)
	}

	return nil
}
