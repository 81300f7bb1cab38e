package catalog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ListEntry is the snapshot state of one source. It is rewritten wholesale
// when its source is reprocessed and carried over verbatim otherwise.
type ListEntry struct {
	LastParsed time.Time  `json:"last_parsed"`
	PushedAt   *time.Time `json:"pushed_at,omitempty"`
	Items      []Item     `json:"items"`
}

// Snapshot is the full persisted catalog state: every source's entry plus
// aggregate counts. ItemCount always equals the sum over all entries.
type Snapshot struct {
	GeneratedAt time.Time             `json:"generated_at"`
	ListCount   int                   `json:"list_count"`
	ItemCount   int                   `json:"item_count"`
	Lists       map[string]*ListEntry `json:"lists"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{Lists: make(map[string]*ListEntry)}
}

// Recount recomputes the aggregate counters from the entries.
func (s *Snapshot) Recount() {
	s.ListCount = len(s.Lists)
	s.ItemCount = 0
	for _, entry := range s.Lists {
		s.ItemCount += len(entry.Items)
	}
}

// LoadSnapshot reads a gzip-compressed snapshot artifact. An absent file is
// not an error: it returns (nil, nil) so the first run starts from scratch.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot gzip header: %w", err)
	}
	defer gz.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(gz).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if snapshot.Lists == nil {
		snapshot.Lists = make(map[string]*ListEntry)
	}

	return &snapshot, nil
}

// Save writes the snapshot as gzip-compressed JSON. The write is atomic:
// a temp file in the same directory is renamed over the target, so a crash
// mid-run never leaves a truncated artifact behind.
func (s *Snapshot) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	if err := json.NewEncoder(gz).Encode(s); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush snapshot gzip stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}
