package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResolvedMeta is provider metadata for a repository that exists.
type ResolvedMeta struct {
	Stars    int
	Language string
	PushedAt *time.Time
}

// Enrichment is the provider-derived record attached to an item. It is a
// tagged union with exactly two shapes: resolved metadata, or an explicit
// dead marker for a repository the provider reported as not found. A record
// is never both, and a missing record carries no meaning of its own.
type Enrichment struct {
	resolved *ResolvedMeta
	deadAt   *time.Time
}

// NewResolved builds a resolved enrichment record.
func NewResolved(stars int, language string, pushedAt *time.Time) *Enrichment {
	return &Enrichment{resolved: &ResolvedMeta{Stars: stars, Language: language, PushedAt: pushedAt}}
}

// NewNotFound builds a dead-marker record for a repository the provider
// explicitly reported as not found at checkedAt.
func NewNotFound(checkedAt time.Time) *Enrichment {
	utc := checkedAt.UTC()
	return &Enrichment{deadAt: &utc}
}

// Resolved returns the metadata variant, if this record holds one.
func (e *Enrichment) Resolved() (ResolvedMeta, bool) {
	if e == nil || e.resolved == nil {
		return ResolvedMeta{}, false
	}
	return *e.resolved, true
}

// NotFound returns the dead-marker timestamp, if this record holds one.
func (e *Enrichment) NotFound() (time.Time, bool) {
	if e == nil || e.deadAt == nil {
		return time.Time{}, false
	}
	return *e.deadAt, true
}

// IsNotFound reports whether the record marks a confirmed-dead repository.
func (e *Enrichment) IsNotFound() bool {
	_, ok := e.NotFound()
	return ok
}

type enrichmentJSON struct {
	Stars     int        `json:"stars,omitempty"`
	Language  string     `json:"language,omitempty"`
	PushedAt  *time.Time `json:"pushed_at,omitempty"`
	NotFound  bool       `json:"not_found,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

func (e *Enrichment) MarshalJSON() ([]byte, error) {
	if e.deadAt != nil {
		return json.Marshal(enrichmentJSON{NotFound: true, CheckedAt: e.deadAt})
	}
	if e.resolved != nil {
		return json.Marshal(enrichmentJSON{
			Stars:    e.resolved.Stars,
			Language: e.resolved.Language,
			PushedAt: e.resolved.PushedAt,
		})
	}
	return nil, fmt.Errorf("enrichment record holds neither variant")
}

func (e *Enrichment) UnmarshalJSON(data []byte) error {
	var raw enrichmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse enrichment record: %w", err)
	}

	// The marker key decides the variant; never infer from other keys.
	if raw.NotFound {
		if raw.CheckedAt == nil {
			return fmt.Errorf("not_found record without checked_at timestamp")
		}
		e.resolved = nil
		e.deadAt = raw.CheckedAt
		return nil
	}

	e.deadAt = nil
	e.resolved = &ResolvedMeta{Stars: raw.Stars, Language: raw.Language, PushedAt: raw.PushedAt}
	return nil
}
