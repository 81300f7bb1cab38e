package database

import (
	"time"
)

// RunRecord is one persisted pipeline run for the operator history.
type RunRecord struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time

	SelectedCount  int
	ProcessedCount int
	CarriedCount   int
	PreservedCount int

	AddedCount     int
	RemovedCount   int
	UpdatedCount   int
	UnchangedCount int

	EnrichedCount  int
	NotFoundCount  int
	AbandonedCount int
	ReapedCount    int

	ListCount int
	ItemCount int

	FailedSources []string
	CreatedAt     time.Time
}
