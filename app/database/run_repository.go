package database

import (
	"encoding/json"
	"fmt"
)

var _ RunRepository = (*SQLRunRepository)(nil)

// SQLRunRepository stores pipeline run history in the local sqlite database.
type SQLRunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *SQLRunRepository {
	return &SQLRunRepository{db: db}
}

func (r *SQLRunRepository) InsertRun(record RunRecord) (int64, error) {
	failed, err := json.Marshal(record.FailedSources)
	if err != nil {
		return 0, fmt.Errorf("failed to encode failed sources: %w", err)
	}

	result, err := r.db.Exec(`
		INSERT INTO runs (
			started_at, finished_at,
			selected_count, processed_count, carried_count, preserved_count,
			added_count, removed_count, updated_count, unchanged_count,
			enriched_count, not_found_count, abandoned_count, reaped_count,
			list_count, item_count, failed_sources
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.StartedAt, record.FinishedAt,
		record.SelectedCount, record.ProcessedCount, record.CarriedCount, record.PreservedCount,
		record.AddedCount, record.RemovedCount, record.UpdatedCount, record.UnchangedCount,
		record.EnrichedCount, record.NotFoundCount, record.AbandonedCount, record.ReapedCount,
		record.ListCount, record.ItemCount, string(failed))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	return id, nil
}

func (r *SQLRunRepository) GetRecentRuns(limit int) ([]RunRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, started_at, finished_at,
			selected_count, processed_count, carried_count, preserved_count,
			added_count, removed_count, updated_count, unchanged_count,
			enriched_count, not_found_count, abandoned_count, reaped_count,
			list_count, item_count, failed_sources, created_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var record RunRecord
		var failed string

		err := rows.Scan(&record.ID, &record.StartedAt, &record.FinishedAt,
			&record.SelectedCount, &record.ProcessedCount, &record.CarriedCount, &record.PreservedCount,
			&record.AddedCount, &record.RemovedCount, &record.UpdatedCount, &record.UnchangedCount,
			&record.EnrichedCount, &record.NotFoundCount, &record.AbandonedCount, &record.ReapedCount,
			&record.ListCount, &record.ItemCount, &failed, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if err := json.Unmarshal([]byte(failed), &record.FailedSources); err != nil {
			return nil, fmt.Errorf("failed to decode failed sources: %w", err)
		}

		records = append(records, record)
	}

	return records, rows.Err()
}
