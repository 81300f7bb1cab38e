package database

// RunRepository persists and lists pipeline run history.
type RunRepository interface {
	InsertRun(record RunRecord) (int64, error)
	GetRecentRuns(limit int) ([]RunRecord, error)
}
