package migrate

import (
	"time"

	"github.com/google/uuid"
)

// MigrationResult represents the outcome of one staging-to-canonical run
type MigrationResult struct {
	RunID          string
	CandidateRows  int64 // staging rows that passed the candidate filter
	SkippedRows    int64 // staging rows excluded by the candidate filter
	Inserted       int64
	Discarded      int64 // duplicates plus rows lost to insert failures
	BatchFallbacks int   // batches that degraded to row-by-row inserts
	DemoEnsured    bool  // the fixed demonstration record is present
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	Throughput     float64 // inserted rows per second
}

// NewMigrationResult initializes a migration result
func NewMigrationResult() *MigrationResult {
	return &MigrationResult{
		RunID:     uuid.New().String(),
		StartTime: time.Now(),
	}
}

// Complete marks the migration as complete and calculates derived metrics
func (r *MigrationResult) Complete() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	if r.Duration.Seconds() > 0 {
		r.Throughput = float64(r.Inserted) / r.Duration.Seconds()
	}
}
