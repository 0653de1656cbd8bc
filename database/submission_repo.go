package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"statsdb/models"
)

// Outcome tells a caller whether a log batch should be persisted
type Outcome int

const (
	OutcomeNew Outcome = iota

	OutcomeDuplicate
)

func (o Outcome) String() string {

	if o == OutcomeDuplicate {
		return "duplicate"
	}

	return "new"
}

// LogSubmissionRepository is the dedup guard for client log batches
type LogSubmissionRepository struct {
	db *Database
}

func NewLogSubmissionRepository(db *Database) *LogSubmissionRepository {
	return &LogSubmissionRepository{db: db}
}

// MarkSeen records logID for the machine config inside tx. The insert is
// conditional on the unique (machine_config_id, log_id) index, so of two
// concurrent submissions exactly one gets OutcomeNew.
func (r *LogSubmissionRepository) MarkSeen(tx *gorm.DB, machineConfigID uint, logID string) (Outcome, error) {

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.LogSubmission{

		MachineConfigID: machineConfigID,

		LogID: logID,
	})

	if result.Error != nil {
		return OutcomeNew, fmt.Errorf("failed to record log submission: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return OutcomeDuplicate, nil
	}

	return OutcomeNew, nil
}
