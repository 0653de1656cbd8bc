package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"statsdb/models"
)

// Batch is everything a single stats submission persists
type Batch struct {
	MachineConfigID uint

	// LogID is optional; without it the batch is stored unconditionally
	LogID string

	Start time.Time

	End time.Time

	Counts map[string]int64

	ToolUsage map[string]int64

	Flags map[string]string

	Logs []models.Log

	SumAndCounts []models.SumAndCount

	Persistent []models.PersistentStat
}

// UsageRepository appends usage facts
type UsageRepository struct {
	db *Database

	submissions *LogSubmissionRepository
}

func NewUsageRepository(db *Database, submissions *LogSubmissionRepository) *UsageRepository {
	return &UsageRepository{db: db, submissions: submissions}
}

// RecordBatch persists the batch once per (machine config, log id). The dedup
// marker and the facts share a transaction, so a failed write does not burn
// the log id and the client can retry.
func (r *UsageRepository) RecordBatch(ctx context.Context, b Batch) (Outcome, error) {

	outcome := OutcomeNew

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		if b.LogID != "" {

			var err error

			outcome, err = r.submissions.MarkSeen(tx, b.MachineConfigID, b.LogID)

			if err != nil {
				return err
			}

			if outcome == OutcomeDuplicate {
				return nil
			}
		}

		return r.createFacts(tx, b)
	})

	if err != nil {
		return OutcomeNew, err
	}

	if outcome == OutcomeDuplicate {

		r.db.log.Info("duplicate log submission skipped",

			zap.Uint("machine_config_id", b.MachineConfigID),

			zap.String("log_id", b.LogID),
		)
	}

	return outcome, nil
}

func (r *UsageRepository) createFacts(tx *gorm.DB, b Batch) error {

	start, end := b.Start.UTC(), b.End.UTC()

	fact := models.Fact{MachineConfigID: b.MachineConfigID, RecordedAt: end}

	uptime := &models.Uptime{

		Fact: fact,

		StartedAt: start,

		EndedAt: end,

		Seconds: int64(end.Sub(start) / time.Second),
	}

	if err := tx.Create(uptime).Error; err != nil {
		return fmt.Errorf("failed to store uptime: %w", err)
	}

	counts := make([]models.UsageCount, 0, len(b.Counts))

	for key, count := range b.Counts {
		counts = append(counts, models.UsageCount{Fact: fact, Key: key, Count: count})
	}

	tools := make([]models.ToolUsage, 0, len(b.ToolUsage))

	for tool, count := range b.ToolUsage {
		tools = append(tools, models.ToolUsage{Fact: fact, Tool: tool, Count: count})
	}

	flags := make([]models.Flag, 0, len(b.Flags))

	for name, value := range b.Flags {
		flags = append(flags, models.Flag{Fact: fact, Name: name, Value: value})
	}

	for i := range b.Logs {
		b.Logs[i].Fact = fact
	}

	for i := range b.SumAndCounts {
		b.SumAndCounts[i].Fact = fact
	}

	for i := range b.Persistent {
		b.Persistent[i].Fact = fact
	}

	batches := []struct {
		name string
		rows any
		n    int
	}{
		{name: "usage counts", rows: &counts, n: len(counts)},
		{name: "tool usage", rows: &tools, n: len(tools)},
		{name: "flags", rows: &flags, n: len(flags)},
		{name: "logs", rows: &b.Logs, n: len(b.Logs)},
		{name: "sum and counts", rows: &b.SumAndCounts, n: len(b.SumAndCounts)},
		{name: "persistent stats", rows: &b.Persistent, n: len(b.Persistent)},
	}

	for _, batch := range batches {

		if batch.n == 0 {
			continue
		}

		if err := tx.CreateInBatches(batch.rows, 100).Error; err != nil {
			return fmt.Errorf("failed to store %s: %w", batch.name, err)
		}
	}

	return nil
}

// RecordCrash stores a crash report stamped with the server time
func (r *UsageRepository) RecordCrash(ctx context.Context, machineConfigID uint, logType, logData string) (*models.Crash, error) {

	crash := &models.Crash{

		Fact: models.Fact{MachineConfigID: machineConfigID, RecordedAt: time.Now().UTC()},

		LogType: logType,

		LogData: logData,
	}

	if err := r.db.WithContext(ctx).Create(crash).Error; err != nil {
		return nil, fmt.Errorf("failed to store crash: %w", err)
	}

	return crash, nil
}
