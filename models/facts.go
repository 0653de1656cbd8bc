package models

import (
	"time"

	"gorm.io/datatypes"
)

// Fact is the part every usage measurement shares. Facts are append-only.
type Fact struct {
	ID uint `gorm:"primarykey" json:"id"`

	MachineConfigID uint `gorm:"not null;index" json:"machine_config_id"`

	// RecordedAt is when the measurement applies, usually the end of the client batch
	RecordedAt time.Time `gorm:"not null;index" json:"recorded_at"`

	CreatedAt time.Time `json:"created_at"`
}

type Uptime struct {
	Fact

	StartedAt time.Time `json:"started_at"`

	EndedAt time.Time `json:"ended_at"`

	Seconds int64 `json:"seconds"`
}

type UsageCount struct {
	Fact

	Key string `gorm:"not null;index" json:"key"`

	Count int64 `json:"count"`
}

type ToolUsage struct {
	Fact

	Tool string `gorm:"not null;index" json:"tool"`

	Count int64 `json:"count"`
}

type Flag struct {
	Fact

	Name string `gorm:"not null;index" json:"name"`

	Value string `json:"value"`
}

type Log struct {
	Fact

	Level string `json:"level"`

	Message string `json:"message"`

	Attributes datatypes.JSONMap `json:"attributes"`
}

// SumAndCount carries a pre-aggregated measurement, such as total session
// seconds over a number of sessions.
type SumAndCount struct {
	Fact

	Key string `gorm:"not null;index" json:"key"`

	Sum float64 `json:"sum"`

	Count int64 `json:"count"`
}

// PersistentStat is a key/value snapshot the client keeps across sessions.
type PersistentStat struct {
	Fact

	Key string `gorm:"not null;index" json:"key"`

	Value datatypes.JSON `json:"value"`
}

type Crash struct {
	Fact

	LogType string `gorm:"index" json:"log_type"`

	LogData string `json:"log_data"`
}

// All lists every model for migrations.
func All() []any {

	return []any{

		&MachineConfig{},

		&LogSubmission{},

		&Uptime{},

		&UsageCount{},

		&ToolUsage{},

		&Flag{},

		&Log{},

		&SumAndCount{},

		&PersistentStat{},

		&Crash{},
	}
}
