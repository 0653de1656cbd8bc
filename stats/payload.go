package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"

	"statsdb/database"
	"statsdb/models"
)

// statsArg is the second argument of send_stats. The batch itself arrives
// JSON-encoded inside json_content.
type statsArg struct {
	JSONContent *string `json:"json_content"`
}

type logLine struct {
	Level string `json:"level"`

	Message string `json:"message"`

	Attributes map[string]any `json:"attributes"`
}

type sumAndCount struct {
	Sum float64 `json:"sum"`

	Count int64 `json:"count"`
}

type content struct {
	StartTime *float64 `json:"start_time"`

	EndTime *float64 `json:"end_time"`

	LogID json.RawMessage `json:"log_id"`

	Counts map[string]int64 `json:"counts"`

	ToolUsage map[string]int64 `json:"tool_usage"`

	Flags map[string]any `json:"flags"`

	Logs []logLine `json:"logs"`

	SumAndCount map[string]sumAndCount `json:"sum_and_count"`

	Persistent map[string]json.RawMessage `json:"persistent"`
}

type crashArg struct {
	LogData string `json:"log_data"`

	LogType string `json:"log_type"`
}

// decodeBatch turns the json_content document into a batch for machineConfigID
func decodeBatch(arg statsArg, machineConfigID uint) (database.Batch, error) {

	if arg.JSONContent == nil {
		return database.Batch{}, fmt.Errorf("stats.json_content is required")
	}

	var c content

	if err := json.Unmarshal([]byte(*arg.JSONContent), &c); err != nil {
		return database.Batch{}, fmt.Errorf("stats.json_content is not valid: %v", err)
	}

	if c.StartTime == nil || c.EndTime == nil {
		return database.Batch{}, fmt.Errorf("start_time and end_time are required")
	}

	start, err := epoch("start_time", *c.StartTime)

	if err != nil {
		return database.Batch{}, err
	}

	end, err := epoch("end_time", *c.EndTime)

	if err != nil {
		return database.Batch{}, err
	}

	if end.Before(start) {
		return database.Batch{}, fmt.Errorf("end_time is before start_time")
	}

	logID, err := decodeLogID(c.LogID)

	if err != nil {
		return database.Batch{}, err
	}

	b := database.Batch{

		MachineConfigID: machineConfigID,

		LogID: logID,

		Start: start,

		End: end,

		Counts: c.Counts,

		ToolUsage: c.ToolUsage,

		Flags: make(map[string]string, len(c.Flags)),
	}

	for name, value := range c.Flags {

		if s, ok := value.(string); ok {
			b.Flags[name] = s

			continue
		}

		raw, err := json.Marshal(value)

		if err != nil {
			return database.Batch{}, fmt.Errorf("invalid flag %q: %v", name, err)
		}

		b.Flags[name] = string(raw)
	}

	for _, line := range c.Logs {

		b.Logs = append(b.Logs, models.Log{

			Level: line.Level,

			Message: line.Message,

			Attributes: datatypes.JSONMap(line.Attributes),
		})
	}

	for key, sc := range c.SumAndCount {
		b.SumAndCounts = append(b.SumAndCounts, models.SumAndCount{Key: key, Sum: sc.Sum, Count: sc.Count})
	}

	for key, value := range c.Persistent {
		b.Persistent = append(b.Persistent, models.PersistentStat{Key: key, Value: datatypes.JSON(value)})
	}

	return b, nil
}

// decodeLogID accepts a string or a number; null and absent mean no id
func decodeLogID(raw json.RawMessage) (string, error) {

	raw = bytes.TrimSpace(raw)

	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var s string

	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number

	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("log_id must be a string or a number")
	}

	return n.String(), nil
}

// latestEpoch bounds client timestamps so spans stay within time.Duration
var latestEpoch = float64(time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC).Unix())

func epoch(name string, seconds float64) (time.Time, error) {

	if math.IsNaN(seconds) || seconds < 0 || seconds >= latestEpoch {
		return time.Time{}, fmt.Errorf("%s is out of range", name)
	}

	whole, frac := math.Modf(seconds)

	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC(), nil
}
