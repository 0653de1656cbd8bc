package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statsdb/database"
	"statsdb/database/dbtest"
	"statsdb/models"
	"statsdb/querycache"
	"statsdb/timeseries"
)

func at(day, hour int) time.Time {
	return time.Date(2021, 1, day, hour, 0, 0, 0, time.UTC)
}

func newTestRegistry(t *testing.T) (*Registry, *querycache.Cache, *database.Database) {

	db := dbtest.New(t)

	rows := []any{

		&models.Uptime{Fact: models.Fact{MachineConfigID: 1, RecordedAt: at(1, 10)}, Seconds: 3600},

		&models.Uptime{Fact: models.Fact{MachineConfigID: 2, RecordedAt: at(3, 10)}, Seconds: 5400},

		&models.UsageCount{Fact: models.Fact{MachineConfigID: 1, RecordedAt: at(1, 10)}, Key: "open", Count: 2},

		&models.UsageCount{Fact: models.Fact{MachineConfigID: 1, RecordedAt: at(3, 10)}, Key: "save", Count: 4},

		&models.ToolUsage{Fact: models.Fact{MachineConfigID: 1, RecordedAt: at(2, 10)}, Tool: "brush", Count: 3},

		&models.ToolUsage{Fact: models.Fact{MachineConfigID: 2, RecordedAt: at(2, 10)}, Tool: "fill", Count: 8},

		&models.SumAndCount{Fact: models.Fact{MachineConfigID: 1, RecordedAt: at(2, 10)}, Key: "session", Sum: 1200, Count: 2},

		&models.Crash{Fact: models.Fact{MachineConfigID: 1, RecordedAt: at(2, 10)}, LogType: "native"},

		&models.MachineConfig{Fingerprint: "m1", OS: "Linux", Version: "1.0", CreatedAt: at(1, 9)},

		&models.MachineConfig{Fingerprint: "m2", OS: "Windows", Version: "1.1", CreatedAt: at(3, 9)},
	}

	for _, row := range rows {
		require.NoError(t, db.Create(row).Error)
	}

	cache := querycache.New(querycache.DefaultCapacity, nil)

	return NewRegistry(database.NewReportRepository(db), cache), cache, db
}

func threeDays() Range {
	return Range{Start: at(1, 0), End: at(3, 0), Granularity: timeseries.Day}
}

func TestListOrder(t *testing.T) {

	registry, _, _ := newTestRegistry(t)

	var names []string

	for _, info := range registry.List() {

		names = append(names, info.Name)

		assert.NotEmpty(t, info.Title)
	}

	assert.Equal(t, []string{
		"uptime", "new_machines", "active_machines", "crashes", "usage_counts",
		"tool_usage", "flags", "os", "versions", "average_session",
	}, names)
}

func TestUptimeInHours(t *testing.T) {

	registry, _, _ := newTestRegistry(t)

	chart, err := registry.Build(context.Background(), "uptime", threeDays())

	require.NoError(t, err)

	assert.Equal(t, KindSeries, chart.Kind)

	assert.Equal(t, "hours", chart.Unit)

	assert.Equal(t, []string{"01-01", "01-02", "01-03"}, chart.Labels)

	require.Len(t, chart.Series, 1)

	assert.Equal(t, []float64{1, 0, 1.5}, chart.Series[0].Values)
}

func TestUsageCountsShareBuckets(t *testing.T) {

	registry, _, _ := newTestRegistry(t)

	chart, err := registry.Build(context.Background(), "usage_counts", threeDays())

	require.NoError(t, err)

	assert.Equal(t, []string{"01-01", "01-02", "01-03"}, chart.Labels)

	assert.Equal(t, []Series{
		{Name: "open", Values: []float64{2, 0, 0}},
		{Name: "save", Values: []float64{0, 0, 4}},
	}, chart.Series)
}

func TestUsageCountsEmptyRange(t *testing.T) {

	registry, _, _ := newTestRegistry(t)

	rng := Range{Start: at(20, 0), End: at(21, 0), Granularity: timeseries.Day}

	chart, err := registry.Build(context.Background(), "usage_counts", rng)

	require.NoError(t, err)

	assert.Equal(t, []string{"01-20", "01-21"}, chart.Labels)

	assert.Empty(t, chart.Series)
}

func TestBreakdowns(t *testing.T) {

	registry, _, _ := newTestRegistry(t)

	chart, err := registry.Build(context.Background(), "tool_usage", threeDays())

	require.NoError(t, err)

	assert.Equal(t, KindBreakdown, chart.Kind)

	assert.Equal(t, []string{"fill", "brush"}, chart.Labels)

	assert.Equal(t, []float64{8, 3}, chart.Series[0].Values)

	chart, err = registry.Build(context.Background(), "os", threeDays())

	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Linux", "Windows"}, chart.Labels)
}

func TestAverageSessionInMinutes(t *testing.T) {

	registry, _, _ := newTestRegistry(t)

	chart, err := registry.Build(context.Background(), "average_session", threeDays())

	require.NoError(t, err)

	assert.Equal(t, []float64{0, 10, 0}, chart.Series[0].Values)
}

func TestMonthlyGranularity(t *testing.T) {

	registry, _, _ := newTestRegistry(t)

	rng := Range{Start: at(1, 0), End: time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC), Granularity: timeseries.Month}

	chart, err := registry.Build(context.Background(), "new_machines", rng)

	require.NoError(t, err)

	assert.Equal(t, []string{"2021-01", "2021-02", "2021-03"}, chart.Labels)

	assert.Equal(t, []float64{2, 0, 0}, chart.Series[0].Values)
}

func TestBuildIsCached(t *testing.T) {

	registry, cache, db := newTestRegistry(t)

	first, err := registry.Build(context.Background(), "crashes", threeDays())

	require.NoError(t, err)

	// rows added after the first build are not visible until eviction
	require.NoError(t, db.Create(&models.Crash{Fact: models.Fact{MachineConfigID: 2, RecordedAt: at(2, 11)}}).Error)

	second, err := registry.Build(context.Background(), "crashes", threeDays())

	require.NoError(t, err)

	assert.Equal(t, first, second)

	assert.Equal(t, []float64{0, 1, 0}, second.Series[0].Values)

	stats := cache.Stats("crashes")

	assert.Equal(t, uint64(1), stats.Hits)

	assert.Equal(t, uint64(1), stats.Misses)
}

func TestUnknownReport(t *testing.T) {

	registry, _, _ := newTestRegistry(t)

	_, err := registry.Build(context.Background(), "revenue", threeDays())

	var unknown *ErrUnknownReport

	assert.True(t, errors.As(err, &unknown))
}

func TestParseRange(t *testing.T) {

	now := time.Date(2021, 3, 10, 15, 30, 0, 0, time.UTC)

	r, err := ParseRange("", "", "", "", now)

	require.NoError(t, err)

	assert.Equal(t, time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC), r.End)

	assert.Equal(t, r.End.Add(-DefaultSpan), r.Start)

	assert.Equal(t, timeseries.Day, r.Granularity)

	r, err = ParseRange("2021-01-01", "2021-02-01", "week", "open", now)

	require.NoError(t, err)

	assert.Equal(t, at(1, 0), r.Start)

	assert.Equal(t, timeseries.Week, r.Granularity)

	assert.Equal(t, "open", r.Key)

	for _, tc := range []struct{ start, end, granularity, param string }{
		{"01/01/2021", "", "", "start"},
		{"", "tomorrow", "", "end"},
		{"2021-02-01", "2021-01-01", "", "end"},
		{"", "", "hourly", "granularity"},
		{"1900-01-01", "2021-01-01", "day", "granularity"},
	} {

		_, err := ParseRange(tc.start, tc.end, tc.granularity, "", now)

		var rangeErr *RangeError

		require.True(t, errors.As(err, &rangeErr), "%+v", tc)

		assert.Equal(t, tc.param, rangeErr.Param)
	}
}
