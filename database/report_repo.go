package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"statsdb/models"
	"statsdb/timeseries"
)

// SeriesQuery is the argument set of every bucketed report query. It is
// comparable so the query cache can key on it directly.
type SeriesQuery struct {
	Start time.Time

	End time.Time

	Granularity timeseries.Granularity

	// Key narrows keyed facts (usage counts, sums) to one key when set
	Key string
}

// Slice is one row of a breakdown chart
type Slice struct {
	Label string `json:"label"`

	Value float64 `json:"value"`
}

type bucketRow struct {
	Bucket string

	Value float64
}

type keyedBucketRow struct {
	Key string

	Bucket string

	Value float64
}

// ReportRepository runs the aggregate queries behind the reports
type ReportRepository struct {
	db *Database
}

func NewReportRepository(db *Database) *ReportRepository {
	return &ReportRepository{db: db}
}

// bucketExpr renders column truncated to g as a YYYY-MM-DD string
func (r *ReportRepository) bucketExpr(g timeseries.Granularity, column string) string {

	if r.db.dialect() == "postgres" {

		unit := "day"

		switch g {

		case timeseries.Week, timeseries.Month, timeseries.Year:
			unit = string(g)
		}

		return "to_char(date_trunc('" + unit + "', " + column + " AT TIME ZONE 'UTC'), 'YYYY-MM-DD')"
	}

	switch g {

	case timeseries.Week:
		return "strftime('%Y-%m-%d', " + column + ", 'weekday 0', '-6 days')"

	case timeseries.Month:
		return "strftime('%Y-%m-01', " + column + ")"

	case timeseries.Year:
		return "strftime('%Y-01-01', " + column + ")"

	default:
		return "strftime('%Y-%m-%d', " + column + ")"
	}
}

// window returns the half-open [from, to) interval covering every bucket of q
func window(q SeriesQuery) (time.Time, time.Time) {

	from := timeseries.Truncate(q.Start, q.Granularity)

	to := timeseries.Next(timeseries.Truncate(q.End, q.Granularity), q.Granularity)

	return from, to
}

func parseBucket(s string) (time.Time, error) {

	if len(s) > 10 {
		s = s[:10]
	}

	t, err := time.Parse("2006-01-02", s)

	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected bucket %q: %w", s, err)
	}

	return t, nil
}

func (r *ReportRepository) series(ctx context.Context, model any, column, value string, q SeriesQuery, scope func(*gorm.DB) *gorm.DB) ([]timeseries.Point[float64], error) {

	from, to := window(q)

	query := r.db.WithContext(ctx).
		Model(model).
		Select(r.bucketExpr(q.Granularity, column)+" AS bucket, "+value+" AS value").
		Where(column+" >= ? AND "+column+" < ?", from, to)

	if scope != nil {
		query = scope(query)
	}

	var rows []bucketRow

	if err := query.Group("bucket").Order("bucket").Scan(&rows).Error; err != nil {
		return nil, err
	}

	points := make([]timeseries.Point[float64], 0, len(rows))

	for _, row := range rows {

		bucket, err := parseBucket(row.Bucket)

		if err != nil {
			return nil, err
		}

		points = append(points, timeseries.Point[float64]{Bucket: bucket, Value: row.Value})
	}

	return points, nil
}

func withKey(column, key string) func(*gorm.DB) *gorm.DB {

	return func(db *gorm.DB) *gorm.DB {

		if key == "" {
			return db
		}

		return db.Where(column+" = ?", key)
	}
}

// UptimeSeconds sums reported uptime per bucket
func (r *ReportRepository) UptimeSeconds(ctx context.Context, q SeriesQuery) ([]timeseries.Point[float64], error) {
	return r.series(ctx, &models.Uptime{}, "recorded_at", "SUM(seconds)", q, nil)
}

// NewMachines counts machine configs first seen per bucket
func (r *ReportRepository) NewMachines(ctx context.Context, q SeriesQuery) ([]timeseries.Point[float64], error) {
	return r.series(ctx, &models.MachineConfig{}, "created_at", "COUNT(*)", q, nil)
}

// Crashes counts crash reports per bucket, optionally for one log type
func (r *ReportRepository) Crashes(ctx context.Context, q SeriesQuery) ([]timeseries.Point[float64], error) {
	return r.series(ctx, &models.Crash{}, "recorded_at", "COUNT(*)", q, withKey("log_type", q.Key))
}

// ActiveMachines counts distinct machine configs submitting stats per bucket
func (r *ReportRepository) ActiveMachines(ctx context.Context, q SeriesQuery) ([]timeseries.Point[float64], error) {
	return r.series(ctx, &models.Uptime{}, "recorded_at", "COUNT(DISTINCT machine_config_id)", q, nil)
}

// SessionSeconds returns the average of a sum-and-count key per bucket
func (r *ReportRepository) SessionSeconds(ctx context.Context, q SeriesQuery) ([]timeseries.Point[float64], error) {

	// the CASE keeps empty counts from dividing by zero on both backends
	value := "CASE WHEN SUM(count) = 0 THEN 0 ELSE SUM(sum) * 1.0 / SUM(count) END"

	return r.series(ctx, &models.SumAndCount{}, "recorded_at", value, q, withKey("key", q.Key))
}

// UsageCounts sums usage counts per key and bucket
func (r *ReportRepository) UsageCounts(ctx context.Context, q SeriesQuery) (map[string][]timeseries.Point[float64], error) {

	from, to := window(q)

	query := r.db.WithContext(ctx).
		Model(&models.UsageCount{}).
		Select("key, "+r.bucketExpr(q.Granularity, "recorded_at")+" AS bucket, SUM(count) AS value").
		Where("recorded_at >= ? AND recorded_at < ?", from, to)

	query = withKey("key", q.Key)(query)

	var rows []keyedBucketRow

	if err := query.Group("key, bucket").Order("key, bucket").Scan(&rows).Error; err != nil {
		return nil, err
	}

	series := make(map[string][]timeseries.Point[float64])

	for _, row := range rows {

		bucket, err := parseBucket(row.Bucket)

		if err != nil {
			return nil, err
		}

		series[row.Key] = append(series[row.Key], timeseries.Point[float64]{Bucket: bucket, Value: row.Value})
	}

	return series, nil
}

func (r *ReportRepository) breakdown(ctx context.Context, model any, column, label, value string, q SeriesQuery) ([]Slice, error) {

	from, to := window(q)

	var slices []Slice

	err := r.db.WithContext(ctx).
		Model(model).
		Select(label+" AS label, "+value+" AS value").
		Where(column+" >= ? AND "+column+" < ?", from, to).
		Group("label").
		Order("value DESC, label").
		Scan(&slices).Error

	return slices, err
}

// ToolUsage totals tool usage per tool
func (r *ReportRepository) ToolUsage(ctx context.Context, q SeriesQuery) ([]Slice, error) {
	return r.breakdown(ctx, &models.ToolUsage{}, "recorded_at", "tool", "SUM(count)", q)
}

// FlagValues counts reports per flag value, for q.Key or across all flags
func (r *ReportRepository) FlagValues(ctx context.Context, q SeriesQuery) ([]Slice, error) {

	if q.Key == "" {
		return r.breakdown(ctx, &models.Flag{}, "recorded_at", "name", "COUNT(*)", q)
	}

	from, to := window(q)

	var slices []Slice

	err := r.db.WithContext(ctx).
		Model(&models.Flag{}).
		Select("value AS label, COUNT(*) AS value").
		Where("recorded_at >= ? AND recorded_at < ? AND name = ?", from, to, q.Key).
		Group("label").
		Order("value DESC, label").
		Scan(&slices).Error

	return slices, err
}

// OperatingSystems counts machine configs created in range per OS
func (r *ReportRepository) OperatingSystems(ctx context.Context, q SeriesQuery) ([]Slice, error) {
	return r.breakdown(ctx, &models.MachineConfig{}, "created_at", "os", "COUNT(*)", q)
}

// Versions counts machine configs created in range per product version
func (r *ReportRepository) Versions(ctx context.Context, q SeriesQuery) ([]Slice, error) {
	return r.breakdown(ctx, &models.MachineConfig{}, "created_at", "version", "COUNT(*)", q)
}
