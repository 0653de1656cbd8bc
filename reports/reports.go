// Package reports turns stored usage facts into chart data.
package reports

import (
	"context"
	"sort"
	"time"

	"statsdb/database"
	"statsdb/timeseries"
)

const (
	KindSeries = "series"

	KindBreakdown = "breakdown"
)

// Series is one named line of a chart, aligned with Chart.Labels
type Series struct {
	Name string `json:"name"`

	Values []float64 `json:"values"`
}

type Chart struct {
	Name string `json:"name"`

	Title string `json:"title"`

	// Kind is KindSeries for values over time, KindBreakdown for one value per label
	Kind string `json:"kind"`

	Unit string `json:"unit,omitempty"`

	Labels []string `json:"labels"`

	Series []Series `json:"series"`
}

type Report interface {
	Name() string

	Title() string

	Build(ctx context.Context, r Range) (*Chart, error)
}

type seriesFunc func(context.Context, database.SeriesQuery) ([]timeseries.Point[float64], error)

type keyedSeriesFunc func(context.Context, database.SeriesQuery) (map[string][]timeseries.Point[float64], error)

type breakdownFunc func(context.Context, database.SeriesQuery) ([]database.Slice, error)

func toQuery(r Range) database.SeriesQuery {
	return database.SeriesQuery{Start: r.Start, End: r.End, Granularity: r.Granularity, Key: r.Key}
}

func labels(buckets []time.Time, g timeseries.Granularity) []string {

	out := make([]string, len(buckets))

	for i, b := range buckets {
		out[i] = timeseries.Label(b, g)
	}

	return out
}

// seriesReport charts one value per bucket
type seriesReport struct {
	name, title string

	// unit rescales second-valued series; empty leaves values as stored
	unit timeseries.Unit

	query seriesFunc
}

func (s *seriesReport) Name() string { return s.name }

func (s *seriesReport) Title() string { return s.title }

func (s *seriesReport) Build(ctx context.Context, r Range) (*Chart, error) {

	points, err := s.query(ctx, toQuery(r))

	if err != nil {
		return nil, err
	}

	points = timeseries.Fill(points, r.Start, r.End, r.Granularity, 0)

	if s.unit != "" {
		points = timeseries.Rescale(points, s.unit)
	}

	chart := &Chart{Name: s.name, Title: s.title, Kind: KindSeries, Unit: string(s.unit)}

	values := make([]float64, len(points))

	buckets := make([]time.Time, len(points))

	for i, p := range points {

		buckets[i] = p.Bucket

		values[i] = p.Value
	}

	chart.Labels = labels(buckets, r.Granularity)

	chart.Series = []Series{{Name: s.name, Values: values}}

	return chart, nil
}

// keyedSeriesReport charts one line per key, all sharing the range's buckets
type keyedSeriesReport struct {
	name, title string

	query keyedSeriesFunc
}

func (k *keyedSeriesReport) Name() string { return k.name }

func (k *keyedSeriesReport) Title() string { return k.title }

func (k *keyedSeriesReport) Build(ctx context.Context, r Range) (*Chart, error) {

	byKey, err := k.query(ctx, toQuery(r))

	if err != nil {
		return nil, err
	}

	filled := make(map[string][]timeseries.Point[float64], len(byKey))

	for key, points := range byKey {
		filled[key] = timeseries.Fill(points, r.Start, r.End, r.Granularity, 0)
	}

	table := timeseries.Merge(filled, nil)

	buckets := table.Buckets

	if len(buckets) == 0 {
		buckets = timeseries.Buckets(r.Start, r.End, r.Granularity)
	}

	chart := &Chart{Name: k.name, Title: k.title, Kind: KindSeries, Labels: labels(buckets, r.Granularity), Series: []Series{}}

	keys := make([]string, 0, len(table.Columns))

	for key := range table.Columns {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		chart.Series = append(chart.Series, Series{Name: key, Values: table.Columns[key]})
	}

	return chart, nil
}

// breakdownReport charts one total per label over the whole range
type breakdownReport struct {
	name, title string

	query breakdownFunc
}

func (b *breakdownReport) Name() string { return b.name }

func (b *breakdownReport) Title() string { return b.title }

func (b *breakdownReport) Build(ctx context.Context, r Range) (*Chart, error) {

	slices, err := b.query(ctx, toQuery(r))

	if err != nil {
		return nil, err
	}

	chart := &Chart{Name: b.name, Title: b.title, Kind: KindBreakdown, Labels: make([]string, len(slices))}

	values := make([]float64, len(slices))

	for i, s := range slices {

		chart.Labels[i] = s.Label

		values[i] = s.Value
	}

	chart.Series = []Series{{Name: b.name, Values: values}}

	return chart, nil
}
