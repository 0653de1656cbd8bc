package timeseries

import (
	"sort"
	"time"
)

// Table is several series aligned on a shared, ordered set of buckets.
type Table[V any] struct {
	Buckets []time.Time

	Columns map[string][]V
}

// Merge aligns the named series on the union of their buckets. Each series
// fills its own missing buckets with its entry in defaults, or the zero value
// of V when it has none.
func Merge[V any](series map[string][]Point[V], defaults map[string]V) Table[V] {

	seen := make(map[time.Time]struct{})

	for _, points := range series {

		for _, p := range points {
			seen[p.Bucket] = struct{}{}
		}
	}

	buckets := make([]time.Time, 0, len(seen))

	for b := range seen {
		buckets = append(buckets, b)
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	table := Table[V]{

		Buckets: buckets,

		Columns: make(map[string][]V, len(series)),
	}

	for name, points := range series {

		byBucket := make(map[time.Time]V, len(points))

		for _, p := range points {
			byBucket[p.Bucket] = p.Value
		}

		column := make([]V, len(buckets))

		for i, b := range buckets {

			v, ok := byBucket[b]

			if !ok {
				v = defaults[name]
			}

			column[i] = v
		}

		table.Columns[name] = column
	}

	return table
}

// Unit is a display unit for series measured in seconds.
type Unit string

const (
	Seconds Unit = "seconds"

	Minutes Unit = "minutes"

	Hours Unit = "hours"

	Days Unit = "days"
)

var secondsPer = map[Unit]float64{

	Seconds: 1,

	Minutes: 60,

	Hours: 60 * 60,

	Days: 24 * 60 * 60,
}

// Rescale converts a series of seconds into unit. Values are not rounded.
func Rescale(points []Point[float64], unit Unit) []Point[float64] {

	divisor, ok := secondsPer[unit]

	if !ok {
		divisor = 1
	}

	scaled := make([]Point[float64], len(points))

	for i, p := range points {
		scaled[i] = Point[float64]{Bucket: p.Bucket, Value: p.Value / divisor}
	}

	return scaled
}
