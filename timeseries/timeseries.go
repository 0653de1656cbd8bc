// Package timeseries buckets timestamped values into calendar intervals
// and fills the gaps so charts get one point per interval.
package timeseries

import (
	"fmt"
	"strings"
	"time"
)

type Granularity string

const (
	Day Granularity = "day"

	Week Granularity = "week"

	Month Granularity = "month"

	Year Granularity = "year"
)

// ParseGranularity accepts the names used in report URLs.
func ParseGranularity(s string) (Granularity, error) {

	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {

	case Day, Week, Month, Year:
		return g, nil

	case "":
		return Day, nil

	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}

// Point is one bucket of a series. Bucket is the start of the interval in UTC.
type Point[V any] struct {
	Bucket time.Time `json:"bucket"`

	Value V `json:"value"`
}

// Truncate returns the start of the interval containing t. Weeks start on Monday.
func Truncate(t time.Time, g Granularity) time.Time {

	t = t.UTC()

	y, m, d := t.Date()

	switch g {

	case Week:
		offset := (int(t.Weekday()) + 6) % 7

		return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)

	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)

	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)

	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// Next returns the start of the interval following the one that starts at t.
func Next(t time.Time, g Granularity) time.Time {

	switch g {

	case Week:
		return t.AddDate(0, 0, 7)

	case Month:
		return t.AddDate(0, 1, 0)

	case Year:
		return t.AddDate(1, 0, 0)

	default:
		return t.AddDate(0, 0, 1)
	}
}

// Buckets lists every interval start from the one containing start up to and
// including the one containing end.
func Buckets(start, end time.Time, g Granularity) []time.Time {

	first, last := Truncate(start, g), Truncate(end, g)

	if last.Before(first) {
		return nil
	}

	var buckets []time.Time

	for b := first; !b.After(last); b = Next(b, g) {
		buckets = append(buckets, b)
	}

	return buckets
}

// Label formats a bucket start for chart axes.
func Label(t time.Time, g Granularity) string {

	switch g {

	case Month:
		return t.Format("2006-01")

	case Year:
		return t.Format("2006")

	default:
		return t.Format("01-02")
	}
}

// Fill returns one point per bucket in [start, end], in order. Buckets with
// no row get def. Rows outside the range are dropped; when two rows share a
// bucket the later one wins.
func Fill[V any](rows []Point[V], start, end time.Time, g Granularity, def V) []Point[V] {

	byBucket := make(map[time.Time]V, len(rows))

	for _, row := range rows {
		byBucket[Truncate(row.Bucket, g)] = row.Value
	}

	buckets := Buckets(start, end, g)

	filled := make([]Point[V], 0, len(buckets))

	for _, b := range buckets {

		v, ok := byBucket[b]

		if !ok {
			v = def
		}

		filled = append(filled, Point[V]{Bucket: b, Value: v})
	}

	return filled
}
