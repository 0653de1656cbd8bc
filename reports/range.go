package reports

import (
	"fmt"
	"time"

	"statsdb/timeseries"
)

const dateLayout = "2006-01-02"

// DefaultSpan is the range shown when a request names no start date
const DefaultSpan = 30 * 24 * time.Hour

// MaxBuckets bounds the number of points a single chart may have
const MaxBuckets = 3700

// Range selects the data a report covers. Both ends are inclusive dates.
type Range struct {
	Start time.Time

	End time.Time

	Granularity timeseries.Granularity

	// Key narrows keyed reports (a usage key, flag name or crash type)
	Key string
}

// RangeError reports request parameters that do not form a valid range
type RangeError struct {
	Param string

	Err error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Param, e.Err)
}

func (e *RangeError) Unwrap() error {
	return e.Err
}

// ParseRange reads YYYY-MM-DD dates. A missing end means today and a missing
// start means DefaultSpan before the end.
func ParseRange(start, end, granularity, key string, now time.Time) (Range, error) {

	g, err := timeseries.ParseGranularity(granularity)

	if err != nil {
		return Range{}, &RangeError{Param: "granularity", Err: err}
	}

	r := Range{Granularity: g, Key: key}

	r.End = timeseries.Truncate(now, timeseries.Day)

	if end != "" {

		if r.End, err = time.Parse(dateLayout, end); err != nil {
			return Range{}, &RangeError{Param: "end", Err: err}
		}
	}

	r.Start = r.End.Add(-DefaultSpan)

	if start != "" {

		if r.Start, err = time.Parse(dateLayout, start); err != nil {
			return Range{}, &RangeError{Param: "start", Err: err}
		}
	}

	if r.End.Before(r.Start) {
		return Range{}, &RangeError{Param: "end", Err: fmt.Errorf("%s is before start %s", r.End.Format(dateLayout), r.Start.Format(dateLayout))}
	}

	if n := approxBuckets(r.Start, r.End, g); n > MaxBuckets {
		return Range{}, &RangeError{Param: "granularity", Err: fmt.Errorf("about %d %s buckets exceed the limit of %d", n, g, MaxBuckets)}
	}

	return r, nil
}

// approxBuckets overestimates the bucket count without enumerating buckets.
// Sub saturates for spans beyond a few centuries, which still trips the limit.
func approxBuckets(start, end time.Time, g timeseries.Granularity) int64 {

	days := int64(end.Sub(start)/(24*time.Hour)) + 1

	switch g {

	case timeseries.Week:
		return days/7 + 2

	case timeseries.Month:
		return days/28 + 2

	case timeseries.Year:
		return days/365 + 2

	default:
		return days
	}
}
