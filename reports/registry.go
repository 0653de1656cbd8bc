package reports

import (
	"context"
	"fmt"

	"statsdb/database"
	"statsdb/querycache"
	"statsdb/timeseries"
)

// Info describes a report for listings
type Info struct {
	Name string `json:"name"`

	Title string `json:"title"`
}

// ErrUnknownReport is returned by Build for names that are not registered
type ErrUnknownReport struct {
	Name string
}

func (e *ErrUnknownReport) Error() string {
	return fmt.Sprintf("unknown report %q", e.Name)
}

// Registry holds the reports in listing order
type Registry struct {
	reports map[string]Report

	order []string
}

// NewRegistry wires every report to repo. Each underlying query goes through
// cache under the report's name.
func NewRegistry(repo *database.ReportRepository, cache *querycache.Cache) *Registry {

	r := &Registry{reports: make(map[string]Report)}

	r.add(

		&seriesReport{

			name: "uptime",

			title: "Total uptime (hours)",

			unit: timeseries.Hours,

			query: querycache.Memoize(cache, "uptime", repo.UptimeSeconds),
		},

		&seriesReport{

			name: "new_machines",

			title: "New machine configurations",

			query: querycache.Memoize(cache, "new_machines", repo.NewMachines),
		},

		&seriesReport{

			name: "active_machines",

			title: "Machines reporting usage",

			query: querycache.Memoize(cache, "active_machines", repo.ActiveMachines),
		},

		&seriesReport{

			name: "crashes",

			title: "Crash reports",

			query: querycache.Memoize(cache, "crashes", repo.Crashes),
		},

		&keyedSeriesReport{

			name: "usage_counts",

			title: "Feature usage",

			query: querycache.Memoize(cache, "usage_counts", repo.UsageCounts),
		},

		&breakdownReport{

			name: "tool_usage",

			title: "Tool usage",

			query: querycache.Memoize(cache, "tool_usage", repo.ToolUsage),
		},

		&breakdownReport{

			name: "flags",

			title: "Flag values",

			query: querycache.Memoize(cache, "flags", repo.FlagValues),
		},

		&breakdownReport{

			name: "os",

			title: "Operating systems of new machines",

			query: querycache.Memoize(cache, "os", repo.OperatingSystems),
		},

		&breakdownReport{

			name: "versions",

			title: "Versions of new machines",

			query: querycache.Memoize(cache, "versions", repo.Versions),
		},

		&seriesReport{

			name: "average_session",

			title: "Average session length (minutes)",

			unit: timeseries.Minutes,

			query: sessionKey(querycache.Memoize(cache, "average_session", repo.SessionSeconds)),
		},
	)

	return r
}

// sessionKey defaults the sum-and-count key to "session"
func sessionKey(fn seriesFunc) seriesFunc {

	return func(ctx context.Context, q database.SeriesQuery) ([]timeseries.Point[float64], error) {

		if q.Key == "" {
			q.Key = "session"
		}

		return fn(ctx, q)
	}
}

func (r *Registry) add(reports ...Report) {

	for _, report := range reports {

		if _, exists := r.reports[report.Name()]; exists {
			panic(fmt.Sprintf("reports: %q registered twice", report.Name()))
		}

		r.reports[report.Name()] = report

		r.order = append(r.order, report.Name())
	}
}

// List returns every report in registration order
func (r *Registry) List() []Info {

	infos := make([]Info, 0, len(r.order))

	for _, name := range r.order {
		infos = append(infos, Info{Name: name, Title: r.reports[name].Title()})
	}

	return infos
}

func (r *Registry) Get(name string) (Report, bool) {

	report, ok := r.reports[name]

	return report, ok
}

// Build renders the named report over rng
func (r *Registry) Build(ctx context.Context, name string, rng Range) (*Chart, error) {

	report, ok := r.Get(name)

	if !ok {
		return nil, &ErrUnknownReport{Name: name}
	}

	return report.Build(ctx, rng)
}
