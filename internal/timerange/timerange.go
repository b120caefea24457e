// Package timerange resolves symbolic period tokens into inclusive calendar-day
// intervals.
package timerange

import (
	"time"
)

// DateLayout is the canonical sortable day format used for event and rollup keys.
const DateLayout = "2006-01-02"

const (
	Today      = "today"
	Yesterday  = "yesterday"
	Last7Days  = "last_7_days"
	Last30Days = "last_30_days"
	Last90Days = "last_90_days"
	ThisMonth  = "this_month"
	LastMonth  = "last_month"
	ThisYear   = "this_year"
	AllTime    = "all_time"
)

// DefaultPeriod is used for any token the resolver does not know.
const DefaultPeriod = Last30Days

var periods = []string{Today, Yesterday, Last7Days, Last30Days, Last90Days, ThisMonth, LastMonth, ThisYear, AllTime}

// Periods lists the accepted tokens.
func Periods() []string {
	out := make([]string, len(periods))
	copy(out, periods)
	return out
}

// Range is an inclusive [Start, End] interval of YYYY-MM-DD days.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (r Range) Contains(date string) bool {
	return date >= r.Start && date <= r.End
}

// StartTime is midnight of the first day in loc.
func (r Range) StartTime(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(DateLayout, r.Start, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// EndTime is midnight after the last day in loc, i.e. an exclusive bound.
func (r Range) EndTime(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(DateLayout, r.End, loc)
	if err != nil {
		return time.Time{}
	}
	return t.AddDate(0, 0, 1)
}

// Days enumerates every day in the range in calendar order.
func (r Range) Days() []string {
	start, err := time.Parse(DateLayout, r.Start)
	if err != nil {
		return nil
	}
	end, err := time.Parse(DateLayout, r.End)
	if err != nil || end.Before(start) {
		return nil
	}

	days := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}

type Resolver struct {
	now      func() time.Time
	location *time.Location
}

func NewResolver(now func() time.Time, location *time.Location) *Resolver {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &Resolver{
		now:      now,
		location: location,
	}
}

func (r *Resolver) Location() *time.Location {
	return r.location
}

// Today is the current calendar day in the resolver's location.
func (r *Resolver) Today() string {
	return r.today().Format(DateLayout)
}

// Resolve never fails: unknown tokens resolve to the last_30_days window.
func (r *Resolver) Resolve(period string) Range {
	today := r.today()

	switch period {
	case Today:
		return span(today, today)
	case Yesterday:
		y := today.AddDate(0, 0, -1)
		return span(y, y)
	case Last7Days:
		return span(today.AddDate(0, 0, -7), today)
	case Last30Days:
		return span(today.AddDate(0, 0, -30), today)
	case Last90Days:
		return span(today.AddDate(0, 0, -90), today)
	case ThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, r.location)
		return span(first, today)
	case LastMonth:
		firstThis := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, r.location)
		return span(firstThis.AddDate(0, -1, 0), firstThis.AddDate(0, 0, -1))
	case ThisYear:
		return span(time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, r.location), today)
	case AllTime:
		return span(time.Date(1970, time.January, 1, 0, 0, 0, 0, r.location), today)
	default:
		return r.Resolve(DefaultPeriod)
	}
}

func (r *Resolver) today() time.Time {
	now := r.now().In(r.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.location)
}

func span(start, end time.Time) Range {
	return Range{Start: start.Format(DateLayout), End: end.Format(DateLayout)}
}
