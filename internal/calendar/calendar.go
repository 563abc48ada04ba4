// Package calendar is the read side: month grids, day views, upcoming
// windows, and yearly aggregates, all bucketed by JST civil date and joined
// with their locations. No business logic beyond join, sort, and bucketing.
package calendar

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/thurmanmarka/fujiglide/internal/model"
	"github.com/thurmanmarka/fujiglide/internal/store"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// Events is the event-store read surface the facade queries.
type Events interface {
	ByDateRange(ctx context.Context, from, to time.Time) ([]*model.Event, error)
	ByDay(ctx context.Context, date time.Time) ([]*model.Event, error)
	Upcoming(ctx context.Context, now time.Time, limit int) ([]*model.Event, error)
	ByLocationYear(ctx context.Context, locationID int64, year int) ([]*model.Event, error)
	StatsForYear(ctx context.Context, year int) (*store.YearlyStats, error)
}

// Day is one cell of the month grid.
type Day struct {
	Date   time.Time // midnight JST
	Kinds  []model.EventKind
	Events []*model.Event
}

// Month is a calendar grid: full weeks, Sunday through Saturday, spilling
// into neighboring months as needed.
type Month struct {
	Year  int
	Month time.Month
	Days  []Day
}

// YearlyStats is the aggregate view of one calendar year.
type YearlyStats struct {
	Year                int
	Total               int
	DiamondTotal        int
	PearlTotal          int
	ActiveLocationCount int
}

// Facade assembles calendar responses for the external HTTP layer.
type Facade struct {
	events Events
}

// New builds a facade over the event store.
func New(events Events) *Facade {
	return &Facade{events: events}
}

// GridRange returns the first and last day of the calendar grid for a
// month: the Sunday on/before day 1 through the Saturday on/after the last
// day. Both are midnight JST.
func GridRange(year int, month time.Month) (from, to time.Time) {
	first := timeutil.DateJST(year, month, 1)
	last := timeutil.DateJST(year, month, timeutil.DaysInMonth(year, month))

	from = first.AddDate(0, 0, -int(first.Weekday()))
	to = last.AddDate(0, 0, int(time.Saturday-last.Weekday()))
	return from, to
}

// MonthlyCalendar returns the grid for (year, month) with every day's
// events, including the trailing and leading days of neighboring months.
func (f *Facade) MonthlyCalendar(ctx context.Context, year int, month time.Month) (*Month, error) {
	if month < time.January || month > time.December {
		return nil, errors.Errorf("invalid month %d", month)
	}

	from, to := GridRange(year, month)
	events, err := f.events.ByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]*model.Event)
	for _, e := range events {
		k := e.Date.Format("2006-01-02")
		byDay[k] = append(byDay[k], e)
	}

	m := &Month{Year: year, Month: month}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		evs := byDay[d.Format("2006-01-02")]
		m.Days = append(m.Days, Day{
			Date:   d,
			Kinds:  kindsPresent(evs),
			Events: evs,
		})
	}
	return m, nil
}

func kindsPresent(events []*model.Event) []model.EventKind {
	seen := map[model.EventKind]bool{}
	var kinds []model.EventKind
	for _, e := range events {
		if !seen[e.Kind] {
			seen[e.Kind] = true
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

// DayEvents returns one civil date's events sorted ascending by time.
func (f *Facade) DayEvents(ctx context.Context, date time.Time) ([]*model.Event, error) {
	return f.events.ByDay(ctx, date)
}

// Upcoming returns up to limit events at or after now (JST).
func (f *Facade) Upcoming(ctx context.Context, limit int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	return f.events.Upcoming(ctx, time.Now().In(timeutil.JST), limit)
}

// LocationYear returns one location's full year.
func (f *Facade) LocationYear(ctx context.Context, locationID int64, year int) ([]*model.Event, error) {
	return f.events.ByLocationYear(ctx, locationID, year)
}

// YearlyStats returns the aggregate counts of one year.
func (f *Facade) YearlyStats(ctx context.Context, year int) (*YearlyStats, error) {
	raw, err := f.events.StatsForYear(ctx, year)
	if err != nil {
		return nil, err
	}
	return &YearlyStats{
		Year:  year,
		Total: raw.Total,
		DiamondTotal: raw.CountsByKind[model.DiamondSunrise] +
			raw.CountsByKind[model.DiamondSunset],
		PearlTotal: raw.CountsByKind[model.PearlMoonrise] +
			raw.CountsByKind[model.PearlMoonset],
		ActiveLocationCount: raw.ActiveLocationCount,
	}, nil
}
