package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thurmanmarka/fujiglide/internal/model"
	"github.com/thurmanmarka/fujiglide/internal/store"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// fakeEvents serves a fixed event slice, filtering like the real repo.
type fakeEvents struct {
	events []*model.Event
	stats  *store.YearlyStats
}

func (f *fakeEvents) ByDateRange(ctx context.Context, from, to time.Time) ([]*model.Event, error) {
	var out []*model.Event
	for _, e := range f.events {
		if !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) ByDay(ctx context.Context, date time.Time) ([]*model.Event, error) {
	day := timeutil.CivilDateJST(date)
	var out []*model.Event
	for _, e := range f.events {
		if e.Date.Equal(day) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) Upcoming(ctx context.Context, now time.Time, limit int) ([]*model.Event, error) {
	var out []*model.Event
	for _, e := range f.events {
		if !e.Time.Before(now) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) ByLocationYear(ctx context.Context, locationID int64, year int) ([]*model.Event, error) {
	var out []*model.Event
	for _, e := range f.events {
		if e.LocationID == locationID && e.Date.Year() == year {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) StatsForYear(ctx context.Context, year int) (*store.YearlyStats, error) {
	return f.stats, nil
}

func event(loc int64, kind model.EventKind, y int, m time.Month, d, hh, mm int) *model.Event {
	return &model.Event{
		LocationID: loc,
		Kind:       kind,
		Date:       timeutil.DateJST(y, m, d),
		Time:       time.Date(y, m, d, hh, mm, 0, 0, timeutil.JST),
	}
}

func TestGridRange(t *testing.T) {
	tests := []struct {
		year     int
		month    time.Month
		wantFrom time.Time
		wantTo   time.Time
	}{
		// Feb 2026 starts on a Sunday and ends on a Saturday: exact fit.
		{2026, time.February, timeutil.DateJST(2026, time.February, 1), timeutil.DateJST(2026, time.February, 28)},
		// Jan 2026 starts on a Thursday: grid reaches back to Dec 28.
		{2026, time.January, timeutil.DateJST(2025, time.December, 28), timeutil.DateJST(2026, time.January, 31)},
		// Jun 2026 ends on a Tuesday: grid spills into July 4.
		{2026, time.June, timeutil.DateJST(2026, time.May, 31), timeutil.DateJST(2026, time.July, 4)},
	}
	for _, tt := range tests {
		from, to := GridRange(tt.year, tt.month)
		assert.True(t, from.Equal(tt.wantFrom), "%v %d from = %v, want %v", tt.month, tt.year, from, tt.wantFrom)
		assert.True(t, to.Equal(tt.wantTo), "%v %d to = %v, want %v", tt.month, tt.year, to, tt.wantTo)
		assert.Equal(t, time.Sunday, from.Weekday())
		assert.Equal(t, time.Saturday, to.Weekday())

		days := int(to.Sub(from).Hours()/24) + 1
		assert.Zero(t, days%7, "grid length %d not whole weeks", days)
	}
}

func TestMonthlyCalendar(t *testing.T) {
	fake := &fakeEvents{events: []*model.Event{
		event(1, model.DiamondSunset, 2026, time.February, 10, 16, 42),
		event(2, model.DiamondSunset, 2026, time.February, 10, 17, 3),
		event(1, model.PearlMoonrise, 2026, time.February, 14, 5, 21),
	}}
	f := New(fake)

	m, err := f.MonthlyCalendar(context.Background(), 2026, time.February)
	require.NoError(t, err)
	assert.Equal(t, 2026, m.Year)
	assert.Equal(t, time.February, m.Month)
	assert.Len(t, m.Days, 28) // exact-fit month

	byDate := map[string]Day{}
	for _, d := range m.Days {
		byDate[d.Date.Format("2006-01-02")] = d
	}

	feb10 := byDate["2026-02-10"]
	assert.Len(t, feb10.Events, 2)
	assert.Equal(t, []model.EventKind{model.DiamondSunset}, feb10.Kinds)

	feb14 := byDate["2026-02-14"]
	assert.Len(t, feb14.Events, 1)
	assert.Equal(t, []model.EventKind{model.PearlMoonrise}, feb14.Kinds)

	assert.Empty(t, byDate["2026-02-11"].Events)
}

func TestMonthlyCalendarRejectsBadMonth(t *testing.T) {
	f := New(&fakeEvents{})
	_, err := f.MonthlyCalendar(context.Background(), 2026, time.Month(13))
	assert.Error(t, err)
}

func TestDayEvents(t *testing.T) {
	fake := &fakeEvents{events: []*model.Event{
		event(1, model.DiamondSunrise, 2026, time.January, 5, 6, 55),
		event(1, model.DiamondSunset, 2026, time.January, 6, 16, 30),
	}}
	f := New(fake)

	evs, err := f.DayEvents(context.Background(), timeutil.DateJST(2026, time.January, 5))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, model.DiamondSunrise, evs[0].Kind)
}

func TestUpcomingDefaultLimit(t *testing.T) {
	var evs []*model.Event
	for d := 1; d <= 20; d++ {
		evs = append(evs, event(1, model.DiamondSunset, 2099, time.January, d, 16, 0))
	}
	f := New(&fakeEvents{events: evs})

	got, err := f.Upcoming(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 10)

	got, err = f.Upcoming(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestYearlyStats(t *testing.T) {
	f := New(&fakeEvents{stats: &store.YearlyStats{
		Year:  2026,
		Total: 42,
		CountsByKind: map[model.EventKind]int{
			model.DiamondSunrise: 10,
			model.DiamondSunset:  12,
			model.PearlMoonrise:  9,
			model.PearlMoonset:   11,
		},
		ActiveLocationCount: 6,
	}})

	s, err := f.YearlyStats(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, 42, s.Total)
	assert.Equal(t, 22, s.DiamondTotal)
	assert.Equal(t, 20, s.PearlTotal)
	assert.Equal(t, 6, s.ActiveLocationCount)
}
