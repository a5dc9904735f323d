package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekDates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		anchor time.Time
		monday time.Time
	}{
		{"wednesday", date(2025, time.March, 12), date(2025, time.March, 10)},
		{"monday", date(2025, time.March, 10), date(2025, time.March, 10)},
		{"sunday", date(2025, time.March, 16), date(2025, time.March, 10)},
		{"across year", date(2026, time.January, 1), date(2025, time.December, 29)},
		{"time of day ignored", time.Date(2025, time.March, 12, 23, 59, 0, 0, time.UTC), date(2025, time.March, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			week := WeekDates(tt.anchor)
			assert.Equal(t, tt.monday, week[0])
			assert.Equal(t, time.Monday, week[0].Weekday())
			assert.Equal(t, time.Sunday, week[6].Weekday())
			for i := 1; i < len(week); i++ {
				assert.Equal(t, week[i-1].AddDate(0, 0, 1), week[i])
			}
		})
	}
}

func TestMonthDates(t *testing.T) {
	t.Parallel()

	t.Run("month starting on wednesday has two placeholders", func(t *testing.T) {
		t.Parallel()

		// 1 October 2025 is a Wednesday.
		cells := MonthDates(date(2025, time.October, 17))
		require.Len(t, cells, 2+31)
		assert.True(t, cells[0].IsZero())
		assert.True(t, cells[1].IsZero())
		assert.Equal(t, date(2025, time.October, 1), cells[2])
		assert.Equal(t, date(2025, time.October, 31), cells[len(cells)-1])
	})

	t.Run("month starting on monday has none", func(t *testing.T) {
		t.Parallel()

		cells := MonthDates(date(2025, time.September, 30))
		require.Len(t, cells, 30)
		assert.Equal(t, date(2025, time.September, 1), cells[0])
	})

	t.Run("month starting on sunday has six", func(t *testing.T) {
		t.Parallel()

		// 1 June 2025 is a Sunday.
		cells := MonthDates(date(2025, time.June, 1))
		require.Len(t, cells, 6+30)
		for i := 0; i < 6; i++ {
			assert.True(t, cells[i].IsZero())
		}
	})

	t.Run("leap february", func(t *testing.T) {
		t.Parallel()

		cells := MonthDates(date(2024, time.February, 10))
		assert.Equal(t, date(2024, time.February, 29), cells[len(cells)-1])
	})
}

func TestNavigate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		anchor time.Time
		mode   Mode
		dir    Direction
		want   time.Time
	}{
		{"day forward", date(2025, time.March, 31), ModeDay, Forward, date(2025, time.April, 1)},
		{"day backward", date(2025, time.March, 1), ModeDay, Backward, date(2025, time.February, 28)},
		{"week forward", date(2025, time.December, 29), ModeWeek, Forward, date(2026, time.January, 5)},
		{"week backward", date(2025, time.March, 12), ModeWeek, Backward, date(2025, time.March, 5)},
		{"month forward across year", date(2025, time.December, 15), ModeMonth, Forward, date(2026, time.January, 15)},
		{"month backward across year", date(2026, time.January, 15), ModeMonth, Backward, date(2025, time.December, 15)},
		{"month clamps day", date(2025, time.January, 31), ModeMonth, Forward, date(2025, time.February, 28)},
		{"month clamps leap day", date(2024, time.March, 31), ModeMonth, Backward, date(2024, time.February, 29)},
		{"list pages by month", date(2025, time.May, 2), ModeList, Forward, date(2025, time.June, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Navigate(tt.anchor, tt.mode, tt.dir))
		})
	}
}

func TestRange(t *testing.T) {
	t.Parallel()

	start, end := Range(date(2025, time.March, 12), ModeWeek)
	assert.Equal(t, date(2025, time.March, 10), start)
	assert.Equal(t, date(2025, time.March, 16), end)

	start, end = Range(date(2025, time.February, 12), ModeMonth)
	assert.Equal(t, date(2025, time.February, 1), start)
	assert.Equal(t, date(2025, time.February, 28), end)

	start, end = Range(time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC), ModeDay)
	assert.Equal(t, date(2025, time.March, 12), start)
	assert.Equal(t, start, end)
}

func TestIsToday(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 12, 8, 30, 0, 0, time.UTC)
	assert.True(t, IsToday(date(2025, time.March, 12), now))
	assert.True(t, IsToday(time.Date(2025, time.March, 12, 23, 59, 0, 0, time.UTC), now))
	assert.False(t, IsToday(date(2025, time.March, 13), now))
	assert.False(t, IsToday(date(2024, time.March, 12), now))
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	m, err := ParseClock("14:30")
	require.NoError(t, err)
	assert.Equal(t, 14*60+30, m)

	_, err = ParseClock("25:00")
	require.ErrorIs(t, err, ErrBadClock)
}

func TestSlotGeometry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end string
		want       Geometry
	}{
		{"half hour", "10:00", "10:30", Geometry{Offset: 180, Length: 30}},
		{"two hours", "07:00", "09:00", Geometry{Offset: 0, Length: 120}},
		{"short event floored", "12:00", "12:05", Geometry{Offset: 300, Length: DefaultMinSlotPixels}},
		{"end before start floored", "12:00", "11:00", Geometry{Offset: 300, Length: DefaultMinSlotPixels}},
		{"before day start", "06:00", "07:00", Geometry{Offset: -60, Length: 60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g, err := SlotGeometry(tt.start, tt.end, 7, 60)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Offset, g.Offset, 1e-9)
			assert.InDelta(t, tt.want.Length, g.Length, 1e-9)
		})
	}

	t.Run("custom floor", func(t *testing.T) {
		t.Parallel()

		l := Layout{DayStartHour: 8, PixelsPerHour: 48, MinSlotPixels: 30}
		g, err := l.Geometry("08:30", "08:45")
		require.NoError(t, err)
		assert.InDelta(t, 24, g.Offset, 1e-9)
		assert.InDelta(t, 30, g.Length, 1e-9)
	})

	t.Run("bad clock", func(t *testing.T) {
		t.Parallel()

		_, err := SlotGeometry("10h", "11:00", 7, 60)
		require.Error(t, err)
	})
}
