package calendarimport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

func TestExpandWeeklyRule(t *testing.T) {
	loc := mustLocation(t, "America/Chicago")
	ev := rawEvent("evt1", "CSE 1310 Lecture", at(loc, 0, 9, 0), at(loc, 0, 9, 50))
	ev.RecurrenceRule = "RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR"

	occs := Expand(ev, loc)

	require.Len(t, occs, 3)
	days := []domain.Weekday{domain.Monday, domain.Wednesday, domain.Friday}
	for i, occ := range occs {
		assert.Equal(t, "evt1", occ.RecurrenceGroupID)
		assert.Equal(t, days[i], occ.DayOfWeek)
		assert.Equal(t, "evt1_"+string(days[i]), occ.ID)
		assert.True(t, occ.IsRecurring)
		assert.True(t, occ.Start.Equal(ev.Start))
		assert.True(t, occ.End.Equal(ev.End))
		assert.Equal(t, domain.DefaultLocation, occ.Location)
	}
}

func TestExpandDropsWeekendTokens(t *testing.T) {
	loc := mustLocation(t, "UTC")
	ev := rawEvent("evt2", "Study group", at(loc, 1, 18, 0), at(loc, 1, 19, 0))
	ev.RecurrenceRule = "RRULE:FREQ=WEEKLY;WKST=SU;BYDAY=SA,TU,SU,TH"

	occs := Expand(ev, loc)

	require.Len(t, occs, 2)
	assert.Equal(t, domain.Tuesday, occs[0].DayOfWeek)
	assert.Equal(t, domain.Thursday, occs[1].DayOfWeek)
}

func TestExpandFallsBackToSingleOccurrence(t *testing.T) {
	loc := mustLocation(t, "UTC")
	start := at(loc, 2, 14, 0) // 周三

	tests := []struct {
		name string
		rule string
	}{
		{"no rule", ""},
		{"daily rule", "RRULE:FREQ=DAILY;COUNT=5"},
		{"weekly without byday", "RRULE:FREQ=WEEKLY;INTERVAL=2"},
		{"weekend only", "RRULE:FREQ=WEEKLY;BYDAY=SA,SU"},
		{"malformed", "RRULE:FREQ=WEEKLY;BYDAY"},
		{"garbage", "every tuesday please"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := rawEvent("evt3", "Office hours", start, start.Add(time.Hour))
			ev.RecurrenceRule = tt.rule

			occs := Expand(ev, loc)

			require.Len(t, occs, 1)
			assert.Equal(t, "evt3", occs[0].ID)
			assert.Empty(t, occs[0].RecurrenceGroupID)
			assert.Equal(t, domain.Wednesday, occs[0].DayOfWeek)
		})
	}
}

func TestExpandWeekdayUsesDisplayTimezone(t *testing.T) {
	chicago := mustLocation(t, "America/Chicago")
	// 周二 01:00 UTC 在芝加哥是周一晚上
	start := at(mustLocation(t, "UTC"), 1, 1, 0)
	ev := rawEvent("evt4", "Evening seminar", start, start.Add(time.Hour))

	occs := Expand(ev, chicago)

	require.Len(t, occs, 1)
	assert.Equal(t, domain.Monday, occs[0].DayOfWeek)
}

func TestExpandSkipsWeekendSingleEvent(t *testing.T) {
	loc := mustLocation(t, "UTC")
	ev := rawEvent("evt5", "Hackathon", at(loc, 5, 10, 0), at(loc, 5, 18, 0)) // 周六

	assert.Empty(t, Expand(ev, loc))
}
