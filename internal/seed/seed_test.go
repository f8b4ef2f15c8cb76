package seed

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/calendarimport"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/feed"
)

func TestSampleSemester(t *testing.T) {
	body, err := os.ReadFile("data/sample_semester.ics")
	require.NoError(t, err)

	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	events, err := feed.ParseICS(body, time.Time{}, time.Time{}, loc)
	require.NoError(t, err)
	require.Len(t, events, 6)

	s := calendarimport.NewSession(1, feed.SourceICS, loc)
	res := s.Process(events, domain.NewWeeklySchedule())

	// 3 + 2 + 1 个重复实例，加上期中考试和作业截止，全天的假期被跳过
	assert.Equal(t, 8, res.Stats.New)

	byID := make(map[string]domain.ReconciledOccurrence)
	for _, o := range res.Occurrences {
		byID[o.ID] = o
	}

	lecture := byID["cse1310-lecture@sample_Monday"]
	assert.Equal(t, domain.EventTypeClass, lecture.Classification.Type)
	assert.Equal(t, "cse1310-lecture@sample", lecture.RecurrenceGroupID)

	assert.Equal(t, domain.EventTypeExam, byID["phys-midterm@sample"].Classification.Type)
	assert.Equal(t, domain.EventTypeAssignment, byID["cse-hw3@sample"].Classification.Type)
	assert.Equal(t, domain.Thursday, byID["cse-hw3@sample"].DayOfWeek)
}
