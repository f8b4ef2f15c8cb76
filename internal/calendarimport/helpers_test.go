package calendarimport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

// at 返回 2025-09-01（周一）起第 dayOffset 天的 hh:mm
func at(loc *time.Location, dayOffset, hour, minute int) time.Time {
	return time.Date(2025, time.September, 1+dayOffset, hour, minute, 0, 0, loc)
}

func rawEvent(id, title string, start, end time.Time) domain.RawCalendarEvent {
	return domain.RawCalendarEvent{
		ID:    id,
		Title: title,
		Start: start,
		End:   end,
	}
}

// memoryStore 是 ScheduleStore 的内存实现
type memoryStore struct {
	schedules map[int64]domain.WeeklySchedule
	writes    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{schedules: make(map[int64]domain.WeeklySchedule)}
}

func (m *memoryStore) GetWeeklySchedule(userID int64) (domain.WeeklySchedule, error) {
	ws, ok := m.schedules[userID]
	if !ok {
		return domain.NewWeeklySchedule(), nil
	}
	return ws.Clone(), nil
}

func (m *memoryStore) SetWeeklySchedule(userID int64, schedule domain.WeeklySchedule) error {
	m.writes++
	m.schedules[userID] = schedule.Clone()
	return nil
}
