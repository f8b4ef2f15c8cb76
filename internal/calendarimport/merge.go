package calendarimport

import (
	"time"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

func ToScheduleEntry(o domain.ReconciledOccurrence, loc *time.Location) domain.ScheduleEntry {
	return domain.ScheduleEntry{
		ClassName:  o.Title,
		Location:   locationOrDefault(o.Location),
		StartTime:  formatTimeOfDay(o.Start, loc),
		EndTime:    formatTimeOfDay(o.End, loc),
		IsImported: true,
		EventType:  o.Classification.Type,
	}
}

// Merge 把选中的实例合并进课表并返回新课表，不修改传入的 schedule。
// 同一天里标题相同或者 (开始, 结束) 时间相同的已有条目会先被移除再追加新条目，
// 所以重复合并同一批实例结果不变。
func Merge(schedule domain.WeeklySchedule, selected []domain.ReconciledOccurrence, loc *time.Location) domain.WeeklySchedule {
	merged := schedule.Normalize().Clone()
	touched := make(map[domain.Weekday]bool)

	for _, o := range selected {
		if !o.DayOfWeek.Valid() {
			continue
		}
		entry := ToScheduleEntry(o, loc)

		kept := make([]domain.ScheduleEntry, 0, len(merged[o.DayOfWeek])+1)
		for _, e := range merged[o.DayOfWeek] {
			if sameTitle(e.ClassName, entry.ClassName) {
				continue
			}
			if e.StartTime == entry.StartTime && e.EndTime == entry.EndTime {
				continue
			}
			kept = append(kept, e)
		}
		merged[o.DayOfWeek] = append(kept, entry)
		touched[o.DayOfWeek] = true
	}

	for day := range touched {
		domain.SortEntries(merged[day])
	}

	return merged
}
