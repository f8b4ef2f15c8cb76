package calendarimport

import (
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
	"github.com/teambition/rrule-go"
)

// rrule-go 中 Weekday.Day() 的取值：0 为周一，6 为周日
var rruleWorkdays = map[int]domain.Weekday{
	0: domain.Monday,
	1: domain.Tuesday,
	2: domain.Wednesday,
	3: domain.Thursday,
	4: domain.Friday,
}

// parseWeeklyDays 从 WEEKLY 规则中取出 BYDAY 里的工作日。
// 规则无法解析、不是 WEEKLY 或者没有可识别的工作日时返回 false，
// 调用方退化为单个实例处理。
func parseWeeklyDays(rule string) ([]domain.Weekday, bool) {
	rule = strings.ToUpper(strings.TrimSpace(rule))
	rule = strings.TrimPrefix(rule, "RRULE:")
	if rule == "" {
		return nil, false
	}

	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, false
	}
	if opt.Freq != rrule.WEEKLY {
		return nil, false
	}

	days := make([]domain.Weekday, 0, len(opt.Byweekday))
	seen := make(map[domain.Weekday]bool)
	for _, wd := range opt.Byweekday {
		day, ok := rruleWorkdays[wd.Day()]
		if !ok || seen[day] {
			// 周末的 SA / SU 不映射，直接丢弃
			continue
		}
		seen[day] = true
		days = append(days, day)
	}

	return days, len(days) > 0
}

// Expand 把一个原始事件展开成落在工作日上的实例。
// 展开出的实例直接复制原事件的开始/结束时间，后续只使用时分和工作日。
// 落在周末的单次事件不属于课表范围，返回空切片。
func Expand(ev domain.RawCalendarEvent, loc *time.Location) []domain.Occurrence {
	base := domain.Occurrence{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    locationOrDefault(ev.Location),
		Start:       ev.Start,
		End:         ev.End,
		IsRecurring: strings.TrimSpace(ev.RecurrenceRule) != "",
	}

	days, ok := parseWeeklyDays(ev.RecurrenceRule)
	if !ok {
		day, isWorkday := domain.WeekdayOf(ev.Start.In(loc).Weekday())
		if !isWorkday {
			return []domain.Occurrence{}
		}
		base.DayOfWeek = day
		return []domain.Occurrence{base}
	}

	out := make([]domain.Occurrence, 0, len(days))
	for _, day := range days {
		occ := base
		occ.ID = ev.ID + "_" + string(day)
		occ.DayOfWeek = day
		occ.RecurrenceGroupID = ev.ID
		out = append(out, occ)
	}
	return out
}
