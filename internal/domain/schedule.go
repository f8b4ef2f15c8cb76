package domain

import (
	"slices"
	"strings"
	"time"
)

type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
)

// WorkWeek 周一到周五，课表只关心这五天
var WorkWeek = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

// WeekdayOf 返回 time.Weekday 对应的工作日，周末返回 false
func WeekdayOf(d time.Weekday) (Weekday, bool) {
	switch d {
	case time.Monday:
		return Monday, true
	case time.Tuesday:
		return Tuesday, true
	case time.Wednesday:
		return Wednesday, true
	case time.Thursday:
		return Thursday, true
	case time.Friday:
		return Friday, true
	default:
		return "", false
	}
}

func (d Weekday) Valid() bool {
	for _, w := range WorkWeek {
		if w == d {
			return true
		}
	}
	return false
}

// DefaultLocation 地点缺失时使用的占位值
const DefaultLocation = "Not specified"

// TimeOfDayLayout 课表中 startTime / endTime 的格式，例如 "9:00 AM"
const TimeOfDayLayout = "3:04 PM"

type ScheduleEntry struct {
	ClassName  string    `json:"className"`
	Location   string    `json:"location"`
	StartTime  string    `json:"startTime"`
	EndTime    string    `json:"endTime"`
	IsImported bool      `json:"isImported,omitempty"`
	EventType  EventType `json:"eventType,omitempty"`
}

// WeeklySchedule 每个工作日对应一个按开始时间升序排列的课程列表
type WeeklySchedule map[Weekday][]ScheduleEntry

// NewWeeklySchedule 返回五天都已初始化的空课表
func NewWeeklySchedule() WeeklySchedule {
	ws := make(WeeklySchedule, len(WorkWeek))
	for _, d := range WorkWeek {
		ws[d] = []ScheduleEntry{}
	}
	return ws
}

// Normalize 补齐缺失的工作日并丢弃非工作日的键
func (ws WeeklySchedule) Normalize() WeeklySchedule {
	out := NewWeeklySchedule()
	for d, entries := range ws {
		if !d.Valid() || entries == nil {
			continue
		}
		out[d] = entries
	}
	return out
}

// Clone 深拷贝，合并时不修改调用方持有的课表
func (ws WeeklySchedule) Clone() WeeklySchedule {
	out := make(WeeklySchedule, len(ws))
	for d, entries := range ws {
		cp := make([]ScheduleEntry, len(entries))
		copy(cp, entries)
		out[d] = cp
	}
	return out
}

// ExistingEntry 是课表被展平后用于比对的一行
type ExistingEntry struct {
	Weekday   Weekday `json:"weekday"`
	Title     string  `json:"title"`
	Location  string  `json:"location"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
}

// Flatten 按周一到周五的顺序展平课表
func (ws WeeklySchedule) Flatten() []ExistingEntry {
	out := make([]ExistingEntry, 0)
	for _, d := range WorkWeek {
		for _, e := range ws[d] {
			out = append(out, ExistingEntry{
				Weekday:   d,
				Title:     e.ClassName,
				Location:  e.Location,
				StartTime: e.StartTime,
				EndTime:   e.EndTime,
			})
		}
	}
	return out
}

func (ws WeeklySchedule) IsEmpty() bool {
	for _, entries := range ws {
		if len(entries) > 0 {
			return false
		}
	}
	return true
}

// ParseTimeOfDay 解析 "9:00 AM" 格式的时间，只保留时分
func ParseTimeOfDay(s string) (time.Time, error) {
	return time.Parse(TimeOfDayLayout, strings.TrimSpace(s))
}

// SortEntries 按开始时间升序稳定排序，无法解析的时间排在最后
func SortEntries(entries []ScheduleEntry) {
	slices.SortStableFunc(entries, func(a, b ScheduleEntry) int {
		at, aErr := ParseTimeOfDay(a.StartTime)
		bt, bErr := ParseTimeOfDay(b.StartTime)
		switch {
		case aErr != nil && bErr != nil:
			return 0
		case aErr != nil:
			return 1
		case bErr != nil:
			return -1
		}
		return at.Compare(bt)
	})
}

// UserSchedule 是数据库中保存的课表，Version 用于手动编辑时的乐观锁
type UserSchedule struct {
	UserID    int64          `json:"userId"`
	Schedule  WeeklySchedule `json:"schedule"`
	Version   int32          `json:"version"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
