package domain

import "time"

// RawCalendarEvent 是从外部日历源拉取的原始事件，只读
type RawCalendarEvent struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AllDay         bool      `json:"allDay,omitempty"`
	RecurrenceRule string    `json:"recurrenceRule,omitempty"` // 形如 "RRULE:FREQ=WEEKLY;BYDAY=MO,WE"
	Deleted        bool      `json:"deleted,omitempty"`
}

type EventType string

const (
	EventTypeClass      EventType = "class"
	EventTypeExam       EventType = "exam"
	EventTypeQuiz       EventType = "quiz"
	EventTypeAssignment EventType = "assignment"
	EventTypeLab        EventType = "lab"
	EventTypeOther      EventType = "other"
)

// Occurrence 是展开重复规则后落在某个工作日上的一个实例
type Occurrence struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Location          string    `json:"location"`
	DayOfWeek         Weekday   `json:"dayOfWeek"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	IsRecurring       bool      `json:"isRecurring"`
	RecurrenceGroupID string    `json:"recurrenceGroupId,omitempty"` // 同一个源事件展开出的实例共享
}

type Classification struct {
	Type       EventType `json:"type"`
	Confidence int       `json:"confidence"` // 0 ~ 100
}

type ClassifiedOccurrence struct {
	Occurrence
	Classification Classification `json:"classification"`
}

type ReconcileStatus string

const (
	StatusNew       ReconcileStatus = "new"
	StatusUpdated   ReconcileStatus = "updated"
	StatusUnchanged ReconcileStatus = "unchanged"
)

type FieldChanges struct {
	Location bool `json:"location"`
	Time     bool `json:"time"`
}

type ReconciledOccurrence struct {
	ClassifiedOccurrence
	Status          ReconcileStatus `json:"status"`
	ExistingDetails *ExistingEntry  `json:"existingDetails,omitempty"`
	Changes         *FieldChanges   `json:"changes,omitempty"`
}

type ImportStats struct {
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}
