package calendarimport

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

var ErrUnknownOccurrence = errors.New("occurrence not found in import session")

// ScheduleStore 课表的读写，写入是整份替换
type ScheduleStore interface {
	GetWeeklySchedule(userID int64) (domain.WeeklySchedule, error)
	SetWeeklySchedule(userID int64, schedule domain.WeeklySchedule) error
}

type Result struct {
	Occurrences []domain.ReconciledOccurrence `json:"occurrences"`
	Stats       domain.ImportStats            `json:"stats"`
}

// Session 保存一次导入的中间状态。
// 在 Commit 之前不会写课表，用户随时关闭导入都不需要回滚。
// 所有字段都可以 JSON 序列化，方便在请求之间放进缓存。
type Session struct {
	ID          string                        `json:"id"`
	UserID      int64                         `json:"userId"`
	Source      string                        `json:"source"`
	Timezone    string                        `json:"timezone"`
	CreatedAt   time.Time                     `json:"createdAt"`
	Occurrences []domain.ReconciledOccurrence `json:"occurrences"` // 待选（new + updated），已排序
	Unchanged   []domain.ReconciledOccurrence `json:"unchanged"`
	Stats       domain.ImportStats            `json:"stats"`
	Selected    []string                      `json:"selected"`
}

func NewSession(userID int64, source string, loc *time.Location) *Session {
	if loc == nil {
		loc = time.UTC
	}
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    source,
		Timezone:  loc.String(),
		CreatedAt: time.Now(),
		Selected:  []string{},
	}
}

func (s *Session) location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Process 执行 展开 -> 分类 -> 去重 -> 比对 -> 排序，默认选中全部待选实例
func (s *Session) Process(rawEvents []domain.RawCalendarEvent, existing domain.WeeklySchedule) Result {
	loc := s.location()

	classified := make([]domain.ClassifiedOccurrence, 0, len(rawEvents))
	for _, ev := range rawEvents {
		// 已删除的事件和全天事件（没有具体时间）不进入课表
		if ev.Deleted || ev.AllDay || ev.Start.IsZero() || ev.End.IsZero() {
			continue
		}
		for _, occ := range Expand(ev, loc) {
			classified = append(classified, domain.ClassifiedOccurrence{
				Occurrence:     occ,
				Classification: Classify(occ),
			})
		}
	}

	deduped := Deduplicate(classified, loc)
	partition := Reconcile(deduped, existing.Flatten(), loc)

	candidates := make([]domain.ReconciledOccurrence, 0, len(partition.New)+len(partition.Updated))
	candidates = append(candidates, partition.New...)
	candidates = append(candidates, partition.Updated...)

	s.Occurrences = Order(candidates)
	s.Unchanged = partition.Unchanged
	if s.Unchanged == nil {
		s.Unchanged = []domain.ReconciledOccurrence{}
	}
	s.Stats = partition.Stats()

	s.Selected = make([]string, 0, len(s.Occurrences))
	for _, o := range s.Occurrences {
		s.Selected = append(s.Selected, o.ID)
	}
	slices.Sort(s.Selected)

	return Result{
		Occurrences: s.Occurrences,
		Stats:       s.Stats,
	}
}

func (s *Session) find(id string) (domain.ReconciledOccurrence, bool) {
	for _, o := range s.Occurrences {
		if o.ID == id {
			return o, true
		}
	}
	return domain.ReconciledOccurrence{}, false
}

// expandIDs 把一个实例 ID 扩展成它所在重复组的全部实例 ID
func (s *Session) expandIDs(id string) ([]string, error) {
	target, ok := s.find(id)
	if !ok {
		return nil, ErrUnknownOccurrence
	}
	if target.RecurrenceGroupID == "" {
		return []string{target.ID}, nil
	}

	ids := make([]string, 0)
	for _, o := range s.Occurrences {
		if o.RecurrenceGroupID == target.RecurrenceGroupID {
			ids = append(ids, o.ID)
		}
	}
	return ids, nil
}

// ToggleSelection 选中或取消一个实例；有重复组的实例会连同所有兄弟实例一起切换
func (s *Session) ToggleSelection(occurrenceID string, selected bool) ([]string, error) {
	ids, err := s.expandIDs(occurrenceID)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(s.Selected))
	for _, id := range s.Selected {
		set[id] = true
	}
	for _, id := range ids {
		if selected {
			set[id] = true
		} else {
			delete(set, id)
		}
	}

	s.Selected = make([]string, 0, len(set))
	for id := range set {
		s.Selected = append(s.Selected, id)
	}
	slices.Sort(s.Selected)

	return s.Selected, nil
}

func (s *Session) Filter(mode FilterMode) []domain.ReconciledOccurrence {
	return Filter(s.Occurrences, mode)
}

// resolve 把 ID 列表按重复组展开，返回按展示顺序排列的实例
func (s *Session) resolve(selectedIDs []string) ([]domain.ReconciledOccurrence, error) {
	chosen := make(map[string]bool)
	for _, id := range selectedIDs {
		ids, err := s.expandIDs(id)
		if err != nil {
			return nil, err
		}
		for _, expanded := range ids {
			chosen[expanded] = true
		}
	}

	selected := make([]domain.ReconciledOccurrence, 0, len(chosen))
	for _, o := range s.Occurrences {
		if chosen[o.ID] {
			selected = append(selected, o)
		}
	}
	return selected, nil
}

// Commit 读取当前课表，合并选中的实例，然后整份写回。
// selectedIDs 为空时使用会话中的当前选择。
// 两个会话并发提交时后写入的一方会覆盖前者（last writer wins）。
func (s *Session) Commit(store ScheduleStore, selectedIDs []string) (domain.WeeklySchedule, error) {
	if len(selectedIDs) == 0 {
		selectedIDs = s.Selected
	}

	selected, err := s.resolve(selectedIDs)
	if err != nil {
		return nil, err
	}

	current, err := store.GetWeeklySchedule(s.UserID)
	if err != nil {
		return nil, err
	}

	merged := Merge(current, selected, s.location())
	if err := store.SetWeeklySchedule(s.UserID, merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// Count 统计一组 ID 中新增和更新的实例数量，用于提交后的通知
func (s *Session) Count(selectedIDs []string) (added int, updated int) {
	if len(selectedIDs) == 0 {
		selectedIDs = s.Selected
	}
	selected, err := s.resolve(selectedIDs)
	if err != nil {
		return 0, 0
	}
	for _, o := range selected {
		if o.Status == domain.StatusUpdated {
			updated++
		} else {
			added++
		}
	}
	return added, updated
}
