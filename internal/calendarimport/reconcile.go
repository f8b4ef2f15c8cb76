package calendarimport

import (
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

// Partition 是比对结果，三个分区加起来恰好覆盖全部输入
type Partition struct {
	New       []domain.ReconciledOccurrence
	Updated   []domain.ReconciledOccurrence
	Unchanged []domain.ReconciledOccurrence
}

func (p Partition) Stats() domain.ImportStats {
	return domain.ImportStats{
		New:       len(p.New),
		Updated:   len(p.Updated),
		Unchanged: len(p.Unchanged),
	}
}

func matchKey(title string, day domain.Weekday, startTime string) string {
	return normalizeTitle(title) + "\x00" + string(day) + "\x00" + strings.TrimSpace(startTime)
}

// Reconcile 把导入的实例与已有课表比对。
// 匹配条件：标题（忽略大小写和首尾空白）、工作日、开始时间字符串都相同；
// 地点和结束时间只用于判断是否有变化。
func Reconcile(items []domain.ClassifiedOccurrence, existing []domain.ExistingEntry, loc *time.Location) Partition {
	var p Partition

	if len(existing) == 0 {
		p.New = make([]domain.ReconciledOccurrence, 0, len(items))
		for _, item := range items {
			p.New = append(p.New, domain.ReconciledOccurrence{
				ClassifiedOccurrence: item,
				Status:               domain.StatusNew,
			})
		}
		return p
	}

	// 同一个键有多条已有记录时，取第一条
	index := make(map[string]domain.ExistingEntry, len(existing))
	for _, e := range existing {
		key := matchKey(e.Title, e.Weekday, e.StartTime)
		if _, exists := index[key]; !exists {
			index[key] = e
		}
	}

	for _, item := range items {
		startTime := formatTimeOfDay(item.Start, loc)
		matched, ok := index[matchKey(item.Title, item.DayOfWeek, startTime)]
		if !ok {
			p.New = append(p.New, domain.ReconciledOccurrence{
				ClassifiedOccurrence: item,
				Status:               domain.StatusNew,
			})
			continue
		}

		changes := domain.FieldChanges{
			Location: locationOrDefault(matched.Location) != locationOrDefault(item.Location),
			Time:     strings.TrimSpace(matched.EndTime) != formatTimeOfDay(item.End, loc),
		}

		existingDetails := matched
		r := domain.ReconciledOccurrence{
			ClassifiedOccurrence: item,
			ExistingDetails:      &existingDetails,
			Changes:              &changes,
		}
		if changes.Location || changes.Time {
			r.Status = domain.StatusUpdated
			p.Updated = append(p.Updated, r)
		} else {
			r.Status = domain.StatusUnchanged
			p.Unchanged = append(p.Unchanged, r)
		}
	}

	return p
}
