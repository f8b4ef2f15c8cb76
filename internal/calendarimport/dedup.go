package calendarimport

import (
	"time"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

func dedupKey(o domain.Occurrence, loc *time.Location) string {
	return o.Title + "_" + string(o.DayOfWeek) + "_" + formatTimeOfDay(o.Start, loc)
}

// Deduplicate 按 标题+工作日+开始时间 去重，保留第一次出现的实例，后来的直接丢弃（不合并字段）
func Deduplicate(items []domain.ClassifiedOccurrence, loc *time.Location) []domain.ClassifiedOccurrence {
	seen := make(map[string]bool, len(items))
	out := make([]domain.ClassifiedOccurrence, 0, len(items))

	for _, item := range items {
		key := dedupKey(item.Occurrence, loc)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}

	return out
}
