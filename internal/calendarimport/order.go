package calendarimport

import (
	"cmp"
	"errors"
	"slices"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

// compareOccurrences 展示顺序：
//  1. 两者都有重复组且组不同时，按组 ID 字典序
//  2. 置信度降序
//  3. 开始时间升序
//  4. ID 升序
func compareOccurrences(a, b domain.ReconciledOccurrence) int {
	if a.RecurrenceGroupID != "" && b.RecurrenceGroupID != "" && a.RecurrenceGroupID != b.RecurrenceGroupID {
		return cmp.Compare(a.RecurrenceGroupID, b.RecurrenceGroupID)
	}
	if a.Classification.Confidence != b.Classification.Confidence {
		return cmp.Compare(b.Classification.Confidence, a.Classification.Confidence)
	}
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Order 对待选实例排序。
// 以重复组为单位排序再展开，同组的实例在结果中一定相邻。
// 重复组和单次实例混排时 compareOccurrences 不满足传递性，所以两类分别排序后再归并。
func Order(items []domain.ReconciledOccurrence) []domain.ReconciledOccurrence {
	groups := make([][]domain.ReconciledOccurrence, 0)
	singles := make([][]domain.ReconciledOccurrence, 0)
	groupIndex := make(map[string]int)

	for _, item := range items {
		if item.RecurrenceGroupID == "" {
			singles = append(singles, []domain.ReconciledOccurrence{item})
			continue
		}
		if i, exists := groupIndex[item.RecurrenceGroupID]; exists {
			groups[i] = append(groups[i], item)
			continue
		}
		groupIndex[item.RecurrenceGroupID] = len(groups)
		groups = append(groups, []domain.ReconciledOccurrence{item})
	}

	byHead := func(a, b []domain.ReconciledOccurrence) int {
		return compareOccurrences(a[0], b[0])
	}
	slices.SortFunc(groups, byHead)
	slices.SortFunc(singles, byHead)

	out := make([]domain.ReconciledOccurrence, 0, len(items))
	i, j := 0, 0
	for i < len(groups) || j < len(singles) {
		switch {
		case j == len(singles):
			out = append(out, groups[i]...)
			i++
		case i == len(groups):
			out = append(out, singles[j]...)
			j++
		case compareOccurrences(singles[j][0], groups[i][0]) < 0:
			out = append(out, singles[j]...)
			j++
		default:
			out = append(out, groups[i]...)
			i++
		}
	}
	return out
}

type FilterMode string

const (
	FilterAll     FilterMode = "all"
	FilterNew     FilterMode = "new"
	FilterUpdates FilterMode = "updates"
)

var ErrUnknownFilter = errors.New("unknown filter mode")

// ParseFilterMode 空字符串视为 all
func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterNew:
		return FilterNew, nil
	case FilterUpdates:
		return FilterUpdates, nil
	default:
		return "", ErrUnknownFilter
	}
}

// Filter new 只保留没有 ExistingDetails 的实例，updates 只保留有的
func Filter(items []domain.ReconciledOccurrence, mode FilterMode) []domain.ReconciledOccurrence {
	out := make([]domain.ReconciledOccurrence, 0, len(items))
	for _, item := range items {
		switch mode {
		case FilterNew:
			if item.ExistingDetails != nil {
				continue
			}
		case FilterUpdates:
			if item.ExistingDetails == nil {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}
