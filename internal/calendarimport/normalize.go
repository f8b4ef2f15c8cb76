package calendarimport

import (
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
	"golang.org/x/text/cases"
)

// normalizeTitle 用于标题比较：去掉首尾空白后做 Unicode 大小写折叠
func normalizeTitle(title string) string {
	// cases.Caser 有内部状态，不能跨 goroutine 共享，所以每次新建
	return cases.Fold().String(strings.TrimSpace(title))
}

func sameTitle(a, b string) bool {
	return normalizeTitle(a) == normalizeTitle(b)
}

func locationOrDefault(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return domain.DefaultLocation
	}
	return location
}

func formatTimeOfDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(domain.TimeOfDayLayout)
}
