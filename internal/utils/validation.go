package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

var ErrEmailDomain = errors.New("邮箱不属于学校域名")

// ValidateInstitutionalEmail 只允许 domain 及其子域名下的邮箱
func ValidateInstitutionalEmail(email string, domainName string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	domainName = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domainName), "@"))

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrEmailDomain
	}

	host := email[at+1:]
	if host == domainName || strings.HasSuffix(host, "."+domainName) {
		return nil
	}
	return ErrEmailDomain
}

// ValidateScheduleEntryTime 检查时间格式为 "9:00 AM" 并且结束时间晚于开始时间
func ValidateScheduleEntryTime(entry *domain.ScheduleEntry) error {
	startTime, err := domain.ParseTimeOfDay(entry.StartTime)
	if err != nil {
		return fmt.Errorf("开始时间格式错误，应为 %s", domain.TimeOfDayLayout)
	}
	endTime, err := domain.ParseTimeOfDay(entry.EndTime)
	if err != nil {
		return fmt.Errorf("结束时间格式错误，应为 %s", domain.TimeOfDayLayout)
	}
	if !endTime.After(startTime) {
		return errors.New("结束时间必须晚于开始时间")
	}
	return nil
}

// FindOverlappingEntry 返回当天与 entry 时间重叠的第一个条目的下标，skip 用于编辑时排除自身
func FindOverlappingEntry(entries []domain.ScheduleEntry, entry *domain.ScheduleEntry, skip int) int {
	start, err := domain.ParseTimeOfDay(entry.StartTime)
	if err != nil {
		return -1
	}
	end, err := domain.ParseTimeOfDay(entry.EndTime)
	if err != nil {
		return -1
	}

	for i, e := range entries {
		if i == skip {
			continue
		}
		eStart, err := domain.ParseTimeOfDay(e.StartTime)
		if err != nil {
			continue
		}
		eEnd, err := domain.ParseTimeOfDay(e.EndTime)
		if err != nil {
			continue
		}
		if start.Before(eEnd) && eStart.Before(end) {
			return i
		}
	}
	return -1
}
