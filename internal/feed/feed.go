package feed

import (
	"errors"
	"fmt"
	"time"
)

const (
	SourceGoogle = "google"
	SourceICS    = "ics"
)

var (
	// ErrAuthCancelled 用户在授权页面取消或拒绝了授权
	ErrAuthCancelled = errors.New("calendar authorization cancelled")
	// ErrNotReady 客户端缺少必要的配置，无法发起请求
	ErrNotReady = errors.New("calendar client is not configured")
)

// FetchError 包装从日历来源获取数据时的所有失败
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s calendar: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Window 返回从 now 开始、跨度为 months 个月的导入窗口
func Window(now time.Time, months int) (time.Time, time.Time) {
	return now, now.AddDate(0, months, 0)
}
