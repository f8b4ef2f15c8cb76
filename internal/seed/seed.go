package seed

import (
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/calendarimport"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/feed"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/repository"
)

const DefaultICSPath = "./internal/seed/data/sample_semester.ics"

// SeedFromICS 读取一份导出的学期课表，为每个在读用户走一遍完整的导入流程并写入课表
func SeedFromICS(r *repository.Repository, path string, loc *time.Location) {
	body, err := os.ReadFile(path)
	if err != nil {
		slog.Error("打开文件失败", "error", err)
		return
	}

	// 窗口不限制，样例文件里的学期时间是固定的
	events, err := feed.ParseICS(body, time.Time{}, time.Time{}, loc)
	if err != nil {
		slog.Error("解析 ICS 文件失败", "error", err)
		return
	}

	users, err := r.GetAllUsers()
	if err != nil {
		slog.Error("获取用户失败", "error", err)
		return
	}

	cnt := 0
	for _, user := range users {
		if !user.IsActive {
			continue
		}

		existing, err := r.GetWeeklySchedule(user.ID)
		if err != nil {
			slog.Error("获取课表失败", "user_id", user.ID, "error", err)
			continue
		}

		s := calendarimport.NewSession(user.ID, feed.SourceICS, loc)
		res := s.Process(events, existing)

		if _, err := s.Commit(r, nil); err != nil {
			slog.Error("写入课表失败", "user_id", user.ID, "error", err)
			continue
		}

		slog.Info("已导入课表", "user_id", user.ID, "new", res.Stats.New, "updated", res.Stats.Updated, "unchanged", res.Stats.Unchanged)
		cnt++
	}

	slog.Info("导入样例课表完成", "count", cnt)
}
