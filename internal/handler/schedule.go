package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/utils"
)

var errInvalidEntryPath = errors.New("无效的课表条目")

// scheduleEntryParams 解析 /entries/{day}/{index}
func scheduleEntryParams(r *http.Request) (domain.Weekday, int, error) {
	day := domain.Weekday(chi.URLParam(r, "day"))
	if !day.Valid() {
		return "", 0, errInvalidEntryPath
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		return "", 0, errInvalidEntryPath
	}
	return day, index, nil
}

// checkEntry 校验时间并检查当天是否有冲突，skip 为编辑中的条目下标
func checkEntry(entries []domain.ScheduleEntry, entry *domain.ScheduleEntry, skip int) error {
	if err := utils.ValidateScheduleEntryTime(entry); err != nil {
		return err
	}
	if i := utils.FindOverlappingEntry(entries, entry, skip); i >= 0 {
		return fmt.Errorf("与 %s（%s - %s）时间冲突", entries[i].ClassName, entries[i].StartTime, entries[i].EndTime)
	}
	return nil
}

func (h *Handler) saveUserSchedule(w http.ResponseWriter, r *http.Request, us *domain.UserSchedule, msg string) {
	if err := h.repository.UpdateUserSchedule(us); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "课表已被修改，请刷新后重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}
	h.successResponse(w, r, msg, us)
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	us, err := h.repository.GetUserSchedule(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取课表成功", us)
}

func (h *Handler) CreateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		Day       domain.Weekday `json:"day" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday"`
		ClassName string         `json:"className" validate:"required,max=100"`
		Location  string         `json:"location" validate:"max=100"`
		StartTime string         `json:"startTime" validate:"required"`
		EndTime   string         `json:"endTime" validate:"required"`
		Version   int32          `json:"version" validate:"gte=0"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	entry := domain.ScheduleEntry{
		ClassName: strings.TrimSpace(req.ClassName),
		Location:  strings.TrimSpace(req.Location),
		StartTime: strings.TrimSpace(req.StartTime),
		EndTime:   strings.TrimSpace(req.EndTime),
	}
	if entry.Location == "" {
		entry.Location = domain.DefaultLocation
	}

	us, err := h.repository.GetUserSchedule(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if us.Version != req.Version {
		h.errorResponse(w, r, "课表已被修改，请刷新后重试")
		return
	}

	if err := checkEntry(us.Schedule[req.Day], &entry, -1); err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	us.Schedule[req.Day] = append(us.Schedule[req.Day], entry)
	domain.SortEntries(us.Schedule[req.Day])

	h.saveUserSchedule(w, r, us, "添加课程成功")
}

func (h *Handler) UpdateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	day, index, err := scheduleEntryParams(r)
	if err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	var req struct {
		ClassName *string `json:"className" validate:"omitempty,min=1,max=100"`
		Location  *string `json:"location" validate:"omitempty,max=100"`
		StartTime *string `json:"startTime"`
		EndTime   *string `json:"endTime"`
		Version   int32   `json:"version" validate:"gte=0"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	us, err := h.repository.GetUserSchedule(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if us.Version != req.Version {
		h.errorResponse(w, r, "课表已被修改，请刷新后重试")
		return
	}
	if index >= len(us.Schedule[day]) {
		h.errorResponse(w, r, errInvalidEntryPath.Error())
		return
	}

	entry := us.Schedule[day][index]
	if req.ClassName != nil {
		entry.ClassName = strings.TrimSpace(*req.ClassName)
	}
	if req.Location != nil {
		entry.Location = strings.TrimSpace(*req.Location)
		if entry.Location == "" {
			entry.Location = domain.DefaultLocation
		}
	}
	if req.StartTime != nil {
		entry.StartTime = strings.TrimSpace(*req.StartTime)
	}
	if req.EndTime != nil {
		entry.EndTime = strings.TrimSpace(*req.EndTime)
	}

	if err := checkEntry(us.Schedule[day], &entry, index); err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	us.Schedule[day][index] = entry
	domain.SortEntries(us.Schedule[day])

	h.saveUserSchedule(w, r, us, "更新课程成功")
}

func (h *Handler) DeleteScheduleEntry(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	day, index, err := scheduleEntryParams(r)
	if err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 32)
	if err != nil {
		h.errorResponse(w, r, "缺少课表版本号")
		return
	}

	us, err := h.repository.GetUserSchedule(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if us.Version != int32(version) {
		h.errorResponse(w, r, "课表已被修改，请刷新后重试")
		return
	}
	if index >= len(us.Schedule[day]) {
		h.errorResponse(w, r, errInvalidEntryPath.Error())
		return
	}

	entries := us.Schedule[day]
	us.Schedule[day] = append(entries[:index:index], entries[index+1:]...)

	h.saveUserSchedule(w, r, us, "删除课程成功")
}
