package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/cache"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/calendarimport"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/feed"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/metrics"
)

// importSessionView 是返回给前端的会话内容，Occurrences 已按筛选条件过滤
type importSessionView struct {
	ID          string                        `json:"id"`
	Source      string                        `json:"source"`
	CreatedAt   time.Time                     `json:"createdAt"`
	Filter      calendarimport.FilterMode     `json:"filter"`
	Stats       domain.ImportStats            `json:"stats"`
	Occurrences []domain.ReconciledOccurrence `json:"occurrences"`
	Selected    []string                      `json:"selected"`
}

func newImportSessionView(s *calendarimport.Session, mode calendarimport.FilterMode) importSessionView {
	return importSessionView{
		ID:          s.ID,
		Source:      s.Source,
		CreatedAt:   s.CreatedAt,
		Filter:      mode,
		Stats:       s.Stats,
		Occurrences: s.Filter(mode),
		Selected:    s.Selected,
	}
}

func (h *Handler) GetGoogleAuthURL(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	state := uuid.NewString()
	url, err := h.google.AuthCodeURL(state)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrNotReady):
			h.errorResponse(w, r, "暂未开放 Google 日历导入")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.cache.SaveOAuthState(r.Context(), myInfo.ID, state); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取授权链接成功", map[string]string{"url": url})
}

func (h *Handler) ExchangeGoogleToken(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		Code  string `json:"code"`
		State string `json:"state" validate:"required"`
		Error string `json:"error"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.cache.ConsumeOAuthState(r.Context(), myInfo.ID, req.State); err != nil {
		switch {
		case errors.Is(err, cache.ErrStateMismatch):
			h.errorResponse(w, r, "授权已失效，请重新授权")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	token, err := h.google.RequestAccessToken(r.Context(), req.Code, req.Error)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrAuthCancelled):
			h.errorResponse(w, r, "已取消授权")
		case errors.Is(err, feed.ErrNotReady):
			h.errorResponse(w, r, "暂未开放 Google 日历导入")
		default:
			metrics.FeedFetchErrors.WithLabelValues(feed.SourceGoogle).Inc()
			slog.Warn("Google 授权失败", "user_id", myInfo.ID, "error", err)
			h.errorResponse(w, r, "Google 授权失败，请稍后重试")
		}
		return
	}

	if err := h.cache.SaveGoogleToken(r.Context(), myInfo.ID, token); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "授权成功", nil)
}

// fetchGoogleEvents 读取已保存的 token，过期时刷新并写回缓存
func (h *Handler) fetchGoogleEvents(ctx context.Context, userID int64, timeMin, timeMax time.Time) ([]domain.RawCalendarEvent, error) {
	token, err := h.cache.GetGoogleToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	fresh, err := h.google.Refresh(ctx, token)
	if err != nil {
		return nil, err
	}
	if fresh.AccessToken != token.AccessToken {
		if err := h.cache.SaveGoogleToken(ctx, userID, fresh); err != nil {
			return nil, err
		}
	}

	return h.google.FetchEvents(ctx, fresh, timeMin, timeMax)
}

func (h *Handler) CreateImportSession(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		Source string `json:"source" validate:"required,oneof=google ics"`
		URL    string `json:"url" validate:"required_if=Source ics,omitempty,url,max=2048"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	timeMin, timeMax := feed.Window(time.Now(), h.config.Import.WindowMonths)

	var events []domain.RawCalendarEvent
	var err error
	switch req.Source {
	case feed.SourceGoogle:
		events, err = h.fetchGoogleEvents(r.Context(), myInfo.ID, timeMin, timeMax)
	case feed.SourceICS:
		events, err = h.ics.FetchEvents(r.Context(), req.URL, timeMin, timeMax)
	}

	// 获取失败时不创建会话，也不会写入课表
	if err != nil {
		var fetchErr *feed.FetchError
		switch {
		case errors.Is(err, cache.ErrTokenNotFound):
			h.errorResponse(w, r, "请先授权 Google 日历")
		case errors.Is(err, feed.ErrNotReady):
			h.errorResponse(w, r, "暂未开放 Google 日历导入")
		case errors.Is(err, feed.ErrUnsupportedFeedURL), errors.Is(err, feed.ErrPrivateAddress):
			h.errorResponse(w, r, "不支持的订阅链接")
		case errors.As(err, &fetchErr):
			metrics.FeedFetchErrors.WithLabelValues(fetchErr.Source).Inc()
			slog.Warn("获取日历失败", "user_id", myInfo.ID, "source", fetchErr.Source, "error", fetchErr.Err)
			h.errorResponse(w, r, "获取日历失败，请稍后重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	existing, err := h.repository.GetWeeklySchedule(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	start := time.Now()
	s := calendarimport.NewSession(myInfo.ID, req.Source, h.location)
	s.Process(events, existing)
	metrics.ObserveImport(req.Source, s.Stats, time.Since(start))

	if err := h.cache.SaveSession(r.Context(), s); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	slog.Info("已创建导入会话", "user_id", myInfo.ID, "session_id", s.ID, "source", req.Source,
		"raw_events", len(events), "new", s.Stats.New, "updated", s.Stats.Updated, "unchanged", s.Stats.Unchanged)

	h.successResponse(w, r, "读取日历成功", newImportSessionView(s, calendarimport.FilterAll))
}

func (h *Handler) GetImportSession(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r)

	mode, err := calendarimport.ParseFilterMode(r.URL.Query().Get("filter"))
	if err != nil {
		h.errorResponse(w, r, "无效的筛选条件")
		return
	}

	h.successResponse(w, r, "获取导入会话成功", newImportSessionView(s, mode))
}

func (h *Handler) UpdateImportSelection(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r)

	var req struct {
		OccurrenceID string `json:"occurrenceId" validate:"required"`
		Selected     *bool  `json:"selected" validate:"required"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	// 在缓存里对最新的会话做修改，两个并发的请求不会互相覆盖
	var selected []string
	_, err := h.cache.UpdateSession(r.Context(), s.ID, func(latest *calendarimport.Session) error {
		ids, err := latest.ToggleSelection(req.OccurrenceID, *req.Selected)
		selected = ids
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, calendarimport.ErrUnknownOccurrence):
			h.errorResponse(w, r, "导入项不存在")
		case errors.Is(err, cache.ErrSessionNotFound):
			h.errorResponse(w, r, "导入会话不存在或已过期")
		case errors.Is(err, cache.ErrSessionConflict):
			h.errorResponse(w, r, "操作过于频繁，请稍后重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新选择成功", map[string]any{"selected": selected})
}

func (h *Handler) CommitImportSession(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	s := sessionFromContext(r)

	// 请求体可以为空，此时提交会话中当前的选择
	var req struct {
		SelectedIDs []string `json:"selectedIds" validate:"omitempty,dive,required"`
	}

	if err := h.readOptionalJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	ids := req.SelectedIDs
	if len(ids) == 0 {
		ids = s.Selected
	}
	if len(ids) == 0 {
		h.errorResponse(w, r, "没有选择要导入的课程")
		return
	}

	merged, err := s.Commit(h.repository, ids)
	if err != nil {
		switch {
		case errors.Is(err, calendarimport.ErrUnknownOccurrence):
			h.errorResponse(w, r, "导入项不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}
	added, updated := s.Count(ids)

	// 课表已经写入，以下步骤失败只记录日志
	if err := h.cache.DeleteSession(r.Context(), s.ID); err != nil {
		slog.Error("无法删除导入会话", "session_id", s.ID, "error", err)
	}

	if err := h.publishMail(r.Context(), domain.MailMessage{
		Type: domain.MailTypeScheduleImported,
		To:   myInfo.Email,
		Data: domain.ScheduleImportedMailData{
			FullName: myInfo.FullName,
			Source:   s.Source,
			Added:    added,
			Updated:  updated,
		},
	}); err != nil {
		slog.Error("无法发送导入通知邮件", "user_id", myInfo.ID, "error", err)
	}

	h.successResponse(w, r, "导入成功", map[string]any{
		"schedule": merged,
		"added":    added,
		"updated":  updated,
	})
}

func (h *Handler) CancelImportSession(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r)

	if err := h.cache.DeleteSession(r.Context(), s.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "已取消导入", nil)
}
