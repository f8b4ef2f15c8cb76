package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/config"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

// ICS 订阅文件的大小上限
const maxICSBodySize = 10 << 20

// 没有 TZID 也没有 Z 后缀的浮动时间
const floatingLayout = "20060102T150405"

var (
	ErrUnsupportedFeedURL = errors.New("feed url must be http, https or webcal")
	ErrPrivateAddress     = errors.New("feed url resolves to a private address")
)

// ICSClient 读取 ICS 订阅链接（学校教务系统导出的课表通常是这种格式）
type ICSClient struct {
	httpClient *http.Client
	location   *time.Location
}

func NewICSClient(cfg *config.Config) *ICSClient {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.Import.AllowPrivateFeeds {
		// 链接由用户填写，不能让服务器替用户访问内网和本机
		dialer := &net.Dialer{
			Timeout: 10 * time.Second,
			Control: refusePrivateAddress,
		}
		transport.DialContext = dialer.DialContext
		transport.Proxy = nil
	}

	return &ICSClient{
		httpClient: &http.Client{
			Timeout:   time.Duration(cfg.Import.FetchTimeout) * time.Second,
			Transport: transport,
		},
		location: loc,
	}
}

// refusePrivateAddress 在建立连接前检查解析后的 IP，重定向和 DNS 解析到内网的情况也会被拦下
func refusePrivateAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ErrPrivateAddress
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsUnspecified() {
		return ErrPrivateAddress
	}
	return nil
}

// normalizeFeedURL 把 webcal:// 换成 https://，只接受 http 和 https
func normalizeFeedURL(feedURL string) (string, error) {
	feedURL = strings.TrimSpace(feedURL)
	if rest, ok := strings.CutPrefix(feedURL, "webcal://"); ok {
		feedURL = "https://" + rest
	}

	u, err := url.Parse(feedURL)
	if err != nil {
		return "", ErrUnsupportedFeedURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrUnsupportedFeedURL
	}
	return u.String(), nil
}

func (c *ICSClient) FetchEvents(ctx context.Context, feedURL string, timeMin, timeMax time.Time) ([]domain.RawCalendarEvent, error) {
	feedURL, err := normalizeFeedURL(feedURL)
	if err != nil {
		return nil, &FetchError{Source: SourceICS, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FetchError{Source: SourceICS, Err: err}
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Source: SourceICS, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: SourceICS, Err: fmt.Errorf("ics feed status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxICSBodySize))
	if err != nil {
		return nil, &FetchError{Source: SourceICS, Err: err}
	}

	events, err := ParseICS(body, timeMin, timeMax, c.location)
	if err != nil {
		return nil, &FetchError{Source: SourceICS, Err: err}
	}
	return events, nil
}

// ParseICS 解析 ICS 内容。重复事件全部保留，单次事件只保留开始时间落在窗口内的；
// timeMin / timeMax 为零值时不做对应一侧的过滤。
// 浮动时间按日历的 X-WR-TIMEZONE 解释，没有时使用 loc。
func ParseICS(body []byte, timeMin, timeMax time.Time, loc *time.Location) ([]domain.RawCalendarEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ics body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	loc = calendarLocation(cal, loc)

	events := make([]domain.RawCalendarEvent, 0)
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			slog.Warn("跳过无法解析的 ICS 事件", "error", err)
			continue
		}

		if ev.RecurrenceRule == "" {
			if !timeMin.IsZero() && ev.Start.Before(timeMin) {
				continue
			}
			if !timeMax.IsZero() && ev.Start.After(timeMax) {
				continue
			}
		}

		events = append(events, ev)
	}

	return events, nil
}

func calendarLocation(cal *ical.Calendar, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	for _, p := range cal.CalendarProperties {
		if p.IANAToken != string(ical.PropertyXWRTimezone) {
			continue
		}
		loc, err := time.LoadLocation(strings.TrimSpace(p.Value))
		if err != nil {
			slog.Warn("无法识别日历时区，使用默认时区", "timezone", p.Value, "error", err)
			return fallback
		}
		return loc
	}
	return fallback
}

func propertyValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func isDateOnly(p *ical.IANAProperty) bool {
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// floatingTime 解析浮动时间；带 TZID、带 Z 或者只有日期的值返回 false，交给 golang-ical 处理
func floatingTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool) {
	if p == nil || isDateOnly(p) {
		return time.Time{}, false
	}
	if _, ok := p.ICalParameters["TZID"]; ok {
		return time.Time{}, false
	}
	if strings.HasSuffix(strings.ToUpper(p.Value), "Z") {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(floatingLayout, p.Value, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (domain.RawCalendarEvent, error) {
	uid := propertyValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return domain.RawCalendarEvent{}, errors.New("missing UID")
	}

	id := uid
	// 重复事件的单次修改和主事件共用 UID，用 RECURRENCE-ID 区分
	if rid := propertyValue(ve, ical.ComponentPropertyRecurrenceId); rid != "" {
		id = uid + "_" + rid
	}

	ev := domain.RawCalendarEvent{
		ID:          id,
		Title:       propertyValue(ve, ical.ComponentPropertySummary),
		Description: propertyValue(ve, ical.ComponentPropertyDescription),
		Location:    propertyValue(ve, ical.ComponentPropertyLocation),
		AllDay:      isDateOnly(ve.GetProperty(ical.ComponentPropertyDtStart)),
		Deleted:     strings.EqualFold(propertyValue(ve, ical.ComponentPropertyStatus), "CANCELLED"),
	}

	if start, ok := floatingTime(ve.GetProperty(ical.ComponentPropertyDtStart), loc); ok {
		ev.Start = start
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return domain.RawCalendarEvent{}, fmt.Errorf("event %s: %w", uid, err)
		}
		ev.Start = start
	}

	// 没有 DTEND 的事件保留零值，后续处理时会被跳过
	if end, ok := floatingTime(ve.GetProperty(ical.ComponentPropertyDtEnd), loc); ok {
		ev.End = end
	} else if end, err := ve.GetEndAt(); err == nil {
		ev.End = end
	}

	if rule := propertyValue(ve, ical.ComponentPropertyRrule); rule != "" {
		ev.RecurrenceRule = "RRULE:" + rule
	}

	return ev, nil
}
