package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/config"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const calendarReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

// GoogleClient 封装 Google Calendar 的授权和事件读取
type GoogleClient struct {
	oauth      *oauth2.Config
	baseURL    string
	maxResults int
	httpClient *http.Client
}

func NewGoogleClient(cfg *config.Config) *GoogleClient {
	return &GoogleClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       []string{calendarReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		baseURL:    strings.TrimRight(cfg.Google.APIBaseURL, "/"),
		maxResults: cfg.Import.MaxResults,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Import.FetchTimeout) * time.Second},
	}
}

// IsReady 没有配置 client id / secret 时不能发起授权
func (c *GoogleClient) IsReady() bool {
	return c.oauth.ClientID != "" && c.oauth.ClientSecret != "" && c.oauth.RedirectURL != ""
}

func (c *GoogleClient) AuthCodeURL(state string) (string, error) {
	if !c.IsReady() {
		return "", ErrNotReady
	}
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// RequestAccessToken 用授权回调中的 code 换取 token。
// errParam 是回调中的 error 参数，用户拒绝授权时为 access_denied。
func (c *GoogleClient) RequestAccessToken(ctx context.Context, code, errParam string) (*oauth2.Token, error) {
	if !c.IsReady() {
		return nil, ErrNotReady
	}

	switch {
	case errParam == "access_denied":
		return nil, ErrAuthCancelled
	case errParam != "":
		return nil, &FetchError{Source: SourceGoogle, Err: fmt.Errorf("authorization failed: %s", errParam)}
	case code == "":
		return nil, ErrAuthCancelled
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, &FetchError{Source: SourceGoogle, Err: err}
	}

	return token, nil
}

// Refresh 在 token 过期时使用 refresh token 换取新的 token，未过期则原样返回
func (c *GoogleClient) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	fresh, err := c.oauth.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, &FetchError{Source: SourceGoogle, Err: err}
	}
	return fresh, nil
}

type googleEventTime struct {
	Date     string `json:"date"`
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type googleEvent struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Start       googleEventTime `json:"start"`
	End         googleEventTime `json:"end"`
	Recurrence  []string        `json:"recurrence"`
}

type googleEventsPage struct {
	Items         []googleEvent `json:"items"`
	NextPageToken string        `json:"nextPageToken"`
}

func (c *GoogleClient) eventsURL(timeMin, timeMax time.Time, pageToken string) string {
	params := url.Values{}
	// singleEvents 为 false 时才能拿到带 RRULE 的原始事件，此时只能按 updated 排序
	params.Add("singleEvents", "false")
	params.Add("orderBy", "updated")
	params.Add("maxResults", strconv.Itoa(c.maxResults))
	params.Add("timeMin", timeMin.Format(time.RFC3339))
	params.Add("timeMax", timeMax.Format(time.RFC3339))
	if pageToken != "" {
		params.Add("pageToken", pageToken)
	}
	return c.baseURL + "/calendars/primary/events?" + params.Encode()
}

func (c *GoogleClient) fetchPage(ctx context.Context, client *http.Client, apiURL string) (*googleEventsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("Google Calendar 接口返回错误", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("google calendar api status %d", resp.StatusCode)
	}

	page := &googleEventsPage{}
	if err := json.NewDecoder(resp.Body).Decode(page); err != nil {
		return nil, err
	}
	return page, nil
}

// FetchEvents 读取主日历在 [timeMin, timeMax] 内的事件，自动翻页，保持接口返回的顺序
func (c *GoogleClient) FetchEvents(ctx context.Context, token *oauth2.Token, timeMin, timeMax time.Time) ([]domain.RawCalendarEvent, error) {
	if !c.IsReady() {
		return nil, ErrNotReady
	}
	if token == nil {
		return nil, &FetchError{Source: SourceGoogle, Err: errors.New("missing access token")}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := c.oauth.Client(ctx, token)

	events := make([]domain.RawCalendarEvent, 0)
	pageToken := ""
	for {
		page, err := c.fetchPage(ctx, client, c.eventsURL(timeMin, timeMax, pageToken))
		if err != nil {
			return nil, &FetchError{Source: SourceGoogle, Err: err}
		}

		for _, item := range page.Items {
			events = append(events, toRawEvent(item))
		}

		if page.NextPageToken == "" || page.NextPageToken == pageToken {
			break
		}
		pageToken = page.NextPageToken
	}

	return events, nil
}

func parseEventTime(t googleEventTime) (time.Time, bool) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, false
	}
	if t.Date != "" {
		parsed, err := time.Parse(time.DateOnly, t.Date)
		if err != nil {
			return time.Time{}, true
		}
		return parsed, true
	}
	return time.Time{}, false
}

func firstRRule(recurrence []string) string {
	for _, line := range recurrence {
		if strings.HasPrefix(strings.ToUpper(line), "RRULE:") {
			return line
		}
	}
	return ""
}

func toRawEvent(item googleEvent) domain.RawCalendarEvent {
	start, allDay := parseEventTime(item.Start)
	end, _ := parseEventTime(item.End)

	return domain.RawCalendarEvent{
		ID:             item.ID,
		Title:          item.Summary,
		Description:    item.Description,
		Location:       item.Location,
		Start:          start,
		End:            end,
		AllDay:         allDay,
		RecurrenceRule: firstRRule(item.Recurrence),
		Deleted:        item.Status == "cancelled",
	}
}
