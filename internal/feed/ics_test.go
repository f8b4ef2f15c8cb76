package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/calendarimport"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

var sampleICS = strings.ReplaceAll(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Campus//Schedule Export//EN
BEGIN:VEVENT
UID:lec-1310@campus
DTSTAMP:20250801T000000Z
DTSTART:20250901T140000Z
DTEND:20250901T145000Z
SUMMARY:CSE 1310 Lecture
LOCATION:Nedderman Hall 105
RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR;UNTIL=20251212T000000Z
END:VEVENT
BEGIN:VEVENT
UID:midterm@campus
DTSTAMP:20250801T000000Z
DTSTART:20251014T190000Z
DTEND:20251014T203000Z
SUMMARY:Physics Midterm
DESCRIPTION:Chapters 1 to 6
END:VEVENT
BEGIN:VEVENT
UID:old-quiz@campus
DTSTAMP:20250801T000000Z
DTSTART:20250301T150000Z
DTEND:20250301T153000Z
SUMMARY:Spring quiz
END:VEVENT
BEGIN:VEVENT
UID:cancelled@campus
DTSTAMP:20250801T000000Z
DTSTART:20250910T150000Z
DTEND:20250910T160000Z
SUMMARY:Review session
STATUS:CANCELLED
END:VEVENT
BEGIN:VEVENT
DTSTAMP:20250801T000000Z
DTSTART:20250911T150000Z
DTEND:20250911T160000Z
SUMMARY:No uid
END:VEVENT
END:VCALENDAR
`, "\n", "\r\n")

func TestParseICS(t *testing.T) {
	timeMin := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	timeMax := timeMin.AddDate(0, 4, 0)

	events, err := ParseICS([]byte(sampleICS), timeMin, timeMax, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 3)

	lec := events[0]
	assert.Equal(t, "lec-1310@campus", lec.ID)
	assert.Equal(t, "CSE 1310 Lecture", lec.Title)
	assert.Equal(t, "Nedderman Hall 105", lec.Location)
	assert.True(t, strings.HasPrefix(lec.RecurrenceRule, "RRULE:FREQ=WEEKLY"))
	assert.Equal(t, time.Date(2025, 9, 1, 14, 0, 0, 0, time.UTC), lec.Start.UTC())
	assert.Equal(t, time.Date(2025, 9, 1, 14, 50, 0, 0, time.UTC), lec.End.UTC())

	mid := events[1]
	assert.Equal(t, "midterm@campus", mid.ID)
	assert.Equal(t, "Chapters 1 to 6", mid.Description)
	assert.Empty(t, mid.RecurrenceRule)

	// 窗口之前的 Spring quiz 被过滤，取消的事件保留并打上标记
	assert.Equal(t, "cancelled@campus", events[2].ID)
	assert.True(t, events[2].Deleted)
}

func TestParseICSEmptyBody(t *testing.T) {
	_, err := ParseICS([]byte("  "), time.Time{}, time.Time{}, time.UTC)
	assert.Error(t, err)
}

func TestICSFetchEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/export.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	cfg := testConfig("")
	cfg.Import.AllowPrivateFeeds = true
	client := NewICSClient(cfg)

	events, err := client.FetchEvents(context.Background(), srv.URL+"/export.ics", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 4)

	_, err = client.FetchEvents(context.Background(), srv.URL+"/missing.ics", time.Time{}, time.Time{})
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, SourceICS, fetchErr.Source)
}

func TestNormalizeFeedURL(t *testing.T) {
	got, err := normalizeFeedURL(" webcal://calendar.example.edu/u/1.ics ")
	require.NoError(t, err)
	assert.Equal(t, "https://calendar.example.edu/u/1.ics", got)

	got, err = normalizeFeedURL("https://x.test/a.ics")
	require.NoError(t, err)
	assert.Equal(t, "https://x.test/a.ics", got)

	for _, bad := range []string{"", "file:///etc/passwd", "ftp://x.test/a.ics", "gopher://x.test", "https://", "not a url"} {
		_, err := normalizeFeedURL(bad)
		assert.ErrorIs(t, err, ErrUnsupportedFeedURL, bad)
	}
}

func TestICSFetchEventsRejectsUnsupportedScheme(t *testing.T) {
	client := NewICSClient(testConfig(""))

	_, err := client.FetchEvents(context.Background(), "file:///etc/passwd", time.Time{}, time.Time{})

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, ErrUnsupportedFeedURL)
}

func TestICSFetchEventsRefusesPrivateAddress(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	// 默认配置不允许访问本机
	client := NewICSClient(testConfig(""))

	_, err := client.FetchEvents(context.Background(), srv.URL+"/export.ics", time.Time{}, time.Time{})

	assert.ErrorIs(t, err, ErrPrivateAddress)
	assert.Zero(t, hits)
}

func TestRefusePrivateAddress(t *testing.T) {
	for _, addr := range []string{"127.0.0.1:80", "[::1]:443", "10.0.0.8:80", "192.168.1.2:80", "172.16.0.1:80", "169.254.169.254:80", "0.0.0.0:80"} {
		assert.ErrorIs(t, refusePrivateAddress("tcp", addr, nil), ErrPrivateAddress, addr)
	}
	assert.NoError(t, refusePrivateAddress("tcp", "93.184.216.34:443", nil))
}

const floatingICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Campus//Timetable//EN
BEGIN:VEVENT
UID:floating@campus
DTSTAMP:20250801T000000Z
DTSTART:20250901T090000
DTEND:20250901T095000
SUMMARY:MATH 1426 Lecture
RRULE:FREQ=WEEKLY;BYDAY=MO
END:VEVENT
BEGIN:VEVENT
UID:zoned@campus
DTSTAMP:20250801T000000Z
DTSTART;TZID=America/Chicago:20250902T130000
DTEND;TZID=America/Chicago:20250902T142000
SUMMARY:PHYS 1443 Lecture
RRULE:FREQ=WEEKLY;BYDAY=TU
END:VEVENT
END:VCALENDAR
`

// useLocal 临时替换 time.Local，模拟服务器时区和导入时区不一致
func useLocal(t *testing.T, name string) {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	old := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = old })
}

func TestParseICSFloatingTimeUsesImportLocation(t *testing.T) {
	for _, serverTZ := range []string{"UTC", "Asia/Shanghai"} {
		t.Run(serverTZ, func(t *testing.T) {
			useLocal(t, serverTZ)
			chicago, err := time.LoadLocation("America/Chicago")
			require.NoError(t, err)

			events, err := ParseICS([]byte(strings.ReplaceAll(floatingICS, "\n", "\r\n")), time.Time{}, time.Time{}, chicago)
			require.NoError(t, err)
			require.Len(t, events, 2)

			assert.Equal(t, time.Date(2025, 9, 1, 9, 0, 0, 0, chicago), events[0].Start.In(chicago))
			assert.Equal(t, time.Date(2025, 9, 1, 9, 50, 0, 0, chicago), events[0].End.In(chicago))
			assert.Equal(t, time.Date(2025, 9, 2, 13, 0, 0, 0, chicago), events[1].Start.In(chicago))
		})
	}
}

type scheduleMap map[int64]domain.WeeklySchedule

func (m scheduleMap) GetWeeklySchedule(userID int64) (domain.WeeklySchedule, error) {
	if ws, ok := m[userID]; ok {
		return ws.Clone(), nil
	}
	return domain.NewWeeklySchedule(), nil
}

func (m scheduleMap) SetWeeklySchedule(userID int64, ws domain.WeeklySchedule) error {
	m[userID] = ws.Clone()
	return nil
}

func TestFloatingTimeImportedAtWallClock(t *testing.T) {
	useLocal(t, "UTC")
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	events, err := ParseICS([]byte(floatingICS), time.Time{}, time.Time{}, chicago)
	require.NoError(t, err)

	store := scheduleMap{}
	s := calendarimport.NewSession(1, SourceICS, chicago)
	s.Process(events, domain.NewWeeklySchedule())
	ws, err := s.Commit(store, nil)
	require.NoError(t, err)

	require.Len(t, ws[domain.Monday], 1)
	assert.Equal(t, "9:00 AM", ws[domain.Monday][0].StartTime)
	assert.Equal(t, "9:50 AM", ws[domain.Monday][0].EndTime)
	require.Len(t, ws[domain.Tuesday], 1)
	assert.Equal(t, "1:00 PM", ws[domain.Tuesday][0].StartTime)
}

func TestParseICSFloatingTimeUsesCalendarTimezone(t *testing.T) {
	useLocal(t, "UTC")
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	body := strings.Replace(floatingICS, "PRODID:-//Campus//Timetable//EN\n", "PRODID:-//Campus//Timetable//EN\nX-WR-TIMEZONE:America/New_York\n", 1)
	events, err := ParseICS([]byte(body), time.Time{}, time.Time{}, chicago)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, time.Date(2025, 9, 1, 9, 0, 0, 0, newYork), events[0].Start.In(newYork))
	// 带 TZID 的时间不受影响
	assert.Equal(t, time.Date(2025, 9, 2, 13, 0, 0, 0, chicago), events[1].Start.In(chicago))
}

func TestParseICSRecurrenceOverridesGetDistinctIDs(t *testing.T) {
	body := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Campus//Timetable//EN
BEGIN:VEVENT
UID:lab@campus
DTSTAMP:20250801T000000Z
DTSTART:20250903T150000Z
DTEND:20250903T165000Z
SUMMARY:CHEM 1180 Lab
RRULE:FREQ=WEEKLY;BYDAY=WE
END:VEVENT
BEGIN:VEVENT
UID:lab@campus
DTSTAMP:20250801T000000Z
RECURRENCE-ID:20250910T150000Z
DTSTART:20250911T150000Z
DTEND:20250911T165000Z
SUMMARY:CHEM 1180 Lab
END:VEVENT
BEGIN:VEVENT
UID:lab@campus
DTSTAMP:20250801T000000Z
RECURRENCE-ID:20250917T150000Z
DTSTART:20250918T150000Z
DTEND:20250918T165000Z
SUMMARY:CHEM 1180 Lab
END:VEVENT
END:VCALENDAR
`
	events, err := ParseICS([]byte(body), time.Time{}, time.Time{}, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "lab@campus", events[0].ID)
	assert.Equal(t, "lab@campus_20250910T150000Z", events[1].ID)
	assert.Equal(t, "lab@campus_20250917T150000Z", events[2].ID)
}
