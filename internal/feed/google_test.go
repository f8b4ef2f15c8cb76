package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/config"
	"golang.org/x/oauth2"
)

func testConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Google.ClientID = "client-id"
	cfg.Google.ClientSecret = "client-secret"
	cfg.Google.RedirectURL = "http://localhost:5173/calendar-import/google/callback"
	cfg.Google.APIBaseURL = baseURL
	cfg.Import.MaxResults = 2500
	cfg.Import.FetchTimeout = 5
	return cfg
}

const firstPage = `{
  "items": [
    {
      "id": "lec",
      "status": "confirmed",
      "summary": "CSE 1310 Lecture",
      "location": "Nedderman Hall",
      "start": {"dateTime": "2025-09-01T09:00:00-05:00"},
      "end": {"dateTime": "2025-09-01T09:50:00-05:00"},
      "recurrence": ["EXDATE;TZID=America/Chicago:20251124T090000", "RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR"]
    },
    {
      "id": "holiday",
      "summary": "Labor Day",
      "start": {"date": "2025-09-01"},
      "end": {"date": "2025-09-02"}
    }
  ],
  "nextPageToken": "page-2"
}`

const secondPage = `{
  "items": [
    {
      "id": "gone",
      "status": "cancelled",
      "summary": "Cancelled review",
      "start": {"dateTime": "2025-09-03T15:00:00Z"},
      "end": {"dateTime": "2025-09-03T16:00:00Z"}
    }
  ]
}`

func TestGoogleFetchEventsFollowsPages(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2500", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "updated", r.URL.Query().Get("orderBy"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "page-2" {
			fmt.Fprint(w, secondPage)
			return
		}
		fmt.Fprint(w, firstPage)
	}))
	defer srv.Close()

	client := NewGoogleClient(testConfig(srv.URL))
	timeMin, timeMax := Window(time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC), 4)

	events, err := client.FetchEvents(context.Background(), &oauth2.Token{AccessToken: "access-token"}, timeMin, timeMax)
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())

	require.Len(t, events, 3)

	lec := events[0]
	assert.Equal(t, "lec", lec.ID)
	assert.Equal(t, "CSE 1310 Lecture", lec.Title)
	assert.Equal(t, "Nedderman Hall", lec.Location)
	assert.Equal(t, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR", lec.RecurrenceRule)
	assert.False(t, lec.AllDay)
	assert.Equal(t, 14, lec.Start.UTC().Hour())

	assert.Equal(t, "holiday", events[1].ID)
	assert.True(t, events[1].AllDay)

	assert.Equal(t, "gone", events[2].ID)
	assert.True(t, events[2].Deleted)
}

func TestGoogleFetchEventsWrapsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rateLimitExceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewGoogleClient(testConfig(srv.URL))
	_, err := client.FetchEvents(context.Background(), &oauth2.Token{AccessToken: "access-token"}, time.Now(), time.Now().AddDate(0, 4, 0))

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, SourceGoogle, fetchErr.Source)
}

func TestGoogleClientNotReady(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.Google.ClientSecret = ""
	client := NewGoogleClient(cfg)

	assert.False(t, client.IsReady())

	_, err := client.AuthCodeURL("state")
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = client.FetchEvents(context.Background(), &oauth2.Token{AccessToken: "x"}, time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestGoogleAuthCodeURL(t *testing.T) {
	client := NewGoogleClient(testConfig("http://127.0.0.1:0"))

	u, err := client.AuthCodeURL("state-123")
	require.NoError(t, err)
	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "access_type=offline")
}

func TestGoogleRequestAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"abc","token_type":"Bearer","refresh_token":"r1","expires_in":3600}`)
	}))
	defer srv.Close()

	client := NewGoogleClient(testConfig(srv.URL))
	client.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}

	token, err := client.RequestAccessToken(context.Background(), "good-code", "")
	require.NoError(t, err)
	assert.Equal(t, "abc", token.AccessToken)
	assert.Equal(t, "r1", token.RefreshToken)

	_, err = client.RequestAccessToken(context.Background(), "bad-code", "")
	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
	assert.False(t, errors.Is(err, ErrAuthCancelled))

	_, err = client.RequestAccessToken(context.Background(), "", "access_denied")
	assert.ErrorIs(t, err, ErrAuthCancelled)

	_, err = client.RequestAccessToken(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrAuthCancelled)
}

func TestWindow(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	from, to := Window(now, 4)
	assert.Equal(t, now, from)
	assert.Equal(t, time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), to)
}
