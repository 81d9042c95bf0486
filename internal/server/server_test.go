package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njt/tzmeet/libtzmeet"
)

type stubConverter map[string]string

func (s stubConverter) Convert(_ context.Context, req *libtzmeet.ConversionRequest) (*libtzmeet.ConversionResult, error) {
	dt, ok := s[req.ToTimeZone]
	if !ok {
		return nil, libtzmeet.ErrConversionService
	}
	return &libtzmeet.ConversionResult{ConversionResult: &libtzmeet.ConvertedDateTime{DateTime: dt}}, nil
}

func newTestServer() *Server {
	conv := stubConverter{
		"Europe/London": "2023-08-12T19:30:00",
		"Etc/GMT+4":     "2023-08-12T14:30:00",
	}
	return New(libtzmeet.NewResolver(conv, libtzmeet.ResolverOptions{}), nil)
}

func TestHandleResolve(t *testing.T) {
	h := newTestServer().Handler()

	body := `{
		"meeting_time": "2023-08-12T14:30:00Z",
		"user_timezone": "August 12th, 2023 at 10:30:00 AM GMT-4",
		"from_timezone": "America/New_York",
		"target_timezone": "Europe/London",
		"duration_minutes": 30
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res libtzmeet.MeetingResolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.CalendarMeetingTime)
	require.NotNil(t, res.CalendarEndTime)

	want := time.Date(2023, 8, 12, 14, 30, 0, 0, time.UTC).Unix()
	assert.Equal(t, want, *res.CalendarMeetingTime)
	assert.Equal(t, want+1800, *res.CalendarEndTime)
	assert.Equal(t, "2:30 PM", res.ReadableTimeOrigin)
	assert.Equal(t, "7:30 PM", res.ReadableTimeParticipant)
}

func TestHandleResolveDegraded(t *testing.T) {
	h := newTestServer().Handler()

	body := `{"meeting_time": "2023-08-12T14:30:00Z", "user_timezone": "no offset here"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, libtzmeet.OriginErrorMarker, raw["readable_time_origin"])
	assert.Equal(t, libtzmeet.ParticipantErrorMarker, raw["readable_time_participant"])
	assert.NotContains(t, raw, "calendar_meeting_time")
	assert.NotContains(t, raw, "calendar_end_time")
}

func TestHandleResolveBadJSON(t *testing.T) {
	h := newTestServer().Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success": false`)
}

func TestHandleResolveMethodNotAllowed(t *testing.T) {
	h := newTestServer().Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/resolve", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer().Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success": true`)

	// Drive one resolution so the resolution counter has a sample.
	resolve := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader(`{"meeting_time":"x"}`))
	h.ServeHTTP(httptest.NewRecorder(), resolve)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tzmeet_resolutions_total")
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newTestServer().Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
