package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gewnthar/agendawatch/models"
	"github.com/gewnthar/agendawatch/services"
)

type fakeReader struct {
	meetings  []models.Meeting
	pingErr   error
	listErr   error
	gotLimit  int
	gotSearch string
}

func (f *fakeReader) ListRecent(_ context.Context, limit int, search string) ([]models.Meeting, error) {
	f.gotLimit, f.gotSearch = limit, search
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.meetings) {
		return f.meetings[:limit], nil
	}
	return f.meetings, nil
}

func (f *fakeReader) Get(_ context.Context, id string) (*models.Meeting, error) {
	for i := range f.meetings {
		if f.meetings[i].ID == id {
			return &f.meetings[i], nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeReader) Stats(_ context.Context) (*models.MeetingStats, error) {
	return &models.MeetingStats{Total: len(f.meetings), ByMeetingType: map[string]int{"Regular Meeting": len(f.meetings)}}, nil
}

func (f *fakeReader) Ping(_ context.Context) error { return f.pingErr }

type fakeRunner struct {
	report *services.CycleReport
	err    error
}

func (f *fakeRunner) RunCycle(_ context.Context) (*services.CycleReport, error) {
	return f.report, f.err
}

func newTestRouter(reader *fakeReader, runner *fakeRunner) http.Handler {
	var admin *AdminHandler
	if runner != nil {
		admin = NewAdminHandler(runner, nil)
	}
	return NewRouter(NewMeetingHandler(reader, nil), admin)
}

func sampleReader() *fakeReader {
	return &fakeReader{meetings: []models.Meeting{
		{ID: "20260122-reg", Date: "2026-01-22", MeetingType: "Regular Meeting", Summary: "a"},
		{ID: "20260115-reg", Date: "2026-01-15", MeetingType: "Regular Meeting", Summary: "b"},
	}}
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListMeetings(t *testing.T) {
	reader := sampleReader()
	router := newTestRouter(reader, nil)

	rec := serve(router, http.MethodGet, "/api/meetings?limit=1&q=housing")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, reader.gotLimit)
	assert.Equal(t, "housing", reader.gotSearch)

	var body struct {
		Meetings []models.Meeting `json:"meetings"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "20260122-reg", body.Meetings[0].ID)
}

func TestListMeetings_LimitHandling(t *testing.T) {
	reader := sampleReader()
	router := newTestRouter(reader, nil)

	rec := serve(router, http.MethodGet, "/api/meetings")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultListLimit, reader.gotLimit)

	rec = serve(router, http.MethodGet, "/api/meetings?limit=5000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxListLimit, reader.gotLimit)

	for _, bad := range []string{"0", "-3", "ten"} {
		rec = serve(router, http.MethodGet, "/api/meetings?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	rec = serve(router, http.MethodPost, "/api/meetings")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListMeetings_StoreError(t *testing.T) {
	reader := sampleReader()
	reader.listErr = errors.New("disk I/O error")
	rec := serve(newTestRouter(reader, nil), http.MethodGet, "/api/meetings")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk I/O error")
}

func TestGetMeeting(t *testing.T) {
	router := newTestRouter(sampleReader(), nil)

	rec := serve(router, http.MethodGet, "/api/meetings/20260115-reg")
	require.Equal(t, http.StatusOK, rec.Code)
	var m models.Meeting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "2026-01-15", m.Date)

	rec = serve(router, http.MethodGet, "/api/meetings/20990101-reg")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, http.MethodGet, "/api/meetings/a/b")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	rec := serve(newTestRouter(sampleReader(), nil), http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.MeetingStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByMeetingType["Regular Meeting"])
}

func TestHealth(t *testing.T) {
	reader := sampleReader()
	router := newTestRouter(reader, nil)

	rec := serve(router, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	reader.pingErr = errors.New("connection refused")
	rec = serve(router, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunCycle(t *testing.T) {
	report := &services.CycleReport{Run: models.CycleRun{RunID: "run-1", Status: models.CycleStatusOK}}

	tests := []struct {
		name   string
		runner *fakeRunner
		method string
		want   int
	}{
		{"ok", &fakeRunner{report: report}, http.MethodPost, http.StatusOK},
		{"in progress", &fakeRunner{err: services.ErrCycleInProgress}, http.MethodPost, http.StatusConflict},
		{"aborted", &fakeRunner{report: report, err: models.ErrTransport}, http.MethodPost, http.StatusBadGateway},
		{"failed", &fakeRunner{err: errors.New("boom")}, http.MethodPost, http.StatusInternalServerError},
		{"wrong method", &fakeRunner{report: report}, http.MethodGet, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestRouter(sampleReader(), tt.runner), tt.method, "/api/admin/run-cycle")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRunCycle_NotRegisteredWithoutAdmin(t *testing.T) {
	rec := serve(newTestRouter(sampleReader(), nil), http.MethodPost, "/api/admin/run-cycle")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestRouter(sampleReader(), nil), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}
