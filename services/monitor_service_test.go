package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gewnthar/agendawatch/config"
	"github.com/gewnthar/agendawatch/database"
	"github.com/gewnthar/agendawatch/models"
)

const listingURL = "https://city.example/council/info.htm"

type fakeListing struct {
	candidates []models.Candidate
	err        error
	started    chan struct{}
	release    chan struct{}
}

func (f *fakeListing) FetchListing(ctx context.Context, _ string) ([]models.Candidate, error) {
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return f.candidates, f.err
}

type fakeResolver struct {
	mu      sync.Mutex
	agendas map[string]string
	errs    map[string]error
	times   []time.Time
}

func (f *fakeResolver) set(detailURL, agendaURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agendas[detailURL] = agendaURL
}

func (f *fakeResolver) callTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.times...)
}

func (f *fakeResolver) ResolveAgendaURL(_ context.Context, detailURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times = append(f.times, time.Now())
	if err := f.errs[detailURL]; err != nil {
		return "", err
	}
	return f.agendas[detailURL], nil
}

type fakeDocuments struct {
	errs map[string]error
}

func (f *fakeDocuments) FetchDocument(_ context.Context, documentURL string) ([]byte, error) {
	if err := f.errs[documentURL]; err != nil {
		return nil, err
	}
	return []byte("agenda text for " + documentURL), nil
}

type fakeExtractor struct {
	empty map[string]bool
}

func (f *fakeExtractor) ExtractText(_ context.Context, data []byte) (string, error) {
	if f.empty[string(data)] {
		return "", models.ErrExtraction
	}
	return string(data), nil
}

type fakeSummarizer struct {
	fail map[string]bool
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	if f.fail[text] {
		return "", models.ErrSummarization
	}
	return "summary of " + text, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	calls    []string
	times    []time.Time
	failures int
}

func (f *fakeNotifier) Notify(_ context.Context, m models.Meeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, m.ID)
	f.times = append(f.times, time.Now())
	if f.failures > 0 {
		f.failures--
		return errors.New("webhook returned 500")
	}
	return nil
}

func (f *fakeNotifier) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == id {
			n++
		}
	}
	return n
}

func candidate(id string) models.Candidate {
	return models.Candidate{
		ID:          id,
		Date:        id[:4] + "-" + id[4:6] + "-" + id[6:8],
		MeetingType: "Regular Meeting",
		URL:         "https://city.example/" + id + ".htm",
	}
}

func detailURL(id string) string { return "https://city.example/" + id + ".htm" }
func agendaURL(id string) string { return "https://city.example/docs/" + id + ".pdf" }

type harness struct {
	listing   *fakeListing
	resolver  *fakeResolver
	documents *fakeDocuments
	extractor *fakeExtractor
	summ      *fakeSummarizer
	notifier  *fakeNotifier
	store     *database.Store
}

func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()
	store, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "monitor.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		listing:   &fakeListing{},
		resolver:  &fakeResolver{agendas: map[string]string{}, errs: map[string]error{}},
		documents: &fakeDocuments{errs: map[string]error{}},
		extractor: &fakeExtractor{empty: map[string]bool{}},
		summ:      &fakeSummarizer{fail: map[string]bool{}},
		notifier:  &fakeNotifier{},
		store:     store,
	}
	for _, id := range ids {
		h.listing.candidates = append(h.listing.candidates, candidate(id))
		h.resolver.agendas[detailURL(id)] = agendaURL(id)
	}
	return h
}

func (h *harness) monitor(t *testing.T, opts MonitorOptions) *Monitor {
	t.Helper()
	if opts.ListingURL == "" {
		opts.ListingURL = listingURL
	}
	m, err := NewMonitor(MonitorDeps{
		Listing:    h.listing,
		Resolver:   h.resolver,
		Documents:  h.documents,
		Extractor:  h.extractor,
		Summarizer: h.summ,
		Notifier:   h.notifier,
		Store:      h.store,
	}, opts, nil)
	require.NoError(t, err)
	return m
}

func TestNewMonitor_MissingDependencies(t *testing.T) {
	_, err := NewMonitor(MonitorDeps{}, MonitorOptions{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfiguration)
	assert.Contains(t, err.Error(), "listing fetcher")
	assert.Contains(t, err.Error(), "listing URL")
}

func TestRunCycle_ProcessesNewMeetings(t *testing.T) {
	h := newHarness(t, "20260122-reg", "20260127-wrk")
	m := h.monitor(t, MonitorOptions{})

	report, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Processed, 2)
	assert.Equal(t, "20260122-reg", report.Processed[0].Meeting.ID)
	assert.Equal(t, "20260127-wrk", report.Processed[1].Meeting.ID)
	assert.Equal(t, 2, report.Run.Candidates)
	assert.Equal(t, 2, report.Run.NewMeetings)
	assert.Equal(t, 2, report.Run.Notifications)
	assert.Equal(t, models.CycleStatusOK, report.Run.Status)
	assert.NotEmpty(t, report.Run.RunID)

	got, err := h.store.Get(context.Background(), "20260122-reg")
	require.NoError(t, err)
	assert.Equal(t, "summary of agenda text for "+agendaURL("20260122-reg"), got.Summary)
	require.NotNil(t, got.AgendaURL)
	assert.Equal(t, agendaURL("20260122-reg"), *got.AgendaURL)
	assert.NotNil(t, got.NotifiedAt)

	last, err := h.store.LastCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, report.Run.RunID, last.RunID)
	assert.Equal(t, 2, last.NewMeetings)
}

func TestRunCycle_IdempotentDiscovery(t *testing.T) {
	h := newHarness(t, "20260122-reg", "20260127-wrk")
	m := h.monitor(t, MonitorOptions{})

	_, err := m.RunCycle(context.Background())
	require.NoError(t, err)

	report, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Processed)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, report.Run.NewMeetings)
}

func TestRunCycle_AtMostOnceNotification(t *testing.T) {
	h := newHarness(t, "20260122-reg", "20260127-wrk")
	m := h.monitor(t, MonitorOptions{NotifyRetryWindow: 24 * time.Hour})

	for i := 0; i < 3; i++ {
		_, err := m.RunCycle(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.notifier.count("20260122-reg"))
	assert.Equal(t, 1, h.notifier.count("20260127-wrk"))
}

func TestRunCycle_DegradeNotAbort(t *testing.T) {
	h := newHarness(t, "20260122-reg", "20260127-wrk")
	h.resolver.errs[detailURL("20260122-reg")] = models.ErrTransport
	m := h.monitor(t, MonitorOptions{})

	report, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Processed, 2)
	assert.Equal(t, OutcomeAgendaUnavailable, report.Processed[0].Outcome)
	assert.Equal(t, OutcomeSummarized, report.Processed[1].Outcome)

	a, err := h.store.Get(context.Background(), "20260122-reg")
	require.NoError(t, err)
	assert.Equal(t, models.SummaryAgendaUnavailable, a.Summary)
	assert.Nil(t, a.AgendaURL)

	b, err := h.store.Get(context.Background(), "20260127-wrk")
	require.NoError(t, err)
	assert.Equal(t, "summary of agenda text for "+agendaURL("20260127-wrk"), b.Summary)
}

func TestRunCycle_StageFailuresUseDistinctSentinels(t *testing.T) {
	ids := []string{"20260101-reg", "20260102-reg", "20260103-reg", "20260104-reg"}
	h := newHarness(t, ids...)
	h.resolver.agendas[detailURL(ids[0])] = ""
	h.documents.errs[agendaURL(ids[1])] = models.ErrTransport
	h.extractor.empty["agenda text for "+agendaURL(ids[2])] = true
	h.summ.fail["agenda text for "+agendaURL(ids[3])] = true
	m := h.monitor(t, MonitorOptions{})

	report, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Processed, 4)

	want := []struct {
		outcome   string
		summary   string
		hasAgenda bool
	}{
		{OutcomeAgendaUnavailable, models.SummaryAgendaUnavailable, false},
		{OutcomeDownloadFailed, models.SummaryDownloadFailed, true},
		{OutcomeExtractionFailed, models.SummaryExtractionFailed, true},
		{OutcomeSummarizerFailed, models.SummarySummarizerFailed, true},
	}
	for i, w := range want {
		assert.Equal(t, w.outcome, report.Processed[i].Outcome, ids[i])
		got, err := h.store.Get(context.Background(), ids[i])
		require.NoError(t, err)
		assert.Equal(t, w.summary, got.Summary, ids[i])
		assert.NotEmpty(t, got.Summary)
		assert.Equal(t, w.hasAgenda, got.HasAgenda(), ids[i])
	}
}

func TestRunCycle_ListingFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.listing.err = models.ErrTransport
	m := h.monitor(t, MonitorOptions{})

	report, err := m.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTransport)
	require.NotNil(t, report)
	assert.Equal(t, models.CycleStatusAborted, report.Run.Status)
	assert.Empty(t, report.Processed)

	last, err := h.store.LastCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, models.CycleStatusAborted, last.Status)
	assert.NotEmpty(t, last.Error)
}

func TestRunCycle_NoNotifier(t *testing.T) {
	h := newHarness(t, "20260122-reg")
	m, err := NewMonitor(MonitorDeps{
		Listing:    h.listing,
		Resolver:   h.resolver,
		Documents:  h.documents,
		Extractor:  h.extractor,
		Summarizer: h.summ,
		Store:      h.store,
	}, MonitorOptions{ListingURL: listingURL, NotifyRetryWindow: time.Hour}, nil)
	require.NoError(t, err)

	report, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Processed, 1)
	assert.False(t, report.Processed[0].Notified)

	got, err := h.store.Get(context.Background(), "20260122-reg")
	require.NoError(t, err)
	assert.Nil(t, got.NotifiedAt)
}

func TestRunCycle_FailedNotificationIsRetried(t *testing.T) {
	h := newHarness(t, "20260122-reg")
	h.notifier.failures = 1
	m := h.monitor(t, MonitorOptions{NotifyRetryWindow: time.Hour})

	report, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Processed, 1)
	assert.False(t, report.Processed[0].Notified)
	assert.Equal(t, 0, report.Retried)

	got, err := h.store.Get(context.Background(), "20260122-reg")
	require.NoError(t, err)
	assert.Nil(t, got.NotifiedAt)

	report, err = m.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Retried)
	assert.Equal(t, 1, report.Run.Notifications)

	got, err = h.store.Get(context.Background(), "20260122-reg")
	require.NoError(t, err)
	assert.NotNil(t, got.NotifiedAt)
	assert.Equal(t, 2, h.notifier.count("20260122-reg"))
}

func TestRunCycle_FailedNotificationNotRetriedWithoutWindow(t *testing.T) {
	h := newHarness(t, "20260122-reg")
	h.notifier.failures = 1
	m := h.monitor(t, MonitorOptions{})

	for i := 0; i < 2; i++ {
		_, err := m.RunCycle(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.notifier.count("20260122-reg"))
}

func TestRunCycle_AgendaRefresh(t *testing.T) {
	h := newHarness(t, "20260122-reg")
	h.resolver.set(detailURL("20260122-reg"), "")
	m := h.monitor(t, MonitorOptions{AgendaRefreshWindow: 24 * time.Hour})

	report, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Processed, 1)
	assert.Equal(t, OutcomeAgendaUnavailable, report.Processed[0].Outcome)

	h.resolver.set(detailURL("20260122-reg"), agendaURL("20260122-reg"))
	report, err = m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Processed, 1)
	assert.True(t, report.Processed[0].Refreshed)
	assert.Equal(t, OutcomeSummarized, report.Processed[0].Outcome)

	got, err := h.store.Get(context.Background(), "20260122-reg")
	require.NoError(t, err)
	require.NotNil(t, got.AgendaURL)
	assert.Equal(t, agendaURL("20260122-reg"), *got.AgendaURL)
	assert.Equal(t, "summary of agenda text for "+agendaURL("20260122-reg"), got.Summary)
	assert.Equal(t, 1, h.notifier.count("20260122-reg"))
}

func TestRunCycle_PacesNotifications(t *testing.T) {
	h := newHarness(t, "20260101-reg", "20260102-reg", "20260103-reg")
	m := h.monitor(t, MonitorOptions{Pacing: 40 * time.Millisecond})

	_, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, h.notifier.times, 3)
	for i := 1; i < len(h.notifier.times); i++ {
		gap := h.notifier.times[i].Sub(h.notifier.times[i-1])
		assert.GreaterOrEqual(t, gap, 30*time.Millisecond)
	}
}

func assertGaps(t *testing.T, times []time.Time, atLeast time.Duration) {
	t.Helper()
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), atLeast, "gap %d", i)
	}
}

func TestRunCycle_PacesAgendaLookupsWithoutNotifier(t *testing.T) {
	h := newHarness(t, "20260101-reg", "20260102-reg", "20260103-reg")
	m, err := NewMonitor(MonitorDeps{
		Listing:    h.listing,
		Resolver:   h.resolver,
		Documents:  h.documents,
		Extractor:  h.extractor,
		Summarizer: h.summ,
		Store:      h.store,
	}, MonitorOptions{ListingURL: listingURL, Pacing: 40 * time.Millisecond}, nil)
	require.NoError(t, err)

	report, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Processed, 3)

	times := h.resolver.callTimes()
	require.Len(t, times, 3)
	assertGaps(t, times, 30*time.Millisecond)
}

func TestRunCycle_PacesAgendaRefresh(t *testing.T) {
	ids := []string{"20260101-reg", "20260102-reg", "20260103-reg"}
	h := newHarness(t, ids...)
	for _, id := range ids {
		h.resolver.set(detailURL(id), "")
	}
	m := h.monitor(t, MonitorOptions{Pacing: 40 * time.Millisecond, AgendaRefreshWindow: time.Hour})

	_, err := m.RunCycle(context.Background())
	require.NoError(t, err)

	for _, id := range ids {
		h.resolver.set(detailURL(id), agendaURL(id))
	}
	before := len(h.resolver.callTimes())
	report, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Processed, 3)
	for _, pm := range report.Processed {
		assert.True(t, pm.Refreshed)
	}

	times := h.resolver.callTimes()[before:]
	require.Len(t, times, 3)
	assertGaps(t, times, 30*time.Millisecond)
}

// vanishingStore loses every meeting between save and MarkNotified.
type vanishingStore struct {
	*database.Store
}

func (vanishingStore) MarkNotified(context.Context, string, time.Time) error {
	return fmt.Errorf("%w: meeting deleted", models.ErrNotFound)
}

func TestRunCycle_NotifiedMeetingMissingFromStore(t *testing.T) {
	h := newHarness(t, "20260122-reg")
	m, err := NewMonitor(MonitorDeps{
		Listing:    h.listing,
		Resolver:   h.resolver,
		Documents:  h.documents,
		Extractor:  h.extractor,
		Summarizer: h.summ,
		Notifier:   h.notifier,
		Store:      vanishingStore{h.store},
	}, MonitorOptions{ListingURL: listingURL}, nil)
	require.NoError(t, err)

	report, err := m.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Processed, 1)
	assert.Equal(t, OutcomeNotifyRecordMissing, report.Processed[0].Outcome)
	assert.False(t, report.Processed[0].Notified)
	assert.Equal(t, 0, report.Run.Notifications)
	assert.Equal(t, 1, h.notifier.count("20260122-reg"))
}

func TestRunCycle_CancelledContext(t *testing.T) {
	h := newHarness(t, "20260122-reg")
	m := h.monitor(t, MonitorOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := m.RunCycle(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.CycleStatusAborted, report.Run.Status)

	exists, err := h.store.Exists(context.Background(), "20260122-reg")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunCycle_RejectsConcurrentCycle(t *testing.T) {
	h := newHarness(t, "20260122-reg")
	h.listing.started = make(chan struct{})
	h.listing.release = make(chan struct{})
	m := h.monitor(t, MonitorOptions{})

	done := make(chan error, 1)
	go func() {
		_, err := m.RunCycle(context.Background())
		done <- err
	}()
	<-h.listing.started

	_, err := m.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(h.listing.release)
	require.NoError(t, <-done)
}
