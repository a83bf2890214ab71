// services/monitor_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gewnthar/agendawatch/logger"
	"github.com/gewnthar/agendawatch/metrics"
	"github.com/gewnthar/agendawatch/models"
)

// ErrCycleInProgress is returned when RunCycle is called while another cycle
// is still running.
var ErrCycleInProgress = errors.New("run cycle already in progress")

// Per-meeting outcomes, also used as metric labels.
const (
	OutcomeSummarized        = "summarized"
	OutcomeAgendaUnavailable = "agenda_unavailable"
	OutcomeDownloadFailed    = "download_failed"
	OutcomeExtractionFailed  = "extraction_failed"
	OutcomeSummarizerFailed  = "summarizer_failed"
	OutcomeStoreFailed       = "store_failed"

	// OutcomeNotifyRecordMissing marks a meeting that was announced but had
	// vanished from the store before the send could be recorded.
	OutcomeNotifyRecordMissing = "notify_record_missing"
)

type ListingFetcher interface {
	FetchListing(ctx context.Context, listingURL string) ([]models.Candidate, error)
}

type AgendaResolver interface {
	ResolveAgendaURL(ctx context.Context, detailURL string) (string, error)
}

type DocumentFetcher interface {
	FetchDocument(ctx context.Context, documentURL string) ([]byte, error)
}

type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, m models.Meeting) error
}

// MeetingStore is the subset of the database used by a run cycle.
type MeetingStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, m *models.Meeting) error
	UpdateAgendaAndSummary(ctx context.Context, id string, agendaURL *string, summary string) error
	MarkNotified(ctx context.Context, id string, at time.Time) error
	ListPendingNotification(ctx context.Context, since time.Time) ([]models.Meeting, error)
	ListAwaitingAgenda(ctx context.Context, since time.Time) ([]models.Meeting, error)
	RecordCycle(ctx context.Context, run models.CycleRun) error
}

// MonitorDeps are the collaborators driven by the Monitor. Notifier may be
// nil to disable notifications; every other field is required.
type MonitorDeps struct {
	Listing    ListingFetcher
	Resolver   AgendaResolver
	Documents  DocumentFetcher
	Extractor  TextExtractor
	Summarizer Summarizer
	Notifier   Notifier
	Store      MeetingStore
}

type MonitorOptions struct {
	ListingURL string
	// Pacing is the minimum interval between agenda lookups against the
	// origin site, and separately between notification dispatches.
	Pacing time.Duration
	// NotifyRetryWindow re-sends failed notifications for meetings
	// discovered within the window. Zero disables retries.
	NotifyRetryWindow time.Duration
	// AgendaRefreshWindow re-resolves agendas for meetings discovered within
	// the window that still have none. Zero disables refreshes.
	AgendaRefreshWindow time.Duration
}

// ProcessedMeeting is one meeting handled by a cycle.
type ProcessedMeeting struct {
	Meeting  models.Meeting `json:"meeting"`
	Outcome  string         `json:"outcome"`
	Notified bool           `json:"notified"`
	// Refreshed is set for existing meetings whose agenda was resolved on a later cycle.
	Refreshed bool `json:"refreshed,omitempty"`
}

// CycleReport is the result of one run cycle.
type CycleReport struct {
	Run       models.CycleRun    `json:"run"`
	Processed []ProcessedMeeting `json:"processed"`
	Skipped   int                `json:"skipped"`
	Retried   int                `json:"retried"`
}

// Monitor runs discovery-through-notification cycles over one listing page.
type Monitor struct {
	deps    MonitorDeps
	opts    MonitorOptions
	origin  *rate.Limiter
	limiter *rate.Limiter
	log     *slog.Logger
	now     func() time.Time
	running sync.Mutex
}

func NewMonitor(deps MonitorDeps, opts MonitorOptions, log *slog.Logger) (*Monitor, error) {
	var missing []string
	if deps.Listing == nil {
		missing = append(missing, "listing fetcher")
	}
	if deps.Resolver == nil {
		missing = append(missing, "agenda resolver")
	}
	if deps.Documents == nil {
		missing = append(missing, "document fetcher")
	}
	if deps.Extractor == nil {
		missing = append(missing, "document extractor")
	}
	if deps.Summarizer == nil {
		missing = append(missing, "summarizer")
	}
	if deps.Store == nil {
		missing = append(missing, "store")
	}
	if opts.ListingURL == "" {
		missing = append(missing, "listing URL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: monitor is missing %s", models.ErrConfiguration, strings.Join(missing, ", "))
	}

	limit := rate.Inf
	if opts.Pacing > 0 {
		limit = rate.Every(opts.Pacing)
	}

	return &Monitor{
		deps:    deps,
		opts:    opts,
		origin:  rate.NewLimiter(limit, 1),
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.OrDiscard(log).With("component", "monitor"),
		now:     time.Now,
	}, nil
}

// RunCycle performs one pass over the listing page. Only a listing fetch
// failure or context cancellation aborts the cycle; per-meeting failures are
// recorded as sentinel summaries.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !m.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer m.running.Unlock()

	report := &CycleReport{
		Run: models.CycleRun{
			RunID:      uuid.NewString(),
			ListingURL: m.opts.ListingURL,
			StartedAt:  m.now().UTC(),
			Status:     models.CycleStatusOK,
		},
		Processed: []ProcessedMeeting{},
	}
	log := m.log.With("run_id", report.Run.RunID)
	log.Info("starting run cycle", "listing_url", m.opts.ListingURL)

	started := time.Now()
	candidates, err := m.deps.Listing.FetchListing(ctx, m.opts.ListingURL)
	metrics.ObserveStage("discover", time.Since(started).Seconds())
	if err != nil {
		log.Error("listing fetch failed, aborting cycle", "error", err)
		err = fmt.Errorf("listing fetch failed: %w", err)
		m.finish(ctx, log, report, err)
		return report, err
	}
	report.Run.Candidates = len(candidates)

	attempted := make(map[string]bool)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			log.Warn("run cycle cancelled", "error", err)
			m.finish(ctx, log, report, err)
			return report, err
		}

		pm, ok := m.processCandidate(ctx, log, c)
		if !ok {
			report.Skipped++
			continue
		}
		attempted[pm.Meeting.ID] = true
		report.Processed = append(report.Processed, pm)
		if pm.Notified {
			report.Run.Notifications++
		}
		if pm.Outcome != OutcomeStoreFailed {
			report.Run.NewMeetings++
		}
	}

	if m.opts.AgendaRefreshWindow > 0 {
		refreshed := m.refreshAgendas(ctx, log, attempted)
		report.Processed = append(report.Processed, refreshed...)
	}
	if m.opts.NotifyRetryWindow > 0 && m.deps.Notifier != nil {
		sent, retried := m.retryNotifications(ctx, log, attempted)
		report.Run.Notifications += sent
		report.Retried = retried
	}

	if err := ctx.Err(); err != nil {
		m.finish(ctx, log, report, err)
		return report, err
	}
	m.finish(ctx, log, report, nil)
	return report, nil
}

// processCandidate runs one candidate through the pipeline. It reports false
// when the candidate is already known or could not be checked.
func (m *Monitor) processCandidate(ctx context.Context, log *slog.Logger, c models.Candidate) (ProcessedMeeting, bool) {
	log = log.With("meeting_id", c.ID)

	exists, err := m.deps.Store.Exists(ctx, c.ID)
	if err != nil {
		log.Error("failed to check store, skipping candidate", "error", err)
		return ProcessedMeeting{}, false
	}
	if exists {
		log.Debug("meeting already known")
		return ProcessedMeeting{}, false
	}

	if err := m.origin.Wait(ctx); err != nil {
		log.Warn("candidate skipped", "stage", "resolve", "error", err)
		return ProcessedMeeting{}, false
	}
	log.Info("processing new meeting", "date", c.Date, "meeting_type", c.MeetingType)
	agendaURL, summary, outcome := m.summarizeAgenda(ctx, log, c.URL)

	meeting := models.NewMeeting(c, agendaURL, summary)
	started := time.Now()
	err = m.deps.Store.Create(ctx, meeting)
	metrics.ObserveStage("persist", time.Since(started).Seconds())
	if errors.Is(err, models.ErrDuplicateKey) {
		log.Debug("meeting created concurrently, skipping")
		return ProcessedMeeting{}, false
	}
	if err != nil {
		log.Error("failed to save meeting", "error", err)
		metrics.RecordOutcome(OutcomeStoreFailed)
		return ProcessedMeeting{Meeting: *meeting, Outcome: OutcomeStoreFailed}, true
	}
	metrics.RecordDiscovered()
	metrics.RecordOutcome(outcome)

	pm := ProcessedMeeting{Meeting: *meeting, Outcome: outcome}
	if m.deps.Notifier != nil {
		sent, err := m.notify(ctx, log, &pm.Meeting)
		if errors.Is(err, models.ErrNotFound) {
			pm.Outcome = OutcomeNotifyRecordMissing
			metrics.RecordOutcome(OutcomeNotifyRecordMissing)
		}
		pm.Notified = sent
	}
	return pm, true
}

// summarizeAgenda resolves, downloads, extracts and summarizes a meeting's
// agenda. Every failure maps to a sentinel summary; the agenda URL is
// returned whenever it was resolved.
func (m *Monitor) summarizeAgenda(ctx context.Context, log *slog.Logger, detailURL string) (*string, string, string) {
	started := time.Now()
	agendaURL, err := m.deps.Resolver.ResolveAgendaURL(ctx, detailURL)
	metrics.ObserveStage("resolve", time.Since(started).Seconds())
	if err != nil {
		log.Warn("agenda resolution failed", "stage", "resolve", "error", err)
		return nil, models.SummaryAgendaUnavailable, OutcomeAgendaUnavailable
	}
	if agendaURL == "" {
		log.Info("no agenda found", "stage", "resolve")
		return nil, models.SummaryAgendaUnavailable, OutcomeAgendaUnavailable
	}

	started = time.Now()
	data, err := m.deps.Documents.FetchDocument(ctx, agendaURL)
	metrics.ObserveStage("fetch", time.Since(started).Seconds())
	if err != nil {
		log.Warn("agenda download failed", "stage", "fetch", "agenda_url", agendaURL, "error", err)
		return &agendaURL, models.SummaryDownloadFailed, OutcomeDownloadFailed
	}

	started = time.Now()
	text, err := m.deps.Extractor.ExtractText(ctx, data)
	metrics.ObserveStage("extract", time.Since(started).Seconds())
	if err != nil || strings.TrimSpace(text) == "" {
		log.Warn("agenda text extraction failed", "stage", "extract", "agenda_url", agendaURL, "error", err)
		return &agendaURL, models.SummaryExtractionFailed, OutcomeExtractionFailed
	}

	started = time.Now()
	summary, err := m.deps.Summarizer.Summarize(ctx, text)
	metrics.ObserveStage("summarize", time.Since(started).Seconds())
	if err != nil || strings.TrimSpace(summary) == "" {
		log.Warn("summarization failed", "stage", "summarize", "error", err)
		return &agendaURL, models.SummarySummarizerFailed, OutcomeSummarizerFailed
	}
	return &agendaURL, summary, OutcomeSummarized
}

// notify dispatches one notification and records it on success. The
// limiter spaces consecutive dispatches by the pacing interval. It reports
// whether the send counts as done; a meeting missing from the store when the
// send is recorded returns false and an ErrNotFound error.
func (m *Monitor) notify(ctx context.Context, log *slog.Logger, meeting *models.Meeting) (bool, error) {
	if meeting.Notified() {
		return false, nil
	}
	if err := m.limiter.Wait(ctx); err != nil {
		log.Warn("notification skipped", "stage", "notify", "error", err)
		return false, nil
	}

	started := time.Now()
	err := m.deps.Notifier.Notify(ctx, *meeting)
	metrics.ObserveStage("notify", time.Since(started).Seconds())
	metrics.RecordNotification(err == nil)
	if err != nil {
		log.Error("notification failed", "stage", "notify", "error", err)
		return false, nil
	}

	at := m.now().UTC()
	if err := m.deps.Store.MarkNotified(ctx, meeting.ID, at); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Error("notified meeting missing from store", "stage", "notify", "error", err)
			return false, err
		}
		log.Error("failed to record notification", "stage", "notify", "error", err)
		return true, nil
	}
	meeting.NotifiedAt = &at
	return true, nil
}

// refreshAgendas re-resolves agendas for recent meetings saved without one.
func (m *Monitor) refreshAgendas(ctx context.Context, log *slog.Logger, skip map[string]bool) []ProcessedMeeting {
	since := m.now().Add(-m.opts.AgendaRefreshWindow)
	awaiting, err := m.deps.Store.ListAwaitingAgenda(ctx, since)
	if err != nil {
		log.Error("failed to list meetings awaiting an agenda", "error", err)
		return nil
	}

	var refreshed []ProcessedMeeting
	for _, meeting := range awaiting {
		if ctx.Err() != nil {
			break
		}
		if skip[meeting.ID] {
			continue
		}
		mlog := log.With("meeting_id", meeting.ID)

		if err := m.origin.Wait(ctx); err != nil {
			mlog.Warn("agenda refresh stopped", "error", err)
			break
		}
		agendaURL, summary, outcome := m.summarizeAgenda(ctx, mlog, meeting.URL)
		if agendaURL == nil {
			continue
		}
		if err := m.deps.Store.UpdateAgendaAndSummary(ctx, meeting.ID, agendaURL, summary); err != nil {
			mlog.Error("failed to update agenda", "error", err)
			continue
		}
		mlog.Info("agenda now available", "agenda_url", *agendaURL, "outcome", outcome)
		metrics.RecordOutcome(outcome)

		meeting.AgendaURL = agendaURL
		meeting.Summary = summary
		refreshed = append(refreshed, ProcessedMeeting{
			Meeting:   meeting,
			Outcome:   outcome,
			Notified:  false,
			Refreshed: true,
		})
	}
	return refreshed
}

// retryNotifications re-sends notifications that failed on earlier cycles.
func (m *Monitor) retryNotifications(ctx context.Context, log *slog.Logger, skip map[string]bool) (sent, attempted int) {
	since := m.now().Add(-m.opts.NotifyRetryWindow)
	pending, err := m.deps.Store.ListPendingNotification(ctx, since)
	if err != nil {
		log.Error("failed to list pending notifications", "error", err)
		return 0, 0
	}

	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		if skip[pending[i].ID] {
			continue
		}
		attempted++
		if ok, _ := m.notify(ctx, log.With("meeting_id", pending[i].ID, "retry", true), &pending[i]); ok {
			sent++
		}
	}
	return sent, attempted
}

func (m *Monitor) finish(ctx context.Context, log *slog.Logger, report *CycleReport, cycleErr error) {
	finished := m.now().UTC()
	report.Run.FinishedAt = &finished
	if cycleErr != nil {
		report.Run.Status = models.CycleStatusAborted
		report.Run.Error = cycleErr.Error()
	}
	metrics.RecordCycle(report.Run.Status)

	// Record even when ctx was cancelled.
	if err := m.deps.Store.RecordCycle(context.WithoutCancel(ctx), report.Run); err != nil {
		log.Error("failed to record cycle", "error", err)
	}
	log.Info("run cycle finished",
		"status", report.Run.Status,
		"candidates", report.Run.Candidates,
		"new_meetings", report.Run.NewMeetings,
		"notifications", report.Run.Notifications,
		"skipped", report.Skipped,
	)
}
