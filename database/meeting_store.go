// database/meeting_store.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gewnthar/agendawatch/models"
)

const meetingColumns = `id, date, meeting_type, url, agenda_url, summary, discovered_at, notified_at`

// Exists reports whether a meeting with this id has ever been created.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM meetings WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check meeting %s: %w", id, err)
	}
	return true, nil
}

// Create inserts a new meeting and sets its DiscoveredAt to the current time.
// It returns models.ErrDuplicateKey when the id already exists.
func (s *Store) Create(ctx context.Context, m *models.Meeting) error {
	if err := s.ready(); err != nil {
		return err
	}
	if m == nil || m.ID == "" {
		return fmt.Errorf("meeting id is required")
	}
	if strings.TrimSpace(m.Summary) == "" {
		return fmt.Errorf("meeting %s: summary must not be blank", m.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for meeting %s: %w", m.ID, err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM meetings WHERE id = ?`, m.ID).Scan(&one)
	switch {
	case err == nil:
		return fmt.Errorf("meeting %s: %w", m.ID, models.ErrDuplicateKey)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check meeting %s: %w", m.ID, err)
	}

	discoveredAt := s.now().UTC()
	var agendaURL sql.NullString
	if m.AgendaURL != nil {
		agendaURL = sql.NullString{String: *m.AgendaURL, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO meetings (id, date, meeting_type, url, agenda_url, summary, discovered_at, notified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
	`, m.ID, m.Date, m.MeetingType, m.URL, agendaURL, m.Summary, formatTimestamp(discoveredAt))
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("meeting %s: %w", m.ID, models.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert meeting %s: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit meeting %s: %w", m.ID, err)
	}

	m.DiscoveredAt = discoveredAt
	m.NotifiedAt = nil
	s.log.Debug("saved meeting", "meeting_id", m.ID)
	return nil
}

// UpdateAgendaAndSummary sets the meeting's summary and, if none was recorded
// yet, its agenda URL. A previously resolved agenda URL is never replaced.
func (s *Store) UpdateAgendaAndSummary(ctx context.Context, id string, agendaURL *string, summary string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(summary) == "" {
		return fmt.Errorf("meeting %s: summary must not be blank", id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for meeting %s: %w", id, err)
	}
	defer tx.Rollback()

	var current sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT agenda_url FROM meetings WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("meeting %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load meeting %s: %w", id, err)
	}

	next := current
	if !current.Valid && agendaURL != nil && *agendaURL != "" {
		next = sql.NullString{String: *agendaURL, Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE meetings SET agenda_url = ?, summary = ? WHERE id = ?`,
		next, summary, id,
	); err != nil {
		return fmt.Errorf("failed to update meeting %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit meeting %s: %w", id, err)
	}
	return nil
}

// MarkNotified records the first successful notification for a meeting.
// Repeated calls leave the original timestamp in place.
func (s *Store) MarkNotified(ctx context.Context, id string, at time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for meeting %s: %w", id, err)
	}
	defer tx.Rollback()

	var notifiedAt sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT notified_at FROM meetings WHERE id = ?`, id).Scan(&notifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("meeting %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load meeting %s: %w", id, err)
	}
	if notifiedAt.Valid {
		s.log.Debug("meeting already notified", "meeting_id", id, "notified_at", notifiedAt.String)
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE meetings SET notified_at = ? WHERE id = ? AND notified_at IS NULL`,
		formatTimestamp(at), id,
	); err != nil {
		return fmt.Errorf("failed to mark meeting %s notified: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit meeting %s: %w", id, err)
	}
	return nil
}

// Get returns one meeting or models.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.Meeting, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meeting %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query meeting %s: %w", id, err)
	}
	return m, nil
}

// isoDate matches dates stored as YYYY-MM-DD. Dates the listing could not
// parse are kept as raw digits and would otherwise sort above every ISO date.
const isoDate = `date LIKE '____-__-__'`

// ListRecent returns up to limit meetings, newest meeting date first and
// same-date meetings in insertion order. Meetings with an unparsed date
// follow all dated ones. A non-empty search keeps meetings
// whose type or summary contains it, ignoring case.
func (s *Store) ListRecent(ctx context.Context, limit int, search string) ([]models.Meeting, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings`
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		query += ` WHERE (LOWER(meeting_type) LIKE ? ESCAPE '!' OR LOWER(summary) LIKE ? ESCAPE '!')`
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY CASE WHEN ` + isoDate + ` THEN 0 ELSE 1 END, date DESC, seq ASC LIMIT ?`
	args = append(args, limit)

	return s.queryMeetings(ctx, query, args...)
}

// ListPendingNotification returns meetings discovered at or after since that
// have never been notified, oldest first.
func (s *Store) ListPendingNotification(ctx context.Context, since time.Time) ([]models.Meeting, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryMeetings(ctx, `
		SELECT `+meetingColumns+` FROM meetings
		WHERE notified_at IS NULL AND discovered_at >= ?
		ORDER BY seq ASC
	`, formatTimestamp(since))
}

// ListAwaitingAgenda returns meetings discovered at or after since whose
// agenda has not been resolved, oldest first.
func (s *Store) ListAwaitingAgenda(ctx context.Context, since time.Time) ([]models.Meeting, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryMeetings(ctx, `
		SELECT `+meetingColumns+` FROM meetings
		WHERE agenda_url IS NULL AND discovered_at >= ?
		ORDER BY seq ASC
	`, formatTimestamp(since))
}

// ListAll returns every meeting in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]models.Meeting, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryMeetings(ctx, `SELECT `+meetingColumns+` FROM meetings ORDER BY seq ASC`)
}

// Import inserts a meeting restored from an export, keeping its
// DiscoveredAt and NotifiedAt. It returns models.ErrDuplicateKey when the id
// already exists.
func (s *Store) Import(ctx context.Context, m *models.Meeting) error {
	if err := s.ready(); err != nil {
		return err
	}
	if m == nil || m.ID == "" {
		return fmt.Errorf("meeting id is required")
	}
	if strings.TrimSpace(m.Summary) == "" {
		return fmt.Errorf("meeting %s: summary must not be blank", m.ID)
	}
	if m.DiscoveredAt.IsZero() {
		m.DiscoveredAt = s.now().UTC()
	}

	var agendaURL sql.NullString
	if m.AgendaURL != nil {
		agendaURL = sql.NullString{String: *m.AgendaURL, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, date, meeting_type, url, agenda_url, summary, discovered_at, notified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Date, m.MeetingType, m.URL, agendaURL, m.Summary,
		formatTimestamp(m.DiscoveredAt), nullTimestamp(m.NotifiedAt))
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("meeting %s: %w", m.ID, models.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to import meeting %s: %w", m.ID, err)
	}
	return nil
}

// Stats aggregates the meetings table for read-only consumers.
func (s *Store) Stats(ctx context.Context) (*models.MeetingStats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	stats := &models.MeetingStats{ByMeetingType: map[string]int{}}
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN agenda_url IS NOT NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN notified_at IS NOT NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(MAX(CASE WHEN `+isoDate+` THEN date END), MAX(date))
		FROM meetings
	`).Scan(&stats.Total, &stats.WithAgenda, &stats.Notified, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to query meeting stats: %w", err)
	}
	if latest.Valid {
		stats.LatestDate = latest.String
	}

	rows, err := s.db.QueryContext(ctx, `SELECT meeting_type, COUNT(*) FROM meetings GROUP BY meeting_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query meeting type counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var meetingType string
		var count int
		if err := rows.Scan(&meetingType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan meeting type count: %w", err)
		}
		stats.ByMeetingType[meetingType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meeting type counts: %w", err)
	}

	stats.LastCycle, err = s.LastCycle(ctx)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) queryMeetings(ctx context.Context, query string, args ...any) ([]models.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	meetings := []models.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting row: %w", err)
		}
		meetings = append(meetings, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meeting rows: %w", err)
	}
	return meetings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*models.Meeting, error) {
	var (
		m            models.Meeting
		agendaURL    sql.NullString
		discoveredAt string
		notifiedAt   sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Date, &m.MeetingType, &m.URL, &agendaURL, &m.Summary, &discoveredAt, &notifiedAt); err != nil {
		return nil, err
	}
	if agendaURL.Valid {
		m.AgendaURL = &agendaURL.String
	}

	var err error
	if m.DiscoveredAt, err = parseTimestamp(discoveredAt); err != nil {
		return nil, fmt.Errorf("meeting %s: bad discovered_at %q: %w", m.ID, discoveredAt, err)
	}
	if m.NotifiedAt, err = parseNullTimestamp(notifiedAt); err != nil {
		return nil, fmt.Errorf("meeting %s: bad notified_at %q: %w", m.ID, notifiedAt.String, err)
	}
	return &m, nil
}

// escapeLike escapes LIKE wildcards using '!' as the escape character, which
// needs no quoting in either SQLite or MySQL string literals.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
