// models/meeting.go
package models

import "time"

// DateLayout is the canonical layout of Meeting.Date when the listing date parsed.
const DateLayout = "2006-01-02"

// Candidate is a meeting link scraped from the listing page that has not yet
// been checked against the store.
type Candidate struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	MeetingType string `json:"meeting_type"`
	URL         string `json:"url"`
	LinkText    string `json:"link_text"`
}

// Meeting is a persisted meeting and its processing outcome.
type Meeting struct {
	ID           string     `db:"id" json:"id"`
	Date         string     `db:"date" json:"date"` // YYYY-MM-DD, or the raw digits if they did not parse
	MeetingType  string     `db:"meeting_type" json:"meeting_type"`
	URL          string     `db:"url" json:"url"`
	AgendaURL    *string    `db:"agenda_url" json:"agenda_url,omitempty"`
	Summary      string     `db:"summary" json:"summary"`
	DiscoveredAt time.Time  `db:"discovered_at" json:"discovered_at"`
	NotifiedAt   *time.Time `db:"notified_at" json:"notified_at,omitempty"`
}

// NewMeeting builds the record persisted for a candidate.
func NewMeeting(c Candidate, agendaURL *string, summary string) *Meeting {
	return &Meeting{
		ID:          c.ID,
		Date:        c.Date,
		MeetingType: c.MeetingType,
		URL:         c.URL,
		AgendaURL:   agendaURL,
		Summary:     summary,
	}
}

// ParsedDate returns the meeting date as a time.Time when Date holds a
// canonical YYYY-MM-DD value.
func (m Meeting) ParsedDate() (time.Time, bool) {
	t, err := time.Parse(DateLayout, m.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HasAgenda reports whether an agenda document was resolved.
func (m Meeting) HasAgenda() bool {
	return m.AgendaURL != nil && *m.AgendaURL != ""
}

// Notified reports whether a notification was dispatched for the meeting.
func (m Meeting) Notified() bool {
	return m.NotifiedAt != nil
}
