// models/cycle.go
package models

import "time"

// Cycle statuses recorded in cycle_runs.
const (
	CycleStatusOK      = "ok"
	CycleStatusAborted = "aborted"
)

// CycleRun tracks one discovery-through-notification pass over the listing page.
type CycleRun struct {
	RunID         string     `db:"run_id" json:"run_id"`
	ListingURL    string     `db:"listing_url" json:"listing_url"`
	StartedAt     time.Time  `db:"started_at" json:"started_at"`
	FinishedAt    *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Candidates    int        `db:"candidates" json:"candidates"`
	NewMeetings   int        `db:"new_meetings" json:"new_meetings"`
	Notifications int        `db:"notifications" json:"notifications"`
	Status        string     `db:"status" json:"status"`
	Error         string     `db:"error" json:"error,omitempty"`
}

// MeetingStats is the aggregate view served to read-only consumers.
type MeetingStats struct {
	Total         int            `json:"total"`
	WithAgenda    int            `json:"with_agenda"`
	Notified      int            `json:"notified"`
	LatestDate    string         `json:"latest_date,omitempty"`
	ByMeetingType map[string]int `json:"by_meeting_type"`
	LastCycle     *CycleRun      `json:"last_cycle,omitempty"`
}
