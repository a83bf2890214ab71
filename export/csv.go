// Package export writes and reads meeting records as CSV for backups and
// moving data between SQLite and MySQL deployments.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/gewnthar/agendawatch/models"
)

// timeLayout keeps nanoseconds so a round trip is lossless.
const timeLayout = time.RFC3339Nano

// meetingRow is the CSV shape of a meeting. Optional fields are empty strings.
type meetingRow struct {
	ID           string `csv:"id"`
	Date         string `csv:"date"`
	MeetingType  string `csv:"meeting_type"`
	URL          string `csv:"url"`
	AgendaURL    string `csv:"agenda_url"`
	Summary      string `csv:"summary"`
	DiscoveredAt string `csv:"discovered_at"`
	NotifiedAt   string `csv:"notified_at"`
}

// WriteCSV writes a header row followed by one row per meeting.
func WriteCSV(w io.Writer, meetings []models.Meeting) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(meetingRow{}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, m := range meetings {
		row := meetingRow{
			ID:           m.ID,
			Date:         m.Date,
			MeetingType:  m.MeetingType,
			URL:          m.URL,
			Summary:      m.Summary,
			DiscoveredAt: m.DiscoveredAt.UTC().Format(timeLayout),
		}
		if m.AgendaURL != nil {
			row.AgendaURL = *m.AgendaURL
		}
		if m.NotifiedAt != nil {
			row.NotifiedAt = m.NotifiedAt.UTC().Format(timeLayout)
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode meeting %s: %w", m.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// ReadCSV parses meetings written by WriteCSV. Headers must match the
// exported column names; column order does not matter.
func ReadCSV(r io.Reader) ([]models.Meeting, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if errors.Is(err, io.EOF) {
		return []models.Meeting{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder for meetings: %w", err)
	}

	var rows []meetingRow
	if err := dec.Decode(&rows); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode meeting CSV data: %w", err)
	}

	meetings := make([]models.Meeting, 0, len(rows))
	for i, row := range rows {
		m, err := row.toMeeting()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		meetings = append(meetings, m)
	}
	return meetings, nil
}

func (row meetingRow) toMeeting() (models.Meeting, error) {
	if row.ID == "" {
		return models.Meeting{}, fmt.Errorf("%w: missing id", models.ErrParse)
	}
	m := models.Meeting{
		ID:          row.ID,
		Date:        row.Date,
		MeetingType: row.MeetingType,
		URL:         row.URL,
		Summary:     row.Summary,
	}
	if row.AgendaURL != "" {
		agendaURL := row.AgendaURL
		m.AgendaURL = &agendaURL
	}
	if row.DiscoveredAt != "" {
		t, err := time.Parse(timeLayout, row.DiscoveredAt)
		if err != nil {
			return models.Meeting{}, fmt.Errorf("%w: meeting %s: bad discovered_at %q", models.ErrParse, row.ID, row.DiscoveredAt)
		}
		m.DiscoveredAt = t
	}
	if row.NotifiedAt != "" {
		t, err := time.Parse(timeLayout, row.NotifiedAt)
		if err != nil {
			return models.Meeting{}, fmt.Errorf("%w: meeting %s: bad notified_at %q", models.ErrParse, row.ID, row.NotifiedAt)
		}
		m.NotifiedAt = &t
	}
	return m, nil
}
