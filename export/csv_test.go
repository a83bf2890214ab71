package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gewnthar/agendawatch/models"
)

func TestWriteAndReadCSV(t *testing.T) {
	agenda := "https://city.example/docs/agenda.pdf"
	notified := time.Date(2026, 1, 20, 10, 0, 0, 123456789, time.UTC)
	meetings := []models.Meeting{
		{
			ID:           "20260122-reg",
			Date:         "2026-01-22",
			MeetingType:  "Regular Meeting",
			URL:          "https://city.example/20260122-reg.htm",
			AgendaURL:    &agenda,
			Summary:      "Key agenda items:\n\n1. Housing, \"bonds\" and parks...\n",
			DiscoveredAt: time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC),
			NotifiedAt:   &notified,
		},
		{
			ID:           "20261399-spec",
			Date:         "20261399",
			MeetingType:  "Special Called Meeting",
			URL:          "https://city.example/20261399-spec.htm",
			Summary:      models.SummaryAgendaUnavailable,
			DiscoveredAt: time.Date(2026, 1, 21, 9, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, meetings))
	assert.True(t, strings.HasPrefix(buf.String(), "id,date,meeting_type,url,agenda_url,summary,discovered_at,notified_at\n"))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, meetings, got)
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "id,date,meeting_type,url,agenda_url,summary,discovered_at,notified_at\n", buf.String())

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadCSV_EmptyInput(t *testing.T) {
	got, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing id", "id,date,summary\n,2026-01-22,x\n"},
		{"bad timestamp", "id,summary,discovered_at\n20260122-reg,x,yesterday\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrParse)
		})
	}
}
