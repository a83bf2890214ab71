// Package notifier delivers new-meeting announcements to a Discord webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gewnthar/agendawatch/config"
	"github.com/gewnthar/agendawatch/logger"
	"github.com/gewnthar/agendawatch/models"
	"github.com/gewnthar/agendawatch/utils"
)

// Discord posts one embed per meeting to a webhook URL.
type Discord struct {
	client          *http.Client
	webhookURL      string
	title           string
	maxSummaryChars int
	color           int
	log             *slog.Logger
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type WebhookMessage struct {
	Embeds []Embed `json:"embeds"`
}

// NewDiscord returns nil when no webhook URL is configured; callers treat a
// nil notifier as "notifications disabled".
func NewDiscord(cfg config.NotifierConfig, log *slog.Logger) *Discord {
	if cfg.DiscordWebhookURL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxChars := cfg.MaxSummaryChars
	if maxChars <= 0 || maxChars > 1024 {
		maxChars = 1000
	}
	return &Discord{
		client:          &http.Client{Timeout: timeout},
		webhookURL:      cfg.DiscordWebhookURL,
		title:           cfg.Title,
		maxSummaryChars: maxChars,
		color:           cfg.Color,
		log:             logger.OrDiscard(log).With("component", "notifier"),
	}
}

// BuildMessage renders the webhook payload for a meeting.
func (d *Discord) BuildMessage(m models.Meeting) WebhookMessage {
	fields := []EmbedField{{
		Name:  "Summary",
		Value: utils.TruncateRunes(m.Summary, d.maxSummaryChars),
	}}
	if m.HasAgenda() {
		fields = append(fields, EmbedField{Name: "Agenda", Value: *m.AgendaURL})
	}

	e := Embed{
		Title:       d.title,
		Description: fmt.Sprintf("**%s**\n%s", m.MeetingType, m.Date),
		URL:         m.URL,
		Color:       d.color,
		Fields:      fields,
	}
	if !m.DiscoveredAt.IsZero() {
		e.Timestamp = m.DiscoveredAt.UTC().Format(time.RFC3339)
	}
	return WebhookMessage{Embeds: []Embed{e}}
}

// Notify posts the meeting. Any transport failure or non-2xx response is
// returned as an error wrapping models.ErrTransport.
func (d *Discord) Notify(ctx context.Context, m models.Meeting) error {
	payload, err := json.Marshal(d.BuildMessage(m))
	if err != nil {
		return fmt.Errorf("marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: create webhook request: %v", models.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: post webhook: %v", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: webhook returned status %d: %s", models.ErrTransport, resp.StatusCode, bytes.TrimSpace(body))
	}

	d.log.Info("notification sent", "meeting_id", m.ID)
	return nil
}
