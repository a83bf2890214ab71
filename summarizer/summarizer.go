// Package summarizer turns agenda text into a short public-facing summary,
// using a generative backend when one is configured and a deterministic
// extractive summary otherwise.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gewnthar/agendawatch/config"
	"github.com/gewnthar/agendawatch/logger"
	"github.com/gewnthar/agendawatch/metrics"
	"github.com/gewnthar/agendawatch/models"
	"github.com/gewnthar/agendawatch/utils"
)

// Mode is the summarization capability resolved at construction.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeCapable  Mode = "capable"
	ModeFallback Mode = "fallback"
)

// DefaultMaxInputChars bounds the text sent to a generator.
const DefaultMaxInputChars = 100000

const promptTemplate = `Summarize this city council agenda in 3-5 bullet points.
Focus on the most important items, public hearings, and policy decisions.
Keep it concise and accessible to the general public.

Agenda text:
`

// Generator sends a prompt to a generative text service.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Service summarizes agenda text.
type Service struct {
	generator     Generator
	maxInputChars int
	log           *slog.Logger
}

// New builds a Service from configuration. Without a provider and API key it
// runs in fallback mode for every call.
func New(cfg config.SummarizerConfig, log *slog.Logger) (*Service, error) {
	gen, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithGenerator(gen, cfg.MaxInputChars, log), nil
}

// NewWithGenerator builds a Service around gen. A nil gen selects fallback mode.
func NewWithGenerator(gen Generator, maxInputChars int, log *slog.Logger) *Service {
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	s := &Service{
		generator:     gen,
		maxInputChars: maxInputChars,
		log:           logger.OrDiscard(log).With("component", "summarizer"),
	}
	if gen != nil {
		s.log.Info("summarizer ready", "mode", ModeCapable, "generator", gen.Name())
	} else {
		s.log.Warn("summarizer running in fallback mode; configure a provider and API key for generated summaries", "mode", ModeFallback)
	}
	return s
}

// NewGenerator returns the generator for the configured provider, or nil when
// summarization should use the fallback.
func NewGenerator(cfg config.SummarizerConfig) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == "none" || cfg.APIKey == "" {
		return nil, nil
	}
	switch provider {
	case "gemini":
		return NewGemini(GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	case "openai":
		return NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	default:
		return nil, fmt.Errorf("%w: unknown summarizer provider %q", models.ErrConfiguration, cfg.Provider)
	}
}

// Mode reports which backend Summarize uses.
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeNone
	}
	if s.generator != nil {
		return ModeCapable
	}
	return ModeFallback
}

// Summarize returns a non-empty summary of text. Generator failures fall
// through to the extractive summary for that call.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("%w: no summarizer configured", models.ErrSummarization)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text to summarize", models.ErrSummarization)
	}

	if s.generator != nil {
		summary, err := s.generator.Generate(ctx, BuildPrompt(text, s.maxInputChars))
		summary = strings.TrimSpace(summary)
		switch {
		case err != nil:
			s.log.Error("generator failed, using fallback summary", "generator", s.generator.Name(), "error", err)
		case summary == "":
			s.log.Warn("generator returned an empty summary, using fallback", "generator", s.generator.Name())
		default:
			s.log.Info("generated summary", "generator", s.generator.Name(), "chars", len(summary))
			metrics.RecordSummary(string(ModeCapable))
			return summary, nil
		}
	}

	metrics.RecordSummary(string(ModeFallback))
	return FallbackSummary(text), nil
}

// BuildPrompt appends the first maxChars characters of text to the fixed
// instruction.
func BuildPrompt(text string, maxChars int) string {
	return promptTemplate + utils.TruncateRunes(text, maxChars)
}
