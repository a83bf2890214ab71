// extractor/extractor.go
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/gewnthar/agendawatch/config"
	"github.com/gewnthar/agendawatch/logger"
	"github.com/gewnthar/agendawatch/models"
)

// Backend identifies the document-to-text implementation chosen at startup.
type Backend int

const (
	BackendNone Backend = iota
	BackendPdftotext
	BackendNative
)

func (b Backend) String() string {
	switch b {
	case BackendPdftotext:
		return "pdftotext"
	case BackendNative:
		return "native"
	default:
		return "none"
	}
}

// backend is one way of turning document bytes into page-ordered text.
type backend interface {
	extract(ctx context.Context, data []byte) (string, error)
}

// Extractor converts downloaded agenda documents to plain text.
type Extractor struct {
	kind Backend
	impl backend
	log  *slog.Logger
}

// LookPathFunc finds an executable; exec.LookPath in production.
type LookPathFunc func(file string) (string, error)

// ResolveBackend maps the configured backend name to a Backend. "auto"
// prefers pdftotext when it is installed and otherwise uses the native reader.
func ResolveBackend(name, pdftotextPath string, lookPath LookPathFunc) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pdftotext":
		return BackendPdftotext, nil
	case "native":
		return BackendNative, nil
	case "", "auto":
		if lookPath != nil {
			if _, err := lookPath(pdftotextPath); err == nil {
				return BackendPdftotext, nil
			}
		}
		return BackendNative, nil
	case "none":
		return BackendNone, fmt.Errorf("%w: no document extractor backend configured", models.ErrConfiguration)
	default:
		return BackendNone, fmt.Errorf("%w: unknown extractor backend %q", models.ErrConfiguration, name)
	}
}

// New resolves the configured backend once. Missing backends are a
// configuration error, not a per-document failure.
func New(cfg config.ExtractorConfig, log *slog.Logger) (*Extractor, error) {
	return NewWithRunner(cfg, ExecRunner{}, exec.LookPath, log)
}

// NewWithRunner is New with an injectable command runner and path lookup.
func NewWithRunner(cfg config.ExtractorConfig, runner CommandRunner, lookPath LookPathFunc, log *slog.Logger) (*Extractor, error) {
	log = logger.OrDiscard(log).With("component", "extractor")

	kind, err := ResolveBackend(cfg.Backend, cfg.PdftotextPath, lookPath)
	if err != nil {
		return nil, err
	}

	e := &Extractor{kind: kind, log: log}
	switch kind {
	case BackendPdftotext:
		if runner == nil {
			return nil, fmt.Errorf("%w: pdftotext backend needs a command runner", models.ErrConfiguration)
		}
		e.impl = &pdftotextBackend{path: cfg.PdftotextPath, runner: runner}
	case BackendNative:
		e.impl = nativeBackend{}
	}

	log.Info("document extractor ready", "backend", kind.String())
	return e, nil
}

// Backend reports which implementation was selected.
func (e *Extractor) Backend() Backend {
	return e.kind
}

// ExtractText returns the text of every page in page order. Malformed
// documents and documents with no text wrap models.ErrExtraction.
func (e *Extractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", models.ErrExtraction)
	}

	text, err := e.impl.extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", models.ErrExtraction, e.kind, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s: document contains no text", models.ErrExtraction, e.kind)
	}

	e.log.Debug("extracted document text", "backend", e.kind.String(), "bytes", len(data), "chars", len(text))
	return text, nil
}
