// extractor/pdftotext.go
package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// pdftotextBackend shells out to poppler's pdftotext.
type pdftotextBackend struct {
	path   string
	runner CommandRunner
}

func (p *pdftotextBackend) extract(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "agenda-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	// "-" as output writes to stdout; pages are separated by form feeds.
	out, err := p.runner.Run(ctx, p.path, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return strings.ReplaceAll(string(out), "\f", "\n"), nil
}
