// summarizer/fallback.go
package summarizer

import (
	"fmt"
	"strings"

	"github.com/gewnthar/agendawatch/utils"
)

const (
	fallbackHeading    = "Key agenda items:"
	fallbackDisclaimer = "(Note: This is a basic extraction. Configure a summarizer API key for AI-generated summaries.)"
	fallbackMaxLines   = 5
	fallbackMinLineLen = 20
	fallbackMaxLineLen = 150
)

// FallbackSummary lists the first few substantial lines of text.
func FallbackSummary(text string) string {
	var sb strings.Builder
	sb.WriteString(fallbackHeading)
	sb.WriteString("\n\n")

	n := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) <= fallbackMinLineLen {
			continue
		}
		n++
		fmt.Fprintf(&sb, "%d. %s...\n", n, utils.TruncateRunes(line, fallbackMaxLineLen))
		if n == fallbackMaxLines {
			break
		}
	}

	sb.WriteString("\n")
	sb.WriteString(fallbackDisclaimer)
	return sb.String()
}
