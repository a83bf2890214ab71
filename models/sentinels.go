package models

// Sentinel summaries persisted when real agenda content is unavailable.
// Each failure stage keeps its own message so readers can tell them apart.
const (
	SummaryAgendaUnavailable = "Agenda not yet available. Check back later."
	SummaryDownloadFailed    = "Failed to download agenda document."
	SummaryExtractionFailed  = "Unable to extract text from agenda document."
	SummarySummarizerFailed  = "Summary unavailable for this agenda."
)

// IsSentinelSummary reports whether s is one of the degraded-outcome messages.
func IsSentinelSummary(s string) bool {
	switch s {
	case SummaryAgendaUnavailable, SummaryDownloadFailed, SummaryExtractionFailed, SummarySummarizerFailed:
		return true
	}
	return false
}
