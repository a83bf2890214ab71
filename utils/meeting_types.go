// utils/meeting_types.go
package utils

import "strings"

// meetingTypeLabels maps the lowercase code in a meeting page name
// (e.g. "20260122-reg.htm") to a readable label.
var meetingTypeLabels = map[string]string{
	"reg":   "Regular Meeting",
	"wrk":   "Work Session",
	"spec":  "Special Called Meeting",
	"afc":   "Audit & Finance Committee",
	"mobc":  "Mobility Committee",
	"phc":   "Public Health Committee",
	"hpc":   "Housing & Planning Committee",
	"cwepc": "Climate, Water, Energy & Public Enterprises Committee",
	"psc":   "Public Safety Committee",
	"eoc":   "Economic Opportunity Committee",
}

// FormatMeetingType converts a meeting type code to its label.
// Unknown codes are returned upper-cased so new meeting kinds are never dropped.
func FormatMeetingType(code string) string {
	if label, ok := meetingTypeLabels[code]; ok {
		return label
	}
	return strings.ToUpper(code)
}

// TruncateRunes cuts s to at most limit characters. It never splits a UTF-8 sequence.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
