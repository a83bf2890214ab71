// handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every API route. admin may be nil to leave the admin
// endpoints unregistered.
func NewRouter(meetings *MeetingHandler, admin *AdminHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", meetings.Health)
	mux.HandleFunc("/api/meetings", meetings.ListMeetings)
	mux.HandleFunc("/api/meetings/", meetings.GetMeeting) // Path ends with / to catch the id
	mux.HandleFunc("/api/stats", meetings.Stats)
	if admin != nil {
		mux.HandleFunc("/api/admin/run-cycle", admin.RunCycle)
	}
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
