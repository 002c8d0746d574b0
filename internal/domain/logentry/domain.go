package logentry

import (
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
)

// Entry is one check attempt. Entries are append-only.
type Entry struct {
	ID             int64          `json:"id"`
	CheckID        string         `json:"check_id"`
	MonitorID      string         `json:"monitor_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Status         monitor.Status `json:"status"`
	Message        string         `json:"message"`
	ResponseTimeMs *int64         `json:"response_time_ms,omitempty"`
	ResponseBody   *string        `json:"response_body,omitempty"`
}

// Window is the success/total count over the most recent retained entries.
type Window struct {
	Successes int
	Total     int
}
