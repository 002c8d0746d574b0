package monitor

import (
	"errors"
	"time"
)

type Type string

const (
	TypeHTTP Type = "http"
	TypeTCP  Type = "tcp"
	TypePing Type = "ping"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

type ValidationRule string

const (
	RuleNone            ValidationRule = ""
	RuleContains        ValidationRule = "contains"
	RuleNotContains     ValidationRule = "notContains"
	RuleStatusEquals    ValidationRule = "statusEquals"
	RuleStatusNotEquals ValidationRule = "statusNotEquals"
	RuleMatches         ValidationRule = "matches"
	RuleEquals          ValidationRule = "equals"
)

var (
	ErrNotFound = errors.New("monitor not found")
	ErrInvalid  = errors.New("invalid monitor")
)

type HTTPConfig struct {
	Method   string            `json:"method"`
	Body     string            `json:"body,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Validate ValidationRule    `json:"validate,omitempty"`
	Expected string            `json:"expected,omitempty"`
}

type TCPConfig struct {
	Port       int `json:"port"`
	TimeoutSec int `json:"timeout_sec"`
}

type PingConfig struct {
	Count      int `json:"count"`
	TimeoutSec int `json:"timeout_sec"`
}

// Settings is the type-specific part of a monitor, persisted as one JSON document.
type Settings struct {
	HTTP *HTTPConfig `json:"http,omitempty"`
	TCP  *TCPConfig  `json:"tcp,omitempty"`
	Ping *PingConfig `json:"ping,omitempty"`
}

type Monitor struct {
	ID              string    `json:"id"`
	Type            Type      `json:"type"`
	Target          string    `json:"target"`
	IntervalMinutes int       `json:"interval_minutes"`
	Active          bool      `json:"active"`
	Settings        Settings  `json:"settings"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Health
}

// Health holds the fields owned by the health state updater.
//
// UptimePercent is computed over the retained log window only, it is not a
// lifetime figure.
type Health struct {
	LastStatus    Status     `json:"last_status"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	UptimePercent float64    `json:"uptime_percent"`
}

func (m *Monitor) Interval() time.Duration {
	if m.IntervalMinutes < 1 {
		return time.Minute
	}
	return time.Duration(m.IntervalMinutes) * time.Minute
}

// Timeout returns the per-probe bound configured on the monitor, or def when
// the monitor type carries none (http).
func (m *Monitor) Timeout(def time.Duration) time.Duration {
	switch m.Type {
	case TypeTCP:
		if m.Settings.TCP != nil && m.Settings.TCP.TimeoutSec > 0 {
			return time.Duration(m.Settings.TCP.TimeoutSec) * time.Second
		}
	case TypePing:
		if m.Settings.Ping != nil && m.Settings.Ping.TimeoutSec > 0 {
			return time.Duration(m.Settings.Ping.TimeoutSec) * time.Second
		}
	}
	return def
}

// Clone returns a deep copy so callers can hand monitors across goroutines.
func (m *Monitor) Clone() *Monitor {
	if m == nil {
		return nil
	}
	cp := *m
	if m.LastCheckedAt != nil {
		t := *m.LastCheckedAt
		cp.LastCheckedAt = &t
	}
	if m.Settings.HTTP != nil {
		h := *m.Settings.HTTP
		if m.Settings.HTTP.Headers != nil {
			h.Headers = make(map[string]string, len(m.Settings.HTTP.Headers))
			for k, v := range m.Settings.HTTP.Headers {
				h.Headers[k] = v
			}
		}
		cp.Settings.HTTP = &h
	}
	if m.Settings.TCP != nil {
		t := *m.Settings.TCP
		cp.Settings.TCP = &t
	}
	if m.Settings.Ping != nil {
		p := *m.Settings.Ping
		cp.Settings.Ping = &p
	}
	return &cp
}
