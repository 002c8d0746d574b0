package monitor

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Validate rejects configurations the probes cannot execute. The API layer
// validates on write; the engine calls this again before probing and treats a
// failure as a failed check.
func (m *Monitor) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalid)
	case m.IntervalMinutes < 1:
		return fmt.Errorf("%w: interval must be >= 1 minute", ErrInvalid)
	case strings.TrimSpace(m.Target) == "":
		return fmt.Errorf("%w: empty target", ErrInvalid)
	}

	switch m.Type {
	case TypeHTTP:
		return m.validateHTTP()
	case TypeTCP:
		c := m.Settings.TCP
		if c == nil {
			return fmt.Errorf("%w: tcp settings missing", ErrInvalid)
		}
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("%w: tcp port %d out of range", ErrInvalid, c.Port)
		}
		if c.TimeoutSec < 1 || c.TimeoutSec > 60 {
			return fmt.Errorf("%w: tcp timeout %ds out of range", ErrInvalid, c.TimeoutSec)
		}
	case TypePing:
		c := m.Settings.Ping
		if c == nil {
			return fmt.Errorf("%w: ping settings missing", ErrInvalid)
		}
		if c.Count < 1 || c.Count > 10 {
			return fmt.Errorf("%w: ping count %d out of range", ErrInvalid, c.Count)
		}
		if c.TimeoutSec < 1 || c.TimeoutSec > 60 {
			return fmt.Errorf("%w: ping timeout %ds out of range", ErrInvalid, c.TimeoutSec)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, m.Type)
	}
	return nil
}

func (m *Monitor) validateHTTP() error {
	u, err := url.Parse(m.Target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: malformed url %q", ErrInvalid, m.Target)
	}
	c := m.Settings.HTTP
	if c == nil {
		return nil
	}
	switch strings.ToUpper(c.Method) {
	case "", http.MethodGet, http.MethodHead:
		if c.Body != "" {
			return fmt.Errorf("%w: request body only allowed for POST", ErrInvalid)
		}
	case http.MethodPost:
	default:
		return fmt.Errorf("%w: unsupported method %q", ErrInvalid, c.Method)
	}

	switch c.Validate {
	case RuleNone:
	case RuleContains, RuleNotContains, RuleEquals:
	case RuleStatusEquals, RuleStatusNotEquals:
		if _, err := strconv.Atoi(strings.TrimSpace(c.Expected)); err != nil {
			return fmt.Errorf("%w: expected status %q is not a number", ErrInvalid, c.Expected)
		}
	case RuleMatches:
		if _, err := regexp.Compile(c.Expected); err != nil {
			return fmt.Errorf("%w: bad pattern: %v", ErrInvalid, err)
		}
	default:
		return fmt.Errorf("%w: unknown validation rule %q", ErrInvalid, c.Validate)
	}
	return nil
}
