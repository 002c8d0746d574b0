// Package interpret turns a raw probe result into the success/error verdict
// and the human-readable message stored in the log.
package interpret

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/NordCoder/checkengine/internal/probe"
)

type Rules struct {
	// HTTPSuccessBelow is the exclusive upper bound of healthy status codes.
	HTTPSuccessBelow int
	// PingMaxLossPercent is the highest packet loss still reported as success.
	PingMaxLossPercent float64
}

func DefaultRules() Rules {
	return Rules{HTTPSuccessBelow: 400, PingMaxLossPercent: 0}
}

type Outcome struct {
	Status  monitor.Status
	Message string
}

// Classify is deterministic: the same monitor and result always give the
// same outcome, and the message is never empty.
func (r Rules) Classify(m *monitor.Monitor, res probe.Result) Outcome {
	if !res.Succeeded {
		return Outcome{Status: monitor.StatusError, Message: failureMessage(res)}
	}
	switch m.Type {
	case monitor.TypeHTTP:
		return r.http(m, res)
	case monitor.TypeTCP:
		return Outcome{
			Status:  monitor.StatusSuccess,
			Message: fmt.Sprintf("TCP connection to %s:%d established", m.Target, tcpPort(m)),
		}
	case monitor.TypePing:
		return r.ping(m, res)
	}
	return Outcome{Status: monitor.StatusError, Message: fmt.Sprintf("unsupported monitor type %q", m.Type)}
}

func (r Rules) http(m *monitor.Monitor, res probe.Result) Outcome {
	below := r.HTTPSuccessBelow
	if below <= 0 {
		below = 400
	}
	status := monitor.StatusError
	if res.StatusCode < below {
		status = monitor.StatusSuccess
	}
	msg := fmt.Sprintf("HTTP %d", res.StatusCode)

	c := m.Settings.HTTP
	if c == nil || c.Validate == monitor.RuleNone {
		return Outcome{Status: status, Message: msg}
	}

	ok, desc := validate(c, res)
	if ok {
		return Outcome{Status: monitor.StatusSuccess, Message: msg + ", " + desc}
	}
	return Outcome{Status: monitor.StatusError, Message: msg + ", validation failed: " + desc}
}

// validate reports whether the rule holds and describes what was checked.
func validate(c *monitor.HTTPConfig, res probe.Result) (bool, string) {
	body := string(res.Body)
	switch c.Validate {
	case monitor.RuleContains:
		return strings.Contains(body, c.Expected), fmt.Sprintf("body contains %q", c.Expected)
	case monitor.RuleNotContains:
		return !strings.Contains(body, c.Expected), fmt.Sprintf("body does not contain %q", c.Expected)
	case monitor.RuleEquals:
		return strings.TrimSpace(body) == strings.TrimSpace(c.Expected), fmt.Sprintf("body equals %q", c.Expected)
	case monitor.RuleStatusEquals, monitor.RuleStatusNotEquals:
		want, err := strconv.Atoi(strings.TrimSpace(c.Expected))
		if err != nil {
			return false, fmt.Sprintf("expected status %q is not a number", c.Expected)
		}
		if c.Validate == monitor.RuleStatusEquals {
			return res.StatusCode == want, fmt.Sprintf("status equals %d", want)
		}
		return res.StatusCode != want, fmt.Sprintf("status differs from %d", want)
	case monitor.RuleMatches:
		re, err := regexp.Compile(c.Expected)
		if err != nil {
			return false, fmt.Sprintf("bad pattern: %v", err)
		}
		return re.MatchString(body), fmt.Sprintf("body matches /%s/", c.Expected)
	}
	return false, fmt.Sprintf("unknown rule %q", c.Validate)
}

func (r Rules) ping(m *monitor.Monitor, res probe.Result) Outcome {
	count := res.PacketsSent
	if m.Settings.Ping != nil {
		count = m.Settings.Ping.Count
	}
	msg := fmt.Sprintf("%d/%d packets received, %.1f%% loss", res.PacketsRecv, count, res.PacketLoss)
	if res.PacketsRecv > 0 {
		msg += fmt.Sprintf(", avg rtt %dms", res.AvgRTT.Milliseconds())
	}
	if res.PacketLoss <= r.PingMaxLossPercent {
		return Outcome{Status: monitor.StatusSuccess, Message: msg}
	}
	return Outcome{Status: monitor.StatusError, Message: msg}
}

func failureMessage(res probe.Result) string {
	kind := res.ErrorKind
	if kind == probe.ErrorKindNone {
		kind = probe.ErrorKindNetwork
	}
	if res.Error == "" || res.Error == string(kind) {
		return string(kind)
	}
	return string(kind) + ": " + res.Error
}

func tcpPort(m *monitor.Monitor) int {
	if m.Settings.TCP == nil {
		return 0
	}
	return m.Settings.TCP.Port
}
