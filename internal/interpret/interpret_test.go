package interpret

import (
	"testing"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/NordCoder/checkengine/internal/probe"
	"github.com/stretchr/testify/assert"
)

func httpMon(rule monitor.ValidationRule, expected string) *monitor.Monitor {
	m := &monitor.Monitor{ID: "m", Type: monitor.TypeHTTP, Target: "https://example.com", IntervalMinutes: 1}
	if rule != monitor.RuleNone {
		m.Settings.HTTP = &monitor.HTTPConfig{Method: "GET", Validate: rule, Expected: expected}
	}
	return m
}

func response(code int, body string) probe.Result {
	return probe.Result{Succeeded: true, StatusCode: code, Body: []byte(body), Elapsed: 20 * time.Millisecond}
}

func TestClassify_HTTP(t *testing.T) {
	r := DefaultRules()

	tests := []struct {
		name string
		mon  *monitor.Monitor
		res  probe.Result
		want monitor.Status
	}{
		{"200 no validation", httpMon(monitor.RuleNone, ""), response(200, ""), monitor.StatusSuccess},
		{"301 below boundary", httpMon(monitor.RuleNone, ""), response(301, ""), monitor.StatusSuccess},
		{"404", httpMon(monitor.RuleNone, ""), response(404, ""), monitor.StatusError},
		{"500 no validation", httpMon(monitor.RuleNone, ""), response(500, ""), monitor.StatusError},
		{"contains hit", httpMon(monitor.RuleContains, "OK"), response(200, "OK"), monitor.StatusSuccess},
		{"contains miss", httpMon(monitor.RuleContains, "OK"), response(200, "FAIL"), monitor.StatusError},
		{"contains overrides 500", httpMon(monitor.RuleContains, "maintenance"), response(503, "maintenance"), monitor.StatusSuccess},
		{"notContains", httpMon(monitor.RuleNotContains, "error"), response(200, "all good"), monitor.StatusSuccess},
		{"notContains miss", httpMon(monitor.RuleNotContains, "error"), response(200, "fatal error"), monitor.StatusError},
		{"statusEquals", httpMon(monitor.RuleStatusEquals, "204"), response(204, ""), monitor.StatusSuccess},
		{"statusEquals miss", httpMon(monitor.RuleStatusEquals, "204"), response(200, ""), monitor.StatusError},
		{"statusNotEquals", httpMon(monitor.RuleStatusNotEquals, "500"), response(502, ""), monitor.StatusSuccess},
		{"matches", httpMon(monitor.RuleMatches, `^v\d+\.\d+`), response(200, "v1.42 build"), monitor.StatusSuccess},
		{"equals trims", httpMon(monitor.RuleEquals, "pong"), response(200, "pong\n"), monitor.StatusSuccess},
		{"transport failure", httpMon(monitor.RuleContains, "OK"),
			probe.Result{ErrorKind: probe.ErrorKindRefused, Error: "connection refused"}, monitor.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Classify(tt.mon, tt.res)
			assert.Equal(t, tt.want, got.Status)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestClassify_HTTPMessages(t *testing.T) {
	r := DefaultRules()

	assert.Equal(t, "HTTP 200", r.Classify(httpMon(monitor.RuleNone, ""), response(200, "")).Message)
	assert.Equal(t, `HTTP 200, validation failed: body contains "OK"`,
		r.Classify(httpMon(monitor.RuleContains, "OK"), response(200, "FAIL")).Message)
	assert.Equal(t, "timeout: context deadline exceeded",
		r.Classify(httpMon(monitor.RuleNone, ""), probe.Result{ErrorKind: probe.ErrorKindTimeout, Error: "context deadline exceeded"}).Message)
}

func TestClassify_HTTPSuccessBoundary(t *testing.T) {
	r := Rules{HTTPSuccessBelow: 300}
	assert.Equal(t, monitor.StatusError, r.Classify(httpMon(monitor.RuleNone, ""), response(301, "")).Status)
}

func TestClassify_TCP(t *testing.T) {
	m := &monitor.Monitor{ID: "m", Type: monitor.TypeTCP, Target: "db.internal", IntervalMinutes: 1,
		Settings: monitor.Settings{TCP: &monitor.TCPConfig{Port: 5432, TimeoutSec: 5}}}
	r := DefaultRules()

	ok := r.Classify(m, probe.Result{Succeeded: true})
	assert.Equal(t, monitor.StatusSuccess, ok.Status)
	assert.Equal(t, "TCP connection to db.internal:5432 established", ok.Message)

	refused := r.Classify(m, probe.Result{ErrorKind: probe.ErrorKindRefused, Error: "connect: connection refused"})
	assert.Equal(t, monitor.StatusError, refused.Status)
	assert.Contains(t, refused.Message, "refused")
}

func TestClassify_Ping(t *testing.T) {
	m := &monitor.Monitor{ID: "m", Type: monitor.TypePing, Target: "10.0.0.1", IntervalMinutes: 1,
		Settings: monitor.Settings{Ping: &monitor.PingConfig{Count: 3, TimeoutSec: 5}}}

	all := probe.Result{Succeeded: true, PacketsSent: 3, PacketsRecv: 3, PacketLoss: 0, AvgRTT: 12 * time.Millisecond}
	none := probe.Result{Succeeded: true, PacketsSent: 3, PacketsRecv: 0, PacketLoss: 100}
	some := probe.Result{Succeeded: true, PacketsSent: 3, PacketsRecv: 2, PacketLoss: probe.LossPercent(3, 2)}

	strict := DefaultRules()
	assert.Equal(t, monitor.StatusSuccess, strict.Classify(m, all).Status)
	assert.Equal(t, "3/3 packets received, 0.0% loss, avg rtt 12ms", strict.Classify(m, all).Message)
	assert.Equal(t, monitor.StatusError, strict.Classify(m, none).Status)
	assert.Equal(t, monitor.StatusError, strict.Classify(m, some).Status)

	lenient := Rules{PingMaxLossPercent: 50}
	assert.Equal(t, monitor.StatusSuccess, lenient.Classify(m, some).Status)
}

func TestClassify_Deterministic(t *testing.T) {
	r := DefaultRules()
	m := httpMon(monitor.RuleMatches, "ok")
	res := response(200, "ok")
	assert.Equal(t, r.Classify(m, res), r.Classify(m, res))
}
