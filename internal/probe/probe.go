package probe

import (
	"context"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
)

type ErrorKind string

const (
	ErrorKindNone          ErrorKind = ""
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindRefused       ErrorKind = "refused"
	ErrorKindDNS           ErrorKind = "dns"
	ErrorKindTLS           ErrorKind = "tls"
	ErrorKindRedirects     ErrorKind = "too_many_redirects"
	ErrorKindNetwork       ErrorKind = "network"
	ErrorKindInvalidConfig ErrorKind = "invalid_config"
	ErrorKindCanceled      ErrorKind = "canceled"
	ErrorKindInternal      ErrorKind = "internal"
)

// Result is the raw outcome of one probe attempt. Succeeded only says the
// exchange completed (a response arrived, a connection opened, packets were
// sent); whether that counts as healthy is decided by the interpreter.
type Result struct {
	Succeeded bool
	Elapsed   time.Duration

	ErrorKind ErrorKind
	Error     string

	// http
	StatusCode    int
	Body          []byte
	BodyTruncated bool

	// ping
	PacketsSent int
	PacketsRecv int
	PacketLoss  float64 // percent
	AvgRTT      time.Duration
}

func (r Result) ElapsedMs() int64 { return r.Elapsed.Milliseconds() }

// Probe performs one check attempt. Implementations must not keep mutable
// state between calls and must return once ctx is done.
type Probe interface {
	Run(ctx context.Context, m *monitor.Monitor) Result
}

type Func func(ctx context.Context, m *monitor.Monitor) Result

func (f Func) Run(ctx context.Context, m *monitor.Monitor) Result { return f(ctx, m) }

func failed(kind ErrorKind, err error, elapsed time.Duration) Result {
	msg := string(kind)
	if err != nil {
		msg = err.Error()
	}
	return Result{ErrorKind: kind, Error: msg, Elapsed: elapsed}
}
