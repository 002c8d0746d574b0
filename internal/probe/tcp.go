package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
)

var _ Probe = (*TCPProbe)(nil)

// TCPProbe succeeds when a connection to target:port opens before the
// context deadline.
type TCPProbe struct{}

func NewTCPProbe() *TCPProbe { return &TCPProbe{} }

func (p *TCPProbe) Run(ctx context.Context, m *monitor.Monitor) Result {
	if m.Settings.TCP == nil {
		return failed(ErrorKindInvalidConfig, fmt.Errorf("tcp settings missing"), 0)
	}
	addr := net.JoinHostPort(m.Target, strconv.Itoa(m.Settings.TCP.Port))

	start := time.Now()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(start)
	if err != nil {
		return failed(Classify(err), err, elapsed)
	}
	_ = conn.Close()

	return Result{Succeeded: true, Elapsed: elapsed}
}
