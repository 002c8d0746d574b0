package probe

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpMonitor(host string, port int) *monitor.Monitor {
	return &monitor.Monitor{
		ID:              "m-tcp",
		Type:            monitor.TypeTCP,
		Target:          host,
		IntervalMinutes: 1,
		Settings:        monitor.Settings{TCP: &monitor.TCPConfig{Port: port, TimeoutSec: 2}},
	}
}

func listenerPort(t *testing.T, ln net.Listener) int {
	t.Helper()
	_, p, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return port
}

func TestTCPProbe_Open(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	ex := NewExecutor(time.Second).Register(monitor.TypeTCP, NewTCPProbe())
	res := ex.Execute(context.Background(), tcpMonitor("127.0.0.1", listenerPort(t, ln)))

	require.True(t, res.Succeeded, res.Error)
	assert.Equal(t, ErrorKindNone, res.ErrorKind)
}

func TestTCPProbe_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listenerPort(t, ln)
	require.NoError(t, ln.Close())

	ex := NewExecutor(time.Second).Register(monitor.TypeTCP, NewTCPProbe())
	res := ex.Execute(context.Background(), tcpMonitor("127.0.0.1", port))

	assert.False(t, res.Succeeded)
	assert.Equal(t, ErrorKindRefused, res.ErrorKind)
}

func TestTCPProbe_UnresolvableHost(t *testing.T) {
	ex := NewExecutor(time.Second).Register(monitor.TypeTCP, NewTCPProbe())
	res := ex.Execute(context.Background(), tcpMonitor("no-such-host.invalid", 443))

	assert.False(t, res.Succeeded)
	assert.Equal(t, ErrorKindDNS, res.ErrorKind)
}
