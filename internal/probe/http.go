package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/NordCoder/checkengine/internal/domain/monitor"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type HTTPOptions struct {
	UserAgent    string
	MaxRedirects int
	MaxBodyBytes int64
	VerifyTLS    bool
}

var _ Probe = (*HTTPProbe)(nil)

type HTTPProbe struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

func NewHTTPProbe(o HTTPOptions) *HTTPProbe {
	if o.MaxRedirects < 0 {
		o.MaxRedirects = 0
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 64 << 10
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !o.VerifyTLS, //nolint:gosec // operator opt-out for self-signed targets
			MinVersion:         tls.VersionTLS12,
		},
	}
	maxRedirects := o.MaxRedirects
	client := &http.Client{
		Transport: otelhttp.NewTransport(transport),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("%w: stopped after %d hops", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}
	return &HTTPProbe{client: client, userAgent: o.UserAgent, maxBody: o.MaxBodyBytes}
}

func (p *HTTPProbe) Run(ctx context.Context, m *monitor.Monitor) Result {
	method := http.MethodGet
	var (
		body    io.Reader = http.NoBody
		headers map[string]string
	)
	if c := m.Settings.HTTP; c != nil {
		if c.Method != "" {
			method = strings.ToUpper(c.Method)
		}
		if method == http.MethodPost && c.Body != "" {
			body = strings.NewReader(c.Body)
		}
		headers = c.Headers
	}

	req, err := http.NewRequestWithContext(ctx, method, m.Target, body)
	if err != nil {
		return failed(ErrorKindInvalidConfig, fmt.Errorf("build request: %w", err), 0)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	for k, v := range headers {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return failed(Classify(err), err, time.Since(start))
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	elapsed := time.Since(start)

	res := Result{
		Succeeded:  true,
		Elapsed:    elapsed,
		StatusCode: resp.StatusCode,
	}
	if int64(len(raw)) > p.maxBody {
		raw = raw[:p.maxBody]
		res.BodyTruncated = true
	}
	res.Body = raw
	if readErr != nil {
		// Status line arrived; keep what was read and note the broken body.
		res.Error = fmt.Sprintf("read body: %v", readErr)
	}
	return res
}
