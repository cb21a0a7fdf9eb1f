package tools

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/agrobot/core/telegram/netutil"
)

const (
	dialTimeout       = 5 * time.Second
	tlsHandshake      = 5 * time.Second
	idleConnTimeout   = 30 * time.Second
	retryAttempts     = 2
	retryBaseBackoff  = 600 * time.Millisecond
	retryMaxBackoff   = 4 * time.Second
	defaultAPITimeout = 15 * time.Second
)

// newHTTPClient returns a client for provider APIs: short dial budget,
// transparent retry on transient transport errors, hard overall timeout.
// HTTP error statuses are not retried here; fallback tiers handle those.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshake,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &apiRetryTransport{base: transport},
	}
}

type apiRetryTransport struct {
	base http.RoundTripper
}

func (t *apiRetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= retryAttempts; attempt++ {
		currReq := req
		if attempt > 0 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			} else if req.Body != nil {
				return nil, lastErr
			}
		}

		resp, err := t.base.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == retryAttempts {
			break
		}

		delay := retryBaseBackoff << attempt
		if delay > retryMaxBackoff {
			delay = retryMaxBackoff
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}
