// Package tools wraps the external providers (weather, geocoding, web
// search, language models) behind small stateless clients. Each client
// hides an ordered fallback chain (richer tier first) and a per-call
// timeout; callers get data or an error wrapping domain.ErrToolUnavailable
// and never retry on their own.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/m3rciful/agrobot/internal/domain"
)

func toolErr(provider string, err error) error {
	return fmt.Errorf("%s: %w: %v", provider, domain.ErrToolUnavailable, err)
}

// statusError is an HTTP response outside the 2xx range. The body is
// dropped on purpose: provider error payloads can carry key echoes.
type statusError struct {
	provider string
	status   int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: http %d", e.provider, e.status)
}

func getJSON(ctx context.Context, client *http.Client, provider, rawURL string, params url.Values, out any) error {
	u := rawURL
	if len(params) > 0 {
		u = rawURL + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return doJSON(client, provider, req, out)
}

func postJSON(ctx context.Context, client *http.Client, provider, rawURL string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return doJSON(client, provider, req, out)
}

func doJSON(client *http.Client, provider string, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &statusError{provider: provider, status: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, sep)
}
