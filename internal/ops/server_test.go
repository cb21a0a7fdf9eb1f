package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode, body
}

func TestHealthzReportsOKWithCounters(t *testing.T) {
	s := New(Config{Listen: "127.0.0.1:0"}, fakePinger{})
	s.SetSendErrors(func() uint64 { return 3 })

	code, body := get(t, s.srv.Handler, "/healthz")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %v", body["status"])
	}
	if n, ok := body["send_errors"].(float64); !ok || n != 3 {
		t.Fatalf("send_errors = %v", body["send_errors"])
	}
}

func TestHealthzDegradedOnPingFailure(t *testing.T) {
	s := New(Config{Listen: "127.0.0.1:0"}, fakePinger{err: errors.New("connection refused")})

	code, body := get(t, s.srv.Handler, "/healthz")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if body["status"] != "degraded" {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["storage"] != "connection refused" {
		t.Fatalf("storage field = %v", body["storage"])
	}
}

func TestHealthzOmitsCountersWhenUnset(t *testing.T) {
	s := New(Config{Listen: "127.0.0.1:0"}, fakePinger{})

	_, body := get(t, s.srv.Handler, "/healthz")
	if _, present := body["send_errors"]; present {
		t.Fatalf("send_errors should be absent before the dispatcher exists")
	}
}

func TestVersionEndpoint(t *testing.T) {
	s := New(Config{Listen: "127.0.0.1:0"}, fakePinger{})

	code, body := get(t, s.srv.Handler, "/version")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["version"] != "dev" || body["commit"] != "local" {
		t.Fatalf("unexpected build info: %v", body)
	}
}

func TestDisabledServerIsNilAndSafe(t *testing.T) {
	s := New(Config{}, fakePinger{})
	if s != nil {
		t.Fatalf("empty listen should disable the server")
	}
	s.Start()
	s.SetSendErrors(func() uint64 { return 0 })
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil shutdown: %v", err)
	}
}