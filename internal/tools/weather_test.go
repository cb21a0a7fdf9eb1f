package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	coreconfig "github.com/m3rciful/agrobot/core/config"
	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(&coreconfig.Config{
		Logging: coreconfig.LoggingConfig{Level: "error", Format: "json"},
	})
	os.Exit(m.Run())
}

func testWeatherClient(t *testing.T, handler http.Handler) *WeatherClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWeatherClient(WeatherConfig{APIKey: "k", BaseURL: srv.URL, TimeoutSeconds: 2})
}

func TestForecastOneCall(t *testing.T) {
	var gotQuery map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/data/3.0/onecall", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"units":   q.Get("units"),
			"lang":    q.Get("lang"),
			"exclude": q.Get("exclude"),
			"appid":   q.Get("appid"),
		}
		daily := make([]map[string]any, 0, 7)
		for i := 0; i < 7; i++ {
			daily = append(daily, map[string]any{
				"dt":       86400 * (i + 1),
				"temp":     map[string]any{"min": 20 + i, "max": 30 + i},
				"humidity": 60,
				"weather":  []map[string]string{{"main": "Rain", "description": "light rain"}},
			})
		}
		hourly := make([]map[string]any, 0, 15)
		for i := 0; i < 15; i++ {
			hourly = append(hourly, map[string]any{"dt": 3600 * (i + 1), "temp": 28})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"current": map[string]any{
				"temp":     31.4,
				"humidity": 55,
				"weather":  []map[string]string{{"main": "Clear", "description": "clear sky"}},
			},
			"daily":  daily,
			"hourly": hourly,
			"alerts": []map[string]string{
				{"event": "Heat wave"}, {"event": "Dust storm"},
				{"event": "Flood watch"}, {"event": "Extra alert"},
			},
		})
	})
	c := testWeatherClient(t, mux)

	snap, err := c.Forecast(context.Background(), 19.07, 72.87, domain.LangHindi)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if gotQuery["units"] != "metric" || gotQuery["lang"] != "hi" || gotQuery["exclude"] != "minutely" || gotQuery["appid"] != "k" {
		t.Fatalf("query = %v", gotQuery)
	}
	if snap.Source != "onecall" {
		t.Fatalf("source = %q", snap.Source)
	}
	if !strings.Contains(snap.Summary, "Clear: clear sky") || !strings.Contains(snap.Summary, "31.4°C") {
		t.Fatalf("summary = %q", snap.Summary)
	}
	if len(snap.Daily) != 5 {
		t.Fatalf("daily = %d, expected the cap of 5", len(snap.Daily))
	}
	if snap.Daily[0].Date != "1970-01-02" || snap.Daily[0].Main != "Rain" || snap.Daily[0].TempMax != 30 {
		t.Fatalf("daily[0] = %+v", snap.Daily[0])
	}
	if len(snap.Hourly) != 12 {
		t.Fatalf("hourly = %d, expected the cap of 12", len(snap.Hourly))
	}
	if len(snap.Alerts) != 3 {
		t.Fatalf("alerts = %v, expected the cap of 3", snap.Alerts)
	}
	if snap.FetchedAt.IsZero() {
		t.Fatal("fetched_at not set")
	}
}

func TestForecastFallsBackToCurrentWeather(t *testing.T) {
	var oneCalls, currentCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/data/3.0/onecall", func(w http.ResponseWriter, _ *http.Request) {
		oneCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/data/2.5/weather", func(w http.ResponseWriter, _ *http.Request) {
		currentCalls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"weather": []map[string]string{{"main": "Clouds", "description": "overcast"}},
			"main":    map[string]any{"temp": 27.0, "humidity": 70},
		})
	})
	c := testWeatherClient(t, mux)

	snap, err := c.Forecast(context.Background(), 19.07, 72.87, domain.LangEnglish)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if oneCalls != 1 || currentCalls != 1 {
		t.Fatalf("calls = %d onecall, %d current", oneCalls, currentCalls)
	}
	if snap.Source != "current" {
		t.Fatalf("source = %q", snap.Source)
	}
	if len(snap.Daily) != 0 || len(snap.Hourly) != 0 {
		t.Fatalf("current weather has no forecast rows: %+v", snap)
	}
	if !strings.Contains(snap.Summary, "Clouds") {
		t.Fatalf("summary = %q", snap.Summary)
	}
}

func TestForecastChainExhausted(t *testing.T) {
	c := testWeatherClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Forecast(context.Background(), 19.07, 72.87, domain.LangEnglish)
	if !errors.Is(err, domain.ErrToolUnavailable) {
		t.Fatalf("err = %v, expected ErrToolUnavailable", err)
	}
}

func TestGeocodeResolvesPlace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "Nashik" {
			t.Errorf("q = %q", q)
		}
		if limit := r.URL.Query().Get("limit"); limit != "1" {
			t.Errorf("limit = %q", limit)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"name": "Nashik", "state": "Maharashtra", "country": "IN", "lat": 19.9975, "lon": 73.7898},
		})
	})
	c := testWeatherClient(t, mux)

	pt, err := c.Geocode(context.Background(), " Nashik ")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if pt.Name != "Nashik, Maharashtra, IN" {
		t.Fatalf("name = %q", pt.Name)
	}
	if pt.Lat != 19.9975 || pt.Lon != 73.7898 {
		t.Fatalf("coords = %v, %v", pt.Lat, pt.Lon)
	}
}

func TestGeocodeNoMatchIsInvalidLocation(t *testing.T) {
	c := testWeatherClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))

	_, err := c.Geocode(context.Background(), "xyzzy")
	if !errors.Is(err, domain.ErrInvalidLocation) {
		t.Fatalf("err = %v, expected ErrInvalidLocation", err)
	}
	if errors.Is(err, domain.ErrToolUnavailable) {
		t.Fatalf("no-match classified as a tool outage: %v", err)
	}
}

func TestGeocodeEmptyPlace(t *testing.T) {
	called := false
	c := testWeatherClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	_, err := c.Geocode(context.Background(), "   ")
	if !errors.Is(err, domain.ErrInvalidLocation) {
		t.Fatalf("err = %v", err)
	}
	if called {
		t.Fatal("empty place reached the provider")
	}
}

func TestGeocodeTransportFailureIsToolError(t *testing.T) {
	c := testWeatherClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Geocode(context.Background(), "Nashik")
	if !errors.Is(err, domain.ErrToolUnavailable) {
		t.Fatalf("err = %v, expected ErrToolUnavailable", err)
	}
	if errors.Is(err, domain.ErrInvalidLocation) {
		t.Fatalf("outage classified as invalid location: %v", err)
	}
}
