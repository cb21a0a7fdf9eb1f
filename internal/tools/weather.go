package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
)

// WeatherConfig configures the OpenWeather adapter.
type WeatherConfig struct {
	APIKey         string `yaml:"api_key" envconfig:"OPENWEATHER_API_KEY"`
	Units          string `yaml:"units" envconfig:"OPENWEATHER_UNITS"`
	BaseURL        string `yaml:"base_url" envconfig:"OPENWEATHER_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"OPENWEATHER_TIMEOUT_SECONDS"`
}

// Normalize fills defaults in place.
func (c *WeatherConfig) Normalize() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openweathermap.org"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	switch strings.ToLower(strings.TrimSpace(c.Units)) {
	case "imperial":
		c.Units = "imperial"
	case "standard":
		c.Units = "standard"
	default:
		c.Units = "metric"
	}
}

// WeatherClient calls OpenWeather. Forecast tries One Call 3.0 first and
// degrades to the 2.5 current-weather endpoint before giving up.
type WeatherClient struct {
	cfg  WeatherConfig
	http *http.Client
}

// NewWeatherClient builds the adapter.
func NewWeatherClient(cfg WeatherConfig) *WeatherClient {
	cfg.Normalize()
	return &WeatherClient{cfg: cfg, http: newHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second)}
}

type owCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type owOneCall struct {
	Current struct {
		Temp     float64       `json:"temp"`
		Humidity float64       `json:"humidity"`
		Weather  []owCondition `json:"weather"`
	} `json:"current"`
	Daily []struct {
		Dt   int64 `json:"dt"`
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		Humidity float64       `json:"humidity"`
		Rain     float64       `json:"rain"`
		Weather  []owCondition `json:"weather"`
	} `json:"daily"`
	Hourly []struct {
		Dt      int64         `json:"dt"`
		Temp    float64       `json:"temp"`
		Weather []owCondition `json:"weather"`
		Rain    struct {
			OneHour float64 `json:"1h"`
		} `json:"rain"`
	} `json:"hourly"`
	Alerts []struct {
		Event string `json:"event"`
	} `json:"alerts"`
}

type owCurrent struct {
	Weather []owCondition `json:"weather"`
	Main    struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
}

// Forecast returns a bounded weather snapshot for the coordinates:
// 5 daily and 12 hourly entries, at most 3 alert events, and a one-line
// summary suitable for chat.
func (c *WeatherClient) Forecast(ctx context.Context, lat, lon float64, lang domain.Language) (*domain.WeatherSnapshot, error) {
	snap, err := c.oneCall(ctx, lat, lon, lang)
	if err == nil {
		return snap, nil
	}
	logger.WX.Warn("one call failed, trying current weather",
		"event", "weather.fetch",
		"status", "fallback",
		"provider", "onecall",
		"err", logger.SanitizeLimit(err.Error(), 256),
	)

	snap, err2 := c.currentWeather(ctx, lat, lon, lang)
	if err2 == nil {
		return snap, nil
	}
	logger.WX.Error("weather chain exhausted",
		"event", "weather.fetch",
		"status", "fail",
		"provider", "current",
		"err", logger.SanitizeLimit(err2.Error(), 256),
	)
	return nil, toolErr("weather", err2)
}

func (c *WeatherClient) oneCall(ctx context.Context, lat, lon float64, lang domain.Language) (*domain.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("lat", formatCoord(lat))
	params.Set("lon", formatCoord(lon))
	params.Set("appid", c.cfg.APIKey)
	params.Set("units", c.cfg.Units)
	params.Set("exclude", "minutely")
	params.Set("lang", string(lang))

	var resp owOneCall
	if err := getJSON(ctx, c.http, "openweather", c.cfg.BaseURL+"/data/3.0/onecall", params, &resp); err != nil {
		return nil, err
	}

	snap := &domain.WeatherSnapshot{
		Source:    "onecall",
		FetchedAt: time.Now().UTC(),
		Summary:   c.summaryLine(conditionOf(resp.Current.Weather), resp.Current.Temp, resp.Current.Humidity),
	}
	for _, a := range resp.Alerts {
		if strings.TrimSpace(a.Event) == "" {
			continue
		}
		snap.Alerts = append(snap.Alerts, a.Event)
		if len(snap.Alerts) == 3 {
			break
		}
	}
	for _, d := range resp.Daily {
		if len(snap.Daily) == 5 {
			break
		}
		cond := conditionOf(d.Weather)
		snap.Daily = append(snap.Daily, domain.DailyForecast{
			Date:        time.Unix(d.Dt, 0).UTC().Format("2006-01-02"),
			Main:        cond.Main,
			Description: cond.Description,
			TempMin:     d.Temp.Min,
			TempMax:     d.Temp.Max,
			HumidityPct: int(d.Humidity),
			RainMM:      d.Rain,
		})
	}
	for _, h := range resp.Hourly {
		if len(snap.Hourly) == 12 {
			break
		}
		snap.Hourly = append(snap.Hourly, domain.HourlyForecast{
			Time:   time.Unix(h.Dt, 0).UTC().Format("15:04"),
			Main:   conditionOf(h.Weather).Main,
			Temp:   h.Temp,
			RainMM: h.Rain.OneHour,
		})
	}
	return snap, nil
}

func (c *WeatherClient) currentWeather(ctx context.Context, lat, lon float64, lang domain.Language) (*domain.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("lat", formatCoord(lat))
	params.Set("lon", formatCoord(lon))
	params.Set("appid", c.cfg.APIKey)
	params.Set("units", c.cfg.Units)
	params.Set("lang", string(lang))

	var resp owCurrent
	if err := getJSON(ctx, c.http, "openweather", c.cfg.BaseURL+"/data/2.5/weather", params, &resp); err != nil {
		return nil, err
	}
	return &domain.WeatherSnapshot{
		Source:    "current",
		FetchedAt: time.Now().UTC(),
		Summary:   c.summaryLine(conditionOf(resp.Weather), resp.Main.Temp, resp.Main.Humidity),
	}, nil
}

// Geocode resolves a free-text place through OpenWeather direct geocoding.
// Unresolvable text maps to domain.ErrInvalidLocation; transport failures
// map to domain.ErrToolUnavailable.
func (c *WeatherClient) Geocode(ctx context.Context, place string) (*domain.GeoPoint, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, fmt.Errorf("geocode: empty place: %w", domain.ErrInvalidLocation)
	}

	params := url.Values{}
	params.Set("q", place)
	params.Set("limit", "1")
	params.Set("appid", c.cfg.APIKey)

	var resp []struct {
		Name    string  `json:"name"`
		State   string  `json:"state"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := getJSON(ctx, c.http, "openweather", c.cfg.BaseURL+"/geo/1.0/direct", params, &resp); err != nil {
		logger.WX.Error("geocoding failed",
			"event", "weather.geocode",
			"status", "fail",
			"query", logger.SanitizeLimit(place, 120),
			"err", logger.SanitizeLimit(err.Error(), 256),
		)
		return nil, toolErr("geocode", err)
	}
	if len(resp) == 0 || !domain.ValidCoords(resp[0].Lat, resp[0].Lon) {
		return nil, fmt.Errorf("geocode %q: no match: %w", place, domain.ErrInvalidLocation)
	}

	top := resp[0]
	return &domain.GeoPoint{
		Name: joinNonEmpty(", ", top.Name, top.State, top.Country),
		Lat:  top.Lat,
		Lon:  top.Lon,
	}, nil
}

func (c *WeatherClient) summaryLine(cond owCondition, temp, humidity float64) string {
	var parts []string
	if head := joinNonEmpty(": ", cond.Main, cond.Description); head != "" {
		parts = append(parts, head)
	}
	parts = append(parts, "Temp "+strconv.FormatFloat(temp, 'f', 1, 64)+c.unitSymbol())
	parts = append(parts, "Humidity "+strconv.Itoa(int(humidity))+"%")
	return strings.Join(parts, " | ")
}

func (c *WeatherClient) unitSymbol() string {
	switch c.cfg.Units {
	case "imperial":
		return "°F"
	case "standard":
		return "K"
	default:
		return "°C"
	}
}

func conditionOf(conds []owCondition) owCondition {
	if len(conds) == 0 {
		return owCondition{}
	}
	return conds[0]
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
