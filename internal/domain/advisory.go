package domain

import (
	"strings"
	"time"
)

// Confidence grades advisory trustworthiness.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence normalizes a raw confidence value, defaulting to low.
func ParseConfidence(raw string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(raw))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Advisory shape limits.
const (
	MaxHeadlineLen      = 120
	MaxActionsNow       = 7
	MaxWatchOutFor      = 5
	MaxNextQuestions    = 3
	MaxRationaleLen     = 600
	MaxSafetyNotes      = 6
	MaxAdvisorySnippets = 8
)

// Advisory is the structured advice returned to a farmer.
type Advisory struct {
	Headline         string     `json:"headline"`
	Stage            Stage      `json:"stage,omitempty"`
	ActionsNow       []string   `json:"actions_now"`
	WatchOutFor      []string   `json:"watch_out_for,omitempty"`
	NextQuestions    []string   `json:"next_questions,omitempty"`
	RationaleBrief   string     `json:"rationale_brief,omitempty"`
	Confidence       Confidence `json:"confidence"`
	SafetyNotes      []string   `json:"safety_notes,omitempty"`
	NeedsHumanReview bool       `json:"needs_human_review"`
}

// Clamp enforces the advisory shape limits in place.
func (a *Advisory) Clamp() {
	if a == nil {
		return
	}
	a.Headline = truncate(strings.TrimSpace(a.Headline), MaxHeadlineLen)
	a.RationaleBrief = truncate(strings.TrimSpace(a.RationaleBrief), MaxRationaleLen)
	a.ActionsNow = clampList(a.ActionsNow, MaxActionsNow)
	a.WatchOutFor = clampList(a.WatchOutFor, MaxWatchOutFor)
	a.NextQuestions = clampList(a.NextQuestions, MaxNextQuestions)
	a.SafetyNotes = clampList(a.SafetyNotes, MaxSafetyNotes)
	if a.Confidence == "" {
		a.Confidence = ConfidenceLow
	}
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func clampList(items []string, max int) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		out = append(out, it)
		if len(out) == max {
			break
		}
	}
	return out
}

// DailyForecast is one day of the forecast window.
type DailyForecast struct {
	Date        string  `json:"date"`
	Main        string  `json:"main"`
	Description string  `json:"description,omitempty"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	HumidityPct int     `json:"humidity_pct"`
	RainMM      float64 `json:"rain_mm,omitempty"`
}

// HourlyForecast is one hour of the near-term forecast.
type HourlyForecast struct {
	Time   string  `json:"time"`
	Main   string  `json:"main"`
	Temp   float64 `json:"temp"`
	RainMM float64 `json:"rain_mm,omitempty"`
}

// WeatherSnapshot is a bounded view of provider weather data.
type WeatherSnapshot struct {
	Source    string           `json:"source"`
	FetchedAt time.Time        `json:"fetched_at"`
	Summary   string           `json:"summary"`
	Alerts    []string         `json:"alerts,omitempty"`
	Daily     []DailyForecast  `json:"daily,omitempty"`
	Hourly    []HourlyForecast `json:"hourly,omitempty"`
}

// Note converts the snapshot into the compact session-carried form.
func (w *WeatherSnapshot) Note() *WeatherNote {
	if w == nil {
		return nil
	}
	return &WeatherNote{
		Summary:   w.Summary,
		Alerts:    append([]string(nil), w.Alerts...),
		FetchedAt: w.FetchedAt,
	}
}

// WebResult is one search hit with its link intact.
type WebResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// WebContext is a bounded view of provider search results. Snippets carry
// the "title — content" lines for model context; Results keeps title/URL
// pairs for rendering link buttons.
type WebContext struct {
	Source    string      `json:"source"`
	FetchedAt time.Time   `json:"fetched_at"`
	Query     string      `json:"query"`
	Snippets  []string    `json:"snippets,omitempty"`
	URLs      []string    `json:"urls,omitempty"`
	Results   []WebResult `json:"results,omitempty"`
}

// Note converts the context into the compact session-carried form.
func (w *WebContext) Note() *WebNote {
	if w == nil {
		return nil
	}
	return &WebNote{
		Query:     w.Query,
		Snippets:  append([]string(nil), w.Snippets...),
		FetchedAt: w.FetchedAt,
	}
}

// Diagnosis is the photo diagnosis result. Confidence is the provider's own
// estimate in [0,1].
type Diagnosis struct {
	Label      string  `json:"label"`
	Advice     string  `json:"advice"`
	Confidence float64 `json:"confidence"`
}

// GeoPoint is a resolved location.
type GeoPoint struct {
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// ValidCoords reports whether lat/lon are within range.
func ValidCoords(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
