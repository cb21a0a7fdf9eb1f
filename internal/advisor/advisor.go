// Package advisor drives the farmer dialogue: a small fixed state machine
// (profile → stage → location → symptom/menu hub) that decides transitions,
// calls the external tool adapters, and produces the outbound reply. Advance
// is pure with respect to persistence: it returns deltas and never writes.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/i18n"
	"github.com/m3rciful/agrobot/internal/tools"
)

// WeatherAdapter is the forecast/geocoding surface the orchestrator needs.
type WeatherAdapter interface {
	Forecast(ctx context.Context, lat, lon float64, lang domain.Language) (*domain.WeatherSnapshot, error)
	Geocode(ctx context.Context, place string) (*domain.GeoPoint, error)
}

// SearchAdapter is the web search surface.
type SearchAdapter interface {
	Search(ctx context.Context, query, timeRange string) (*domain.WebContext, error)
}

// AdvisoryAdapter generates structured advisories.
type AdvisoryAdapter interface {
	Advise(ctx context.Context, req tools.AdviseRequest) (*domain.Advisory, error)
}

// DiagnosisAdapter analyzes crop photos.
type DiagnosisAdapter interface {
	Diagnose(ctx context.Context, req tools.DiagnoseRequest) (*domain.Diagnosis, error)
}

// Config tunes orchestrator policy.
type Config struct {
	// DiagnosisMinConfidence is the threshold below which photo diagnoses
	// get the uncertainty qualifier appended.
	DiagnosisMinConfidence float64 `yaml:"diagnosis_min_confidence" envconfig:"ADVISOR_DIAGNOSIS_MIN_CONFIDENCE"`
	WeatherMaxAgeMinutes   int     `yaml:"weather_max_age_minutes" envconfig:"ADVISOR_WEATHER_MAX_AGE_MINUTES"`
	WebMaxAgeMinutes       int     `yaml:"web_max_age_minutes" envconfig:"ADVISOR_WEB_MAX_AGE_MINUTES"`
	MenuLinks              int     `yaml:"menu_links" envconfig:"ADVISOR_MENU_LINKS"`
}

// Normalize fills defaults in place.
func (c *Config) Normalize() {
	if c.DiagnosisMinConfidence <= 0 {
		c.DiagnosisMinConfidence = 0.55
	}
	if c.WeatherMaxAgeMinutes <= 0 {
		c.WeatherMaxAgeMinutes = 6 * 60
	}
	if c.WebMaxAgeMinutes <= 0 {
		c.WebMaxAgeMinutes = 24 * 60
	}
	if c.MenuLinks <= 0 {
		c.MenuLinks = 5
	}
}

// WeatherMaxAge returns the staleness budget for cached weather context.
func (c Config) WeatherMaxAge() time.Duration {
	return time.Duration(c.WeatherMaxAgeMinutes) * time.Minute
}

// WebMaxAge returns the staleness budget for cached web context.
func (c Config) WebMaxAge() time.Duration {
	return time.Duration(c.WebMaxAgeMinutes) * time.Minute
}

// Deps carries the injected adapters and the message catalog.
type Deps struct {
	Weather   WeatherAdapter
	Search    SearchAdapter
	Advisory  AdvisoryAdapter
	Diagnosis DiagnosisAdapter
	Messages  *i18n.Catalog
}

// Orchestrator is the dialogue state machine. Stateless between calls; all
// conversation state lives in the session passed to Advance.
type Orchestrator struct {
	cfg       Config
	weather   WeatherAdapter
	search    SearchAdapter
	llm       AdvisoryAdapter
	diagnosis DiagnosisAdapter
	msgs      *i18n.Catalog
	now       func() time.Time
}

// New builds the orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	cfg.Normalize()
	return &Orchestrator{
		cfg:       cfg,
		weather:   deps.Weather,
		search:    deps.Search,
		llm:       deps.Advisory,
		diagnosis: deps.Diagnosis,
		msgs:      deps.Messages,
		now:       time.Now,
	}
}

// Advance runs one turn: given the loaded session and profile plus one
// event, it returns the next session, the localized reply, and the
// persistence deltas. Tool failures degrade the reply but never move the
// state machine position. Replaying the same event against the same
// (session, profile) yields the same transition and deltas.
func (o *Orchestrator) Advance(ctx context.Context, sess *domain.Session, profile *domain.Farmer, ev Event) (*Turn, error) {
	if sess == nil {
		sess = domain.NewSession()
	}
	next := sess.Clone()
	next.TurnCount++
	next.UpdatedAt = o.now().UTC()
	turn := &Turn{Session: next}

	switch ev := ev.(type) {
	case CommandEvent:
		return o.handleCommand(ctx, turn, profile, ev)
	case ProfileFieldEvent:
		return o.handleProfileField(turn, profile, ev)
	case StageSelectedEvent:
		return o.handleStage(turn, profile, ev)
	case LocationEvent:
		return o.handleLocation(ctx, turn, profile, ev)
	case SymptomTextEvent:
		return o.handleSymptomText(ctx, turn, profile, ev)
	case SymptomPhotoEvent:
		return o.handleSymptomPhoto(ctx, turn, profile, ev)
	case MenuEvent:
		return o.handleMenu(ctx, turn, profile, ev)
	default:
		turn.Reply = o.promptForState(next, profile)
		return turn, nil
	}
}

// promptForState re-asks the question the dialogue is waiting on.
func (o *Orchestrator) promptForState(sess *domain.Session, profile *domain.Farmer) Reply {
	lang := profile.Lang()
	switch sess.State {
	case domain.StateAwaitingProfile:
		switch sess.PendingField {
		case domain.FieldCrop:
			return Reply{Text: o.msgs.T(lang, "ask_crop")}
		case domain.FieldLandSize:
			return Reply{Text: o.msgs.T(lang, "ask_land")}
		case domain.FieldSowingDate:
			return Reply{Text: o.msgs.T(lang, "ask_sowing")}
		default:
			return Reply{Text: o.msgs.T(lang, "ask_name"), Keyboard: KbLanguages}
		}
	case domain.StateAwaitingStage:
		return Reply{Text: o.msgs.T(lang, "choose_stage", cropOrDefault(profile)), Keyboard: KbStages}
	case domain.StateAwaitingLocation:
		return Reply{Text: o.msgs.T(lang, "ask_location")}
	default:
		return Reply{Text: o.msgs.T(lang, "hub_prompt"), Keyboard: KbHub}
	}
}

func (o *Orchestrator) handleCommand(ctx context.Context, turn *Turn, profile *domain.Farmer, ev CommandEvent) (*Turn, error) {
	_ = ctx
	next := turn.Session
	lang := profile.Lang()

	switch ev.Name {
	case "start":
		if profile == nil && next.TurnCount <= 1 {
			turn.Reply = Reply{Text: o.msgs.T(lang, "welcome"), Keyboard: KbLanguages}
			return turn, nil
		}
		turn.Reply = o.promptForState(next, profile)
		return turn, nil

	case "help":
		turn.Reply = Reply{Text: o.msgs.T(lang, "help")}
		return turn, nil

	case "profile":
		turn.Reply = Reply{Text: o.profileSummary(profile)}
		if next.State == domain.StateAwaitingSymptomOrMenu {
			turn.Reply.Keyboard = KbHub
		}
		return turn, nil

	case "location":
		next.State = domain.StateAwaitingLocation
		turn.Reply = Reply{Text: o.msgs.T(lang, "ask_location")}
		return turn, nil

	case "reset":
		turn.ResetProfile = true
		next.ResetFlow()
		turn.Reply = Reply{
			Text:     o.msgs.T(lang, "reset_done", o.msgs.LangLabel(lang)),
			Keyboard: KbLanguages,
		}
		return turn, nil

	default:
		turn.Reply = Reply{Text: o.msgs.T(lang, "help")}
		return turn, nil
	}
}

func (o *Orchestrator) handleStage(turn *Turn, profile *domain.Farmer, ev StageSelectedEvent) (*Turn, error) {
	stage, err := domain.ParseStage(string(ev.Stage))
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", ev.Stage, domain.ErrUnknownStage)
	}

	next := turn.Session
	lang := profile.Lang()
	turn.Patch.Stage = &stage

	label := o.msgs.StageLabel(lang, stage)
	if next.State == domain.StateAwaitingStage {
		next.State = domain.StateAwaitingLocation
		turn.Reply = Reply{
			Text: o.msgs.T(lang, "stage_saved", label) + "\n\n" + o.msgs.T(lang, "ask_location"),
		}
		return turn, nil
	}

	// Stage nudged mid-conversation; confirm and stay put.
	turn.Reply = Reply{Text: o.msgs.T(lang, "stage_saved", label)}
	if next.State == domain.StateAwaitingSymptomOrMenu {
		turn.Reply.Keyboard = KbHub
	}
	return turn, nil
}

func (o *Orchestrator) handleLocation(ctx context.Context, turn *Turn, profile *domain.Farmer, ev LocationEvent) (*Turn, error) {
	next := turn.Session
	lang := profile.Lang()
	text := strings.TrimSpace(ev.Text)

	var (
		pt       *domain.GeoPoint
		textOnly bool
	)
	switch {
	case ev.Point != nil:
		// GPS pin wins over any typed text in the same turn.
		pt = ev.Point
	default:
		if lat, lon, ok := ExtractLatLon(text); ok {
			pt = &domain.GeoPoint{Lat: lat, Lon: lon}
			break
		}
		if text == "" {
			turn.Reply = Reply{Text: o.msgs.T(lang, "ask_location")}
			return turn, nil
		}
		resolved, err := o.weather.Geocode(ctx, text)
		switch {
		case err == nil:
			pt = resolved
		case isInvalidLocation(err):
			turn.Reply = Reply{Text: o.msgs.T(lang, "invalid_location")}
			return turn, nil
		default:
			// Geocoder down: keep the farmer moving with the text alone.
			textOnly = true
		}
	}

	var display string
	switch {
	case textOnly:
		turn.Patch.LocationText = &text
		display = text
	default:
		if !domain.ValidCoords(pt.Lat, pt.Lon) {
			turn.Reply = Reply{Text: o.msgs.T(lang, "invalid_location")}
			return turn, nil
		}
		lat, lon := pt.Lat, pt.Lon
		turn.Patch.Lat = &lat
		turn.Patch.Lon = &lon
		display = pt.Name
		if display == "" {
			display = text
		}
		if display == "" {
			display = fmt.Sprintf("%.4f, %.4f", lat, lon)
		}
		turn.Patch.LocationText = &display
	}

	// Any location change invalidates the cached weather context.
	next.Weather = nil

	saved := o.msgs.T(lang, "location_saved", display)
	if next.State != domain.StateAwaitingLocation {
		prompt := o.promptForState(next, profile)
		turn.Reply = Reply{Text: saved + "\n\n" + prompt.Text, Keyboard: prompt.Keyboard}
		return turn, nil
	}

	merged := mergedProfile(profile, turn.Patch)
	switch {
	case merged.Name == "":
		next.State = domain.StateAwaitingProfile
		next.PendingField = domain.FieldName
		turn.Reply = Reply{Text: saved + "\n\n" + o.msgs.T(lang, "ask_name")}
	case merged.Crop == "":
		next.State = domain.StateAwaitingProfile
		next.PendingField = domain.FieldCrop
		turn.Reply = Reply{Text: saved + "\n\n" + o.msgs.T(lang, "ask_crop")}
	case merged.Stage == "":
		next.State = domain.StateAwaitingStage
		turn.Reply = Reply{
			Text:     saved + "\n\n" + o.msgs.T(lang, "choose_stage", cropOrDefault(merged)),
			Keyboard: KbStages,
		}
	default:
		next.State = domain.StateAwaitingSymptomOrMenu
		next.PendingField = ""
		turn.Reply = Reply{
			Text:     saved + "\n\n" + o.msgs.T(lang, "hub_prompt"),
			Keyboard: KbHub,
		}
	}
	return turn, nil
}

func (o *Orchestrator) profileSummary(profile *domain.Farmer) string {
	lang := profile.Lang()
	if profile == nil || (profile.Name == "" && profile.Crop == "") {
		return o.msgs.T(lang, "profile_empty")
	}

	lines := []string{o.msgs.T(lang, "profile_header")}
	add := func(labelKey, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", o.msgs.T(lang, labelKey), value))
		}
	}
	add("label_name", profile.Name)
	add("label_crop", profile.Crop)
	if profile.Stage != "" {
		add("label_stage", o.msgs.StageLabel(lang, profile.Stage))
	}
	if profile.LandSize != nil {
		add("label_land", fmt.Sprintf("%g %s", *profile.LandSize, profile.LandUnit))
	}
	if profile.SowingDate != nil {
		add("label_sowing", profile.SowingDate.Format("02.01.2006"))
	}
	add("label_location", profile.LocationText)
	add("label_language", o.msgs.LangLabel(lang))
	return strings.Join(lines, "\n")
}

// mergedProfile overlays the patch on a copy of the profile for
// completeness checks within the turn.
func mergedProfile(profile *domain.Farmer, patch domain.ProfilePatch) *domain.Farmer {
	var merged domain.Farmer
	if profile != nil {
		merged = *profile
	}
	patch.Apply(&merged)
	return &merged
}

func cropOrDefault(f *domain.Farmer) string {
	if f != nil && strings.TrimSpace(f.Crop) != "" {
		return f.Crop
	}
	return "crop"
}

func isInvalidLocation(err error) bool {
	return errors.Is(err, domain.ErrInvalidLocation)
}

func weatherAlerts(n *domain.WeatherNote) []string {
	if n == nil {
		return nil
	}
	return n.Alerts
}
