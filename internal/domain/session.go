package domain

import "time"

// DialogState tags the current node of the conversation graph.
type DialogState string

const (
	// StateAwaitingProfile collects name, crop, land and language details.
	StateAwaitingProfile DialogState = "awaiting_profile"
	// StateAwaitingStage waits for a crop stage selection.
	StateAwaitingStage DialogState = "awaiting_stage"
	// StateAwaitingLocation waits for a location text or GPS pin.
	StateAwaitingLocation DialogState = "awaiting_location"
	// StateAwaitingSymptomOrMenu is the steady state: symptom text, photos
	// and the on-demand info modules are all accepted here.
	StateAwaitingSymptomOrMenu DialogState = "awaiting_symptom_or_menu"
)

// Valid reports whether the tag names a known dialogue state.
func (s DialogState) Valid() bool {
	switch s {
	case StateAwaitingProfile, StateAwaitingStage, StateAwaitingLocation, StateAwaitingSymptomOrMenu:
		return true
	}
	return false
}

// ProfileField names a profile attribute collected during the profile flow.
type ProfileField string

const (
	FieldName       ProfileField = "name"
	FieldCrop       ProfileField = "crop"
	FieldLandSize   ProfileField = "land_size"
	FieldLandUnit   ProfileField = "land_unit"
	FieldSowingDate ProfileField = "sowing_date"
	FieldLanguage   ProfileField = "language"
)

// MenuKind names an on-demand informational module.
type MenuKind string

const (
	MenuGovtSchemes     MenuKind = "govt_schemes"
	MenuMarketPrices    MenuKind = "market_prices"
	MenuBuyInputs       MenuKind = "buy_inputs"
	MenuCropSuggestions MenuKind = "crop_suggestions"
)

// ParseMenuKind validates a raw module name.
func ParseMenuKind(raw string) (MenuKind, bool) {
	switch MenuKind(raw) {
	case MenuGovtSchemes, MenuMarketPrices, MenuBuyInputs, MenuCropSuggestions:
		return MenuKind(raw), true
	}
	return "", false
}

// WeatherNote is the compact weather context carried between turns for
// staleness decisions. Full forecasts are never persisted.
type WeatherNote struct {
	Summary   string    `json:"summary"`
	Alerts    []string  `json:"alerts,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// WebNote is the compact symptom-search context carried between turns.
// On-demand module results are never stored here.
type WebNote struct {
	Query     string    `json:"query"`
	Snippets  []string  `json:"snippets,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Session is the dialogue state for one chat identity. It is overwritten as a
// whole on every transition (last-write-wins) and serialized into a single
// blob column; unknown state tags on load reset the conversation.
type Session struct {
	State        DialogState  `json:"state"`
	PendingField ProfileField `json:"pending_field,omitempty"`
	LastMenu     MenuKind     `json:"last_menu,omitempty"`
	LastSymptom  string       `json:"last_symptom,omitempty"`
	Weather      *WeatherNote `json:"weather,omitempty"`
	Web          *WebNote     `json:"web,omitempty"`
	TurnCount    int          `json:"turn_count"`
	UpdatedAt    time.Time    `json:"-"`
}

// NewSession returns the first-contact session.
func NewSession() *Session {
	return &Session{State: StateAwaitingProfile, PendingField: FieldName}
}

// Clone returns a deep copy so orchestrator transitions never alias the
// caller's loaded session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Weather != nil {
		w := *s.Weather
		w.Alerts = append([]string(nil), s.Weather.Alerts...)
		out.Weather = &w
	}
	if s.Web != nil {
		w := *s.Web
		w.Snippets = append([]string(nil), s.Web.Snippets...)
		out.Web = &w
	}
	return &out
}

// ResetFlow returns the session to the start of the profile flow, dropping
// stage, location and symptom context.
func (s *Session) ResetFlow() {
	s.State = StateAwaitingProfile
	s.PendingField = FieldName
	s.LastMenu = ""
	s.LastSymptom = ""
	s.Weather = nil
	s.Web = nil
}

// WeatherFresh reports whether the stored weather context is younger than maxAge.
func (s *Session) WeatherFresh(now time.Time, maxAge time.Duration) bool {
	return s != nil && s.Weather != nil && now.Sub(s.Weather.FetchedAt) < maxAge
}

// WebFresh reports whether the stored web context is younger than maxAge.
func (s *Session) WebFresh(now time.Time, maxAge time.Duration) bool {
	return s != nil && s.Web != nil && now.Sub(s.Web.FetchedAt) < maxAge
}
