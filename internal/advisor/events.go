package advisor

import (
	"strings"

	"github.com/m3rciful/agrobot/internal/domain"
)

// Event is one abstract inbound occurrence parsed out of a chat update.
// The presentation layer builds events; the orchestrator consumes them.
type Event interface{ event() }

// ProfileFieldEvent sets one profile attribute.
type ProfileFieldEvent struct {
	Field domain.ProfileField
	Value string
}

// StageSelectedEvent picks a crop stage. The value is validated inside the
// orchestrator; unknown stages bounce back with the stage keyboard.
type StageSelectedEvent struct {
	Stage domain.Stage
}

// LocationEvent carries a location. Point is set for GPS pins; Text for
// typed locations. When both are present in one turn, the pin wins.
type LocationEvent struct {
	Text  string
	Point *domain.GeoPoint
}

// SymptomTextEvent is a free-text problem description.
type SymptomTextEvent struct {
	Text string
}

// SymptomPhotoEvent is a crop photo submission. PhotoURL is a fetchable URL
// for the vision model; FileRef and ProviderFileID feed the audit record.
type SymptomPhotoEvent struct {
	FileRef        string
	ProviderFileID string
	PhotoURL       string
	Caption        string
}

// MenuEvent selects one on-demand informational module.
type MenuEvent struct {
	Kind domain.MenuKind
}

// CommandEvent is a slash command, name without the slash.
type CommandEvent struct {
	Name string
}

func (ProfileFieldEvent) event()  {}
func (StageSelectedEvent) event() {}
func (LocationEvent) event()      {}
func (SymptomTextEvent) event()   {}
func (SymptomPhotoEvent) event()  {}
func (MenuEvent) event()          {}
func (CommandEvent) event()       {}

// EventFromText maps a plain text message onto an event using the current
// dialogue position. Kept here so the disambiguation rules live next to the
// state machine they feed, not in the transport layer.
func EventFromText(sess *domain.Session, text string) Event {
	text = strings.TrimSpace(text)
	if sess == nil {
		sess = domain.NewSession()
	}

	switch sess.State {
	case domain.StateAwaitingProfile:
		return ProfileFieldEvent{Field: sess.PendingField, Value: text}
	case domain.StateAwaitingStage:
		if stage, err := domain.ParseStage(text); err == nil {
			return StageSelectedEvent{Stage: stage}
		}
		return SymptomTextEvent{Text: text}
	case domain.StateAwaitingLocation:
		return LocationEvent{Text: text}
	default:
		if lat, lon, ok := ExtractLatLon(text); ok {
			return LocationEvent{Text: text, Point: &domain.GeoPoint{Lat: lat, Lon: lon}}
		}
		return SymptomTextEvent{Text: text}
	}
}
