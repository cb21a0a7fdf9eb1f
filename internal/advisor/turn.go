package advisor

import "github.com/m3rciful/agrobot/internal/domain"

// KeyboardHint tells the presentation layer which inline keyboard to attach.
type KeyboardHint int

const (
	KbNone KeyboardHint = iota
	// KbLanguages offers the supported reply languages.
	KbLanguages
	// KbStages offers the seven crop stages plus location/symptom shortcuts.
	KbStages
	// KbHub offers the four on-demand info modules.
	KbHub
)

// LinkItem is one URL button.
type LinkItem struct {
	Title string
	URL   string
}

// Reply is the outbound payload of a turn, already localized. When Advisory
// is set the presentation layer renders the rich advisory card and Text
// becomes a lead-in line (may be empty).
type Reply struct {
	Text     string
	Advisory *domain.Advisory
	Weather  *domain.WeatherNote
	Links    []LinkItem
	Keyboard KeyboardHint
}

// Turn is the full result of one orchestrator invocation: the next session
// snapshot, the reply, and the persistence deltas. The orchestrator never
// writes; the driver applies deltas in order (profile, images, session),
// aborting when any write fails. The session write commits the transition.
type Turn struct {
	Session *domain.Session
	Reply   Reply
	Patch   domain.ProfilePatch
	// ResetProfile asks the driver to clear the stored profile (keeping
	// language) before applying Patch.
	ResetProfile bool
	Images       []domain.ImageRecord
}
