package advisor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/m3rciful/agrobot/core/telegram/helpers"
	"github.com/m3rciful/agrobot/internal/domain"
)

const maxFieldLen = 120

// handleProfileField consumes one answer of the profile Q&A. During the
// initial flow it walks name → crop → land → sowing and hands over to stage
// selection; once the profile is complete a field event is a single edit
// that returns straight to the hub.
func (o *Orchestrator) handleProfileField(turn *Turn, profile *domain.Farmer, ev ProfileFieldEvent) (*Turn, error) {
	next := turn.Session
	lang := profile.Lang()
	value := truncateRunes(strings.TrimSpace(ev.Value), maxFieldLen)

	if ev.Field == domain.FieldLanguage {
		l := domain.ParseLanguage(value)
		turn.Patch.Language = &l
		lang = l
		prompt := o.promptForState(next, mergedProfile(profile, turn.Patch))
		turn.Reply = Reply{
			Text:     o.msgs.T(lang, "language_set") + "\n\n" + prompt.Text,
			Keyboard: prompt.Keyboard,
		}
		return turn, nil
	}

	switch ev.Field {
	case domain.FieldName:
		if value == "" {
			turn.Reply = Reply{Text: o.msgs.T(lang, "ask_name")}
			return turn, nil
		}
		turn.Patch.Name = &value

	case domain.FieldCrop:
		if value == "" {
			turn.Reply = Reply{Text: o.msgs.T(lang, "ask_crop")}
			return turn, nil
		}
		crop := strings.ToLower(value)
		turn.Patch.Crop = &crop

	case domain.FieldLandSize:
		if !isSkip(value) {
			size, unit, ok := parseLandSize(value)
			if !ok {
				turn.Reply = Reply{Text: o.msgs.T(lang, "invalid_land")}
				return turn, nil
			}
			turn.Patch.LandSize = &size
			turn.Patch.LandUnit = &unit
		}

	case domain.FieldSowingDate:
		if !isSkip(value) {
			t, ok := helpers.ParseFlexibleDate(value)
			if !ok {
				turn.Reply = Reply{Text: o.msgs.T(lang, "invalid_date")}
				return turn, nil
			}
			utc := t.UTC()
			turn.Patch.SowingDate = &utc
		}

	default:
		turn.Reply = o.promptForState(next, profile)
		return turn, nil
	}

	merged := mergedProfile(profile, turn.Patch)

	// A field answered after setup finished is an edit, not the flow.
	if profileReady(profile) {
		next.State = domain.StateAwaitingSymptomOrMenu
		next.PendingField = ""
		turn.Reply = Reply{
			Text:     o.profileSummary(merged) + "\n\n" + o.msgs.T(lang, "hub_again"),
			Keyboard: KbHub,
		}
		return turn, nil
	}

	switch ev.Field {
	case domain.FieldName:
		next.PendingField = domain.FieldCrop
		turn.Reply = Reply{Text: o.msgs.T(lang, "ask_crop")}
	case domain.FieldCrop:
		next.PendingField = domain.FieldLandSize
		turn.Reply = Reply{Text: o.msgs.T(lang, "ask_land")}
	case domain.FieldLandSize:
		next.PendingField = domain.FieldSowingDate
		turn.Reply = Reply{Text: o.msgs.T(lang, "ask_sowing")}
	case domain.FieldSowingDate:
		next.State = domain.StateAwaitingStage
		next.PendingField = ""
		turn.Reply = Reply{
			Text:     o.msgs.T(lang, "choose_stage", cropOrDefault(merged)),
			Keyboard: KbStages,
		}
	}
	return turn, nil
}

// profileReady reports whether setup already finished: everything the hub
// needs is known. Land size and sowing date are optional.
func profileReady(f *domain.Farmer) bool {
	return f != nil && f.Name != "" && f.Crop != "" && f.Stage != "" && f.HasLocation()
}

var skipWords = map[string]struct{}{
	"skip": {}, "-": {}, "na": {}, "n/a": {}, "none": {},
}

func isSkip(value string) bool {
	_, ok := skipWords[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

var landSizeRe = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*(.*)$`)

// landUnits maps the spellings farmers actually type to canonical units.
var landUnits = map[string]string{
	"acre": "acre", "acres": "acre", "ac": "acre",
	"एकड़": "acre", "एकड": "acre", "एकर": "acre",
	"hectare": "hectare", "hectares": "hectare", "ha": "hectare",
	"हेक्टेयर": "hectare", "हेक्टर": "hectare",
	"bigha": "bigha", "बीघा": "bigha", "बिघा": "bigha",
	"guntha": "guntha", "गुंठा": "guntha",
}

// parseLandSize reads "2 acre" / "1.5 hectare" style answers. A bare number
// defaults to acres; an unknown unit word is kept as typed.
func parseLandSize(value string) (float64, string, bool) {
	m := landSizeRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, "", false
	}
	size, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || size <= 0 || size > 100000 {
		return 0, "", false
	}
	unit := strings.ToLower(strings.TrimSpace(m[2]))
	if unit == "" {
		unit = "acre"
	} else if canonical, ok := landUnits[unit]; ok {
		unit = canonical
	} else if fields := strings.Fields(unit); len(fields) > 0 {
		if canonical, ok := landUnits[fields[0]]; ok {
			unit = canonical
		} else {
			unit = fields[0]
		}
	}
	return size, unit, true
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
