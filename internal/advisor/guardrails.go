package advisor

import (
	"regexp"
	"strings"

	"github.com/m3rciful/agrobot/internal/domain"
)

// Dosage and mixing language the bot must never relay. Quantities with
// chemical-ish units, "per liter" style rates, and the mix/dose/ppm words.
var riskyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s*(ml|l|g|gm|kg)\b`),
	regexp.MustCompile(`(?i)\b(per|/)\s*(l|liter|litre|kg|acre)\b`),
	regexp.MustCompile(`(?i)\b(ml|l|g|kg)\s*/\s*(l|litre|liter|acre)\b`),
	regexp.MustCompile(`(?i)\bmix\b`),
	regexp.MustCompile(`(?i)\bdose\b`),
	regexp.MustCompile(`(?i)\bppm\b`),
}

func riskyLine(line string) bool {
	for _, re := range riskyPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

type guardVerdict struct {
	triggered bool
	reasons   []string
}

// applyGuardrails scans the advisory for dosage/mixing instructions and
// replaces risky action lines with an escalation to a local expert. Active
// weather alerts also force human review. The advisory is edited in place;
// the verdict reasons feed logging only, never chat.
func (o *Orchestrator) applyGuardrails(adv *domain.Advisory, weatherAlerts []string, lang domain.Language) guardVerdict {
	if adv == nil {
		return guardVerdict{}
	}

	var verdict guardVerdict
	joined := strings.Join(append([]string{adv.Headline}, append(adv.ActionsNow, adv.WatchOutFor...)...), " ")
	if riskyLine(joined) {
		verdict.triggered = true
		verdict.reasons = append(verdict.reasons, "dosage/mixing language")
	}
	if len(weatherAlerts) > 0 {
		verdict.triggered = true
		verdict.reasons = append(verdict.reasons, "active weather alerts")
	}
	if adv.NeedsHumanReview {
		verdict.triggered = true
		verdict.reasons = append(verdict.reasons, "model flagged review")
	}
	if !verdict.triggered {
		return verdict
	}

	safe := adv.ActionsNow[:0:0]
	for _, a := range adv.ActionsNow {
		if !riskyLine(a) {
			safe = append(safe, a)
		}
	}
	if len(safe) == 0 {
		safe = []string{o.msgs.T(lang, "guard_action")}
	}
	adv.ActionsNow = safe

	adv.SafetyNotes = append(adv.SafetyNotes, o.msgs.T(lang, "dosage_note"))
	if len(weatherAlerts) > 0 {
		adv.SafetyNotes = append(adv.SafetyNotes, o.msgs.T(lang, "guard_alert_note"))
	}
	adv.NeedsHumanReview = true
	adv.Confidence = domain.ConfidenceLow
	adv.Clamp()
	return verdict
}
