package bot

import (
	"strings"
	"unicode"

	"github.com/m3rciful/agrobot/core/telegram/format"
	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/i18n"
)

// upperFirst capitalizes the first letter for display; crops are stored
// lowercase.
func upperFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// renderAdvisory builds the HTML advisory card: headline, crop/stage meta,
// location and weather lines, then bulleted sections and a confidence
// footer. Model output is escaped; only our own tags survive.
func renderAdvisory(msgs *i18n.Catalog, lang domain.Language, profile *domain.Farmer, adv *domain.Advisory, weather *domain.WeatherNote) string {
	crop := "your crop"
	locationText := ""
	if profile != nil {
		if strings.TrimSpace(profile.Crop) != "" {
			crop = profile.Crop
		}
		locationText = profile.LocationText
	}

	var b strings.Builder
	b.WriteString("<b>" + format.EscapeHTML(adv.Headline) + "</b>\n")

	stageLabel := ""
	if adv.Stage != "" {
		stageLabel = msgs.StageLabel(lang, adv.Stage)
	}
	meta := "<i>" + format.EscapeHTML(upperFirst(crop))
	if stageLabel != "" {
		meta += " • " + format.EscapeHTML(stageLabel)
	}
	meta += "</i>\n"
	if locationText != "" {
		meta += "<i>" + msgs.T(lang, "label_location") + ":</i> " + format.EscapeHTML(locationText) + "\n"
	}
	if weather != nil && weather.Summary != "" {
		meta += "<i>" + msgs.T(lang, "label_weather") + ":</i> " + format.EscapeHTML(weather.Summary) + "\n"
		if len(weather.Alerts) > 0 {
			alerts := weather.Alerts
			if len(alerts) > 3 {
				alerts = alerts[:3]
			}
			meta += "<b>" + msgs.T(lang, "label_alerts") + ":</b> " + format.EscapeHTML(strings.Join(alerts, ", ")) + "\n"
		}
	}
	b.WriteString(strings.TrimRight(meta, "\n"))
	b.WriteString("\n\n")

	section := func(titleKey string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("<b>" + msgs.T(lang, titleKey) + "</b>\n")
		for _, it := range items {
			b.WriteString("• " + format.EscapeHTML(it) + "\n")
		}
		b.WriteString("\n")
	}
	section("sec_actions", adv.ActionsNow)
	section("sec_watch", adv.WatchOutFor)
	section("sec_questions", adv.NextQuestions)
	if adv.RationaleBrief != "" {
		b.WriteString("<b>" + msgs.T(lang, "sec_why") + "</b>\n")
		b.WriteString(format.EscapeHTML(adv.RationaleBrief) + "\n\n")
	}
	section("sec_safety", adv.SafetyNotes)

	footer := "<i>" + msgs.T(lang, "label_confidence") + ":</i> " + msgs.T(lang, "conf_"+string(adv.Confidence))
	if adv.NeedsHumanReview {
		footer += " • <b>" + msgs.T(lang, "expert_review") + "</b>"
	}
	b.WriteString(footer)

	return strings.TrimSpace(b.String())
}
