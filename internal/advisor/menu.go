package advisor

import (
	"context"
	"strings"

	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/tools"
)

const (
	maxSymptomLen   = 400
	maxSnippetLines = 3
	maxSnippetLen   = 200
	maxLinkTitleLen = 48
)

// handleSymptomText is the hub's main path: refresh stale weather and web
// context, then generate a structured advisory. Tool failures degrade the
// answer (stale or missing context, fallback text) without moving the state.
func (o *Orchestrator) handleSymptomText(ctx context.Context, turn *Turn, profile *domain.Farmer, ev SymptomTextEvent) (*Turn, error) {
	next := turn.Session
	lang := profile.Lang()

	if next.State != domain.StateAwaitingSymptomOrMenu {
		// Free text while a question is pending: re-ask it.
		if next.State == domain.StateAwaitingStage {
			turn.Reply = Reply{Text: o.msgs.T(lang, "unknown_stage"), Keyboard: KbStages}
			return turn, nil
		}
		turn.Reply = o.promptForState(next, profile)
		return turn, nil
	}

	symptoms := truncateRunes(strings.TrimSpace(ev.Text), maxSymptomLen)
	next.LastSymptom = symptoms
	now := o.now().UTC()

	var weatherDown bool
	if profile.HasCoords() && !next.WeatherFresh(now, o.cfg.WeatherMaxAge()) {
		snap, err := o.weather.Forecast(ctx, *profile.Lat, *profile.Lon, lang)
		if err != nil {
			weatherDown = true
			logger.ADV.Warn("weather refresh failed", "err", err)
		} else {
			next.Weather = snap.Note()
		}
	}

	if !next.WebFresh(now, o.cfg.WebMaxAge()) {
		query := symptomQuery(profile, symptoms)
		if wc, err := o.search.Search(ctx, query, "month"); err != nil {
			// Keep whatever note we already had; the advisory survives
			// without fresh search context.
			logger.ADV.Warn("web refresh failed", "err", err)
		} else {
			next.Web = wc.Note()
		}
	}

	adv, err := o.llm.Advise(ctx, tools.AdviseRequest{
		Profile:  profile,
		Symptoms: symptoms,
		Weather:  next.Weather,
		Web:      next.Web,
		Language: lang,
	})
	if err != nil {
		logger.ADV.Error("advisory failed", "err", err)
		turn.Reply = Reply{Text: o.msgs.T(lang, "advisory_unavailable"), Keyboard: KbHub}
		return turn, nil
	}

	verdict := o.applyGuardrails(adv, weatherAlerts(next.Weather), lang)
	if verdict.triggered {
		logger.ADV.Info("guardrails applied", "reasons", strings.Join(verdict.reasons, ","))
	}

	turn.Reply = Reply{Advisory: adv, Weather: next.Weather, Keyboard: KbHub}
	if weatherDown {
		turn.Reply.Text = o.msgs.T(lang, "weather_unavailable")
	}
	return turn, nil
}

// handleSymptomPhoto runs the photo diagnosis. The image record is appended
// even when diagnosis fails so the audit trail stays complete.
func (o *Orchestrator) handleSymptomPhoto(ctx context.Context, turn *Turn, profile *domain.Farmer, ev SymptomPhotoEvent) (*Turn, error) {
	next := turn.Session
	lang := profile.Lang()

	rec := domain.ImageRecord{
		FileRef:        ev.FileRef,
		ProviderFileID: ev.ProviderFileID,
		Caption:        truncateRunes(strings.TrimSpace(ev.Caption), maxFieldLen),
	}

	diag, err := o.diagnosis.Diagnose(ctx, tools.DiagnoseRequest{
		PhotoURL: ev.PhotoURL,
		Caption:  rec.Caption,
		Crop:     cropOrDefault(profile),
		Stage:    profileStage(profile),
		Language: lang,
	})
	if err != nil {
		logger.ADV.Warn("diagnosis failed", "err", err)
		turn.Images = append(turn.Images, rec)
		turn.Reply = Reply{
			Text:     o.msgs.T(lang, "photo_saved") + "\n" + o.msgs.T(lang, "diagnosis_unavailable"),
			Keyboard: keyboardFor(next.State),
		}
		return turn, nil
	}

	rec.Diagnosis = diag.Label
	turn.Images = append(turn.Images, rec)

	text := o.msgs.T(lang, "diagnosis_label", diag.Label)
	if diag.Advice != "" {
		text += "\n" + diag.Advice
	}
	// Low confidence never suppresses the answer; it qualifies it.
	if diag.Confidence < o.cfg.DiagnosisMinConfidence {
		text += "\n\n" + o.msgs.T(lang, "uncertain_note")
	}
	turn.Reply = Reply{Text: text, Keyboard: keyboardFor(next.State)}

	// In the hub the diagnosis also seeds a full advisory. Context notes
	// are reused as-is; photo turns don't refresh weather or search.
	if next.State == domain.StateAwaitingSymptomOrMenu {
		if rec.Caption != "" {
			next.LastSymptom = rec.Caption
		}
		adv, err := o.llm.Advise(ctx, tools.AdviseRequest{
			Profile:   profile,
			Symptoms:  rec.Caption,
			Diagnosis: diag,
			Weather:   next.Weather,
			Web:       next.Web,
			Language:  lang,
		})
		if err != nil {
			// The diagnosis text above still answers the farmer.
			logger.ADV.Warn("post-diagnosis advisory failed", "err", err)
			return turn, nil
		}
		o.applyGuardrails(adv, weatherAlerts(next.Weather), lang)
		turn.Reply.Advisory = adv
	}
	return turn, nil
}

// handleMenu serves the four on-demand modules. Results are transient:
// rendered once, never cached in the session, so the next invocation always
// searches again.
func (o *Orchestrator) handleMenu(ctx context.Context, turn *Turn, profile *domain.Farmer, ev MenuEvent) (*Turn, error) {
	next := turn.Session
	lang := profile.Lang()

	if next.State != domain.StateAwaitingSymptomOrMenu {
		turn.Reply = o.promptForState(next, profile)
		return turn, nil
	}
	next.LastMenu = ev.Kind

	query, timeRange := menuQuery(ev.Kind, profile)
	wc, err := o.search.Search(ctx, query, timeRange)
	if err != nil {
		logger.ADV.Warn("menu lookup failed", "menu", string(ev.Kind), "err", err)
		turn.Reply = Reply{Text: o.msgs.T(lang, "menu_unavailable"), Keyboard: KbHub}
		return turn, nil
	}

	turn.Reply = Reply{
		Text:     o.menuHeader(lang, ev.Kind, profile) + "\n\n" + snippetLines(wc.Snippets),
		Links:    menuLinks(wc, o.cfg.MenuLinks),
		Keyboard: KbHub,
	}
	return turn, nil
}

// symptomQuery builds the web query for symptom advisories.
func symptomQuery(profile *domain.Farmer, symptoms string) string {
	parts := []string{cropOrDefault(profile)}
	if s := profileStage(profile); s != "" {
		parts = append(parts, string(s), "stage")
	}
	if symptoms != "" {
		parts = append(parts, symptoms)
	} else {
		parts = append(parts, "farming best practices")
	}
	if loc := profileLocation(profile); loc != "" {
		parts = append(parts, "in", loc)
	}
	return strings.Join(parts, " ")
}

// menuQuery builds the search request for one module.
func menuQuery(kind domain.MenuKind, profile *domain.Farmer) (query, timeRange string) {
	crop := cropOrDefault(profile)
	loc := profileLocation(profile)
	if loc == "" {
		loc = "India"
	}
	switch kind {
	case domain.MenuGovtSchemes:
		return "government schemes subsidies for " + crop + " farmers " + loc + " India", "month"
	case domain.MenuMarketPrices:
		return crop + " mandi market price today " + loc, "week"
	case domain.MenuBuyInputs:
		return "buy " + crop + " seeds fertilizer pesticide shops near " + loc, "month"
	default: // crop suggestions
		return "best crops to grow this season in " + loc, "month"
	}
}

func (o *Orchestrator) menuHeader(lang domain.Language, kind domain.MenuKind, profile *domain.Farmer) string {
	switch kind {
	case domain.MenuGovtSchemes:
		return o.msgs.T(lang, "schemes_header")
	case domain.MenuMarketPrices:
		return o.msgs.T(lang, "prices_header", cropOrDefault(profile))
	case domain.MenuBuyInputs:
		loc := profileLocation(profile)
		if loc == "" {
			loc = cropOrDefault(profile)
		}
		return o.msgs.T(lang, "inputs_header", loc)
	default:
		return o.msgs.T(lang, "suggestions_header")
	}
}

// snippetLines renders the top search snippets as a short bullet list.
func snippetLines(snippets []string) string {
	var b strings.Builder
	for i, s := range snippets {
		if i == maxSnippetLines {
			break
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("• ")
		b.WriteString(truncateRunes(s, maxSnippetLen))
	}
	return b.String()
}

// menuLinks picks up to limit result links, skipping entries without a URL.
func menuLinks(wc *domain.WebContext, limit int) []LinkItem {
	if wc == nil {
		return nil
	}
	links := make([]LinkItem, 0, limit)
	for _, r := range wc.Results {
		if r.URL == "" {
			continue
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = r.URL
		}
		links = append(links, LinkItem{Title: truncateRunes(title, maxLinkTitleLen), URL: r.URL})
		if len(links) == limit {
			break
		}
	}
	return links
}

func profileStage(f *domain.Farmer) domain.Stage {
	if f == nil {
		return ""
	}
	return f.Stage
}

func profileLocation(f *domain.Farmer) string {
	if f == nil {
		return ""
	}
	return strings.TrimSpace(f.LocationText)
}

func keyboardFor(state domain.DialogState) KeyboardHint {
	if state == domain.StateAwaitingSymptomOrMenu {
		return KbHub
	}
	return KbNone
}
