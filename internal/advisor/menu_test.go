package advisor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/agrobot/internal/domain"
)

func TestSymptomRefreshesStaleContext(t *testing.T) {
	o, d, _ := newTestOrchestrator(t)
	sess := hubSession()

	turn, err := o.Advance(context.Background(), sess, readyFarmer(), SymptomTextEvent{Text: "yellow spots on leaves"})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if d.weather.forecasts != 1 {
		t.Fatalf("forecast calls = %d, expected 1", d.weather.forecasts)
	}
	if d.search.calls != 1 {
		t.Fatalf("search calls = %d, expected 1", d.search.calls)
	}
	if d.llm.calls != 1 {
		t.Fatalf("advise calls = %d, expected 1", d.llm.calls)
	}
	q := d.search.queries[0]
	for _, want := range []string{"cotton", "flowering stage", "yellow spots on leaves", "in Nashik"} {
		if !strings.Contains(q, want) {
			t.Fatalf("query %q missing %q", q, want)
		}
	}
	if d.llm.last.Symptoms != "yellow spots on leaves" {
		t.Fatalf("symptoms passed = %q", d.llm.last.Symptoms)
	}
	if d.llm.last.Weather == nil || d.llm.last.Web == nil {
		t.Fatal("advise request missing context notes")
	}
	if turn.Session.Weather == nil || turn.Session.Web == nil {
		t.Fatal("session context not refreshed")
	}
	if turn.Session.LastSymptom != "yellow spots on leaves" {
		t.Fatalf("last symptom = %q", turn.Session.LastSymptom)
	}
	if turn.Reply.Advisory == nil {
		t.Fatal("no advisory in reply")
	}
	if turn.Reply.Text != "" {
		t.Fatalf("unexpected lead-in %q", turn.Reply.Text)
	}
	if turn.Reply.Keyboard != KbHub {
		t.Fatalf("keyboard = %v, expected hub", turn.Reply.Keyboard)
	}
	if turn.Session.State != domain.StateAwaitingSymptomOrMenu {
		t.Fatalf("state = %s, expected hub", turn.Session.State)
	}
}

func TestSymptomHonorsFreshContext(t *testing.T) {
	o, d, _ := newTestOrchestrator(t)
	sess := hubSession()
	sess.Weather = &domain.WeatherNote{Summary: "Clear, 31°", FetchedAt: testNow.Add(-time.Minute)}
	sess.Web = &domain.WebNote{Query: "cotton", Snippets: []string{"old snippet"}, FetchedAt: testNow.Add(-time.Hour)}

	turn, err := o.Advance(context.Background(), sess, readyFarmer(), SymptomTextEvent{Text: "leaf curl"})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if d.weather.forecasts != 0 {
		t.Fatalf("forecast calls = %d, expected cached note to be reused", d.weather.forecasts)
	}
	if d.search.calls != 0 {
		t.Fatalf("search calls = %d, expected cached note to be reused", d.search.calls)
	}
	if d.llm.last.Weather == nil || d.llm.last.Weather.Summary != "Clear, 31°" {
		t.Fatalf("advise got weather %+v", d.llm.last.Weather)
	}
	if turn.Reply.Advisory == nil {
		t.Fatal("no advisory in reply")
	}
}

func TestSymptomWeatherDownDegradesReply(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	d.weather.forecastErr = domain.ErrToolUnavailable
	sess := hubSession()

	turn, err := o.Advance(context.Background(), sess, readyFarmer(), SymptomTextEvent{Text: "wilting"})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if turn.Reply.Text != msgs.T(domain.LangEnglish, "weather_unavailable") {
		t.Fatalf("lead-in = %q", turn.Reply.Text)
	}
	if turn.Reply.Advisory == nil {
		t.Fatal("advisory dropped because weather was down")
	}
	if turn.Session.Weather != nil {
		t.Fatalf("session weather = %+v, expected nil", turn.Session.Weather)
	}
	if d.llm.last.Weather != nil {
		t.Fatal("advise request carried a weather note from a failed fetch")
	}
	if turn.Session.State != domain.StateAwaitingSymptomOrMenu {
		t.Fatalf("state = %s, tool failure must not move the dialogue", turn.Session.State)
	}
}

func TestSymptomAdvisoryDownKeepsState(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	d.llm.err = domain.ErrToolUnavailable
	sess := hubSession()

	turn, err := o.Advance(context.Background(), sess, readyFarmer(), SymptomTextEvent{Text: "wilting"})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if turn.Reply.Text != msgs.T(domain.LangEnglish, "advisory_unavailable") {
		t.Fatalf("reply = %q", turn.Reply.Text)
	}
	if turn.Reply.Advisory != nil {
		t.Fatal("reply carries an advisory despite the failure")
	}
	if turn.Reply.Keyboard != KbHub {
		t.Fatalf("keyboard = %v, expected hub", turn.Reply.Keyboard)
	}
	if turn.Session.State != domain.StateAwaitingSymptomOrMenu {
		t.Fatalf("state = %s, expected hub", turn.Session.State)
	}
	// The fetched context is still worth keeping for the next attempt.
	if turn.Session.Weather == nil || turn.Session.Web == nil {
		t.Fatal("refreshed context lost on advisory failure")
	}
}

func TestSymptomTruncatedToLimit(t *testing.T) {
	o, d, _ := newTestOrchestrator(t)
	long := strings.Repeat("x", maxSymptomLen+50)

	turn, err := o.Advance(context.Background(), hubSession(), readyFarmer(), SymptomTextEvent{Text: long})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := len([]rune(d.llm.last.Symptoms)); got != maxSymptomLen {
		t.Fatalf("symptoms length = %d, expected %d", got, maxSymptomLen)
	}
	if got := len([]rune(turn.Session.LastSymptom)); got != maxSymptomLen {
		t.Fatalf("stored symptom length = %d, expected %d", got, maxSymptomLen)
	}
}

func TestFreeTextWhileChoosingStage(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	sess := &domain.Session{State: domain.StateAwaitingStage, TurnCount: 5}

	turn, err := o.Advance(context.Background(), sess, readyFarmer(), SymptomTextEvent{Text: "my crop is dying"})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if turn.Reply.Text != msgs.T(domain.LangEnglish, "unknown_stage") {
		t.Fatalf("reply = %q", turn.Reply.Text)
	}
	if turn.Reply.Keyboard != KbStages {
		t.Fatalf("keyboard = %v, expected stages", turn.Reply.Keyboard)
	}
	if d.llm.calls != 0 {
		t.Fatalf("advise called %d times outside the hub", d.llm.calls)
	}
	if turn.Session.State != domain.StateAwaitingStage {
		t.Fatalf("state = %s, expected to stay", turn.Session.State)
	}
}

func TestMenuResultsAreTransient(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	profile := readyFarmer()

	sess := hubSession()
	turn, err := o.Advance(context.Background(), sess, profile, MenuEvent{Kind: domain.MenuGovtSchemes})
	if err != nil {
		t.Fatalf("first menu: %v", err)
	}
	if !strings.HasPrefix(turn.Reply.Text, msgs.T(domain.LangEnglish, "schemes_header")) {
		t.Fatalf("reply %q missing schemes header", turn.Reply.Text)
	}
	if !strings.Contains(turn.Reply.Text, "• ") {
		t.Fatalf("reply %q has no snippet bullets", turn.Reply.Text)
	}
	if len(turn.Reply.Links) != 1 || turn.Reply.Links[0].URL != "https://icar.example/cotton" {
		t.Fatalf("links = %+v", turn.Reply.Links)
	}
	if turn.Session.LastMenu != domain.MenuGovtSchemes {
		t.Fatalf("last menu = %s", turn.Session.LastMenu)
	}
	if turn.Session.Web != nil {
		t.Fatal("menu result cached in session")
	}

	// Same tap again: a fresh search every time, no replay from cache.
	if _, err := o.Advance(context.Background(), turn.Session, profile, MenuEvent{Kind: domain.MenuGovtSchemes}); err != nil {
		t.Fatalf("second menu: %v", err)
	}
	if d.search.calls != 2 {
		t.Fatalf("search calls = %d, expected 2", d.search.calls)
	}
}

func TestMenuQueries(t *testing.T) {
	cases := []struct {
		kind      domain.MenuKind
		wants     []string
		timeRange string
	}{
		{domain.MenuGovtSchemes, []string{"government schemes", "cotton", "Nashik"}, "month"},
		{domain.MenuMarketPrices, []string{"cotton", "mandi", "price", "Nashik"}, "week"},
		{domain.MenuBuyInputs, []string{"buy", "cotton", "seeds", "Nashik"}, "month"},
		{domain.MenuCropSuggestions, []string{"best crops", "Nashik"}, "month"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			o, d, _ := newTestOrchestrator(t)
			if _, err := o.Advance(context.Background(), hubSession(), readyFarmer(), MenuEvent{Kind: tc.kind}); err != nil {
				t.Fatalf("advance: %v", err)
			}
			if d.search.calls != 1 {
				t.Fatalf("search calls = %d", d.search.calls)
			}
			for _, want := range tc.wants {
				if !strings.Contains(d.search.queries[0], want) {
					t.Fatalf("query %q missing %q", d.search.queries[0], want)
				}
			}
			if d.search.ranges[0] != tc.timeRange {
				t.Fatalf("time range = %q, expected %q", d.search.ranges[0], tc.timeRange)
			}
		})
	}
}

func TestMenuFallsBackToIndiaWithoutLocation(t *testing.T) {
	o, d, _ := newTestOrchestrator(t)
	profile := readyFarmer()
	profile.LocationText = ""

	if _, err := o.Advance(context.Background(), hubSession(), profile, MenuEvent{Kind: domain.MenuMarketPrices}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !strings.Contains(d.search.queries[0], "India") {
		t.Fatalf("query %q missing the India fallback", d.search.queries[0])
	}
}

func TestMenuSearchDownDegrades(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	d.search.err = domain.ErrToolUnavailable

	turn, err := o.Advance(context.Background(), hubSession(), readyFarmer(), MenuEvent{Kind: domain.MenuMarketPrices})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if turn.Reply.Text != msgs.T(domain.LangEnglish, "menu_unavailable") {
		t.Fatalf("reply = %q", turn.Reply.Text)
	}
	if turn.Session.State != domain.StateAwaitingSymptomOrMenu {
		t.Fatalf("state = %s, expected hub", turn.Session.State)
	}
}

func TestMenuBeforeSetupReprompts(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	sess := &domain.Session{State: domain.StateAwaitingLocation, TurnCount: 4}

	turn, err := o.Advance(context.Background(), sess, readyFarmer(), MenuEvent{Kind: domain.MenuGovtSchemes})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if d.search.calls != 0 {
		t.Fatalf("search called %d times before setup finished", d.search.calls)
	}
	if turn.Reply.Text != msgs.T(domain.LangEnglish, "ask_location") {
		t.Fatalf("reply = %q", turn.Reply.Text)
	}
	if turn.Session.State != domain.StateAwaitingLocation {
		t.Fatalf("state = %s", turn.Session.State)
	}
}

func TestPhotoLowConfidenceGetsQualifier(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	d.diagnosis.diag = &domain.Diagnosis{Label: "Possible leaf spot", Advice: "Check the undersides of leaves.", Confidence: 0.3}
	sess := hubSession()

	turn, err := o.Advance(context.Background(), sess, readyFarmer(), SymptomPhotoEvent{
		FileRef:        "photos/42/abc.jpg",
		ProviderFileID: "AgACAgU123",
		PhotoURL:       "https://files.example/abc.jpg",
		Caption:        "spots since monday",
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(turn.Images) != 1 {
		t.Fatalf("images = %d, expected 1", len(turn.Images))
	}
	rec := turn.Images[0]
	if rec.FileRef != "photos/42/abc.jpg" || rec.Diagnosis != "Possible leaf spot" {
		t.Fatalf("record = %+v", rec)
	}
	if !strings.Contains(turn.Reply.Text, msgs.T(domain.LangEnglish, "diagnosis_label", "Possible leaf spot")) {
		t.Fatalf("reply %q missing the diagnosis", turn.Reply.Text)
	}
	if !strings.Contains(turn.Reply.Text, "Check the undersides") {
		t.Fatalf("reply %q missing the advice", turn.Reply.Text)
	}
	if !strings.Contains(turn.Reply.Text, msgs.T(domain.LangEnglish, "uncertain_note")) {
		t.Fatalf("reply %q missing the uncertain qualifier", turn.Reply.Text)
	}
	if d.llm.calls != 1 || d.llm.last.Diagnosis == nil {
		t.Fatalf("advise calls = %d, diagnosis = %+v", d.llm.calls, d.llm.last.Diagnosis)
	}
	if turn.Reply.Advisory == nil {
		t.Fatal("hub photo turn did not attach an advisory")
	}
	if turn.Session.LastSymptom != "spots since monday" {
		t.Fatalf("last symptom = %q", turn.Session.LastSymptom)
	}
}

func TestPhotoConfidentDiagnosisHasNoQualifier(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	d.diagnosis.diag = &domain.Diagnosis{Label: "Bollworm damage", Advice: "Set pheromone traps.", Confidence: 0.9}

	turn, err := o.Advance(context.Background(), hubSession(), readyFarmer(), SymptomPhotoEvent{
		FileRef:  "photos/42/def.jpg",
		PhotoURL: "https://files.example/def.jpg",
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if strings.Contains(turn.Reply.Text, msgs.T(domain.LangEnglish, "uncertain_note")) {
		t.Fatalf("confident diagnosis got the uncertain qualifier: %q", turn.Reply.Text)
	}
}

func TestPhotoDiagnosisDownStillRecordsImage(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	d.diagnosis.err = domain.ErrToolUnavailable

	turn, err := o.Advance(context.Background(), hubSession(), readyFarmer(), SymptomPhotoEvent{
		FileRef: "photos/42/ghi.jpg",
		Caption: "white powder",
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(turn.Images) != 1 || turn.Images[0].Diagnosis != "" {
		t.Fatalf("images = %+v, expected one undiagnosed record", turn.Images)
	}
	want := msgs.T(domain.LangEnglish, "photo_saved") + "\n" + msgs.T(domain.LangEnglish, "diagnosis_unavailable")
	if turn.Reply.Text != want {
		t.Fatalf("reply = %q, expected %q", turn.Reply.Text, want)
	}
	if d.llm.calls != 0 {
		t.Fatalf("advise called %d times without a diagnosis", d.llm.calls)
	}
	if turn.Session.State != domain.StateAwaitingSymptomOrMenu {
		t.Fatalf("state = %s", turn.Session.State)
	}
}

func TestPhotoOutsideHubSkipsAdvisory(t *testing.T) {
	o, d, _ := newTestOrchestrator(t)
	sess := &domain.Session{State: domain.StateAwaitingLocation, TurnCount: 4}

	turn, err := o.Advance(context.Background(), sess, readyFarmer(), SymptomPhotoEvent{
		FileRef:  "photos/42/jkl.jpg",
		PhotoURL: "https://files.example/jkl.jpg",
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(turn.Images) != 1 {
		t.Fatalf("images = %d, photo must be recorded in any state", len(turn.Images))
	}
	if d.llm.calls != 0 {
		t.Fatalf("advise called %d times outside the hub", d.llm.calls)
	}
	if turn.Reply.Advisory != nil {
		t.Fatal("advisory attached outside the hub")
	}
	if turn.Reply.Keyboard != KbNone {
		t.Fatalf("keyboard = %v, expected none", turn.Reply.Keyboard)
	}
	if turn.Session.State != domain.StateAwaitingLocation {
		t.Fatalf("state = %s, expected to stay", turn.Session.State)
	}
}

func TestGuardrailsScrubDosageLines(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	d.llm.adv = &domain.Advisory{
		Headline: "Aphid pressure building",
		ActionsNow: []string{
			"Mix 5 ml imidacloprid per liter and spray",
			"Remove heavily infested shoots",
		},
		Confidence: domain.ConfidenceHigh,
	}

	turn, err := o.Advance(context.Background(), hubSession(), readyFarmer(), SymptomTextEvent{Text: "aphids on shoots"})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	adv := turn.Reply.Advisory
	if adv == nil {
		t.Fatal("no advisory in reply")
	}
	if len(adv.ActionsNow) != 1 || adv.ActionsNow[0] != "Remove heavily infested shoots" {
		t.Fatalf("actions = %v, dosage line not scrubbed", adv.ActionsNow)
	}
	if !adv.NeedsHumanReview {
		t.Fatal("scrubbed advisory not flagged for review")
	}
	if adv.Confidence != domain.ConfidenceLow {
		t.Fatalf("confidence = %s, expected low", adv.Confidence)
	}
	found := false
	for _, n := range adv.SafetyNotes {
		if n == msgs.T(domain.LangEnglish, "dosage_note") {
			found = true
		}
	}
	if !found {
		t.Fatalf("safety notes %v missing the dosage note", adv.SafetyNotes)
	}
}

func TestGuardrailsReplaceAllRiskyActions(t *testing.T) {
	o, d, msgs := newTestOrchestrator(t)
	d.llm.adv = &domain.Advisory{
		Headline:   "Treat now",
		ActionsNow: []string{"Apply 20 g per acre", "Dose the field at 2 ml/l"},
		Confidence: domain.ConfidenceMedium,
	}

	turn, err := o.Advance(context.Background(), hubSession(), readyFarmer(), SymptomTextEvent{Text: "fungus"})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	adv := turn.Reply.Advisory
	if len(adv.ActionsNow) != 1 || adv.ActionsNow[0] != msgs.T(domain.LangEnglish, "guard_action") {
		t.Fatalf("actions = %v, expected the escalation line alone", adv.ActionsNow)
	}
}

func TestGuardrailsWeatherAlertForcesReview(t *testing.T) {
	o, _, msgs := newTestOrchestrator(t)
	sess := hubSession()
	sess.Weather = &domain.WeatherNote{
		Summary:   "Storm incoming",
		Alerts:    []string{"Thunderstorm warning until 18:00"},
		FetchedAt: testNow.Add(-time.Minute),
	}
	sess.Web = &domain.WebNote{Query: "q", FetchedAt: testNow.Add(-time.Minute)}

	turn, err := o.Advance(context.Background(), sess, readyFarmer(), SymptomTextEvent{Text: "leaning plants"})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	adv := turn.Reply.Advisory
	if adv == nil || !adv.NeedsHumanReview {
		t.Fatalf("advisory %+v not escalated under an active alert", adv)
	}
	foundAlertNote := false
	for _, n := range adv.SafetyNotes {
		if n == msgs.T(domain.LangEnglish, "guard_alert_note") {
			foundAlertNote = true
		}
	}
	if !foundAlertNote {
		t.Fatalf("safety notes %v missing the alert note", adv.SafetyNotes)
	}
}

func TestSymptomWithoutCoordsSkipsForecast(t *testing.T) {
	o, d, _ := newTestOrchestrator(t)
	profile := readyFarmer()
	profile.Lat, profile.Lon = nil, nil

	turn, err := o.Advance(context.Background(), hubSession(), profile, SymptomTextEvent{Text: "stunted growth"})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if d.weather.forecasts != 0 {
		t.Fatalf("forecast called %d times without coordinates", d.weather.forecasts)
	}
	if turn.Reply.Text != "" {
		t.Fatalf("lead-in = %q, missing coords is not a tool failure", turn.Reply.Text)
	}
	if turn.Reply.Advisory == nil {
		t.Fatal("no advisory in reply")
	}
}
