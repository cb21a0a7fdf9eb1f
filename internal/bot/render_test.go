package bot

import (
	"strings"
	"testing"

	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/i18n"
)

func testCatalog(t *testing.T) *i18n.Catalog {
	t.Helper()
	msgs, err := i18n.Load()
	if err != nil {
		t.Fatalf("load locales: %v", err)
	}
	return msgs
}

func TestRenderAdvisoryFullCard(t *testing.T) {
	msgs := testCatalog(t)
	profile := &domain.Farmer{Crop: "cotton", LocationText: "Nashik"}
	adv := &domain.Advisory{
		Headline:    "Bollworm pressure rising",
		Stage:       domain.StageFlowering,
		ActionsNow:  []string{"Scout field edges twice a week"},
		WatchOutFor: []string{"Bored squares dropping off"},
		SafetyNotes: []string{"Consult your local extension officer before spraying."},
		Confidence:  domain.ConfidenceHigh,
	}
	weather := &domain.WeatherNote{
		Summary: "Clear, 31°",
		Alerts:  []string{"alert one", "alert two", "alert three", "alert four"},
	}

	out := renderAdvisory(msgs, domain.LangEnglish, profile, adv, weather)

	for _, want := range []string{
		"<b>Bollworm pressure rising</b>",
		"<i>Cotton • " + msgs.StageLabel(domain.LangEnglish, domain.StageFlowering) + "</i>",
		msgs.T(domain.LangEnglish, "label_location") + ":</i> Nashik",
		msgs.T(domain.LangEnglish, "label_weather") + ":</i> Clear, 31°",
		"<b>" + msgs.T(domain.LangEnglish, "sec_actions") + "</b>\n• Scout field edges twice a week",
		msgs.T(domain.LangEnglish, "sec_watch"),
		msgs.T(domain.LangEnglish, "sec_safety"),
		msgs.T(domain.LangEnglish, "label_confidence") + ":</i> " + msgs.T(domain.LangEnglish, "conf_high"),
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("card missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "alert four") {
		t.Fatalf("alerts not capped at three:\n%s", out)
	}
	if strings.Contains(out, msgs.T(domain.LangEnglish, "expert_review")) {
		t.Fatalf("review badge rendered without the flag:\n%s", out)
	}
}

func TestRenderAdvisoryEscapesModelOutput(t *testing.T) {
	msgs := testCatalog(t)
	adv := &domain.Advisory{
		Headline:   "Use <b>neem</b> & soap",
		ActionsNow: []string{"Spray <i>carefully</i>"},
		Confidence: domain.ConfidenceLow,
	}

	out := renderAdvisory(msgs, domain.LangEnglish, nil, adv, nil)

	if !strings.Contains(out, "<b>Use &lt;b&gt;neem&lt;/b&gt; &amp; soap</b>") {
		t.Fatalf("headline not escaped:\n%s", out)
	}
	if strings.Contains(out, "<i>carefully</i>") {
		t.Fatalf("model markup leaked through:\n%s", out)
	}
	if !strings.Contains(out, "Your crop") {
		t.Fatalf("missing crop placeholder for empty profile:\n%s", out)
	}
}

func TestRenderAdvisoryReviewFooter(t *testing.T) {
	msgs := testCatalog(t)
	adv := &domain.Advisory{
		Headline:         "Heavy infestation suspected",
		ActionsNow:       []string{"Call your extension officer"},
		Confidence:       domain.ConfidenceLow,
		NeedsHumanReview: true,
	}

	out := renderAdvisory(msgs, domain.LangHindi, nil, adv, nil)

	badge := "<b>" + msgs.T(domain.LangHindi, "expert_review") + "</b>"
	if !strings.Contains(out, badge) {
		t.Fatalf("review badge missing:\n%s", out)
	}
	if !strings.Contains(out, msgs.T(domain.LangHindi, "conf_low")) {
		t.Fatalf("confidence footer missing:\n%s", out)
	}
}

func TestUpperFirst(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"cotton", "Cotton"},
		{"x", "X"},
		{"", ""},
		{"मक्का", "मक्का"},
	}
	for _, tc := range cases {
		if got := upperFirst(tc.in); got != tc.want {
			t.Fatalf("upperFirst(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}
