package i18n

import (
	"testing"

	"github.com/m3rciful/agrobot/internal/domain"
)

func TestLoadAllLocales(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, lang := range domain.Languages() {
		if !c.Has(lang, "welcome") {
			t.Fatalf("locale %s missing the welcome message", lang)
		}
	}
}

func TestLookupFallsBackToEnglish(t *testing.T) {
	c := &Catalog{msgs: map[domain.Language]map[string]string{
		domain.LangEnglish: {"greet": "hello", "both": "en"},
		domain.LangHindi:   {"both": "hi"},
	}}

	if got := c.T(domain.LangHindi, "both"); got != "hi" {
		t.Fatalf("got %q, expected the hindi string", got)
	}
	if got := c.T(domain.LangHindi, "greet"); got != "hello" {
		t.Fatalf("got %q, expected the english fallback", got)
	}
	// A missing key surfaces as itself, never as an empty bubble.
	if got := c.T(domain.LangHindi, "no_such_key"); got != "no_such_key" {
		t.Fatalf("got %q, expected the key", got)
	}
}

func TestFormatArgs(t *testing.T) {
	c := &Catalog{msgs: map[domain.Language]map[string]string{
		domain.LangEnglish: {"saved": "Saved %s.", "plain": "100%% done"},
	}}

	if got := c.T(domain.LangEnglish, "saved", "cotton"); got != "Saved cotton." {
		t.Fatalf("got %q", got)
	}
	// Without args the template is returned verbatim, no Sprintf pass.
	if got := c.T(domain.LangEnglish, "plain"); got != "100%% done" {
		t.Fatalf("got %q", got)
	}
}

func TestEveryLanguageCoversEnglishKeys(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	en := c.msgs[domain.LangEnglish]
	for _, lang := range []domain.Language{domain.LangHindi, domain.LangMarathi} {
		for key := range en {
			if !c.Has(lang, key) {
				t.Errorf("locale %s missing key %q", lang, key)
			}
		}
	}
}

func TestStageAndLanguageLabels(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, s := range domain.Stages() {
		for _, lang := range domain.Languages() {
			label := c.StageLabel(lang, s)
			if label == "" || label == "stage_"+string(s) {
				t.Errorf("no %s label for stage %s", lang, s)
			}
		}
	}
	for _, l := range domain.Languages() {
		label := c.LangLabel(l)
		if label == "" || label == "lang_"+string(l) {
			t.Errorf("no label for language %s", l)
		}
	}
}
