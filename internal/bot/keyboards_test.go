package bot

import (
	"testing"

	"github.com/m3rciful/agrobot/internal/advisor"
	"github.com/m3rciful/agrobot/internal/domain"
)

func TestLanguageKeyboardOneRow(t *testing.T) {
	msgs := testCatalog(t)
	kb := languageKeyboard(msgs)
	if len(kb.InlineKeyboard) != 1 {
		t.Fatalf("rows = %d, expected one", len(kb.InlineKeyboard))
	}
	row := kb.InlineKeyboard[0]
	langs := domain.Languages()
	if len(row) != len(langs) {
		t.Fatalf("buttons = %d, expected %d", len(row), len(langs))
	}
	for i, l := range langs {
		btn := row[i]
		if btn.Unique != cbLanguage || btn.Data != string(l) {
			t.Fatalf("button %d = %+v", i, btn)
		}
		if btn.Text != msgs.LangLabel(l) {
			t.Fatalf("button %d text = %q", i, btn.Text)
		}
	}
}

func TestStageKeyboardTwoPerRow(t *testing.T) {
	msgs := testCatalog(t)
	kb := stageKeyboard(msgs, domain.LangHindi)
	stages := domain.Stages()
	wantRows := (len(stages) + 1) / 2
	if len(kb.InlineKeyboard) != wantRows {
		t.Fatalf("rows = %d, expected %d", len(kb.InlineKeyboard), wantRows)
	}
	var seen int
	for _, row := range kb.InlineKeyboard {
		if len(row) > 2 {
			t.Fatalf("row wider than two buttons: %+v", row)
		}
		for _, btn := range row {
			if btn.Unique != cbStage || btn.Data != string(stages[seen]) {
				t.Fatalf("button %d = %+v", seen, btn)
			}
			if btn.Text != msgs.StageLabel(domain.LangHindi, stages[seen]) {
				t.Fatalf("button %d text = %q", seen, btn.Text)
			}
			seen++
		}
	}
	if seen != len(stages) {
		t.Fatalf("buttons = %d, expected %d", seen, len(stages))
	}
}

func TestHubKeyboardTwoByTwo(t *testing.T) {
	msgs := testCatalog(t)
	kb := hubKeyboard(msgs, domain.LangEnglish)
	if len(kb.InlineKeyboard) != 2 || len(kb.InlineKeyboard[0]) != 2 || len(kb.InlineKeyboard[1]) != 2 {
		t.Fatalf("layout = %+v", kb.InlineKeyboard)
	}
	want := []domain.MenuKind{
		domain.MenuGovtSchemes, domain.MenuMarketPrices,
		domain.MenuBuyInputs, domain.MenuCropSuggestions,
	}
	var got []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.Unique != cbMenu {
				t.Fatalf("unique = %q", btn.Unique)
			}
			got = append(got, btn.Data)
		}
	}
	for i, m := range want {
		if got[i] != string(m) {
			t.Fatalf("menu order = %v", got)
		}
	}
}

func TestMarkupForHints(t *testing.T) {
	msgs := testCatalog(t)
	if m := markupFor(advisor.KbNone, msgs, domain.LangEnglish); m != nil {
		t.Fatalf("markup for none = %+v, expected nil", m)
	}
	if m := markupFor(advisor.KbLanguages, msgs, domain.LangEnglish); m == nil || len(m.InlineKeyboard) == 0 {
		t.Fatalf("language markup = %+v", m)
	}
	if m := markupFor(advisor.KbHub, msgs, domain.LangMarathi); m == nil || len(m.InlineKeyboard) != 2 {
		t.Fatalf("hub markup = %+v", m)
	}
}

func TestLinkKeyboardOnePerRow(t *testing.T) {
	links := []advisor.LinkItem{
		{Title: "ICAR advisory", URL: "https://icar.example/a"},
		{Title: "", URL: "https://icar.example/b"},
	}
	kb := linkKeyboard(links)
	if kb == nil || len(kb.InlineKeyboard) != 2 {
		t.Fatalf("keyboard = %+v", kb)
	}
	first := kb.InlineKeyboard[0][0]
	if first.URL != "https://icar.example/a" || first.Text != "ICAR advisory" {
		t.Fatalf("first button = %+v", first)
	}
	if kb.InlineKeyboard[1][0].Text != "https://icar.example/b" {
		t.Fatalf("empty title should fall back to the URL: %+v", kb.InlineKeyboard[1][0])
	}
	if linkKeyboard(nil) != nil {
		t.Fatalf("no links should yield no keyboard")
	}
}
