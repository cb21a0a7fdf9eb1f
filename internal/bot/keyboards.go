package bot

import (
	"github.com/m3rciful/agrobot/core/telegram/keyboard"
	"github.com/m3rciful/agrobot/core/telegram/ui"
	"github.com/m3rciful/agrobot/internal/advisor"
	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/i18n"

	tele "gopkg.in/telebot.v4"
)

// Callback uniques. Payload carries the selected value.
const (
	cbLanguage = "lang"
	cbStage    = "stage"
	cbMenu     = "menu"
)

// languageKeyboard offers the supported languages on one row.
func languageKeyboard(msgs *i18n.Catalog) *tele.ReplyMarkup {
	langs := domain.Languages()
	row := make([]keyboard.InlineBtn, 0, len(langs))
	for _, l := range langs {
		row = append(row, keyboard.InlineBtn{Text: msgs.LangLabel(l), Unique: cbLanguage, Data: string(l)})
	}
	return keyboard.InlineButtonsRows(row)
}

// stageKeyboard lays the seven lifecycle stages out two per row.
func stageKeyboard(msgs *i18n.Catalog, lang domain.Language) *tele.ReplyMarkup {
	stages := domain.Stages()
	btns := make([]keyboard.InlineBtn, 0, len(stages))
	for _, s := range stages {
		btns = append(btns, keyboard.InlineBtn{Text: msgs.StageLabel(lang, s), Unique: cbStage, Data: string(s)})
	}
	return keyboard.InlineButtonsNPerRow(btns, 2)
}

// hubKeyboard is the 2×2 on-demand module menu shown in the steady state.
func hubKeyboard(msgs *i18n.Catalog, lang domain.Language) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: msgs.T(lang, "btn_schemes"), Unique: cbMenu, Data: string(domain.MenuGovtSchemes)},
			{Text: msgs.T(lang, "btn_prices"), Unique: cbMenu, Data: string(domain.MenuMarketPrices)},
		},
		[]keyboard.InlineBtn{
			{Text: msgs.T(lang, "btn_inputs"), Unique: cbMenu, Data: string(domain.MenuBuyInputs)},
			{Text: msgs.T(lang, "btn_suggestions"), Unique: cbMenu, Data: string(domain.MenuCropSuggestions)},
		},
	)
}

// markupFor maps the orchestrator's keyboard hint onto telegram markup.
func markupFor(hint advisor.KeyboardHint, msgs *i18n.Catalog, lang domain.Language) *tele.ReplyMarkup {
	switch hint {
	case advisor.KbLanguages:
		return languageKeyboard(msgs)
	case advisor.KbStages:
		return stageKeyboard(msgs, lang)
	case advisor.KbHub:
		return hubKeyboard(msgs, lang)
	default:
		return nil
	}
}

// linkKeyboard renders module result links, one URL button per row.
func linkKeyboard(links []advisor.LinkItem) *tele.ReplyMarkup {
	if len(links) == 0 {
		return nil
	}
	btns := make([]ui.LinkButton, 0, len(links))
	for _, l := range links {
		btns = append(btns, ui.LinkButton{Text: l.Title, URL: l.URL})
	}
	return ui.NewLinkKeyboard(btns)
}
