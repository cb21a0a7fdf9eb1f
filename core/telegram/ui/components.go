package ui

import tele "gopkg.in/telebot.v4"

// LinkButton describes a single URL button.
type LinkButton struct {
	Text string
	URL  string
}

// NewLinkKeyboard builds an inline keyboard of URL buttons, one per row.
// Entries with an empty URL are skipped.
func NewLinkKeyboard(links []LinkButton) *tele.ReplyMarkup {
	if len(links) == 0 {
		return nil
	}
	rows := make([][]tele.InlineButton, 0, len(links))
	for _, l := range links {
		if l.URL == "" {
			continue
		}
		text := l.Text
		if text == "" {
			text = l.URL
		}
		rows = append(rows, []tele.InlineButton{{Text: text, URL: l.URL}})
	}
	if len(rows) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
