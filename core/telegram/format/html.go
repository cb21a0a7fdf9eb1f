package format

import "html"

// EscapeHTML escapes text for Telegram HTML parse mode.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}
