package bot

import (
	"encoding/base64"
	"fmt"
	"io"

	tele "gopkg.in/telebot.v4"
)

// maxPhotoBytes bounds the downloaded photo size. Telegram's largest
// PhotoSize is well under this; anything bigger is refused, not truncated.
const maxPhotoBytes = 8 << 20

// photoDataURL downloads the photo from Telegram and packs it into a data
// URL for the vision model. Keeps the bot token out of URLs handed to a
// third-party provider.
func photoDataURL(c tele.Context, fileID string) (string, error) {
	f, err := c.Bot().FileByID(fileID)
	if err != nil {
		return "", fmt.Errorf("file lookup: %w", err)
	}
	rc, err := c.Bot().File(&f)
	if err != nil {
		return "", fmt.Errorf("file download: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPhotoBytes+1))
	if err != nil {
		return "", fmt.Errorf("file read: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return "", fmt.Errorf("photo exceeds %d bytes", maxPhotoBytes)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}
