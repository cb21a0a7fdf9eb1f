package bot

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/agrobot/core/logger"
	tghelpers "github.com/m3rciful/agrobot/core/telegram/helpers"
	"github.com/m3rciful/agrobot/core/telegram/state"
	"github.com/m3rciful/agrobot/internal/advisor"
	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/i18n"
	"github.com/m3rciful/agrobot/internal/service"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// eventBuilder turns the loaded dialogue position into an event. It may
// return nil to skip the turn (malformed update).
type eventBuilder func(sess *domain.Session, profile *domain.Farmer) advisor.Event

// driver runs complete dialogue turns: load state, advance the orchestrator,
// persist the deltas, send the reply. It implements router.FSM so the text
// router hands every message to it: the advisory dialogue has no idle
// state, a chat is always mid-conversation.
type driver struct {
	farmers  *service.Farmers
	sessions *service.Sessions
	images   *service.Images
	orch     *advisor.Orchestrator
	msgs     *i18n.Catalog
	turns    *state.Serializer
}

func newDriver(farmers *service.Farmers, sessions *service.Sessions, images *service.Images, orch *advisor.Orchestrator, msgs *i18n.Catalog) *driver {
	return &driver{
		farmers:  farmers,
		sessions: sessions,
		images:   images,
		orch:     orch,
		msgs:     msgs,
		turns:    state.NewSerializer(),
	}
}

// InProgress satisfies router.FSM.
func (d *driver) InProgress(int64) bool { return true }

// ManagerHandler satisfies router.FSM: plain text goes through the dialogue.
// Documents are not diagnosable; their caption still counts as symptom text.
func (d *driver) ManagerHandler(c tele.Context) error {
	if msg := c.Message(); msg != nil && msg.Document != nil {
		return d.handleDocument(c)
	}
	return d.runTurn(c, func(sess *domain.Session, _ *domain.Farmer) advisor.Event {
		return advisor.EventFromText(sess, c.Text())
	})
}

func (d *driver) handleDocument(c tele.Context) error {
	msg := c.Message()
	if msg != nil && strings.TrimSpace(msg.Caption) != "" {
		caption := msg.Caption
		return d.runTurn(c, func(sess *domain.Session, _ *domain.Farmer) advisor.Event {
			return advisor.EventFromText(sess, caption)
		})
	}
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	profile, err := tghelpers.CurrentFarmer(ctx, d.farmers, strconv.FormatInt(chat.ID, 10))
	if err != nil {
		profile = nil
	}
	return tghelpers.SendText(c, d.msgs.T(profile.Lang(), "document_hint"))
}

// runTurn executes one serialized turn for the chat. Deltas are applied in
// order (profile, images, session); the first storage failure aborts the
// transition and the farmer is asked to resend.
func (d *driver) runTurn(c tele.Context, build eventBuilder) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	return d.turns.Do(chat.ID, func() error {
		start := time.Now()
		ctx := tghelpers.BuildContext(c)
		chatID := strconv.FormatInt(chat.ID, 10)

		profile, err := tghelpers.CurrentFarmer(ctx, d.farmers, chatID)
		if err != nil {
			return d.sendStorageError(c, nil)
		}
		sess, err := d.sessions.Load(ctx, chatID)
		if err != nil {
			return d.sendStorageError(c, profile)
		}

		ev := build(sess, profile)
		if ev == nil {
			return nil
		}

		turn, err := d.orch.Advance(ctx, sess, profile, ev)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownStage) {
				lang := profile.Lang()
				return tghelpers.SendText(c, d.msgs.T(lang, "unknown_stage"),
					&tele.SendOptions{ReplyMarkup: stageKeyboard(d.msgs, lang)})
			}
			logger.ADV.Error("turn failed",
				slog.String("event", "turn"),
				slog.String("status", "fail"),
				slog.String("chat_id", chatID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			return d.sendGenericError(c, profile)
		}

		if turn.ResetProfile {
			if err := d.farmers.Reset(ctx, chatID); err != nil {
				return d.sendStorageError(c, profile)
			}
		}
		if !turn.Patch.IsZero() {
			if _, err := d.farmers.Upsert(ctx, chatID, turn.Patch); err != nil {
				return d.sendStorageError(c, profile)
			}
		}
		for _, rec := range turn.Images {
			rec.ChatID = chatID
			if err := d.images.Append(ctx, &rec); err != nil {
				return d.sendStorageError(c, profile)
			}
		}
		// Session write commits the transition.
		if err := d.sessions.Save(ctx, chatID, turn.Session); err != nil {
			return d.sendStorageError(c, profile)
		}

		if logger.ShouldSampleDebug() {
			logger.ADV.Debug("turn complete",
				slog.String("event", "turn"),
				slog.String("status", "ok"),
				slog.String("chat_id", chatID),
				slog.String("state", string(turn.Session.State)),
				slog.Duration("duration", logger.Took(start)),
			)
		}

		return d.send(c, profile, turn)
	})
}

// send renders the reply. The language honors a patch applied this turn.
func (d *driver) send(c tele.Context, profile *domain.Farmer, turn *advisor.Turn) error {
	lang := profile.Lang()
	if turn.Patch.Language != nil {
		lang = *turn.Patch.Language
	}
	reply := turn.Reply

	markup := linkKeyboard(reply.Links)
	if markup == nil {
		markup = markupFor(reply.Keyboard, d.msgs, lang)
	}

	if reply.Advisory != nil {
		if reply.Text != "" {
			if err := tghelpers.SendText(c, reply.Text); err != nil {
				return err
			}
		}
		merged := profileView(profile, turn.Patch)
		html := renderAdvisory(d.msgs, lang, merged, reply.Advisory, reply.Weather)
		return tghelpers.SendHTML(c, html, markup)
	}

	if reply.Text == "" {
		return nil
	}
	if markup != nil {
		return tghelpers.SendText(c, reply.Text, &tele.SendOptions{ReplyMarkup: markup})
	}
	return tghelpers.SendText(c, reply.Text)
}

func (d *driver) sendStorageError(c tele.Context, profile *domain.Farmer) error {
	return tghelpers.SendText(c, d.msgs.T(profile.Lang(), "storage_error"))
}

func (d *driver) sendGenericError(c tele.Context, profile *domain.Farmer) error {
	return tghelpers.SendText(c, d.msgs.T(profile.Lang(), "error_generic"))
}

// profileView overlays this turn's patch for rendering.
func profileView(profile *domain.Farmer, patch domain.ProfilePatch) *domain.Farmer {
	var merged domain.Farmer
	if profile != nil {
		merged = *profile
	}
	patch.Apply(&merged)
	return &merged
}
