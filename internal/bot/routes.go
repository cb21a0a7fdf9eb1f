package bot

import (
	"github.com/m3rciful/agrobot/core/logger"
	tg "github.com/m3rciful/agrobot/core/telegram"
	"github.com/m3rciful/agrobot/core/telegram/callbacks"
	"github.com/m3rciful/agrobot/core/telegram/commands"
	"github.com/m3rciful/agrobot/core/telegram/middleware"
	"github.com/m3rciful/agrobot/core/telegram/ui"
	"github.com/m3rciful/agrobot/internal/advisor"
	"github.com/m3rciful/agrobot/internal/domain"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

var _ ui.FallbackProvider = (*driver)(nil)

// UnknownText satisfies ui.FallbackProvider. The dialogue claims every text
// update, so this fires only when no FSM is attached to the router.
func (d *driver) UnknownText() tele.HandlerFunc {
	return d.ManagerHandler
}

// UnknownDocument routes file attachments to the caption-or-hint path.
func (d *driver) UnknownDocument() tele.HandlerFunc {
	return d.handleDocument
}

// UnknownCallback answers buttons from retired keyboards by re-asking the
// question the dialogue is waiting on.
func (d *driver) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		logger.TG.Debug("stale callback",
			slog.String("event", "callback"),
			slog.String("key", callbacks.CallbackKey(c)),
		)
		return d.runTurn(c, func(*domain.Session, *domain.Farmer) advisor.Event {
			return advisor.CommandEvent{Name: "start"}
		})
	}
}

// registerCommands wires the five public commands. Each one is a thin
// adapter that feeds a command event into the dialogue.
func (d *driver) registerCommands(reg *tg.Registry) {
	command := func(name string) tele.HandlerFunc {
		return func(c tele.Context) error {
			return d.runTurn(c, func(*domain.Session, *domain.Farmer) advisor.Event {
				return advisor.CommandEvent{Name: name}
			})
		}
	}

	reg.RegisterCommand("/start", commands.Command{
		Handler:     command("start"),
		Description: "Set up or resume your farm profile",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     command("help"),
		Description: "What this bot can do",
	})
	reg.RegisterCommand("/profile", commands.Command{
		Handler:     command("profile"),
		Description: "Show your farm profile",
	})
	reg.RegisterCommand("/location", commands.Command{
		Handler:     command("location"),
		Description: "Update your farm location",
	})
	reg.RegisterCommand("/reset", commands.Command{
		Handler:     command("reset"),
		Description: "Start over (keeps your language)",
	})
}

// registerCallbacks wires the inline keyboard actions.
func (d *driver) registerCallbacks(reg *tg.Registry) {
	mustRegister(reg, cbLanguage, func(c tele.Context) error {
		payload := callbacks.CallbackPayload(c)
		return d.runTurn(c, func(*domain.Session, *domain.Farmer) advisor.Event {
			return advisor.ProfileFieldEvent{Field: domain.FieldLanguage, Value: payload}
		})
	})

	mustRegister(reg, cbStage, func(c tele.Context) error {
		payload := callbacks.CallbackPayload(c)
		return d.runTurn(c, func(*domain.Session, *domain.Farmer) advisor.Event {
			// Validation happens in Advance; unknown values bounce back
			// with the stage keyboard and never touch stored state.
			return advisor.StageSelectedEvent{Stage: domain.Stage(payload)}
		})
	})

	mustRegister(reg, cbMenu, func(c tele.Context) error {
		kind, ok := domain.ParseMenuKind(callbacks.CallbackPayload(c))
		if !ok {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		}
		return d.runTurn(c, func(*domain.Session, *domain.Farmer) advisor.Event {
			return advisor.MenuEvent{Kind: kind}
		})
	})
}

func mustRegister(reg *tg.Registry, key string, h tele.HandlerFunc) {
	if err := reg.RegisterCallback(key, h); err != nil {
		logger.TWire.Error("callback registration failed",
			slog.String("key", key),
			slog.String("err", err.Error()),
		)
	}
}

// mediaRoutes handles GPS pins and photos, which bypass the text router.
func (d *driver) mediaRoutes() []tg.Route {
	onLocation := func(c tele.Context) error {
		msg := c.Message()
		if msg == nil || msg.Location == nil {
			return nil
		}
		lat := float64(msg.Location.Lat)
		lon := float64(msg.Location.Lng)
		return d.runTurn(c, func(*domain.Session, *domain.Farmer) advisor.Event {
			return advisor.LocationEvent{Point: &domain.GeoPoint{Lat: lat, Lon: lon}}
		})
	}

	onPhoto := func(c tele.Context) error {
		msg := c.Message()
		if msg == nil || msg.Photo == nil {
			return nil
		}
		photo := msg.Photo
		url, err := photoDataURL(c, photo.FileID)
		if err != nil {
			// Diagnosis degrades to caption-only; the record still lands.
			logger.TG.Warn("photo download failed",
				slog.String("event", "photo"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			url = ""
		}
		return d.runTurn(c, func(*domain.Session, *domain.Farmer) advisor.Event {
			return advisor.SymptomPhotoEvent{
				FileRef:        photo.UniqueID,
				ProviderFileID: photo.FileID,
				PhotoURL:       url,
				Caption:        msg.Caption,
			}
		})
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}

	return []tg.Route{
		{Endpoint: tele.OnLocation, Handler: wrap(onLocation)},
		{Endpoint: tele.OnPhoto, Handler: wrap(onPhoto)},
	}
}
