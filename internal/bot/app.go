// Package bot is the Telegram presentation layer: it wires the dialogue
// driver, commands, callbacks and media routes onto the core framework and
// owns the process lifecycle hooks (digest loop, ops server).
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/agrobot/core/bootstrap"
	"github.com/m3rciful/agrobot/core/buildinfo"
	coredatabase "github.com/m3rciful/agrobot/core/database"
	"github.com/m3rciful/agrobot/core/logger"
	coretelegram "github.com/m3rciful/agrobot/core/telegram"
	"github.com/m3rciful/agrobot/core/telegram/commands"
	tghelpers "github.com/m3rciful/agrobot/core/telegram/helpers"
	"github.com/m3rciful/agrobot/core/telegram/middleware"
	"github.com/m3rciful/agrobot/core/telegram/router"
	"github.com/m3rciful/agrobot/internal/advisor"
	"github.com/m3rciful/agrobot/internal/config"
	"github.com/m3rciful/agrobot/internal/digest"
	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/i18n"
	"github.com/m3rciful/agrobot/internal/ops"
	"github.com/m3rciful/agrobot/internal/service"
	"github.com/m3rciful/agrobot/internal/storage"
	"github.com/m3rciful/agrobot/internal/tools"

	tele "gopkg.in/telebot.v4"
)

// App is the assembled bot: storage, services, tool adapters, orchestrator
// and the turn driver, ready to hand run options to the core runner.
type App struct {
	cfg       *config.Config
	store     storage.Store
	msgs      *i18n.Catalog
	farmers   *service.Farmers
	weather   *tools.WeatherClient
	driver    *driver
	ops       *ops.Server
	startedAt time.Time

	// sendErrors reads the dispatcher counter; nil until onStart.
	sendErrors func() uint64
}

// NewApp bootstraps infrastructure and wires the application graph.
func NewApp(cfg *config.Config) (*App, error) {
	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	msgs, err := i18n.Load()
	if err != nil {
		return nil, fmt.Errorf("load locales: %w", err)
	}

	weather := tools.NewWeatherClient(cfg.Weather)
	search := tools.NewSearchClient(cfg.Search)
	llm := tools.NewAdvisoryClient(cfg.LLM)
	diagnosis := tools.NewDiagnosisClient(cfg.LLM)

	orch := advisor.New(cfg.Advisor, advisor.Deps{
		Weather:   weather,
		Search:    search,
		Advisory:  llm,
		Diagnosis: diagnosis,
		Messages:  msgs,
	})

	farmers := service.NewFarmers(store)
	sessions := service.NewSessions(store)
	images := service.NewImages(store)

	return &App{
		cfg:       cfg,
		store:     store,
		msgs:      msgs,
		farmers:   farmers,
		weather:   weather,
		driver:    newDriver(farmers, sessions, images, orch, msgs),
		ops:       ops.New(cfg.Ops, store),
		startedAt: time.Now(),
	}, nil
}

// buildStore runs the bootstrap pipeline for the configured backend. The
// memory backend skips the database entirely; sqlite gets its schema through
// an initializer since versioned migrations cover postgres only.
func buildStore(cfg *config.Config) (storage.Store, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Database.Backend), "memory") {
		if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
			return nil, fmt.Errorf("logger init: %w", err)
		}
		logger.DB.Warn("memory storage selected; nothing will survive a restart")
		return storage.NewMemoryStore(), nil
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	var initializers []bootstrap.Initializer
	if cfg.Database.ResolveBackend() == coredatabase.BackendSQLite {
		initializers = append(initializers, bootstrap.InitializerFunc(func(ctx context.Context, s bootstrap.Storage) error {
			db, ok := s.(*sqlx.DB)
			if !ok {
				return fmt.Errorf("sqlite initializer: unexpected storage %T", s)
			}
			return storage.InitSQLiteSchema(ctx, db)
		}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, init := range initializers {
		if err := init.Init(ctx, res.DB); err != nil {
			_ = res.DB.Close()
			return nil, fmt.Errorf("storage init: %w", err)
		}
	}

	return storage.NewSQLStore(res.DB), nil
}

// TelegramRunOptions satisfies the core runner contract.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.driver.registerCommands(reg)
	a.driver.registerCallbacks(reg)
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.statsHandler,
		Description: "Runtime counters",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.SetCallbackNotFound(a.driver.UnknownCallback())
	reg.SetTextFallback(a.driver.UnknownText())

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Core.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: a.driver.UnknownCallback(),
	}))
	routes = append(routes, router.TextRoutes(a.driver, reg, router.TextOptions{
		UnknownText:     a.driver.UnknownText(),
		UnknownDocument: a.driver.UnknownDocument(),
	})...)
	routes = append(routes, a.driver.mediaRoutes()...)

	mws := coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil)
	if allowed := a.cfg.Access.AllowedSet(); allowed != nil {
		mws = append(mws, coretelegram.Middleware{
			Name: "allowed_users",
			Use: middleware.AllowedUsersMiddleware(middleware.AllowedOptions{
				Allowed:  allowed,
				OnReject: a.rejectNotAllowed,
			}),
		})
	}

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: mws,
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.ops.Start()

	if rt.Dispatcher != nil {
		a.sendErrors = rt.Dispatcher.ErrorCount
		a.ops.SetSendErrors(rt.Dispatcher.ErrorCount)
	}

	if rt.Bot != nil {
		bot := rt.Bot
		send := func(chatID int64, text string) error {
			_, err := bot.Send(&tele.Chat{ID: chatID}, text)
			return err
		}
		dg := digest.New(a.cfg.Digest, a.farmers, a.weather, a.msgs, send)
		go dg.Run(ctx)
	}
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.ops.Shutdown(shutdownCtx); err != nil {
		logger.OPS.Warn("ops shutdown failed", "err", err.Error())
	}
	return a.store.Close()
}

func (a *App) rejectNotAllowed(c tele.Context) error {
	return tghelpers.SendText(c, a.msgs.T(domain.LangEnglish, "not_allowed"))
}

// statsHandler answers the hidden admin command. Operator-facing, so the
// text stays English and skips the catalog.
func (a *App) statsHandler(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	located, err := a.store.ListProfilesWithCoords(ctx, 0)
	if err != nil {
		return tghelpers.SendText(c, "stats unavailable: "+err.Error())
	}
	var sendErrs uint64
	if a.sendErrors != nil {
		sendErrs = a.sendErrors()
	}
	backend := strings.TrimSpace(a.cfg.Database.Backend)
	if backend == "" {
		backend = a.cfg.Database.ResolveBackend()
	}
	return tghelpers.SendText(c, fmt.Sprintf(
		"agrobot %s (%s)\nuptime: %s\nstorage: %s\nfarmers with location: %d\nsend errors: %d",
		buildinfo.Version, buildinfo.Commit,
		time.Since(a.startedAt).Round(time.Second),
		backend,
		len(located), sendErrs,
	))
}
