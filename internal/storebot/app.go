// Package storebot wires the storefront bot: configuration, the session
// store, the commerce gateway, the conversation engine and Telegram routes.
package storebot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/bootstrap"
	corecmd "github.com/m3rciful/storebot/core/cmd"
	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/logger"
	coretelegram "github.com/m3rciful/storebot/core/telegram"
	"github.com/m3rciful/storebot/core/telegram/router"
	tgsender "github.com/m3rciful/storebot/core/telegram/sender"
	"github.com/m3rciful/storebot/core/telegram/state"
	"github.com/m3rciful/storebot/internal/commerce"
	"github.com/m3rciful/storebot/internal/conversation"
)

// App holds the initialized collaborators of a running bot.
type App struct {
	cfg       *Config
	store     state.Store
	gateway   *commerce.Gateway
	engine    *conversation.Engine
	transport *Transport
	ops       *OpsServer

	// APIURL overrides the Telegram Bot API endpoint.
	APIURL string
}

// Deps lets callers replace infrastructure, mainly in tests.
type Deps struct {
	Bootstrap  func(bootstrap.Options) (*bootstrap.Result, error)
	HTTPClient *http.Client
}

// New bootstraps the logger and session store and builds the gateway and engine.
func New(cfg *Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storebot: nil config")
	}
	run := deps.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}
	res, err := run(bootstrap.Options{
		Config: &cfg.Config,
		Session: bootstrap.SessionOptions{
			Backend:  cfg.Session.Backend,
			Redis:    cfg.Session.Redis,
			Postgres: cfg.Session.Postgres,
		},
	})
	if err != nil {
		return nil, err
	}

	gw, err := commerce.New(cfg.Strapi, commerce.Options{HTTPClient: deps.HTTPClient})
	if err != nil {
		_ = res.Store.Close()
		return nil, fmt.Errorf("%w: %v", coreconfig.ErrConfiguration, err)
	}
	engine := conversation.New(gw, res.Store)

	app := &App{
		cfg:       cfg,
		store:     res.Store,
		gateway:   gw,
		engine:    engine,
		transport: NewTransport(engine),
	}
	if cfg.Ops.Listen != "" {
		app.ops = NewOpsServer(cfg.Ops.Listen, res.Store)
	}
	return app, nil
}

// Registry declares the bot commands.
func (a *App) Registry() *coretelegram.Registry {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", coretelegram.Command{
		Handler:     a.transport.Start,
		Description: "Open the product menu",
	})
	reg.RegisterCommand("/session", coretelegram.Command{
		Handler:     a.transport.Session,
		Description: "Show the stored conversation state of a user",
		AdminOnly:   true,
		Hidden:      true,
	})
	return reg
}

// TelegramRunOptions composes middlewares and routes for the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := &a.cfg.Config
	reg := a.Registry()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return c.Send("This command is for administrators only.")
		},
	})
	routes = append(routes, router.CallbackRoute(router.CallbackOptions{FSM: a.transport}))
	routes = append(routes, router.TextRoutes(a.transport, reg, router.TextOptions{})...)

	return coretelegram.RunOptions{
		Config:            core,
		Registry:          reg,
		APIURL:            a.APIURL,
		DispatcherOptions: tgsender.Options{MaxRetries: 2},
		Middlewares:       coretelegram.DefaultMiddlewares(core, nil),
		Routes:            routes,
		OnStart: func(context.Context, coretelegram.Runtime) error {
			if a.ops != nil {
				a.ops.Start()
			}
			return nil
		},
		OnStop: func(context.Context, coretelegram.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Close stops the ops server and releases the session store.
func (a *App) Close() error {
	var errs []error
	if a.ops != nil {
		if err := a.ops.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("ops shutdown: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && !errors.Is(err, state.ErrStoreClosed) {
			errs = append(errs, fmt.Errorf("session store close: %w", err))
		}
	}
	logger.Store.Info("session store closed", slog.String("event", "store.close"))
	return errors.Join(errs...)
}

// Main runs the bot until SIGINT or SIGTERM.
func Main() error {
	return corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			c, ok := cfg.(*Config)
			if !ok {
				return nil, fmt.Errorf("storebot: unexpected config type %T", cfg)
			}
			return New(c, Deps{})
		},
	})
}
