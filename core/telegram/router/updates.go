package router

import (
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/storebot/core/telegram"
	"github.com/m3rciful/storebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/storebot/core/telegram/helpers"
)

// FSM is the conversation handler that receives button presses and free text.
type FSM interface {
	ManagerHandler(c tele.Context) error
}

// CallbackOptions configures the callback route.
type CallbackOptions struct {
	FSM FSM
	// NotFound answers callbacks when no FSM is wired.
	NotFound tele.HandlerFunc
}

// CallbackRoute answers the callback query and hands the press to the FSM.
func CallbackRoute(opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, _ := callbacks.ParseCallbackData(cb)
		action, _ := callbacks.Decode(key)
		name := "callback." + handlerName(action)
		keyAttr := slog.String("cb_key", key)

		// Clears the client-side spinner whatever the handler does next.
		_ = tghelpers.Respond(c)

		if opts.FSM != nil {
			return handle(c, name, opts.FSM.ManagerHandler, keyAttr)
		}
		if opts.NotFound != nil {
			return handle(c, name, opts.NotFound, keyAttr, slog.String("reason", "not_found"))
		}
		summarize(c, name, time.Now(), "skip", nil, keyAttr, slog.String("reason", "not_found"))
		return nil
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}

// TextOptions configures the text route.
type TextOptions struct {
	// UnknownText handles text when no FSM is wired.
	UnknownText tele.HandlerFunc
}

// TextRoutes routes plain text. Text starting with a slash that names a
// registered command runs that command; anything else goes to the FSM.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		text := strings.TrimSpace(c.Text())
		if reg != nil && strings.HasPrefix(text, "/") {
			word, _, _ := strings.Cut(text, " ")
			if key, cmd, ok := reg.LookupCommand(word); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handle(c, handlerName(key), cmd.Handler)
			}
		}
		switch {
		case fsm != nil:
			return handle(c, "fsm", fsm.ManagerHandler)
		case opts.UnknownText != nil:
			return handle(c, "unknown_text", opts.UnknownText)
		}
		summarize(c, "unknown_text", time.Now(), "skip", nil)
		return nil
	}
	return []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
}
