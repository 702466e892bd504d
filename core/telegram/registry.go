package telegram

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/logger"
)

// Command is a slash command exposed by the bot.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run only for the configured admin and never show up
	// in the client menu.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Registry maps slash commands to their definitions. It is filled during
// wiring and read-only afterwards.
type Registry struct {
	commands map[string]Command
	aliases  map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// RegisterCommand adds cmd under name ("/start"). Invalid or duplicate
// registrations are logged and skipped.
func (r *Registry) RegisterCommand(name string, cmd Command) {
	key := commandKey(name)
	reason := ""
	switch {
	case !strings.HasPrefix(name, "/") || key == "/":
		reason = "no_slash_prefix"
	case cmd.Handler == nil || cmd.Description == "":
		reason = "invalid"
	case r.has(key):
		reason = "duplicate"
	}
	if reason != "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", reason),
		)
		return
	}
	r.commands[key] = cmd
	for _, alias := range cmd.Aliases {
		if a := commandKey(alias); !r.has(a) {
			r.aliases[a] = key
		}
	}
}

func (r *Registry) has(key string) bool {
	_, cmd := r.commands[key]
	_, alias := r.aliases[key]
	return cmd || alias
}

// Commands returns the registered commands keyed by "/name".
func (r *Registry) Commands() map[string]Command {
	out := make(map[string]Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// LookupCommand resolves a command name or alias, with or without the
// leading slash, to its canonical key.
func (r *Registry) LookupCommand(name string) (string, Command, bool) {
	key := commandKey(name)
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	cmd, ok := r.commands[key]
	if !ok {
		return "", Command{}, false
	}
	return key, cmd, true
}

// MenuCommands lists the commands shown in the client menu, sorted by name.
// Telegram expects names without the slash.
func (r *Registry) MenuCommands() []tele.Command {
	var list []tele.Command
	for key, cmd := range r.commands {
		if cmd.Hidden || cmd.AdminOnly {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(key, "/"), Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return strings.Compare(a.Text, b.Text) })
	return list
}

// commandKey lowercases name, drops a "@botname" suffix and adds the slash.
func commandKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return "/" + strings.TrimPrefix(name, "/")
}

// PublishCommands uploads the menu commands to Telegram.
func PublishCommands(bot *tele.Bot, reg *Registry) error {
	return bot.SetCommands(reg.MenuCommands())
}
