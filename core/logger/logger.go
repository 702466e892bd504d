// Package logger is the structured logging setup shared by the bot: one line
// per event in kv or json form, a fixed set of component loggers and
// per-update metadata carried in context.Context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/storebot/core/buildinfo"
	coreconfig "github.com/m3rciful/storebot/core/config"
)

var (
	mu    sync.Mutex
	out   *lineWriter
	files []io.Closer

	level      slog.LevelVar
	debugRatio = &sampler{}
	forceDebug bool

	// L is the base logger; component loggers below are derived from it.
	L *slog.Logger

	// DB logs database and Redis connection events.
	DB *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// Store logs session store activity.
	Store *slog.Logger
	// FSM logs conversation engine transitions.
	FSM *slog.Logger
	// Commerce logs backend gateway calls.
	Commerce *slog.Logger
	// Ops logs the health endpoint server.
	Ops *slog.Logger
)

func init() {
	// Until InitLogger runs, component loggers write nowhere.
	install(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func install(base *slog.Logger) {
	L = base
	DB = base.With("component", "db")
	TG = base.With("component", "tg")
	MIG = base.With("component", "db.migrate")
	TWire = base.With("component", "tg.wire")
	Store = base.With("component", "store")
	FSM = base.With("component", "fsm")
	Commerce = base.With("component", "commerce")
	Ops = base.With("component", "ops")
}

// InitLogger configures the global logger from cfg.Logging. Calls after the
// first successful one are no-ops until Shutdown.
func InitLogger(cfg *coreconfig.Config) error {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		return nil
	}

	var lc coreconfig.LoggingConfig
	if cfg != nil {
		lc = cfg.Logging
	}
	sinks, closers, err := openSinks(lc)
	if err != nil {
		return err
	}

	level.Set(parseLevel(lc.Level))
	debugRatio.set(sampleRatio(lc.DebugSample))
	forceDebug = envFlag("TRACE") || envFlag("LOG_TRACE")

	out = newLineWriter(sinks...)
	files = closers
	install(slog.New(&lineHandler{
		level:  &level,
		out:    out,
		format: parseFormat(lc),
		order:  parseOrder(lc.KeysOrder),
	}))
	slog.SetDefault(L)

	build := buildinfo.Read()
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", build.Version),
		slog.String("build_commit", build.Commit),
		slog.String("build_time", build.Date),
		slog.String("cfg_profile", profile(lc)),
	)
	return nil
}

// Shutdown drains buffered lines and closes log files.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return nil
	}
	errs := []error{out.Close()}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	out, files = nil, nil
	install(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return errors.Join(errs...)
}

// openSinks always writes to stdout; Dir/BotFile receives every line and
// Dir/ErrorsFile only WARN and above.
func openSinks(lc coreconfig.LoggingConfig) ([]sink, []io.Closer, error) {
	sinks := []sink{newSink(os.Stdout, slog.LevelDebug)}
	var closers []io.Closer
	dir := strings.TrimSpace(lc.Dir)
	if dir == "" {
		return sinks, nil, nil
	}
	targets := []struct {
		name string
		min  slog.Level
	}{
		{strings.TrimSpace(lc.BotFile), slog.LevelDebug},
		{strings.TrimSpace(lc.ErrorsFile), slog.LevelWarn},
	}
	for _, t := range targets {
		if t.name == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, closers, fmt.Errorf("logger: create dir %s: %w", dir, err)
		}
		path := filepath.Join(dir, t.name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, nil, fmt.Errorf("logger: open %s: %w", path, err)
		}
		sinks = append(sinks, newSink(f, t.min))
		closers = append(closers, f)
	}
	return sinks, closers, nil
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// parseFormat picks kv for explicit kv/text/pretty or a debug/dev profile.
func parseFormat(lc coreconfig.LoggingConfig) lineFormat {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	switch profile(lc) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

func parseOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.TrimSpace(lc.Profile); p != "" {
		return strings.ToLower(p)
	}
	return "prod"
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
