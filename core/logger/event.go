package logger

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// LogEvent writes attrs under event through logg, falling back to the
// logger stored in ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to the named component.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// RoundMS rounds d to whole milliseconds; negative values become 0.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether some were cut.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// logged. TRACE=1 in the environment disables sampling.
func ShouldSampleDebug() bool {
	return forceDebug || debugRatio.allow()
}

// sampler passes the first num of every den calls; den 0 passes everything.
type sampler struct {
	num, den atomic.Int64
	calls    atomic.Uint64
}

func (s *sampler) set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	if num > den {
		num = den
	}
	s.num.Store(int64(num))
	s.den.Store(int64(den))
	s.calls.Store(0)
}

func (s *sampler) allow() bool {
	den := s.den.Load()
	if den == 0 {
		return true
	}
	pos := (s.calls.Add(1) - 1) % uint64(den)
	return int64(pos) < s.num.Load()
}

// sampleRatio reads "num/den" or "den" (meaning 1/den). Empty means 1/50;
// anything unparsable or non-positive turns sampling off.
func sampleRatio(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 1, 50
	}
	num, den := 1, 0
	var err error
	if a, b, ok := strings.Cut(spec, "/"); ok {
		if num, err = strconv.Atoi(strings.TrimSpace(a)); err == nil {
			den, err = strconv.Atoi(strings.TrimSpace(b))
		}
	} else {
		den, err = strconv.Atoi(spec)
	}
	if err != nil || num <= 0 || den <= 0 {
		return 0, 0
	}
	return num, den
}
