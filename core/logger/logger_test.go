package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture runs fn against a handler writing to an in-memory sink and
// returns the emitted lines.
func capture(t *testing.T, format lineFormat, fn func(*slog.Logger)) []string {
	t.Helper()
	buf := &bytes.Buffer{}
	w := newLineWriter(newSink(buf, slog.LevelDebug))
	fn(slog.New(&lineHandler{level: slog.LevelDebug, out: w, format: format, order: defaultKeyOrder}))
	require.NoError(t, w.Close())
	return strings.Split(strings.TrimSpace(buf.String()), "\n")
}

func TestKVLineOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	lines := capture(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "app"), slog.LevelInfo, "test.event",
			slog.String("status", "OK"),
			slog.String("cause", "unit"),
		)
	})
	require.Len(t, lines, 1)
	tokens := strings.Split(lines[0], " ")
	want := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	require.GreaterOrEqual(t, len(tokens), len(want))
	for i, prefix := range want {
		assert.True(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want prefix %s", i, tokens[i], prefix)
	}
	assert.Equal(t, "cause=unit", tokens[len(tokens)-1])
}

func TestJSONLineCompactsRID(t *testing.T) {
	ctx := WithRID(context.Background(), BuildRID(100, 200, 300))
	lines := capture(t, formatJSON, func(l *slog.Logger) {
		l.LogAttrs(ctx, slog.LevelWarn, "", slog.String("event", "json.event"), slog.Duration("duration", 1500*time.Microsecond))
	})
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], `{"ts":`))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "WARN", got["level"])
	assert.Equal(t, "app", got["component"])
	assert.Equal(t, "2s.5k.8c", got["rid"])
	assert.Equal(t, "100:200:300", got["rid_full"])
	assert.EqualValues(t, 2, got["duration_ms"])
	assert.Contains(t, got, "ts_unix_nano")
}

func TestFieldNormalization(t *testing.T) {
	lines := capture(t, formatKV, func(l *slog.Logger) {
		l.WithGroup("req").Info("fallback message",
			slog.String("empty", ""),
			slog.Any("err", errors.New("boom")),
			slog.Duration("wait", 20*time.Millisecond),
			slog.String("text", "two words"),
		)
		l.Info("", slog.String("event", "x"), slog.String("outcome", "weird"))
	})
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "event=\"fallback message\"")
	assert.Contains(t, lines[0], "req.err=boom")
	assert.Contains(t, lines[0], "req.wait_ms=20")
	assert.Contains(t, lines[0], `req.text="two words"`)
	assert.NotContains(t, lines[0], "req.empty")
	assert.NotContains(t, lines[1], "outcome=")
}

func TestLevelRoutedSinks(t *testing.T) {
	all, errs := &bytes.Buffer{}, &bytes.Buffer{}
	w := newLineWriter(newSink(all, slog.LevelDebug), newSink(errs, slog.LevelWarn))
	l := slog.New(&lineHandler{level: slog.LevelInfo, out: w, format: formatKV, order: defaultKeyOrder})
	l.Debug("hidden")
	l.Info("info.line")
	l.Error("error.line")
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	assert.Equal(t, 2, strings.Count(all.String(), "\n"))
	assert.NotContains(t, all.String(), "hidden")
	assert.NotContains(t, errs.String(), "info.line")
	assert.Contains(t, errs.String(), "error.line")
	assert.ErrorIs(t, w.Write(slog.LevelInfo, []byte("late\n")), errWriterClosed)
}

func TestSampler(t *testing.T) {
	s := &sampler{}
	s.set(sampleRatio("2/5"))
	var passed int
	for i := 0; i < 10; i++ {
		if s.allow() {
			passed++
		}
	}
	assert.Equal(t, 4, passed)

	assert.Equal(t, [2]int{1, 50}, ratio(sampleRatio("")))
	assert.Equal(t, [2]int{1, 10}, ratio(sampleRatio("10")))
	assert.Equal(t, [2]int{0, 0}, ratio(sampleRatio("off")))
	s.set(sampleRatio("0"))
	assert.True(t, s.allow())
}

func ratio(n, d int) [2]int { return [2]int{n, d} }

func TestContextMeta(t *testing.T) {
	ctx := WithHandler(WithUpdateMeta(context.Background(), 1, 2, 3), "start")
	assert.Equal(t, 1, UpdateIDFrom(ctx))
	assert.Equal(t, int64(2), UserIDFrom(ctx))
	assert.Equal(t, int64(3), ChatIDFrom(ctx))
	assert.Equal(t, "start", HandlerFrom(ctx))
	assert.Empty(t, RIDFrom(ctx))
	assert.Same(t, L, FromContext(ctx))

	l := Component("x")
	assert.Same(t, l, FromContext(WithLogger(ctx, l)))
}

func TestRIDAndSanitize(t *testing.T) {
	assert.Equal(t, "a.b.c", CompactRID("10:11:12"))
	assert.Equal(t, "rid-1", CompactRID("rid-1"))
	assert.Equal(t, "1:x:3", CompactRID("1:x:3"))

	assert.Equal(t, "ab\tc", SanitizeLimit("a\x00b\tc\u200b", 10))
	assert.Equal(t, "héll", SanitizeLimit("héllo", 4))
	assert.Empty(t, SanitizeLimit("abc", 0))
}
