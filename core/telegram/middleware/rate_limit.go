package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/logger"
	tghelpers "github.com/m3rciful/storebot/core/telegram/helpers"
)

// RateLimitOptions configures the per-user rate limit. Exclude holds update
// kinds (coreconfig.Update*) that bypass the limit.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware drops updates that arrive from a user sooner than
// Interval after the last accepted one. A dropped callback query is still
// answered so the client clears its loading state.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	clock := &userClock{last: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}
			if clock.admit(user.ID, time.Now(), opts.Interval) {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			logger.Warn(ctx, "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
			)
			if err := tghelpers.Respond(c); err != nil {
				logger.Warn(ctx, "tg", "callback.answer.fail", slog.String("err", err.Error()))
			}
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	case upd.Query != nil:
		return coreconfig.UpdateInlineQuery
	}
	return "other"
}

// userClock tracks the last accepted update per user.
type userClock struct {
	mu   sync.Mutex
	last map[int64]time.Time
}

func (u *userClock) admit(userID int64, now time.Time, interval time.Duration) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if last, ok := u.last[userID]; ok && now.Sub(last) < interval {
		return false
	}
	u.last[userID] = now
	if len(u.last) > 4096 {
		for id, ts := range u.last {
			if now.Sub(ts) >= interval {
				delete(u.last, id)
			}
		}
	}
	return true
}
