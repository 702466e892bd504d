// Package sender runs outbound Bot API calls with bounded retries.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/telegram/netutil"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Options controls retries of outbound Telegram calls.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single call, retries and flood
	// waits included.
	MaxDuration time.Duration
}

// Dispatcher executes calls in the caller's goroutine. Network failures are
// retried with linear backoff; a 429 is retried after the advertised
// retry_after when it fits in MaxDuration.
type Dispatcher struct {
	opts     Options
	failures atomic.Uint64
}

// NewDispatcher fills zero options with defaults.
func NewDispatcher(opts Options) *Dispatcher {
	opts.MaxRetries = max(opts.MaxRetries, 0)
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	return &Dispatcher{opts: opts}
}

// Failures returns the number of calls that failed after all attempts.
func (d *Dispatcher) Failures() uint64 {
	return d.failures.Load()
}

// Do runs call, retrying while the error is transient. call must be safe to
// repeat.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, call func() error) error {
	if call == nil {
		return errors.New("telegram sender: nil call")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attrs := []slog.Attr{slog.String("action", action), slog.String("endpoint", endpoint)}

	var err error
	attempt := 0
	for {
		attempt++
		if err = call(); err == nil {
			logger.Debug(ctx, "tg.sender", "send.ok", append(attrs,
				slog.Int("attempt", attempt),
				slog.Duration("duration", time.Since(start)),
			)...)
			return nil
		}
		wait, retry := d.backoff(err, attempt, time.Since(start))
		if !retry {
			break
		}
		logger.Debug(ctx, "tg.sender", "send.retry", append(attrs,
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.String("err_code", Classify(err)),
		)...)
		if !sleep(callCtx, wait) {
			err = fmt.Errorf("%w (last error: %v)", callCtx.Err(), err)
			break
		}
	}

	d.failures.Add(1)
	logger.Error(ctx, "tg.sender", "send.fail", append(attrs,
		slog.Int("attempts", attempt),
		slog.String("err", Redact(err)),
		slog.String("err_code", Classify(err)),
		slog.Duration("duration", time.Since(start)),
	)...)
	return err
}

// backoff decides whether attempt may be followed by another one and how
// long to wait first.
func (d *Dispatcher) backoff(err error, attempt int, elapsed time.Duration) (time.Duration, bool) {
	if attempt > d.opts.MaxRetries {
		return 0, false
	}
	var wait time.Duration
	var flood tele.FloodError
	switch {
	case errors.As(err, &flood):
		if flood.RetryAfter <= 0 {
			return 0, false
		}
		wait = time.Duration(flood.RetryAfter) * time.Second
	case netutil.ShouldRetry(err):
		wait = d.opts.RetryBackoff * time.Duration(attempt)
	default:
		return 0, false
	}
	return wait, elapsed+wait < d.opts.MaxDuration
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Classify maps a send error to a short code for logs.
func Classify(err error) string {
	var flood tele.FloodError
	var apiErr *tele.Error
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &apiErr) && apiErr.Code >= 500:
		return "http_5xx"
	case errors.As(err, &apiErr) && apiErr.Code >= 400:
		return "http_4xx"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case netutil.ShouldRetry(err):
		return "network"
	}
	return "unknown"
}

// Redact strips bot tokens from error text.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
