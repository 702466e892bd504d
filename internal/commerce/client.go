package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/m3rciful/storebot/core/logger"
)

const maxImageBytes = 10 << 20

// client performs authenticated JSON calls against the Strapi REST API.
type client struct {
	base    *url.URL
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func newClient(cfg Config, hc *http.Client) (*client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse strapi url: %w", err)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	// The configured timeout applies even to a caller-provided client.
	withTimeout := *hc
	withTimeout.Timeout = cfg.Timeout

	c := &client{base: base, token: cfg.Token, http: &withTimeout}
	if cfg.Breaker.FailureThreshold > 0 {
		threshold := cfg.Breaker.FailureThreshold
		c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "strapi",
			MaxRequests: 1,
			Timeout:     cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Commerce.Warn("breaker state changed",
					slog.String("event", "breaker.state"),
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
			// Only backend outages count; a 404 or a rejected email is a healthy answer.
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, ErrBackendUnavailable)
			},
		})
	}
	return c, nil
}

// apiURL builds <base>/api/<segments...>?<query>.
func (c *client) apiURL(query url.Values, segments ...string) string {
	u := *c.base
	u.Path = path.Join(append([]string{"/", u.Path, "api"}, segments...)...)
	u.RawQuery = query.Encode()
	return u.String()
}

// call sends a JSON request and decodes a 2xx body into out (when non-nil).
func (c *client) call(ctx context.Context, op, method, target string, payload, out any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return unavailable(op, fmt.Errorf("encode request: %w", err))
		}
		body = b
	}
	raw, err := c.execute(ctx, op, func() ([]byte, error) {
		return c.roundTrip(ctx, op, method, target, body, true, 0)
	})
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return unavailable(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// download fetches a media file relative to the base URL without the API token.
// Any non-2xx answer, 404 included, is reported as the backend being unavailable.
func (c *client) download(ctx context.Context, op, ref string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || ref == "" {
		return nil, unavailable(op, fmt.Errorf("invalid media url %q", ref))
	}
	target := c.base.ResolveReference(u).String()
	raw, err := c.execute(ctx, op, func() ([]byte, error) {
		return c.roundTrip(ctx, op, http.MethodGet, target, nil, false, maxImageBytes)
	})
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnavailable {
		cp := *e
		cp.Kind = KindUnavailable
		return nil, &cp
	}
	return raw, err
}

func (c *client) execute(ctx context.Context, op string, fn func() ([]byte, error)) ([]byte, error) {
	if c.breaker == nil {
		return fn()
	}
	raw, err := c.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logger.Warn(ctx, "commerce", "breaker.reject",
			slog.String("op", op),
			slog.String("breaker", c.breaker.State().String()),
		)
		return nil, unavailable(op, err)
	}
	return raw, err
}

func (c *client) roundTrip(ctx context.Context, op, method, target string, body []byte, auth bool, limit int64) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, unavailable(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn(ctx, "commerce", "request.fail",
			slog.String("op", op),
			slog.String("method", method),
			slog.String("err", err.Error()),
			slog.Int("elapsed_ms", int(logger.RoundMS(time.Since(start)).Milliseconds())),
		)
		return nil, unavailable(op, err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, unavailable(op, fmt.Errorf("read response: %w", err))
	}
	logger.Debug(ctx, "commerce", "request.done",
		slog.String("op", op),
		slog.String("method", method),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("elapsed_ms", int(logger.RoundMS(time.Since(start)).Milliseconds())),
	)
	if limit > 0 && int64(len(raw)) > limit {
		return nil, unavailable(op, fmt.Errorf("response exceeds %d bytes", limit))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp.StatusCode, raw)
	}
	return raw, nil
}

// statusError maps a non-2xx response to a typed failure.
func statusError(op string, status int, body []byte) *Error {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	e := &Error{Kind: KindUnavailable, Op: op, Status: status, Message: env.Error.Message}
	switch {
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusBadRequest && env.Error.Name == "ValidationError":
		e.Kind = KindValidation
	}
	return e
}
