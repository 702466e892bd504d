package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/internal/commerce"
)

// Gateway is the commerce backend as seen by the handlers.
type Gateway interface {
	ListProducts(ctx context.Context) ([]commerce.Product, error)
	GetProductDetail(ctx context.Context, id int64, includeImage bool) (commerce.Product, error)
	FetchImage(ctx context.Context, ref commerce.ImageRef) ([]byte, error)
	GetOrCreateCart(ctx context.Context, userID int64) (commerce.Cart, error)
	GetCartLines(ctx context.Context, cart commerce.Cart) ([]commerce.CartLine, error)
	CreateCartLine(ctx context.Context, productID, cartID int64, amount decimal.Decimal, fixedPrice *decimal.Decimal) (commerce.CartLine, error)
	RemoveCartLine(ctx context.Context, lineID int64) error
	GetOrCreateCustomer(ctx context.Context, userID int64) (commerce.Customer, error)
	SaveCustomerEmail(ctx context.Context, customerID int64, email string) (commerce.Customer, error)
}

// Store persists one state name per user.
type Store interface {
	Get(ctx context.Context, userID int64) (value string, found bool, err error)
	Set(ctx context.Context, userID int64, value string) error
}

// handler runs one state. matched is false when the event fits no transition.
type handler func(ctx context.Context, ev Event, gw Gateway) (out Outcome, matched bool, err error)

// Engine dispatches events to the handler of the user's current state.
type Engine struct {
	gw       Gateway
	store    Store
	handlers map[State]handler
}

// New builds an engine. It panics if a known state has no handler.
func New(gw Gateway, store Store) *Engine {
	e := &Engine{
		gw:    gw,
		store: store,
		handlers: map[State]handler{
			Start:             handleStart,
			HandleMenu:        handleMenu,
			HandleDescription: handleDescription,
			HandleCart:        handleCart,
			WaitingEmail:      handleEmail,
		},
	}
	mustCover(e.handlers)
	return e
}

func mustCover(handlers map[State]handler) {
	for _, s := range States() {
		if handlers[s] == nil {
			panic(fmt.Sprintf("conversation: no handler for state %s", s))
		}
	}
}

// Deliver shows an outcome to the user. The engine persists the next state
// only after it returns nil.
type Deliver func(ctx context.Context, out Outcome) error

// Handle processes one event to completion. A matched event is delivered
// first and its next state persisted afterwards; if the handler, deliver or
// the store fails, the stored state is left as it was. deliver may be nil.
func (e *Engine) Handle(ctx context.Context, ev Event, deliver Deliver) (Outcome, error) {
	start := time.Now()
	current, err := e.current(ctx, ev)
	if err != nil {
		logger.Error(ctx, "fsm", "state.load.fail",
			slog.Int64("user_id", ev.UserID),
			slog.String("err", err.Error()),
		)
		return Outcome{}, err
	}

	out, matched, err := e.handlers[current](ctx, ev, e.gw)
	if err != nil {
		logger.Error(ctx, "fsm", "handler.fail",
			slog.String("state", current.String()),
			slog.String("err", err.Error()),
			slog.Int("elapsed_ms", elapsedMS(start)),
		)
		return Outcome{}, fmt.Errorf("handle %s: %w", current, err)
	}
	if !matched {
		logger.Debug(ctx, "fsm", "event.ignored",
			slog.String("state", current.String()),
			slog.String("payload", logger.SanitizeLimit(ev.Payload, 64)),
		)
		return Outcome{Next: current, Ignored: true}, nil
	}

	if deliver != nil {
		if err := deliver(ctx, out); err != nil {
			logger.Warn(ctx, "fsm", "deliver.fail",
				slog.String("state", current.String()),
				slog.String("next_state", out.Next.String()),
				slog.String("err", err.Error()),
			)
			return Outcome{}, fmt.Errorf("deliver %s: %w", current, err)
		}
	}

	if err := e.store.Set(ctx, ev.UserID, out.Next.String()); err != nil {
		logger.Error(ctx, "fsm", "state.save.fail",
			slog.String("state", current.String()),
			slog.String("next_state", out.Next.String()),
			slog.String("err", err.Error()),
		)
		return Outcome{}, fmt.Errorf("persist state: %w", err)
	}
	logger.Info(ctx, "fsm", "transition",
		slog.String("state", current.String()),
		slog.String("next_state", out.Next.String()),
		slog.Int("messages", len(out.Messages)),
		slog.Int("elapsed_ms", elapsedMS(start)),
	)
	return out, nil
}

// Peek returns the stored state of a user without changing it.
func (e *Engine) Peek(ctx context.Context, userID int64) (State, bool, error) {
	raw, found, err := e.store.Get(ctx, userID)
	if err != nil {
		return Start, false, fmt.Errorf("load state: %w", err)
	}
	if !found {
		return Start, false, nil
	}
	s, err := ParseState(raw)
	return s, true, err
}

func (e *Engine) current(ctx context.Context, ev Event) (State, error) {
	if ev.Start {
		return Start, nil
	}
	s, _, err := e.Peek(ctx, ev.UserID)
	return s, err
}

func elapsedMS(start time.Time) int {
	return int(logger.RoundMS(time.Since(start)).Milliseconds())
}
