package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/telegram/callbacks"
	"github.com/m3rciful/storebot/internal/commerce"
)

// Callback data understood by the handlers.
const (
	ActionCart      = "cart"
	ActionCancel    = "cancel"
	ActionAddToCart = "add_to_cart"
	ActionRemove    = "remove_item"
	ActionPayment   = "payment"
)

// Telegram limits: caption and message text in characters, and buttons per
// inline keyboard.
const (
	maxCaption = 1024
	maxText    = 4096
	maxButtons = 100
)

var defaultAmount = decimal.NewFromInt(1)

func handleStart(ctx context.Context, ev Event, gw Gateway) (Outcome, bool, error) {
	msg, err := menuMessage(ctx, gw, ev.Start)
	if err != nil {
		return Outcome{}, false, err
	}
	return Outcome{Messages: []Message{msg}, Next: HandleMenu}, true, nil
}

func handleMenu(ctx context.Context, ev Event, gw Gateway) (Outcome, bool, error) {
	if strings.TrimSpace(ev.Payload) == ActionCart {
		return showCart(ctx, ev, gw)
	}
	id, err := commerce.ParseID(strings.TrimSpace(ev.Payload))
	if err != nil {
		return Outcome{}, false, nil
	}
	msg, err := productMessage(ctx, gw, id)
	if err != nil {
		return Outcome{}, false, err
	}
	return Outcome{Messages: []Message{msg}, Next: HandleDescription}, true, nil
}

func handleDescription(ctx context.Context, ev Event, gw Gateway) (Outcome, bool, error) {
	action, args := callbacks.Decode(ev.Payload)
	switch action {
	case ActionCancel:
		return backToMenu(ctx, gw)
	case ActionCart:
		return showCart(ctx, ev, gw)
	case ActionAddToCart:
		productID, err := callbacks.ArgInt64(args, 0)
		if err != nil {
			return Outcome{}, false, nil
		}
		cart, err := gw.GetOrCreateCart(ctx, ev.UserID)
		if err != nil {
			return Outcome{}, false, err
		}
		line, err := gw.CreateCartLine(ctx, productID, cart.ID, defaultAmount, nil)
		if err != nil {
			return Outcome{}, false, err
		}
		logger.Info(ctx, "fsm", "cart.add",
			slog.Int64("cart_id", cart.ID),
			slog.Int64("line_id", line.ID),
			slog.Int64("product_id", productID),
		)
		return backToMenu(ctx, gw)
	}
	return Outcome{}, false, nil
}

func handleCart(ctx context.Context, ev Event, gw Gateway) (Outcome, bool, error) {
	action, args := callbacks.Decode(ev.Payload)
	switch action {
	case ActionCancel:
		return backToMenu(ctx, gw)
	case ActionRemove:
		lineID, err := callbacks.ArgInt64(args, 0)
		if err != nil {
			return Outcome{}, false, nil
		}
		// A line that is already gone counts as removed.
		if err := gw.RemoveCartLine(ctx, lineID); err != nil && !errors.Is(err, commerce.ErrNotFound) {
			return Outcome{}, false, err
		}
		return showCart(ctx, ev, gw)
	case ActionPayment:
		msg := Message{Text: "Please send your email address and we will contact you.", ReplacePrevious: true}
		return Outcome{Messages: []Message{msg}, Next: WaitingEmail}, true, nil
	}
	return Outcome{}, false, nil
}

func handleEmail(ctx context.Context, ev Event, gw Gateway) (Outcome, bool, error) {
	email := strings.TrimSpace(ev.Payload)
	if email == "" {
		return Outcome{}, false, nil
	}
	customer, err := gw.GetOrCreateCustomer(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, false, err
	}
	saved, err := gw.SaveCustomerEmail(ctx, customer.ID, email)
	switch {
	case errors.Is(err, commerce.ErrValidation):
		msg := Message{Text: "This does not look like a valid email address. Please try again."}
		return Outcome{Messages: []Message{msg}, Next: WaitingEmail}, true, nil
	case err != nil:
		return Outcome{}, false, err
	}
	logger.Info(ctx, "fsm", "checkout.email_saved", slog.Int64("customer_id", saved.ID))

	menu, err := menuMessage(ctx, gw, false)
	if err != nil {
		return Outcome{}, false, err
	}
	confirm := Message{Text: "Thank you! We will contact you at " + saved.Email + "."}
	return Outcome{Messages: []Message{confirm, menu}, Next: HandleMenu}, true, nil
}

// backToMenu re-enters Start to render the menu.
func backToMenu(ctx context.Context, gw Gateway) (Outcome, bool, error) {
	return handleStart(ctx, Event{}, gw)
}

func showCart(ctx context.Context, ev Event, gw Gateway) (Outcome, bool, error) {
	cart, err := gw.GetOrCreateCart(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, false, err
	}
	lines, err := gw.GetCartLines(ctx, cart)
	if err != nil {
		return Outcome{}, false, err
	}
	return Outcome{Messages: []Message{cartMessage(lines)}, Next: HandleCart}, true, nil
}
