package storebot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/logger"
	tghelpers "github.com/m3rciful/storebot/core/telegram/helpers"
	"github.com/m3rciful/storebot/core/telegram/keyboard"
	"github.com/m3rciful/storebot/internal/conversation"
)

// FailureText is shown when an event could not be handled.
const FailureText = "Something went wrong. Please try again later or send /start."

// Engine is the conversation state machine driven by the transport.
type Engine interface {
	Handle(ctx context.Context, ev conversation.Event, deliver conversation.Deliver) (conversation.Outcome, error)
	Peek(ctx context.Context, userID int64) (conversation.State, bool, error)
}

// Transport adapts Telegram updates to engine events and renders outcomes.
type Transport struct {
	engine Engine
}

// NewTransport wires the engine behind Telegram handlers.
func NewTransport(engine Engine) *Transport {
	return &Transport{engine: engine}
}

// ManagerHandler feeds callbacks and free text into the engine.
func (t *Transport) ManagerHandler(c tele.Context) error {
	ev, ok := eventFrom(c)
	if !ok {
		return nil
	}
	return t.dispatch(c, ev)
}

// Start handles the /start command: it resets the flow to the product menu.
func (t *Transport) Start(c tele.Context) error {
	ev, ok := eventFrom(c)
	if !ok {
		return nil
	}
	ev.Start = true
	return t.dispatch(c, ev)
}

// Session handles the admin command /session <user_id>.
func (t *Transport) Session(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	raw := ""
	if m := c.Message(); m != nil {
		raw = strings.TrimSpace(m.Payload)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return tghelpers.SendText(c, "Usage: /session <user_id>", nil)
	}
	s, found, err := t.engine.Peek(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "fsm", "session.peek.fail",
			slog.Int64("target_user_id", userID),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, fmt.Sprintf("User %d: unreadable session (%v)", userID, err), nil)
	}
	if !found {
		return tghelpers.SendText(c, fmt.Sprintf("User %d: no session (%s)", userID, s), nil)
	}
	return tghelpers.SendText(c, fmt.Sprintf("User %d: %s", userID, s), nil)
}

// dispatch renders the outcome before the engine commits the next state, so a
// failed send leaves the user on the keyboard they can still see.
func (t *Transport) dispatch(c tele.Context, ev conversation.Event) error {
	ctx := tghelpers.BuildContext(c)
	_, err := t.engine.Handle(ctx, ev, func(ctx context.Context, out conversation.Outcome) error {
		return render(ctx, c, out)
	})
	if err != nil {
		if sendErr := tghelpers.SendText(c, FailureText, nil); sendErr != nil {
			logger.Warn(ctx, "tg", "failure_text.send.fail", slog.String("err", sendErr.Error()))
		}
		return err
	}
	return nil
}

// render sends the outcome messages in order, then deletes the message whose
// button triggered the event if any message asks for it.
func render(ctx context.Context, c tele.Context, out conversation.Outcome) error {
	replace := false
	for _, m := range out.Messages {
		markup := markupFor(m.Buttons)
		var err error
		if len(m.Photo) > 0 {
			err = tghelpers.SendPhoto(c, m.Photo, m.Text, markup)
		} else {
			err = tghelpers.SendText(c, m.Text, markup)
		}
		if err != nil {
			return fmt.Errorf("render outcome: %w", err)
		}
		replace = replace || m.ReplacePrevious
	}
	if replace && c.Callback() != nil {
		// The reply is already delivered; a stale message is cosmetic.
		if err := tghelpers.DeleteCurrent(c); err != nil {
			logger.Warn(ctx, "tg", "message.delete.fail", slog.String("err", err.Error()))
		}
	}
	return nil
}

func markupFor(rows [][]conversation.Button) *tele.ReplyMarkup {
	kb := make([][]keyboard.Button, len(rows))
	for i, row := range rows {
		for _, b := range row {
			kb[i] = append(kb[i], keyboard.Button{Text: b.Label, Data: b.Data})
		}
	}
	return keyboard.Inline(kb...)
}

// eventFrom extracts the chat id and payload; callbacks carry raw button data.
func eventFrom(c tele.Context) (conversation.Event, bool) {
	var id int64
	if chat := c.Chat(); chat != nil {
		id = chat.ID
	} else if u := c.Sender(); u != nil {
		id = u.ID
	}
	if id == 0 {
		return conversation.Event{}, false
	}
	if cb := c.Callback(); cb != nil {
		return conversation.Event{UserID: id, Payload: cb.Data}, true
	}
	if m := c.Message(); m != nil {
		return conversation.Event{UserID: id, Payload: m.Text}, true
	}
	return conversation.Event{}, false
}
