package helpers

import (
	"bytes"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the retrying sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func send(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}
	return disp.Do(BuildContext(c), action, endpoint, run)
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return send(c, "send.text", "sendMessage", func() error {
		if markup != nil {
			return c.Send(text, markup)
		}
		return c.Send(text)
	})
}

// SendPhoto uploads image bytes with an optional caption and keyboard.
func SendPhoto(c tele.Context, image []byte, caption string, markup *tele.ReplyMarkup) error {
	return send(c, "send.photo", "sendPhoto", func() error {
		// Fresh reader per attempt so retries upload the whole image.
		photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(image)), Caption: caption}
		if markup != nil {
			return c.Send(photo, markup)
		}
		return c.Send(photo)
	})
}

// DeleteCurrent removes the message the current update refers to, if any.
func DeleteCurrent(c tele.Context) error {
	if c.Message() == nil {
		return nil
	}
	return send(c, "delete.message", "deleteMessage", c.Delete)
}

// Respond answers the pending callback query so the client stops its spinner.
func Respond(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	return send(c, "callback.answer", "answerCallbackQuery", func() error {
		return c.Respond()
	})
}
