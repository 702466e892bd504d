// Package keyboard builds inline keyboards whose callback data reaches the
// bot unchanged.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is an inline button carrying raw callback data.
type Button struct {
	Text string
	Data string
}

// Inline lays buttons out row by row. Empty rows are dropped and nil is
// returned when no button is left, so callers can send without a keyboard.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	var kb [][]tele.InlineButton
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, len(row))
		for i, b := range row {
			line[i] = tele.InlineButton{Text: b.Text, Data: b.Data}
		}
		kb = append(kb, line)
	}
	if kb == nil {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: kb}
}
