// Package callbacks encodes and decodes raw inline-button callback data.
//
// Two encodings reach the bot: Telebot's "\f<unique>|<payload>" form for
// buttons built with a unique endpoint, and plain "<action>;<arg>" strings
// for buttons whose data is opaque to Telebot.
package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Separator splits an action from its arguments in plain callback data.
const Separator = ";"

// ParseCallbackData parses Telebot's \f<unique>|<payload> encoding.
// Returns unique and payload (may be empty).
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	raw = strings.TrimPrefix(raw, "\\f")
	parts := strings.SplitN(raw, "|", 2)
	unique := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return unique, payload
}

// Encode joins an action and its arguments into plain callback data.
func Encode(action string, args ...string) string {
	if len(args) == 0 {
		return action
	}
	return action + Separator + strings.Join(args, Separator)
}

// Decode splits plain callback data into an action and its arguments.
func Decode(data string) (string, []string) {
	parts := strings.Split(strings.TrimSpace(data), Separator)
	return parts[0], parts[1:]
}

// ArgInt64 parses the i-th argument as int64.
func ArgInt64(args []string, i int) (int64, error) {
	if i < 0 || i >= len(args) {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(strings.TrimSpace(args[i]), 10, 64)
}
