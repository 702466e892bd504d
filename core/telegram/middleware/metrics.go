package middleware

import tele "gopkg.in/telebot.v4"

const countersKey = "send_counters"

type sendCounters struct {
	messages int
	keyboard bool
}

// countingContext counts successful sends for the handler summary log.
// Deletions and callback answers are not counted.
type countingContext struct {
	tele.Context
	n *sendCounters
}

func (c countingContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	c.n.messages++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			c.n.keyboard = c.n.keyboard || v != nil
		case *tele.SendOptions:
			c.n.keyboard = c.n.keyboard || (v != nil && v.ReplyMarkup != nil)
		}
	}
	return nil
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what any, opts ...any) error {
	return c.count(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware hands downstream handlers a context that counts
// outbound messages and keyboard usage.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &sendCounters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns how many messages the handler sent and whether any
// carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	if n, ok := c.Get(countersKey).(*sendCounters); ok {
		return n.messages, n.keyboard
	}
	return 0, false
}
