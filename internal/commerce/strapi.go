package commerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// record is a Strapi v4 entry: {"id": 1, "attributes": {...}}.
type record struct {
	ID         int64      `json:"id"`
	Attributes attributes `json:"attributes"`
}

// attributes keeps raw values so field names can come from configuration.
type attributes map[string]json.RawMessage

func (a attributes) has(name string) bool {
	raw, ok := a[name]
	return ok && !isNull(raw)
}

// text decodes a string attribute; numbers are accepted and formatted.
func (a attributes) text(name string) (string, error) {
	raw, ok := a[name]
	if !ok || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("attribute %q: %w", name, err)
	}
	return n.String(), nil
}

func (a attributes) decimal(name string) (decimal.Decimal, error) {
	raw, ok := a[name]
	if !ok || isNull(raw) {
		return decimal.Zero, nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, fmt.Errorf("attribute %q: %w", name, err)
	}
	return d, nil
}

func (a attributes) relation(name string) (relation[record], error) {
	var rel relation[record]
	raw, ok := a[name]
	if !ok {
		return rel, nil
	}
	if err := json.Unmarshal(raw, &rel); err != nil {
		return rel, fmt.Errorf("relation %q: %w", name, err)
	}
	return rel, nil
}

type relationKind uint8

const (
	relationNone relationKind = iota
	relationOne
	relationMany
)

// relation is a populated Strapi relation: {"data": null | {...} | [...]}.
// An unpopulated relation is absent from attributes and decodes as none.
type relation[A any] struct {
	kind relationKind
	one  A
	many []A
}

func (r *relation[A]) UnmarshalJSON(b []byte) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	data := bytes.TrimSpace(env.Data)
	switch {
	case len(data) == 0 || isNull(data):
		*r = relation[A]{kind: relationNone}
	case data[0] == '[':
		var many []A
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*r = relation[A]{kind: relationMany, many: many}
	default:
		var one A
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*r = relation[A]{kind: relationOne, one: one}
	}
	return nil
}

// First returns the single related record, or the first of many.
func (r relation[A]) First() (A, bool) {
	switch r.kind {
	case relationOne:
		return r.one, true
	case relationMany:
		if len(r.many) > 0 {
			return r.many[0], true
		}
	}
	var zero A
	return zero, false
}

// All returns the related records in backend order.
func (r relation[A]) All() []A {
	switch r.kind {
	case relationOne:
		return []A{r.one}
	case relationMany:
		return r.many
	}
	return nil
}

type pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type listEnvelope struct {
	Data []record `json:"data"`
	Meta struct {
		Pagination *pagination `json:"pagination"`
	} `json:"meta"`
}

type itemEnvelope struct {
	Data *record `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Status  int    `json:"status"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// connect links a relation to existing records on create or update.
type connect struct {
	Connect []int64 `json:"connect"`
}

// number renders a decimal as a JSON number rather than a quoted string.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
