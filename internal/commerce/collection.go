package commerce

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const pageSize = 100

// Collection is the uniform CRUD surface of one Strapi collection type.
// decode turns a raw entry into the domain type A.
type Collection[A any] struct {
	c      *client
	plural string
	decode func(record) (A, error)
}

func newCollection[A any](c *client, plural string, decode func(record) (A, error)) *Collection[A] {
	return &Collection[A]{c: c, plural: plural, decode: decode}
}

func (col *Collection[A]) op(action string) string {
	return col.plural + "." + action
}

// List returns every entry matching query, following pagination in order.
func (col *Collection[A]) List(ctx context.Context, query url.Values) ([]A, error) {
	op := col.op("list")
	var out []A
	for page := 1; ; page++ {
		q := cloneQuery(query)
		q.Set("pagination[page]", strconv.Itoa(page))
		q.Set("pagination[pageSize]", strconv.Itoa(pageSize))

		var env listEnvelope
		if err := col.c.call(ctx, op, http.MethodGet, col.c.apiURL(q, col.plural), nil, &env); err != nil {
			return nil, err
		}
		for _, rec := range env.Data {
			item, err := col.decode(rec)
			if err != nil {
				return nil, unavailable(op, err)
			}
			out = append(out, item)
		}
		p := env.Meta.Pagination
		if p == nil || p.PageCount <= page || len(env.Data) == 0 {
			return out, nil
		}
	}
}

// Get returns one entry by id; a missing entry is ErrNotFound.
func (col *Collection[A]) Get(ctx context.Context, id int64, query url.Values) (A, error) {
	op := col.op("get")
	var env itemEnvelope
	err := col.c.call(ctx, op, http.MethodGet, col.c.apiURL(query, col.plural, formatID(id)), nil, &env)
	return col.single(op, env, err)
}

// Create posts {"data": data} and returns the created entry.
func (col *Collection[A]) Create(ctx context.Context, data any, query url.Values) (A, error) {
	op := col.op("create")
	var env itemEnvelope
	err := col.c.call(ctx, op, http.MethodPost, col.c.apiURL(query, col.plural), dataEnvelope{Data: data}, &env)
	return col.single(op, env, err)
}

// Update puts {"data": data} onto an existing entry.
func (col *Collection[A]) Update(ctx context.Context, id int64, data any, query url.Values) (A, error) {
	op := col.op("update")
	var env itemEnvelope
	err := col.c.call(ctx, op, http.MethodPut, col.c.apiURL(query, col.plural, formatID(id)), dataEnvelope{Data: data}, &env)
	return col.single(op, env, err)
}

// Delete removes an entry; deleting a missing entry is ErrNotFound.
func (col *Collection[A]) Delete(ctx context.Context, id int64) error {
	return col.c.call(ctx, col.op("delete"), http.MethodDelete, col.c.apiURL(nil, col.plural, formatID(id)), nil, nil)
}

func (col *Collection[A]) single(op string, env itemEnvelope, err error) (A, error) {
	var zero A
	if err != nil {
		return zero, err
	}
	if env.Data == nil {
		return zero, notFound(op, "empty data")
	}
	item, err := col.decode(*env.Data)
	if err != nil {
		return zero, unavailable(op, err)
	}
	return item, nil
}

type dataEnvelope struct {
	Data any `json:"data"`
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q)+2)
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// eqFilter builds filters[field][$eq]=value.
func eqFilter(q url.Values, field, value string) url.Values {
	if q == nil {
		q = url.Values{}
	}
	q.Set("filters["+field+"][$eq]", value)
	return q
}

// inFilter builds filters[field][$in][i]=ids[i].
func inFilter(q url.Values, field string, ids []int64) url.Values {
	if q == nil {
		q = url.Values{}
	}
	for i, id := range ids {
		q.Set("filters["+field+"][$in]["+strconv.Itoa(i)+"]", formatID(id))
	}
	return q
}

// populate requests the named relations inline.
func populate(q url.Values, fields ...string) url.Values {
	if q == nil {
		q = url.Values{}
	}
	for i, f := range fields {
		q.Set("populate["+strconv.Itoa(i)+"]", f)
	}
	return q
}
