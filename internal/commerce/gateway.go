package commerce

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/storebot/core/logger"
)

// Options carries optional collaborators of the gateway.
type Options struct {
	// HTTPClient is used for every backend call; its Timeout is overridden by Config.Timeout.
	HTTPClient *http.Client
}

// Gateway exposes catalog, cart and customer operations over Strapi.
type Gateway struct {
	c      *client
	models Models

	products  *Collection[Product]
	lines     *Collection[CartLine]
	carts     *Collection[Cart]
	customers *Collection[Customer]

	// flights collapses concurrent get-or-create calls for the same user.
	flights singleflight.Group
}

// New builds a gateway from normalized configuration.
func New(cfg Config, opts Options) (*Gateway, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	c, err := newClient(cfg, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	m := cfg.Models
	g := &Gateway{c: c, models: m}
	g.products = newCollection(c, m.Products, m.decodeProduct)
	g.lines = newCollection(c, m.OrderedProducts, m.decodeLine)
	g.carts = newCollection(c, m.Carts, m.decodeCart)
	g.customers = newCollection(c, m.Customers, m.decodeCustomer)
	return g, nil
}

// ListProducts returns the catalog in backend order.
func (g *Gateway) ListProducts(ctx context.Context) ([]Product, error) {
	return g.products.List(ctx, nil)
}

// GetProductDetail returns one product, with its image reference when includeImage is set.
func (g *Gateway) GetProductDetail(ctx context.Context, id int64, includeImage bool) (Product, error) {
	var q url.Values
	if includeImage {
		q = populate(q, g.models.ProductImage)
	}
	return g.products.Get(ctx, id, q)
}

// FetchImage downloads the image bytes; relative URLs resolve against the backend base URL.
func (g *Gateway) FetchImage(ctx context.Context, ref ImageRef) ([]byte, error) {
	return g.c.download(ctx, "media.fetch", ref.URL)
}

// GetOrCreateCart returns the user's cart, creating it on first use.
func (g *Gateway) GetOrCreateCart(ctx context.Context, userID int64) (Cart, error) {
	owner := formatID(userID)
	v, err, _ := g.flights.Do("cart:"+owner, func() (any, error) {
		q := populate(eqFilter(nil, g.models.CartOwnerField, owner), g.models.CartLines)
		carts, err := g.carts.List(ctx, q)
		if err != nil {
			return Cart{}, err
		}
		if len(carts) > 0 {
			return carts[0], nil
		}
		cart, err := g.carts.Create(ctx, map[string]any{g.models.CartOwnerField: owner}, populate(nil, g.models.CartLines))
		if err != nil {
			return Cart{}, err
		}
		logger.Info(ctx, "commerce", "cart.created",
			slog.Int64("cart_id", cart.ID),
			slog.String("owner", owner),
		)
		return cart, nil
	})
	if err != nil {
		return Cart{}, err
	}
	return v.(Cart), nil
}

// GetCartLines returns the cart's lines with product titles, in the cart's line order.
// Lines deleted since the cart was read are skipped.
func (g *Gateway) GetCartLines(ctx context.Context, cart Cart) ([]CartLine, error) {
	if len(cart.LineIDs) == 0 {
		return nil, nil
	}
	q := populate(inFilter(nil, "id", cart.LineIDs), g.models.LineProduct)
	fetched, err := g.lines.List(ctx, q)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]CartLine, len(fetched))
	for _, l := range fetched {
		byID[l.ID] = l
	}
	out := make([]CartLine, 0, len(cart.LineIDs))
	for _, id := range cart.LineIDs {
		if l, ok := byID[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// CreateCartLine attaches amount kilograms of a product to a cart.
// A nil fixedPrice captures the product's current catalog price.
func (g *Gateway) CreateCartLine(ctx context.Context, productID, cartID int64, amount decimal.Decimal, fixedPrice *decimal.Decimal) (CartLine, error) {
	const op = "cart_lines.create"
	if !amount.IsPositive() {
		return CartLine{}, invalid(op, "amount must be positive")
	}
	product, err := g.GetProductDetail(ctx, productID, false)
	if err != nil {
		return CartLine{}, err
	}
	price := product.Price
	if fixedPrice != nil {
		price = *fixedPrice
	}
	if price.IsNegative() {
		return CartLine{}, invalid(op, "fixed price must not be negative")
	}
	data := map[string]any{
		g.models.LineProduct: connect{Connect: []int64{productID}},
		g.models.LineCart:    connect{Connect: []int64{cartID}},
		"amount":             number(amount),
		"fixed_price":        number(price),
	}
	line, err := g.lines.Create(ctx, data, populate(nil, g.models.LineProduct))
	if err != nil {
		return CartLine{}, err
	}
	if line.ProductID == 0 {
		line.ProductID = productID
	}
	if line.ProductTitle == "" {
		line.ProductTitle = product.Title
	}
	logger.Info(ctx, "commerce", "cart_line.created",
		slog.Int64("line_id", line.ID),
		slog.Int64("cart_id", cartID),
		slog.Int64("product_id", productID),
	)
	return line, nil
}

// RemoveCartLine deletes a line; removing it twice yields ErrNotFound.
func (g *Gateway) RemoveCartLine(ctx context.Context, lineID int64) error {
	return g.lines.Delete(ctx, lineID)
}

// GetOrCreateCustomer returns the customer for a chat user, creating it on first use.
func (g *Gateway) GetOrCreateCustomer(ctx context.Context, userID int64) (Customer, error) {
	ext := formatID(userID)
	v, err, _ := g.flights.Do("customer:"+ext, func() (any, error) {
		found, err := g.customers.List(ctx, eqFilter(nil, g.models.CustomerIDField, ext))
		if err != nil {
			return Customer{}, err
		}
		if len(found) > 0 {
			return found[0], nil
		}
		cust, err := g.customers.Create(ctx, map[string]any{g.models.CustomerIDField: ext}, nil)
		if err != nil {
			return Customer{}, err
		}
		logger.Info(ctx, "commerce", "customer.created", slog.Int64("customer_id", cust.ID))
		return cust, nil
	})
	if err != nil {
		return Customer{}, err
	}
	return v.(Customer), nil
}

// SaveCustomerEmail stores the email; a rejected address yields ErrValidation.
func (g *Gateway) SaveCustomerEmail(ctx context.Context, customerID int64, email string) (Customer, error) {
	return g.customers.Update(ctx, customerID, map[string]any{"email": email}, nil)
}

func (m Models) decodeProduct(r record) (Product, error) {
	p := Product{ID: r.ID}
	var err error
	if p.Title, err = r.Attributes.text("Title"); err != nil {
		return p, err
	}
	if p.Description, err = r.Attributes.text("Description"); err != nil {
		return p, err
	}
	if p.Price, err = r.Attributes.decimal("Price"); err != nil {
		return p, err
	}
	img, err := r.Attributes.relation(m.ProductImage)
	if err != nil {
		return p, err
	}
	if rec, ok := img.First(); ok {
		ref := ImageRef{ID: rec.ID}
		if ref.URL, err = rec.Attributes.text("url"); err != nil {
			return p, err
		}
		if ref.Mime, err = rec.Attributes.text("mime"); err != nil {
			return p, err
		}
		if ref.URL != "" {
			p.Image = &ref
		}
	}
	return p, nil
}

func (m Models) decodeLine(r record) (CartLine, error) {
	l := CartLine{ID: r.ID}
	var err error
	if l.Amount, err = r.Attributes.decimal("amount"); err != nil {
		return l, err
	}
	if l.FixedPrice, err = r.Attributes.decimal("fixed_price"); err != nil {
		return l, err
	}
	rel, err := r.Attributes.relation(m.LineProduct)
	if err != nil {
		return l, err
	}
	if rec, ok := rel.First(); ok {
		l.ProductID = rec.ID
		if l.ProductTitle, err = rec.Attributes.text("Title"); err != nil {
			return l, err
		}
	}
	return l, nil
}

func (m Models) decodeCart(r record) (Cart, error) {
	c := Cart{ID: r.ID}
	var err error
	if c.OwnerID, err = r.Attributes.text(m.CartOwnerField); err != nil {
		return c, err
	}
	rel, err := r.Attributes.relation(m.CartLines)
	if err != nil {
		return c, err
	}
	for _, rec := range rel.All() {
		c.LineIDs = append(c.LineIDs, rec.ID)
	}
	return c, nil
}

func (m Models) decodeCustomer(r record) (Customer, error) {
	c := Customer{ID: r.ID}
	var err error
	if c.ExternalID, err = r.Attributes.text(m.CustomerIDField); err != nil {
		return c, err
	}
	if c.Email, err = r.Attributes.text("email"); err != nil {
		return c, err
	}
	return c, nil
}

// ParseID parses a decimal record id from callback data.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", s)
	}
	return id, nil
}

