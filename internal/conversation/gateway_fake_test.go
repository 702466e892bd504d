package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/storebot/internal/commerce"
)

// fakeGateway is an in-memory commerce backend.
type fakeGateway struct {
	mu        sync.Mutex
	nextID    int64
	products  []commerce.Product
	images    map[string][]byte
	carts     map[int64]*commerce.Cart // by user id
	lines     map[int64]commerce.CartLine
	customers map[int64]*commerce.Customer // by user id

	// failAll makes every call fail with a backend outage.
	failAll bool
	calls   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID: 1,
		products: []commerce.Product{
			{ID: 42, Title: "Salmon steak", Description: "Wild salmon", Price: decimal.NewFromInt(420),
				Image: &commerce.ImageRef{ID: 1, URL: "/uploads/salmon.jpg"}},
			{ID: 43, Title: "Trout", Description: "Rainbow trout", Price: decimal.RequireFromString("315.50")},
		},
		images:    map[string][]byte{"/uploads/salmon.jpg": []byte("jpeg")},
		carts:     map[int64]*commerce.Cart{},
		lines:     map[int64]commerce.CartLine{},
		customers: map[int64]*commerce.Customer{},
	}
}

var errOutage = &commerce.Error{Kind: commerce.KindUnavailable, Op: "fake", Err: errors.New("connection refused")}

func (g *fakeGateway) enter(name string) error {
	g.calls = append(g.calls, name)
	if g.failAll {
		return errOutage
	}
	return nil
}

func (g *fakeGateway) id() int64 {
	g.nextID++
	return g.nextID
}

func (g *fakeGateway) ListProducts(context.Context) ([]commerce.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ListProducts"); err != nil {
		return nil, err
	}
	return append([]commerce.Product(nil), g.products...), nil
}

func (g *fakeGateway) GetProductDetail(_ context.Context, id int64, _ bool) (commerce.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("GetProductDetail"); err != nil {
		return commerce.Product{}, err
	}
	for _, p := range g.products {
		if p.ID == id {
			return p, nil
		}
	}
	return commerce.Product{}, &commerce.Error{Kind: commerce.KindNotFound, Op: "products.get", Status: 404}
}

func (g *fakeGateway) FetchImage(_ context.Context, ref commerce.ImageRef) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("FetchImage"); err != nil {
		return nil, err
	}
	return g.images[ref.URL], nil
}

func (g *fakeGateway) GetOrCreateCart(_ context.Context, userID int64) (commerce.Cart, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("GetOrCreateCart"); err != nil {
		return commerce.Cart{}, err
	}
	c, ok := g.carts[userID]
	if !ok {
		c = &commerce.Cart{ID: g.id()}
		g.carts[userID] = c
	}
	return commerce.Cart{ID: c.ID, OwnerID: c.OwnerID, LineIDs: append([]int64(nil), c.LineIDs...)}, nil
}

func (g *fakeGateway) GetCartLines(_ context.Context, cart commerce.Cart) ([]commerce.CartLine, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("GetCartLines"); err != nil {
		return nil, err
	}
	var out []commerce.CartLine
	for _, id := range cart.LineIDs {
		if l, ok := g.lines[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (g *fakeGateway) CreateCartLine(_ context.Context, productID, cartID int64, amount decimal.Decimal, fixedPrice *decimal.Decimal) (commerce.CartLine, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("CreateCartLine"); err != nil {
		return commerce.CartLine{}, err
	}
	var product *commerce.Product
	for i := range g.products {
		if g.products[i].ID == productID {
			product = &g.products[i]
		}
	}
	if product == nil {
		return commerce.CartLine{}, &commerce.Error{Kind: commerce.KindNotFound, Op: "products.get"}
	}
	price := product.Price
	if fixedPrice != nil {
		price = *fixedPrice
	}
	l := commerce.CartLine{ID: g.id(), ProductID: productID, ProductTitle: product.Title, Amount: amount, FixedPrice: price}
	g.lines[l.ID] = l
	for _, c := range g.carts {
		if c.ID == cartID {
			c.LineIDs = append(c.LineIDs, l.ID)
		}
	}
	return l, nil
}

func (g *fakeGateway) RemoveCartLine(_ context.Context, lineID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("RemoveCartLine"); err != nil {
		return err
	}
	if _, ok := g.lines[lineID]; !ok {
		return &commerce.Error{Kind: commerce.KindNotFound, Op: "ordered-products.delete", Status: 404}
	}
	delete(g.lines, lineID)
	for _, c := range g.carts {
		kept := c.LineIDs[:0]
		for _, id := range c.LineIDs {
			if id != lineID {
				kept = append(kept, id)
			}
		}
		c.LineIDs = kept
	}
	return nil
}

func (g *fakeGateway) GetOrCreateCustomer(_ context.Context, userID int64) (commerce.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("GetOrCreateCustomer"); err != nil {
		return commerce.Customer{}, err
	}
	c, ok := g.customers[userID]
	if !ok {
		c = &commerce.Customer{ID: g.id()}
		g.customers[userID] = c
	}
	return *c, nil
}

func (g *fakeGateway) SaveCustomerEmail(_ context.Context, customerID int64, email string) (commerce.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("SaveCustomerEmail"); err != nil {
		return commerce.Customer{}, err
	}
	if !strings.Contains(email, "@") {
		return commerce.Customer{}, &commerce.Error{Kind: commerce.KindValidation, Op: "customers.update", Status: 400, Message: "email must be a valid email"}
	}
	for _, c := range g.customers {
		if c.ID == customerID {
			c.Email = email
			return *c, nil
		}
	}
	return commerce.Customer{}, &commerce.Error{Kind: commerce.KindNotFound, Op: "customers.update"}
}

func (g *fakeGateway) lineIDsOf(userID int64) []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.carts[userID]; ok {
		return append([]int64(nil), c.LineIDs...)
	}
	return nil
}
