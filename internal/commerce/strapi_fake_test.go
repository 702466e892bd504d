package commerce

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
)

const testToken = "strapi-test-token"

type fakeProduct struct {
	id    int64
	title string
	desc  string
	price string
	image string
}

type fakeLine struct {
	id        int64
	productID int64
	cartID    int64
	amount    json.Number
	price     json.Number
}

// fakeStrapi serves the subset of the Strapi v4 REST API the gateway uses.
type fakeStrapi struct {
	mu        sync.Mutex
	nextID    int64
	products  []fakeProduct
	carts     map[int64]string  // id -> owner
	cartLines map[int64][]int64 // cart id -> line ids in insertion order
	lines     map[int64]fakeLine
	customers map[int64]map[string]string
	images    map[string][]byte

	creates atomic.Int32
	fail    atomic.Bool // respond 503 to every call
}

func newFakeStrapi(t *testing.T) (*fakeStrapi, *httptest.Server) {
	t.Helper()
	f := &fakeStrapi{
		nextID:    100,
		carts:     map[int64]string{},
		cartLines: map[int64][]int64{},
		lines:     map[int64]fakeLine{},
		customers: map[int64]map[string]string{},
		images:    map[string][]byte{},
	}
	r := chi.NewRouter()
	r.Get("/uploads/{name}", f.media)
	r.Route("/api", func(r chi.Router) {
		r.Use(f.auth)
		r.Get("/products", f.listProducts)
		r.Get("/products/{id}", f.getProduct)
		r.Get("/carts", f.listCarts)
		r.Post("/carts", f.createCart)
		r.Get("/ordered-products", f.listLines)
		r.Post("/ordered-products", f.createLine)
		r.Delete("/ordered-products/{id}", f.deleteLine)
		r.Get("/customers", f.listCustomers)
		r.Post("/customers", f.createCustomer)
		r.Put("/customers/{id}", f.updateCustomer)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeStrapi) addProduct(p fakeProduct) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = append(f.products, p)
}

func (f *fakeStrapi) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStrapi) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.fail.Load() {
			writeError(w, http.StatusServiceUnavailable, "ServiceUnavailableError", "down")
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeError(w, http.StatusUnauthorized, "UnauthorizedError", "Missing or invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeStrapi) media(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	data, ok := f.images["/uploads/"+chi.URLParam(r, "name")]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

func (f *fakeStrapi) productJSON(p fakeProduct, withImage bool) map[string]any {
	attrs := map[string]any{
		"Title":       p.title,
		"Description": p.desc,
		"Price":       json.Number(p.price),
	}
	if withImage {
		if p.image == "" {
			attrs["Image"] = map[string]any{"data": nil}
		} else {
			attrs["Image"] = map[string]any{"data": map[string]any{
				"id":         p.id * 10,
				"attributes": map[string]any{"url": p.image, "mime": "image/jpeg"},
			}}
		}
	}
	return map[string]any{"id": p.id, "attributes": attrs}
}

func (f *fakeStrapi) listProducts(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]any, 0, len(f.products))
	for _, p := range f.products {
		items = append(items, f.productJSON(p, false))
	}
	writePage(w, r, items)
}

func (f *fakeStrapi) findProduct(id int64) (fakeProduct, bool) {
	for _, p := range f.products {
		if p.id == id {
			return p, true
		}
	}
	return fakeProduct{}, false
}

func (f *fakeStrapi) getProduct(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	p, ok := f.findProduct(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}
	withImage := r.URL.Query().Get("populate[0]") == "Image"
	writeJSON(w, http.StatusOK, map[string]any{"data": f.productJSON(p, withImage)})
}

func (f *fakeStrapi) cartJSON(id int64) map[string]any {
	lines := make([]any, 0)
	for _, lid := range f.cartLines[id] {
		lines = append(lines, map[string]any{"id": lid, "attributes": map[string]any{}})
	}
	return map[string]any{"id": id, "attributes": map[string]any{
		"user_tg_id":       f.carts[id],
		"ordered_products": map[string]any{"data": lines},
	}}
}

func (f *fakeStrapi) listCarts(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner := r.URL.Query().Get("filters[user_tg_id][$eq]")
	ids := sortedKeys(f.carts)
	items := make([]any, 0)
	for _, id := range ids {
		if owner == "" || f.carts[id] == owner {
			items = append(items, f.cartJSON(id))
		}
	}
	writePage(w, r, items)
}

func (f *fakeStrapi) createCart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates.Add(1)
	id := f.id()
	f.carts[id] = body.Data["user_tg_id"]
	writeJSON(w, http.StatusOK, map[string]any{"data": f.cartJSON(id)})
}

func (f *fakeStrapi) lineJSON(l fakeLine, withProduct bool) map[string]any {
	attrs := map[string]any{"amount": l.amount, "fixed_price": l.price}
	if withProduct {
		if p, ok := f.findProduct(l.productID); ok {
			attrs["product"] = map[string]any{"data": f.productJSON(p, false)}
		}
	}
	return map[string]any{"id": l.id, "attributes": attrs}
}

func (f *fakeStrapi) listLines(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := r.URL.Query()
	want := map[int64]bool{}
	for k, v := range q {
		if strings.HasPrefix(k, "filters[id][$in]") {
			id, _ := strconv.ParseInt(v[0], 10, 64)
			want[id] = true
		}
	}
	withProduct := q.Get("populate[0]") == "product"
	ids := sortedKeys(f.lines)
	// Newest first, so callers must restore the cart order themselves.
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	items := make([]any, 0)
	for _, id := range ids {
		if len(want) == 0 || want[id] {
			items = append(items, f.lineJSON(f.lines[id], withProduct))
		}
	}
	writePage(w, r, items)
}

func (f *fakeStrapi) createLine(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data struct {
			Product    connect     `json:"product"`
			Cart       connect     `json:"cart"`
			Amount     json.Number `json:"amount"`
			FixedPrice json.Number `json:"fixed_price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(body.Data.Product.Connect) != 1 || len(body.Data.Cart.Connect) != 1 {
		writeError(w, http.StatusBadRequest, "ValidationError", "relations required")
		return
	}
	l := fakeLine{
		id:        f.id(),
		productID: body.Data.Product.Connect[0],
		cartID:    body.Data.Cart.Connect[0],
		amount:    body.Data.Amount,
		price:     body.Data.FixedPrice,
	}
	f.lines[l.id] = l
	f.cartLines[l.cartID] = append(f.cartLines[l.cartID], l.id)
	writeJSON(w, http.StatusOK, map[string]any{"data": f.lineJSON(l, r.URL.Query().Get("populate[0]") == "product")})
}

func (f *fakeStrapi) deleteLine(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	l, ok := f.lines[id]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}
	delete(f.lines, id)
	kept := f.cartLines[l.cartID][:0]
	for _, lid := range f.cartLines[l.cartID] {
		if lid != id {
			kept = append(kept, lid)
		}
	}
	f.cartLines[l.cartID] = kept
	writeJSON(w, http.StatusOK, map[string]any{"data": f.lineJSON(l, false)})
}

func (f *fakeStrapi) customerJSON(id int64) map[string]any {
	attrs := map[string]any{}
	for k, v := range f.customers[id] {
		attrs[k] = v
	}
	return map[string]any{"id": id, "attributes": attrs}
}

func (f *fakeStrapi) listCustomers(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ext := r.URL.Query().Get("filters[telegram_id][$eq]")
	items := make([]any, 0)
	for _, id := range sortedKeys(f.customers) {
		if ext == "" || f.customers[id]["telegram_id"] == ext {
			items = append(items, f.customerJSON(id))
		}
	}
	writePage(w, r, items)
}

func (f *fakeStrapi) createCustomer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates.Add(1)
	id := f.id()
	f.customers[id] = map[string]string{"telegram_id": body.Data["telegram_id"]}
	writeJSON(w, http.StatusOK, map[string]any{"data": f.customerJSON(id)})
}

func (f *fakeStrapi) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	c, ok := f.customers[id]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}
	email := body.Data["email"]
	at := strings.Index(email, "@")
	if at <= 0 || !strings.Contains(email[at:], ".") {
		writeError(w, http.StatusBadRequest, "ValidationError", "email must be a valid email")
		return
	}
	c["email"] = email
	writeJSON(w, http.StatusOK, map[string]any{"data": f.customerJSON(id)})
}

// writePage honours pagination[page] and pagination[pageSize] like Strapi does.
func writePage(w http.ResponseWriter, r *http.Request, items []any) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("pagination[page]"))
	size, _ := strconv.Atoi(q.Get("pagination[pageSize]"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 25
	}
	count := (len(items) + size - 1) / size
	from := (page - 1) * size
	if from > len(items) {
		from = len(items)
	}
	to := from + size
	if to > len(items) {
		to = len(items)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": items[from:to],
		"meta": map[string]any{"pagination": map[string]any{
			"page": page, "pageSize": size, "pageCount": count, "total": len(items),
		}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, name, msg string) {
	writeJSON(w, status, map[string]any{
		"data":  nil,
		"error": map[string]any{"status": status, "name": name, "message": msg},
	})
}

func sortedKeys[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
