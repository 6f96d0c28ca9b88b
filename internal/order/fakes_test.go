package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront/internal/apperr"
	"github.com/MikeMC777/storefront/internal/payment"
	"github.com/MikeMC777/storefront/internal/product"
)

type fakeGateway struct {
	mu       sync.Mutex
	sessions map[string]*payment.SessionDetail
	created  []payment.CreateSessionParams
	err      error
	retrieve int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*payment.SessionDetail{}}
}

func (g *fakeGateway) CreateSession(_ context.Context, p payment.CreateSessionParams) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, p)
	id := "cs_test_" + uuid.NewString()[:8]
	return &payment.Session{ID: id, RedirectURL: "https://pay.example/" + id}, nil
}

func (g *fakeGateway) RetrieveSession(_ context.Context, id string) (*payment.SessionDetail, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieve++
	if g.err != nil {
		return nil, g.err
	}
	d, ok := g.sessions[id]
	if !ok {
		return nil, apperr.Validation("unknown payment session %q", id)
	}
	cp := *d
	return &cp, nil
}

type memProduct struct {
	name  string
	price decimal.Decimal
	stock int
}

// memRepo applies a Materialization all-or-nothing, like the Postgres
// transaction does.
type memRepo struct {
	mu       sync.Mutex
	products map[string]*memProduct
	phones   map[string]string
	orders   map[string]*Order
	addrs    int
	failOn   string // product id whose stock update fails with a storage error
}

func newMemRepo() *memRepo {
	return &memRepo{
		products: map[string]*memProduct{},
		phones:   map[string]string{},
		orders:   map[string]*Order{},
	}
}

func (r *memRepo) addProduct(id, name, price string, stock int) {
	r.products[id] = &memProduct{name: name, price: decimal.RequireFromString(price), stock: stock}
}

func (r *memRepo) stock(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].stock
}

func (r *memRepo) FindBySessionRef(_ context.Context, ref string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[ref]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) Materialize(_ context.Context, m Materialization) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.orders[m.SessionRef]; dup {
		return nil, ErrDuplicateSession
	}
	need := map[string]int{}
	for _, l := range m.Lines {
		need[l.ProductID] += l.Quantity
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, ok := r.products[id]
		if !ok {
			return nil, apperr.New(apperr.KindProductNotFound, "product %s not found", id)
		}
		if p.stock < need[id] {
			return nil, apperr.New(apperr.KindInsufficientStock, "insufficient stock for %s", p.name)
		}
		if id == r.failOn {
			return nil, apperr.Persistence(context.DeadlineExceeded, "decrement stock")
		}
	}

	addr := m.Address
	addr.ID = uuid.NewString()
	o := &Order{
		ID:         uuid.NewString(),
		SessionRef: m.SessionRef,
		UserID:     m.UserID,
		AddressID:  addr.ID,
		Total:      m.Total,
		CreatedAt:  time.Now(),
		Address:    &addr,
	}
	for _, l := range m.Lines {
		o.Lines = append(o.Lines, Line{
			ID:          uuid.NewString(),
			ProductID:   l.ProductID,
			ProductName: r.products[l.ProductID].name,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	for _, id := range ids {
		r.products[id].stock -= need[id]
	}
	if addr.PhoneNumber != "" && r.phones[m.UserID] == "" {
		r.phones[m.UserID] = addr.PhoneNumber
	}
	r.addrs++
	r.orders[m.SessionRef] = o
	return o, nil
}

func (r *memRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memRepo) ListAll(_ context.Context, _, _ int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, nil
}

// GetByID lets memRepo double as the checkout product lookup.
func (r *memRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &product.Product{ID: id, Name: p.name, Price: p.price, Stock: p.stock}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []CreatedEvent
	err    error
}

func (p *recordingPublisher) PublishCreated(_ context.Context, ev CreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type recordingEvicter struct {
	mu  sync.Mutex
	ids []string
}

func (e *recordingEvicter) Evict(_ context.Context, ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, ids...)
}

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}
