package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront/internal/apperr"
	"github.com/MikeMC777/storefront/internal/database"
)

var (
	ErrNotFound = apperr.NotFound("order not found")
	// ErrDuplicateSession is returned by Materialize when another order already
	// holds the session reference. Nothing was written.
	ErrDuplicateSession = apperr.Conflict("payment session already reconciled")
)

type Repository interface {
	FindBySessionRef(ctx context.Context, sessionRef string) (*Order, error)
	// Materialize writes the address, order, lines, stock decrements and phone
	// backfill in a single transaction.
	Materialize(ctx context.Context, m Materialization) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]Order, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Materialize(ctx context.Context, m Materialization) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Persistence(err, "begin order transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	addr := m.Address
	addr.ID = uuid.NewString()
	if _, err := tx.Exec(ctx, `
		INSERT INTO addresses (id, full_name, street_address, apartment_suite, city, state_province, postal_code, country, phone_number)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,NULLIF($6,''),$7,$8,NULLIF($9,''))
	`, addr.ID, addr.FullName, addr.StreetAddress, addr.ApartmentSuite, addr.City,
		addr.StateProvince, addr.PostalCode, addr.Country, addr.PhoneNumber); err != nil {
		return nil, apperr.Persistence(err, "insert address")
	}

	o := &Order{
		ID:         uuid.NewString(),
		SessionRef: m.SessionRef,
		UserID:     m.UserID,
		AddressID:  addr.ID,
		Total:      m.Total,
		Address:    &addr,
		Lines:      make([]Line, 0, len(m.Lines)),
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, session_ref, user_id, address_id, total, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		ON CONFLICT (session_ref) DO NOTHING
		RETURNING created_at
	`, o.ID, o.SessionRef, o.UserID, o.AddressID, o.Total.StringFixed(2)).Scan(&o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDuplicateSession
	}
	if database.IsCode(err, database.CodeForeignKeyViolation) {
		return nil, apperr.Auth("unknown user")
	}
	if err != nil {
		return nil, apperr.Persistence(err, "insert order")
	}

	// Lock every product once, in id order, and check the summed quantity.
	need := make(map[string]int, len(m.Lines))
	for _, l := range m.Lines {
		need[l.ProductID] += l.Quantity
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return nil, apperr.New(apperr.KindProductNotFound, "product %s not found", id)
		}
		var name string
		var stock int
		err := tx.QueryRow(ctx, `SELECT name, stock FROM products WHERE id=$1 FOR UPDATE`, id).Scan(&name, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindProductNotFound, "product %s not found", id)
		}
		if err != nil {
			return nil, apperr.Persistence(err, "lock product")
		}
		if stock < need[id] {
			return nil, apperr.New(apperr.KindInsufficientStock,
				"insufficient stock for %s: %d available, %d requested", name, stock, need[id])
		}
		names[id] = name
	}

	for i, l := range m.Lines {
		line := Line{
			ID:          uuid.NewString(),
			ProductID:   l.ProductID,
			ProductName: names[l.ProductID],
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_products (id, order_id, product_id, position, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, line.ID, o.ID, line.ProductID, i, line.Quantity, line.UnitPrice.StringFixed(2)); err != nil {
			return nil, apperr.Persistence(err, "insert order product")
		}
		o.Lines = append(o.Lines, line)
	}

	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET stock = stock - $2,
			    updated_at = NOW()
			WHERE id = $1
		`, id, need[id]); err != nil {
			if database.IsCode(err, database.CodeCheckViolation) {
				return nil, apperr.New(apperr.KindInsufficientStock, "insufficient stock for %s", names[id])
			}
			return nil, apperr.Persistence(err, "decrement stock")
		}
	}

	if addr.PhoneNumber != "" {
		if _, err := tx.Exec(ctx, `
			UPDATE users
			SET phone_number = $2,
			    updated_at = NOW()
			WHERE id = $1 AND COALESCE(phone_number, '') = ''
		`, m.UserID, addr.PhoneNumber); err != nil {
			return nil, apperr.Persistence(err, "backfill phone number")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Persistence(err, "commit order")
	}
	return o, nil
}

const orderSelect = `
	SELECT o.id, o.session_ref, o.user_id, o.address_id, o.total::text, o.created_at,
	       a.full_name, a.street_address, COALESCE(a.apartment_suite, ''), a.city,
	       COALESCE(a.state_province, ''), a.postal_code, a.country, COALESCE(a.phone_number, ''),
	       u.username
	FROM orders o
	JOIN addresses a ON a.id = o.address_id
	JOIN users u ON u.id = o.user_id
`

func scanOrder(row pgx.Row) (*Order, string, error) {
	var o Order
	var a Address
	var total, username string
	err := row.Scan(&o.ID, &o.SessionRef, &o.UserID, &o.AddressID, &total, &o.CreatedAt,
		&a.FullName, &a.StreetAddress, &a.ApartmentSuite, &a.City,
		&a.StateProvince, &a.PostalCode, &a.Country, &a.PhoneNumber, &username)
	if err != nil {
		return nil, "", err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, "", err
	}
	a.ID = o.AddressID
	o.Address = &a
	o.Lines = []Line{}
	return &o, username, nil
}

func (r *PGRepo) FindBySessionRef(ctx context.Context, sessionRef string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, _, err := scanOrder(r.db.QueryRow(ctx, orderSelect+` WHERE o.session_ref = $1`, sessionRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Persistence(err, "find order by session")
	}
	if err := r.loadLines(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return []Order{}, nil
	}
	return r.list(ctx, false, `WHERE o.user_id = $1`, limit, offset, uid)
}

func (r *PGRepo) ListAll(ctx context.Context, limit, offset int) ([]Order, error) {
	return r.list(ctx, true, ``, limit, offset)
}

func (r *PGRepo) list(ctx context.Context, withCustomer bool, where string, limit, offset int, args ...any) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	n := len(args)
	query := orderSelect + where + fmt.Sprintf(` ORDER BY o.created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence(err, "list orders")
	}
	defer rows.Close()

	var ptrs []*Order
	for rows.Next() {
		o, username, err := scanOrder(rows)
		if err != nil {
			return nil, apperr.Persistence(err, "scan order")
		}
		if withCustomer {
			o.CustomerName = username
		}
		ptrs = append(ptrs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(err, "list orders")
	}
	if err := r.loadLines(ctx, ptrs); err != nil {
		return nil, err
	}

	out := make([]Order, 0, len(ptrs))
	for _, o := range ptrs {
		out = append(out, *o)
	}
	return out, nil
}

func (r *PGRepo) loadLines(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT op.order_id, op.id, op.product_id, p.name, op.quantity, op.unit_price::text
		FROM order_products op
		JOIN products p ON p.id = op.product_id
		WHERE op.order_id = ANY($1)
		ORDER BY op.order_id, op.position
	`, database.ParseUUIDs(ids))
	if err != nil {
		return apperr.Persistence(err, "load order products")
	}
	defer rows.Close()
	for rows.Next() {
		var orderID, price string
		var l Line
		if err := rows.Scan(&orderID, &l.ID, &l.ProductID, &l.ProductName, &l.Quantity, &price); err != nil {
			return apperr.Persistence(err, "scan order product")
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return apperr.Persistence(err, "decode unit price")
		}
		if o := byID[orderID]; o != nil {
			o.Lines = append(o.Lines, l)
		}
	}
	if err := rows.Err(); err != nil {
		return apperr.Persistence(err, "load order products")
	}
	return nil
}
