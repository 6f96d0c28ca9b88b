// Package product provides the catalog repository, its Redis read cache and
// the on-disk store for product images.
package product

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront/internal/apperr"
	"github.com/MikeMC777/storefront/internal/database"
)

var (
	ErrNotFound = apperr.NotFound("product not found")
	ErrInUse    = apperr.Conflict("product is referenced by existing orders")
)

type Query struct {
	Q      string
	Limit  int
	Offset int
}

// Normalize clamps paging to the defaults used by every list endpoint.
func (q Query) Normalize() Query {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Q = strings.TrimSpace(q.Q)
	return q
}

type Repository interface {
	// Create and Update store the product row and the given image filenames
	// in a single transaction.
	Create(ctx context.Context, p *Product, images []string) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, q Query) ([]Product, error)
	Update(ctx context.Context, p *Product, newImages []string) ([]Image, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

// Create inserts p and its images in one transaction.
func (r *PGRepo) Create(ctx context.Context, p *Product, images []string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Persistence(err, "begin create product")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO products (id, name, description, brand, price, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Brand, p.Price.String(), p.Stock).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return apperr.Persistence(err, "create product")
	}
	added, err := insertImages(ctx, tx, p.ID, 0, images)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Persistence(err, "commit product")
	}
	p.Images = added
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var p Product
	var price string
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, brand, price::text, stock, created_at, updated_at
		FROM products WHERE id=$1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Persistence(err, "get product")
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, apperr.Persistence(err, "decode product price")
	}

	images, err := r.loadImages(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Images = images[p.ID]
	return &p, nil
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q = q.Normalize()

	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, brand, price::text, stock, created_at, updated_at
		FROM products
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%' OR brand ILIKE '%'||$1||'%')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, q.Q, q.Limit, q.Offset)
	if err != nil {
		return nil, apperr.Persistence(err, "list products")
	}
	defer rows.Close()

	out := []Product{}
	var ids []string
	for rows.Next() {
		var p Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, apperr.Persistence(err, "scan product")
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, apperr.Persistence(err, "decode product price")
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(err, "list products")
	}

	images, err := r.loadImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Images = images[out[i].ID]
	}
	return out, nil
}

// Update writes p's fields and appends newImages after the existing ones,
// all or nothing. It returns the appended images.
func (r *PGRepo) Update(ctx context.Context, p *Product, newImages []string) ([]Image, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Persistence(err, "begin update product")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET name = $2,
		    description = $3,
		    brand = $4,
		    price = $5,
		    stock = $6,
		    updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Brand, p.Price.String(), p.Stock)
	if err != nil {
		return nil, apperr.Persistence(err, "update product")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	var next int
	if len(newImages) > 0 {
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(position)+1, 0) FROM product_images WHERE product_id=$1
		`, p.ID).Scan(&next); err != nil {
			return nil, apperr.Persistence(err, "image position")
		}
	}
	added, err := insertImages(ctx, tx, p.ID, next, newImages)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Persistence(err, "commit product")
	}
	return added, nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if database.IsCode(err, database.CodeForeignKeyViolation) {
		return false, ErrInUse
	}
	if err != nil {
		return false, apperr.Persistence(err, "delete product")
	}
	return cmd.RowsAffected() > 0, nil
}

func insertImages(ctx context.Context, tx pgx.Tx, productID string, start int, filenames []string) ([]Image, error) {
	out := make([]Image, 0, len(filenames))
	for i, name := range filenames {
		img := Image{ID: uuid.NewString(), Filename: name}
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_images (id, product_id, filename, position)
			VALUES ($1,$2,$3,$4)
		`, img.ID, productID, img.Filename, start+i); err != nil {
			return nil, apperr.Persistence(err, "insert image")
		}
		out = append(out, img)
	}
	return out, nil
}

func (r *PGRepo) loadImages(ctx context.Context, productIDs []string) (map[string][]Image, error) {
	out := make(map[string][]Image, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT product_id, id, filename
		FROM product_images
		WHERE product_id = ANY($1)
		ORDER BY product_id, position
	`, database.ParseUUIDs(productIDs))
	if err != nil {
		return nil, apperr.Persistence(err, "load images")
	}
	defer rows.Close()
	for rows.Next() {
		var pid string
		var img Image
		if err := rows.Scan(&pid, &img.ID, &img.Filename); err != nil {
			return nil, apperr.Persistence(err, "scan image")
		}
		out[pid] = append(out[pid], img)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(err, "load images")
	}
	return out, nil
}
