package product

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepo is an in-memory Repository that counts GetByID calls.
type countingRepo struct {
	items map[string]Product
	gets  int
}

func (r *countingRepo) Create(_ context.Context, p *Product, images []string) error {
	for _, n := range images {
		p.Images = append(p.Images, Image{ID: n, Filename: n})
	}
	r.items[p.ID] = *p
	return nil
}

func (r *countingRepo) GetByID(_ context.Context, id string) (*Product, error) {
	r.gets++
	p, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *countingRepo) List(context.Context, Query) ([]Product, error) { return nil, nil }

func (r *countingRepo) Update(_ context.Context, p *Product, newImages []string) ([]Image, error) {
	cur, ok := r.items[p.ID]
	if !ok {
		return nil, ErrNotFound
	}
	var added []Image
	for _, n := range newImages {
		added = append(added, Image{ID: n, Filename: n})
	}
	next := *p
	next.Images = append(cur.Images, added...)
	r.items[p.ID] = next
	return added, nil
}

func (r *countingRepo) Delete(_ context.Context, id string) (bool, error) {
	_, ok := r.items[id]
	delete(r.items, id)
	return ok, nil
}

func newCached(t *testing.T) (*CachedRepo, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inner := &countingRepo{items: map[string]Product{
		"p1": {ID: "p1", Name: "Mouse", Price: decimal.RequireFromString("10.00"), Stock: 5},
	}}
	return NewCachedRepo(inner, rdb, time.Minute, zerolog.Nop()), inner, mr
}

func TestCachedRepo_ReadThrough(t *testing.T) {
	c, inner, mr := newCached(t)
	ctx := context.Background()

	p, err := c.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Mouse", p.Name)
	assert.True(t, mr.Exists("product:p1"))

	p, err = c.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, 1, inner.gets, "second read must come from cache")
}

func TestCachedRepo_UpdateEvicts(t *testing.T) {
	c, inner, mr := newCached(t)
	ctx := context.Background()

	_, err := c.GetByID(ctx, "p1")
	require.NoError(t, err)

	p := inner.items["p1"]
	p.Stock = 2
	added, err := c.Update(ctx, &p, []string{"new.png"})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.False(t, mr.Exists("product:p1"))

	got, err := c.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
	assert.Len(t, got.Images, 1)
	assert.Equal(t, 2, inner.gets)
}

func TestCachedRepo_NotFoundIsNotCached(t *testing.T) {
	c, _, mr := newCached(t)

	_, err := c.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("product:missing"))
}

func TestCachedRepo_RedisDownFallsBack(t *testing.T) {
	c, inner, mr := newCached(t)
	mr.Close()

	p, err := c.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, 1, inner.gets)
}

func TestCachedRepo_EvictMany(t *testing.T) {
	c, _, mr := newCached(t)
	require.NoError(t, mr.Set("product:a", "{}"))
	require.NoError(t, mr.Set("product:b", "{}"))

	c.Evict(context.Background(), "a", "b")
	assert.False(t, mr.Exists("product:a"))
	assert.False(t, mr.Exists("product:b"))
}
