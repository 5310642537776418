package sqlgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	strata "github.com/syssam/strata"
)

// AllCached is All with a read-through result cache. Rows are encoded with
// msgpack under a key derived from the rendered statement, so two queries
// share an entry exactly when they execute the same SQL. Cache failures
// fall back to the database.
func (q *Query) AllCached(ctx context.Context, cache strata.Cache, ttl time.Duration) ([]Row, error) {
	b, err := q.reg.Binding(q.entity)
	if err != nil {
		return nil, err
	}
	sel, err := q.selector(b)
	if err != nil {
		return nil, err
	}
	stmt, args := sel.Query()
	ck := strata.CacheKey{
		Table:      b.Table,
		Operation:  "all",
		Predicates: fmt.Sprintf("%s|%v", stmt, args),
	}
	if buf, err := cache.Get(ctx, ck.String()); err == nil && buf != nil {
		var rows []Row
		if msgpack.Unmarshal(buf, &rows) == nil {
			return rows, nil
		}
	}
	rows, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	if buf, err := msgpack.Marshal(rows); err == nil {
		_ = cache.Set(ctx, ck.String(), buf, ttl)
	}
	return rows, nil
}

// InvalidateCache drops every cached result of the given entity. Call it
// after writes when a cache is in use.
func (r *Registry) InvalidateCache(ctx context.Context, cache strata.Cache, entity string) error {
	b, err := r.Binding(entity)
	if err != nil {
		return err
	}
	return cache.DeletePrefix(ctx, b.Table+":")
}
