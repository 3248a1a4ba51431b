// Package postgres implements the stores on pgx. Every call is timed through
// observability.Prom and reads run under a bounded budget.
package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/fintechindex/internal/observability"
	"github.com/geocoder89/fintechindex/internal/sentinel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultReadTimeout = 25 * time.Second

type base struct {
	pool        *pgxpool.Pool
	prom        *observability.Prom
	readTimeout time.Duration
}

func newBase(pool *pgxpool.Pool, prom *observability.Prom, readTimeout time.Duration) base {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return base{pool: pool, prom: prom, readTimeout: readTimeout}
}

func (b base) observe(op string, fn func() error) error {
	return b.prom.ObserveDB(op, fn)
}

// read runs fn under the read budget. Running past it yields sentinel.ErrTimeout.
func (b base) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.readTimeout)
	defer cancel()

	err := b.observe(op, func() error { return fn(ctx) })
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = errors.Join(err, context.DeadlineExceeded)
	}
	return sentinel.FromContext(err)
}

func (b base) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return sentinel.FromContext(b.observe(op, func() error { return fn(ctx) }))
}

func (b base) Ping(ctx context.Context) error {
	return b.read(ctx, "ping", func(ctx context.Context) error { return b.pool.Ping(ctx) })
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// likePattern escapes LIKE metacharacters and wraps q for a substring match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}
