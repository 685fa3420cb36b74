// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/mergeflow/internal/store"
)

// Store runs every transaction on the pool with pgx.BeginTxFunc.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InTx(ctx context.Context, fn func(store.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(t pgx.Tx) error {
		return fn(&tx{q: t, lock: true})
	})
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(t pgx.Tx) error {
		return fn(&tx{q: t})
	})
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// tx takes row locks on single-row reads when lock is set, so
// read-modify-write sequences in InTx are serialized per row.
type tx struct {
	q    querier
	lock bool
}

func (t *tx) Teams() store.TeamRepo         { return teamRepo{t} }
func (t *tx) Members() store.MemberRepo     { return memberRepo{t} }
func (t *tx) Groups() store.GroupRepo       { return groupRepo{t} }
func (t *tx) Documents() store.DocumentRepo { return documentRepo{t} }

func (t *tx) forUpdate() string {
	if t.lock {
		return " FOR UPDATE"
	}
	return ""
}

// mapErr converts driver errors into the store sentinels.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, store.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func execAffected(ctx context.Context, q querier, op, sql string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return tag.RowsAffected(), nil
}

func requireRow(ctx context.Context, q querier, op, sql string, args ...any) error {
	n, err := execAffected(ctx, q, op, sql, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// collect scans every row with scan, closing rows.
func collect[T any](rows pgx.Rows, err error, op string, scan func(func(...any) error) (T, error)) ([]T, error) {
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: scanning row: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return out, nil
}
