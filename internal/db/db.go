package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MustOpen connects a pgx pool using STOREFRONT_DB_DSN and verifies the
// connection. It exits the process on failure, mirroring how the service
// treats a missing database as fatal at startup.
func MustOpen(ctx context.Context) *pgxpool.Pool {
	dsn := os.Getenv("STOREFRONT_DB_DSN")
	if dsn == "" {
		log.Fatal("STOREFRONT_DB_DSN not set")
	}

	pool, err := Open(ctx, dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	return pool
}

func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// Beginner is the subset of *pgxpool.Pool needed to start a transaction.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InTx runs fn inside a transaction, committing on success and rolling back
// on error or panic. A rollback undoes every stock reservation taken inside
// the transaction, which is what keeps checkout all-or-nothing.
func InTx(ctx context.Context, db Beginner, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
