package blockstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/meshlog/oplogsync/internal/dbx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore is a Store backed by a single "blocks" table, keyed by
// content-identifier string, opened through database/sql with its
// schema managed by embedded goose migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens dsn with the pgx stdlib driver and runs
// pending migrations before returning.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("blockstore: open db: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.runMigrations(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("blockstore: set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("blockstore: run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Conn() *sql.DB {
	return s.db
}

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	return s.putOn(ctx, s.db, key, value)
}

// PutBatch writes every block in one transaction, so a manifest and
// the entry it names (or an entry and its predecessors) either all
// land or none do.
func (s *PostgresStore) PutBatch(ctx context.Context, blocks map[string][]byte) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for key, value := range blocks {
			if err := s.putOn(ctx, tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) putOn(ctx context.Context, tx dbx.DBTX, key string, value []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO blocks (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("blockstore: put: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM blocks WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blockstore: get: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Has(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM blocks WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("blockstore: has: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blocks WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("blockstore: delete: %w", err)
	}
	return nil
}
