package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/insightlens/internal/client/credentials/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore keeps credentials in a local SQLite database so they survive
// restarts of the client.
type SQLiteStore struct {
	db *sql.DB
}

// RunMigrations applies the embedded schema to db. It is idempotent.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// OpenSQLite opens (creating if needed) the database at dsn and migrates it.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential db: %w", err)
	}

	// a single writer avoids SQLITE_BUSY between concurrent refreshes and reads
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate credential db: %w", err)
	}

	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (r *SQLiteStore) Get(ctx context.Context, kind Kind) (string, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, string(kind)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get credential[%s]: %w", kind, err)
	}
	return string(value), true, nil
}

// execer is the part of database/sql shared by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, ex execer, kind Kind, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO credentials (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, string(kind), []byte(value))
	if err != nil {
		return fmt.Errorf("failed to set credential[%s]: %w", kind, err)
	}
	return nil
}

func remove(ctx context.Context, ex execer, kind Kind) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, string(kind))
	if err != nil {
		return fmt.Errorf("failed to clear credential[%s]: %w", kind, err)
	}
	return nil
}

func (r *SQLiteStore) Set(ctx context.Context, kind Kind, value string) error {
	return upsert(ctx, r.db, kind, value)
}

func (r *SQLiteStore) Clear(ctx context.Context, kind Kind) error {
	return remove(ctx, r.db, kind)
}

// SetPair replaces both tokens in one transaction.
func (r *SQLiteStore) SetPair(ctx context.Context, access, refresh string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := upsert(ctx, tx, KindAccess, access); err != nil {
			return err
		}
		if refresh == "" {
			return remove(ctx, tx, KindRefresh)
		}
		return upsert(ctx, tx, KindRefresh, refresh)
	})
}

// withTx runs fn inside a transaction that is committed when fn succeeds
// and rolled back on error or panic. Panics are rethrown.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}

func (r *SQLiteStore) ClearAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM credentials`)
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (r *SQLiteStore) Close() error {
	return r.db.Close()
}
