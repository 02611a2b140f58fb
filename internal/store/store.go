package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/catchlogs/internal/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every table store can run
// standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// timeLayout matches SQLite's datetime('now') so stored instants compare and
// sort lexically.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Tx exposes the table stores bound to one transaction.
type Tx struct {
	Pins    *PinStore
	Entries *EntryStore
}

// Journal bundles the pin and entry stores over one database.
type Journal struct {
	db      *sql.DB
	Pins    *PinStore
	Entries *EntryStore
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db, Pins: NewPinStore(db), Entries: NewEntryStore(db)}
}

// InTx runs fn inside a single transaction, committing when fn returns nil.
// fn must only use the stores on tx; the database allows one connection.
func (j *Journal) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewPersistenceError("begin transaction", err)
	}

	if err := fn(&Tx{Pins: NewPinStore(sqlTx), Entries: NewEntryStore(sqlTx)}); err != nil {
		if rerr := sqlTx.Rollback(); rerr != nil {
			slog.Error("failed to roll back transaction", "error", rerr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return domain.NewPersistenceError("commit transaction", err)
	}
	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}
}

func rowsAffected(result sql.Result, op string) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, domain.NewPersistenceError(fmt.Sprintf("get rows affected for %s", op), err)
	}
	return n, nil
}
