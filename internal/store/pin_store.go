package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vbonduro/catchlogs/internal/domain"
)

type PinStore struct {
	db DBTX
}

func NewPinStore(db DBTX) *PinStore {
	return &PinStore{db: db}
}

const pinColumns = `id, user_id, name, latitude, longitude, created_at`

func scanPin(row interface{ Scan(...any) error }) (*domain.Pin, error) {
	pin := &domain.Pin{}
	err := row.Scan(&pin.ID, &pin.OwnerID, &pin.Name, &pin.Latitude, &pin.Longitude, &pin.CreatedAt)
	return pin, err
}

func (s *PinStore) Create(ctx context.Context, ownerID, name string, latitude, longitude float64) (*domain.Pin, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pins (user_id, name, latitude, longitude) VALUES (?, ?, ?, ?)
	`, ownerID, name, latitude, longitude)
	if err != nil {
		return nil, domain.NewPersistenceError("create pin", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, domain.NewPersistenceError("get last insert id", err)
	}

	return s.GetByID(ctx, ownerID, id)
}

// GetByID returns the owner's pin, or nil when it does not exist.
func (s *PinStore) GetByID(ctx context.Context, ownerID string, id int64) (*domain.Pin, error) {
	pin, err := scanPin(s.db.QueryRowContext(ctx, `
		SELECT `+pinColumns+` FROM pins WHERE id = ? AND user_id = ?
	`, id, ownerID))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError("get pin", err)
	}

	return pin, nil
}

// List returns the owner's pins, newest first.
func (s *PinStore) List(ctx context.Context, ownerID string) ([]*domain.Pin, error) {
	return s.query(ctx, "list pins", `
		SELECT `+pinColumns+` FROM pins WHERE user_id = ? ORDER BY created_at DESC, id DESC
	`, ownerID)
}

// ListEmptyBefore returns pins of any owner that have no entries and were
// created before cutoff.
func (s *PinStore) ListEmptyBefore(ctx context.Context, cutoff time.Time) ([]*domain.Pin, error) {
	return s.query(ctx, "list empty pins", `
		SELECT `+pinColumns+` FROM pins p
		WHERE p.created_at < ?
		  AND NOT EXISTS (SELECT 1 FROM journal_entries e WHERE e.pin_id = p.id)
		ORDER BY p.id ASC
	`, formatTime(cutoff))
}

func (s *PinStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.Pin, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewPersistenceError(op, err)
	}
	defer closeRows(rows)

	var pins []*domain.Pin
	for rows.Next() {
		pin, err := scanPin(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("scan pin", err)
		}
		pins = append(pins, pin)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError(op, err)
	}

	return pins, nil
}

// Delete removes the owner's pin. The schema rejects deleting a pin that
// still has entries.
func (s *PinStore) Delete(ctx context.Context, ownerID string, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM pins WHERE id = ? AND user_id = ?
	`, id, ownerID)
	if err != nil {
		return domain.NewPersistenceError("delete pin", err)
	}

	n, err := rowsAffected(result, "delete pin")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.PinNotFound(id)
	}

	return nil
}

// DeleteByOwner removes every pin of the owner and returns how many were
// deleted. Entries must be removed first.
func (s *PinStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM pins WHERE user_id = ?
	`, ownerID)
	if err != nil {
		return 0, domain.NewPersistenceError("delete pins for owner", err)
	}
	return rowsAffected(result, "delete pins for owner")
}
