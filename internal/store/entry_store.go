package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vbonduro/catchlogs/internal/domain"
)

type EntryStore struct {
	db DBTX
}

func NewEntryStore(db DBTX) *EntryStore {
	return &EntryStore{db: db}
}

const entryColumns = `id, pin_id, user_id, fish_type, length, weight, tackle, notes, photo_url, date_time,
	temperature, wind_speed, wind_direction, cloud_coverage, visibility, weather_condition, weather_description,
	created_at`

func scanEntry(row interface{ Scan(...any) error }) (*domain.Entry, error) {
	e := &domain.Entry{}
	w := &e.Weather
	err := row.Scan(&e.ID, &e.PinID, &e.OwnerID, &e.Species, &e.Length, &e.Weight, &e.Tackle, &e.Notes,
		&e.PhotoRef, &e.DateTime,
		&w.Temperature, &w.WindSpeed, &w.WindDirection, &w.CloudCoverage, &w.Visibility, &w.Condition, &w.Description,
		&e.CreatedAt)
	return e, err
}

// Create inserts e and returns the stored row. ID and CreatedAt on e are
// ignored.
func (s *EntryStore) Create(ctx context.Context, e *domain.Entry) (*domain.Entry, error) {
	w := e.Weather
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (
			pin_id, user_id, fish_type, length, weight, tackle, notes, photo_url, date_time,
			temperature, wind_speed, wind_direction, cloud_coverage, visibility, weather_condition, weather_description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.PinID, e.OwnerID, e.Species, e.Length, e.Weight, e.Tackle, e.Notes, e.PhotoRef, formatTime(e.DateTime),
		w.Temperature, w.WindSpeed, w.WindDirection, w.CloudCoverage, w.Visibility, w.Condition, w.Description)
	if err != nil {
		return nil, domain.NewPersistenceError("create journal entry", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, domain.NewPersistenceError("get last insert id", err)
	}

	return s.GetByID(ctx, e.OwnerID, id)
}

// GetByID returns the owner's entry, or nil when it does not exist.
func (s *EntryStore) GetByID(ctx context.Context, ownerID string, id int64) (*domain.Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM journal_entries WHERE id = ? AND user_id = ?
	`, id, ownerID))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError("get journal entry", err)
	}

	return e, nil
}

// ListFilter narrows List. Zero values mean no restriction; results are
// ordered by capture time, newest first unless Oldest is set.
type ListFilter struct {
	PinID  *int64
	From   *time.Time
	To     *time.Time
	Oldest bool
}

func (s *EntryStore) List(ctx context.Context, ownerID string, f ListFilter) ([]*domain.Entry, error) {
	where := []string{"user_id = ?"}
	args := []any{ownerID}
	if f.PinID != nil {
		where = append(where, "pin_id = ?")
		args = append(args, *f.PinID)
	}
	if f.From != nil {
		where = append(where, "date_time >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "date_time <= ?")
		args = append(args, formatTime(*f.To))
	}

	order := "date_time DESC, id DESC"
	if f.Oldest {
		order = "date_time ASC, id ASC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY `+order, args...)
	if err != nil {
		return nil, domain.NewPersistenceError("list journal entries", err)
	}
	defer closeRows(rows)

	var entries []*domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("scan journal entry", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("list journal entries", err)
	}

	return entries, nil
}

// EntryFields are the user-editable columns of an entry, excluding the photo
// and the weather snapshot.
type EntryFields struct {
	Species  string
	Length   *float64
	Weight   *float64
	Tackle   string
	Notes    *string
	DateTime time.Time
}

func (s *EntryStore) Update(ctx context.Context, ownerID string, id int64, f EntryFields) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE journal_entries
		SET fish_type = ?, length = ?, weight = ?, tackle = ?, notes = ?, date_time = ?
		WHERE id = ? AND user_id = ?
	`, f.Species, f.Length, f.Weight, f.Tackle, f.Notes, formatTime(f.DateTime), id, ownerID)
	if err != nil {
		return domain.NewPersistenceError("update journal entry", err)
	}
	return s.expectOne(result, "update journal entry", id)
}

// SetPhoto stores ref as the entry's photo reference; nil clears it.
func (s *EntryStore) SetPhoto(ctx context.Context, ownerID string, id int64, ref *string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE journal_entries SET photo_url = ? WHERE id = ? AND user_id = ?
	`, ref, id, ownerID)
	if err != nil {
		return domain.NewPersistenceError("update entry photo", err)
	}
	return s.expectOne(result, "update entry photo", id)
}

// SetPin repoints the entry at pinID.
func (s *EntryStore) SetPin(ctx context.Context, ownerID string, id, pinID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE journal_entries SET pin_id = ? WHERE id = ? AND user_id = ?
	`, pinID, id, ownerID)
	if err != nil {
		return domain.NewPersistenceError("move journal entry", err)
	}
	return s.expectOne(result, "move journal entry", id)
}

func (s *EntryStore) Delete(ctx context.Context, ownerID string, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM journal_entries WHERE id = ? AND user_id = ?
	`, id, ownerID)
	if err != nil {
		return domain.NewPersistenceError("delete journal entry", err)
	}
	return s.expectOne(result, "delete journal entry", id)
}

// DeleteByOwner removes every entry of the owner and returns how many were
// deleted.
func (s *EntryStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM journal_entries WHERE user_id = ?
	`, ownerID)
	if err != nil {
		return 0, domain.NewPersistenceError("delete entries for owner", err)
	}
	return rowsAffected(result, "delete entries for owner")
}

// CountByPin returns how many entries reference pinID.
func (s *EntryStore) CountByPin(ctx context.Context, pinID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM journal_entries WHERE pin_id = ?
	`, pinID).Scan(&n)
	if err != nil {
		return 0, domain.NewPersistenceError("count entries for pin", err)
	}
	return n, nil
}

// PhotoRefs returns every stored photo reference across all owners.
func (s *EntryStore) PhotoRefs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT photo_url FROM journal_entries WHERE photo_url IS NOT NULL AND photo_url <> ''
	`)
	if err != nil {
		return nil, domain.NewPersistenceError("list photo references", err)
	}
	defer closeRows(rows)

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, domain.NewPersistenceError("scan photo reference", err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("list photo references", err)
	}

	return refs, nil
}

func (s *EntryStore) expectOne(result sql.Result, op string, id int64) error {
	n, err := rowsAffected(result, op)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.EntryNotFound(id)
	}
	return nil
}
