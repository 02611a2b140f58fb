package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vbonduro/catchlogs/internal/domain"
	"github.com/vbonduro/catchlogs/internal/metrics"
	"github.com/vbonduro/catchlogs/internal/objectstore"
	"github.com/vbonduro/catchlogs/internal/photo"
	"github.com/vbonduro/catchlogs/internal/store"
)

// weatherResolver is the subset of weather.Resolver that JournalService requires.
type weatherResolver interface {
	Resolve(ctx context.Context, lat, lng float64, at time.Time) *domain.WeatherSnapshot
}

// photoManager is the subset of photo.Manager that JournalService requires.
type photoManager interface {
	Upload(ctx context.Context, ownerID, filename, contentType string, r io.Reader) (string, error)
	ResolveURL(ctx context.Context, stored *string) *string
	Delete(ctx context.Context, stored *string) error
	Reassign(ctx context.Context, repo photo.EntryPhotos, ownerID string, entryID int64, next *string) (*string, error)
	StoragePath(stored *string) (string, bool)
}

type JournalService struct {
	journal  *store.Journal
	photos   photoManager
	bucket   objectstore.Bucket
	weather  weatherResolver
	validate *validator.Validate
	pinGrace time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewJournalService(
	journal *store.Journal,
	photos photoManager,
	bucket objectstore.Bucket,
	weather weatherResolver,
	pinGrace time.Duration,
	logger *slog.Logger,
) *JournalService {
	return &JournalService{
		journal:  journal,
		photos:   photos,
		bucket:   bucket,
		weather:  weather,
		validate: newValidator(),
		pinGrace: pinGrace,
		now:      time.Now,
		logger:   logger,
	}
}

type CreatePinInput struct {
	OwnerID   string  `json:"userId" validate:"required"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// CreatePin stores a new pin. A blank name defaults to "Location {date}".
func (s *JournalService) CreatePin(ctx context.Context, in CreatePinInput) (pin *domain.Pin, err error) {
	defer s.record("create_pin", &err)

	if err := s.validateStruct(in); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = s.defaultPinName()
	}

	pin, err = s.journal.Pins.Create(ctx, in.OwnerID, name, in.Latitude, in.Longitude)
	if err != nil {
		return nil, err
	}
	s.logger.Info("pin created", "pin_id", pin.ID, "owner_id", in.OwnerID)
	return pin, nil
}

// AbandonPin deletes a pin that never received an entry.
func (s *JournalService) AbandonPin(ctx context.Context, ownerID string, pinID int64) (err error) {
	defer s.record("abandon_pin", &err)

	err = s.journal.InTx(ctx, func(tx *store.Tx) error {
		pin, err := tx.Pins.GetByID(ctx, ownerID, pinID)
		if err != nil {
			return err
		}
		if pin == nil {
			return domain.PinNotFound(pinID)
		}
		n, err := tx.Entries.CountByPin(ctx, pinID)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.NewValidationError("pin", fmt.Sprintf("has %d entries and cannot be abandoned", n))
		}
		return tx.Pins.Delete(ctx, ownerID, pinID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("pin abandoned", "pin_id", pinID, "owner_id", ownerID)
	return nil
}

// EntryInput holds the user-editable fields of an entry.
type EntryInput struct {
	Species  string    `json:"fishType" validate:"required"`
	Length   *float64  `json:"length" validate:"omitempty,finite,gt=0"`
	Weight   *float64  `json:"weight" validate:"omitempty,finite,gt=0"`
	Tackle   string    `json:"tackle" validate:"required"`
	Notes    *string   `json:"notes"`
	DateTime time.Time `json:"dateTime" validate:"required"`
}

func (in EntryInput) fields() store.EntryFields {
	return store.EntryFields{
		Species:  in.Species,
		Length:   in.Length,
		Weight:   in.Weight,
		Tackle:   in.Tackle,
		Notes:    in.Notes,
		DateTime: in.DateTime,
	}
}

// PhotoUpload is an image supplied with an entry mutation.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

type CreateEntryInput struct {
	OwnerID string `json:"userId" validate:"required"`
	PinID   int64  `json:"pinId" validate:"gt=0"`
	EntryInput
	Photo *PhotoUpload `json:"-"`
}

type CreateEntryResult struct {
	Entry *domain.Entry
	// WeatherAvailable is false when the lookup failed and the entry was saved
	// without a snapshot.
	WeatherAvailable bool
}

// CreateEntry validates, uploads the photo, resolves weather and persists the
// entry. Nothing is uploaded when validation fails.
func (s *JournalService) CreateEntry(ctx context.Context, in CreateEntryInput) (result *CreateEntryResult, err error) {
	defer s.record("create_entry", &err)

	in.normalize()
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	pin, err := s.journal.Pins.GetByID(ctx, in.OwnerID, in.PinID)
	if err != nil {
		return nil, err
	}
	if pin == nil {
		return nil, domain.PinNotFound(in.PinID)
	}

	var photoRef *string
	if in.Photo != nil {
		path, err := s.photos.Upload(ctx, in.OwnerID, in.Photo.Filename, in.Photo.ContentType, in.Photo.Data)
		if err != nil {
			return nil, err
		}
		photoRef = &path
	}

	snapshot := s.weather.Resolve(ctx, pin.Latitude, pin.Longitude, in.DateTime)
	result = &CreateEntryResult{WeatherAvailable: snapshot != nil}
	if snapshot == nil {
		s.logger.Info("weather unavailable, saving entry without snapshot", "pin_id", pin.ID)
		snapshot = &domain.WeatherSnapshot{}
	}

	err = s.journal.InTx(ctx, func(tx *store.Tx) error {
		// The pin may have been cascaded away while weather resolved.
		current, err := tx.Pins.GetByID(ctx, in.OwnerID, in.PinID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.PinNotFound(in.PinID)
		}
		result.Entry, err = tx.Entries.Create(ctx, &domain.Entry{
			PinID:    in.PinID,
			OwnerID:  in.OwnerID,
			Species:  in.Species,
			Length:   in.Length,
			Weight:   in.Weight,
			Tackle:   in.Tackle,
			Notes:    in.Notes,
			PhotoRef: photoRef,
			DateTime: in.DateTime,
			Weather:  *snapshot,
		})
		return err
	})
	if err != nil {
		s.discardUpload(ctx, photoRef)
		return nil, err
	}

	s.resolvePhoto(ctx, result.Entry)
	s.logger.Info("entry created", "entry_id", result.Entry.ID, "pin_id", in.PinID, "weather", result.WeatherAvailable)
	return result, nil
}

type UpdateEntryInput struct {
	OwnerID string `json:"userId" validate:"required"`
	EntryID int64  `json:"id" validate:"gt=0"`
	EntryInput
	// Photo replaces the current photo when set. Otherwise PhotoRef is the
	// reference to keep: the stored value or a URL previously returned for
	// it. Both nil removes the photo.
	Photo    *PhotoUpload `json:"-"`
	PhotoRef *string      `json:"photoUrl"`
}

type UpdateEntryResult struct {
	Entry *domain.Entry
	// PhotoErr is set when the replaced photo could not be deleted. The
	// update itself succeeded.
	PhotoErr error
}

// UpdateEntry replaces the entry's editable fields and photo. The weather
// snapshot is never re-resolved.
func (s *JournalService) UpdateEntry(ctx context.Context, in UpdateEntryInput) (result *UpdateEntryResult, err error) {
	defer s.record("update_entry", &err)

	in.normalize()
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	current, err := s.journal.Entries.GetByID(ctx, in.OwnerID, in.EntryID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.EntryNotFound(in.EntryID)
	}

	next := in.PhotoRef
	var uploaded *string
	if in.Photo != nil {
		path, err := s.photos.Upload(ctx, in.OwnerID, in.Photo.Filename, in.Photo.ContentType, in.Photo.Data)
		if err != nil {
			return nil, err
		}
		uploaded, next = &path, &path
	}

	var stale *string
	err = s.journal.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.Entries.Update(ctx, in.OwnerID, in.EntryID, in.fields()); err != nil {
			return err
		}
		var err error
		stale, err = s.photos.Reassign(ctx, tx.Entries, in.OwnerID, in.EntryID, next)
		return err
	})
	if err != nil {
		s.discardUpload(ctx, uploaded)
		return nil, err
	}

	// The old blob goes only once the new reference is committed.
	result = &UpdateEntryResult{}
	if err := s.photos.Delete(ctx, stale); err != nil {
		metrics.PhotoDeleteFailures.Inc()
		s.logger.Warn("failed to delete replaced photo", "entry_id", in.EntryID, "error", err)
		result.PhotoErr = err
	}

	result.Entry, err = s.getEntry(ctx, in.OwnerID, in.EntryID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("entry updated", "entry_id", in.EntryID)
	return result, nil
}

type DeleteEntryResult struct {
	PinID      int64
	PinDeleted bool
	// PhotoErr is set when the photo could not be deleted. The entry was
	// still removed.
	PhotoErr error
}

// DeleteEntry removes the entry, its photo (best-effort) and its pin when no
// entries remain on it.
func (s *JournalService) DeleteEntry(ctx context.Context, ownerID string, entryID int64) (result *DeleteEntryResult, err error) {
	defer s.record("delete_entry", &err)

	entry, err := s.journal.Entries.GetByID(ctx, ownerID, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.EntryNotFound(entryID)
	}

	result = &DeleteEntryResult{PinID: entry.PinID}
	if err := s.photos.Delete(ctx, entry.PhotoRef); err != nil {
		metrics.PhotoDeleteFailures.Inc()
		s.logger.Warn("failed to delete entry photo", "entry_id", entryID, "error", err)
		result.PhotoErr = err
	}

	err = s.journal.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.Entries.Delete(ctx, ownerID, entryID); err != nil {
			return err
		}
		deleted, err := cascadePin(ctx, tx, ownerID, entry.PinID)
		result.PinDeleted = deleted
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry deleted", "entry_id", entryID, "pin_id", entry.PinID, "pin_deleted", result.PinDeleted)
	return result, nil
}

type MoveEntryInput struct {
	OwnerID   string  `json:"userId" validate:"required"`
	EntryID   int64   `json:"id" validate:"gt=0"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

type MoveEntryResult struct {
	Entry         *domain.Entry
	NewPin        *domain.Pin
	OldPinID      int64
	OldPinDeleted bool
}

// MoveEntry puts the entry on a freshly created pin at the new coordinates.
// Pins are never relocated; the old pin is deleted if it ends up empty.
func (s *JournalService) MoveEntry(ctx context.Context, in MoveEntryInput) (result *MoveEntryResult, err error) {
	defer s.record("move_entry", &err)

	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	result = &MoveEntryResult{}
	err = s.journal.InTx(ctx, func(tx *store.Tx) error {
		entry, err := tx.Entries.GetByID(ctx, in.OwnerID, in.EntryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return domain.EntryNotFound(in.EntryID)
		}
		result.OldPinID = entry.PinID

		result.NewPin, err = tx.Pins.Create(ctx, in.OwnerID, s.defaultPinName(), in.Latitude, in.Longitude)
		if err != nil {
			return err
		}
		if err := tx.Entries.SetPin(ctx, in.OwnerID, in.EntryID, result.NewPin.ID); err != nil {
			return err
		}
		result.OldPinDeleted, err = cascadePin(ctx, tx, in.OwnerID, entry.PinID)
		if err != nil {
			return err
		}
		result.Entry, err = tx.Entries.GetByID(ctx, in.OwnerID, in.EntryID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.resolvePhoto(ctx, result.Entry)
	s.logger.Info("entry moved", "entry_id", in.EntryID,
		"old_pin_id", result.OldPinID, "new_pin_id", result.NewPin.ID, "old_pin_deleted", result.OldPinDeleted)
	return result, nil
}

// cascadePin deletes pinID when no entries reference it and reports whether
// it did.
func cascadePin(ctx context.Context, tx *store.Tx, ownerID string, pinID int64) (bool, error) {
	n, err := tx.Entries.CountByPin(ctx, pinID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := tx.Pins.Delete(ctx, ownerID, pinID); err != nil {
		var refErr *domain.ReferenceError
		if errors.As(err, &refErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *JournalService) discardUpload(ctx context.Context, ref *string) {
	if ref == nil {
		return
	}
	if err := s.photos.Delete(ctx, ref); err != nil {
		metrics.PhotoDeleteFailures.Inc()
		s.logger.Warn("failed to delete photo after failed save", "path", *ref, "error", err)
	}
}

func (s *JournalService) defaultPinName() string {
	return "Location " + s.now().Format("1/2/2006")
}

func (s *JournalService) record(op string, err *error) {
	metrics.JournalOperations.WithLabelValues(op, metrics.Result(*err)).Inc()
}
