package service

import (
	"context"
	"time"

	"github.com/vbonduro/catchlogs/internal/domain"
	"github.com/vbonduro/catchlogs/internal/metrics"
	"github.com/vbonduro/catchlogs/internal/store"
)

type SweepResult struct {
	PinsRemoved   int
	PhotosRemoved int
}

// Sweep removes pins that never received an entry and photo blobs no entry
// references, once they are older than the pin grace period.
func (s *JournalService) Sweep(ctx context.Context, now time.Time) error {
	_, err := s.sweep(ctx, now)
	return err
}

func (s *JournalService) sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	cutoff := now.Add(-s.pinGrace)
	result := &SweepResult{}

	pins, err := s.journal.Pins.ListEmptyBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, pin := range pins {
		var deleted bool
		err := s.journal.InTx(ctx, func(tx *store.Tx) error {
			var err error
			deleted, err = cascadePin(ctx, tx, pin.OwnerID, pin.ID)
			return err
		})
		if err != nil {
			return result, err
		}
		if deleted {
			result.PinsRemoved++
		}
	}

	refs, err := s.journal.Entries.PhotoRefs(ctx)
	if err != nil {
		return result, err
	}
	referenced := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if path, ok := s.photos.StoragePath(&ref); ok {
			referenced[path] = struct{}{}
		}
	}

	objects, err := s.bucket.List(ctx, "")
	if err != nil {
		return result, &domain.StorageError{Op: "list", Err: err}
	}
	var orphans []string
	for _, obj := range objects {
		if _, ok := referenced[obj.Path]; ok || !obj.ModTime.Before(cutoff) {
			continue
		}
		orphans = append(orphans, obj.Path)
	}
	if len(orphans) > 0 {
		if err := s.bucket.Remove(ctx, orphans); err != nil {
			return result, &domain.StorageError{Op: "delete", Err: err}
		}
		result.PhotosRemoved = len(orphans)
	}

	metrics.SweepRemoved.WithLabelValues("pin").Add(float64(result.PinsRemoved))
	metrics.SweepRemoved.WithLabelValues("photo").Add(float64(result.PhotosRemoved))
	s.logger.Info("sweep finished", "pins_removed", result.PinsRemoved, "photos_removed", result.PhotosRemoved)
	return result, nil
}

type PurgeResult struct {
	EntriesDeleted int64
	PinsDeleted    int64
	PhotosRemoved  int
	// PhotoErr is set when some photos could not be removed. Rows are deleted
	// regardless.
	PhotoErr error
}

// PurgeOwner deletes every pin, entry and stored photo of the owner. Photo
// removal is best-effort.
func (s *JournalService) PurgeOwner(ctx context.Context, ownerID string) (result *PurgeResult, err error) {
	defer s.record("purge_owner", &err)

	if ownerID == "" {
		return nil, domain.NewValidationError("userId", "is required")
	}

	result = &PurgeResult{}
	paths, err := s.ownerPhotoPaths(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(paths) > 0 {
		if err := s.bucket.Remove(ctx, paths); err != nil {
			metrics.PhotoDeleteFailures.Inc()
			s.logger.Warn("failed to remove owner photos", "owner_id", ownerID, "error", err)
			result.PhotoErr = &domain.StorageError{Op: "delete", Err: err}
		} else {
			result.PhotosRemoved = len(paths)
		}
	}

	err = s.journal.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if result.EntriesDeleted, err = tx.Entries.DeleteByOwner(ctx, ownerID); err != nil {
			return err
		}
		result.PinsDeleted, err = tx.Pins.DeleteByOwner(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("owner data purged", "owner_id", ownerID,
		"entries", result.EntriesDeleted, "pins", result.PinsDeleted, "photos", result.PhotosRemoved)
	return result, nil
}

// ownerPhotoPaths collects the bucket paths referenced by the owner's entries
// and any objects stored under the owner's prefix.
func (s *JournalService) ownerPhotoPaths(ctx context.Context, ownerID string) ([]string, error) {
	seen := map[string]struct{}{}
	var paths []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}

	entries, err := s.journal.Entries.List(ctx, ownerID, store.ListFilter{})
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if p, ok := s.photos.StoragePath(e.PhotoRef); ok {
			add(p)
		}
	}

	objects, err := s.bucket.List(ctx, ownerID)
	if err != nil {
		// Unreferenced uploads are left for the sweep.
		s.logger.Warn("failed to list owner photos", "owner_id", ownerID, "error", err)
		return paths, nil
	}
	for _, obj := range objects {
		add(obj.Path)
	}
	return paths, nil
}
