package service

import (
	"cmp"
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/catchlogs/internal/domain"
	"github.com/vbonduro/catchlogs/internal/store"
)

// GetEntry returns the owner's entry with its photo URL resolved.
func (s *JournalService) GetEntry(ctx context.Context, ownerID string, entryID int64) (*domain.Entry, error) {
	return s.getEntry(ctx, ownerID, entryID)
}

func (s *JournalService) getEntry(ctx context.Context, ownerID string, entryID int64) (*domain.Entry, error) {
	entry, err := s.journal.Entries.GetByID(ctx, ownerID, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.EntryNotFound(entryID)
	}
	s.resolvePhoto(ctx, entry)
	return entry, nil
}

func (s *JournalService) ListEntries(ctx context.Context, ownerID string, filter store.ListFilter) ([]*domain.Entry, error) {
	entries, err := s.journal.Entries.List(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.Entry{}
	}
	for _, e := range entries {
		s.resolvePhoto(ctx, e)
	}
	return entries, nil
}

// ListPinsWithEntries returns the owner's pins, newest first, each with its
// entries newest first. Pins and entries are fetched concurrently.
func (s *JournalService) ListPinsWithEntries(ctx context.Context, ownerID string) ([]*domain.PinWithEntries, error) {
	var (
		pins    []*domain.Pin
		entries []*domain.Entry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pins, err = s.journal.Pins.List(gctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.ListEntries(gctx, ownerID, store.ListFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byPin := make(map[int64][]*domain.Entry, len(pins))
	for _, e := range entries {
		byPin[e.PinID] = append(byPin[e.PinID], e)
	}

	result := make([]*domain.PinWithEntries, 0, len(pins))
	for _, pin := range pins {
		pinEntries := byPin[pin.ID]
		if pinEntries == nil {
			pinEntries = []*domain.Entry{}
		}
		result = append(result, &domain.PinWithEntries{Pin: pin, Entries: pinEntries})
	}
	return result, nil
}

const (
	recentLimit = 5
	recordLimit = 3
)

type SpeciesCount struct {
	Species string `json:"fishType"`
	Count   int    `json:"count"`
}

type Stats struct {
	TotalEntries int             `json:"totalEntries"`
	TotalPins    int             `json:"totalPins"`
	Recent       []*domain.Entry `json:"recent"`
	MaxLength    *float64        `json:"maxLength"`
	Longest      []*domain.Entry `json:"longest"`
	MaxWeight    *float64        `json:"maxWeight"`
	Heaviest     []*domain.Entry `json:"heaviest"`
	Species      []SpeciesCount  `json:"species"`
}

// Stats summarizes the owner's journal: the most recent entries, the longest
// and heaviest catches tied at the maximum, and counts per species.
func (s *JournalService) Stats(ctx context.Context, ownerID string) (*Stats, error) {
	pins, err := s.ListPinsWithEntries(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	entries := []*domain.Entry{}
	for _, p := range pins {
		entries = append(entries, p.Entries...)
	}
	slices.SortStableFunc(entries, func(a, b *domain.Entry) int {
		if c := b.DateTime.Compare(a.DateTime); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	stats := &Stats{
		TotalEntries: len(entries),
		TotalPins:    len(pins),
		Recent:       entries[:min(recentLimit, len(entries))],
		Species:      []SpeciesCount{},
	}
	stats.MaxLength, stats.Longest = topBy(entries, func(e *domain.Entry) *float64 { return e.Length })
	stats.MaxWeight, stats.Heaviest = topBy(entries, func(e *domain.Entry) *float64 { return e.Weight })

	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Species]++
	}
	for species, n := range counts {
		stats.Species = append(stats.Species, SpeciesCount{Species: species, Count: n})
	}
	slices.SortFunc(stats.Species, func(a, b SpeciesCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Species, b.Species)
	})

	return stats, nil
}

// topBy returns the maximum positive value of metric and up to recordLimit
// entries that share it, in the order given.
func topBy(entries []*domain.Entry, metric func(*domain.Entry) *float64) (*float64, []*domain.Entry) {
	var best *float64
	for _, e := range entries {
		if v := metric(e); v != nil && *v > 0 && (best == nil || *v > *best) {
			best = v
		}
	}
	if best == nil {
		return nil, []*domain.Entry{}
	}

	top := []*domain.Entry{}
	for _, e := range entries {
		if v := metric(e); v != nil && *v == *best && len(top) < recordLimit {
			top = append(top, e)
		}
	}
	return best, top
}

func (s *JournalService) resolvePhoto(ctx context.Context, e *domain.Entry) {
	if e != nil {
		e.PhotoURL = s.photos.ResolveURL(ctx, e.PhotoRef)
	}
}
