// Package session keeps per-owner UI state that is not part of the journal:
// the last-used tackle and whether the tackle field is shown.
package session

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	tackleKeyPrefix  = "session-tackle:"
	visibleKeyPrefix = "session-tackle-visible:"
)

type Store struct {
	cache *cache.Cache
}

// New returns a Store whose values expire ttl after they were last set;
// reading a value does not extend it. A ttl of zero keeps values until
// cleared.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		return &Store{cache: cache.New(cache.NoExpiration, 0)}
	}
	return &Store{cache: cache.New(ttl, 2*ttl)}
}

// Tackle returns the owner's last-used tackle, or "" when none is saved.
func (s *Store) Tackle(ownerID string) string {
	v, ok := s.cache.Get(tackleKeyPrefix + ownerID)
	if !ok {
		return ""
	}
	return v.(string)
}

func (s *Store) SetTackle(ownerID, tackle string) {
	s.cache.SetDefault(tackleKeyPrefix+ownerID, tackle)
}

// Visible reports whether the tackle field is shown. It defaults to true.
func (s *Store) Visible(ownerID string) bool {
	v, ok := s.cache.Get(visibleKeyPrefix + ownerID)
	if !ok {
		return true
	}
	return v.(bool)
}

func (s *Store) SetVisible(ownerID string, visible bool) {
	s.cache.SetDefault(visibleKeyPrefix+ownerID, visible)
}

// Clear drops every session value held for the owner.
func (s *Store) Clear(ownerID string) {
	s.cache.Delete(tackleKeyPrefix + ownerID)
	s.cache.Delete(visibleKeyPrefix + ownerID)
}
