package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vbonduro/catchlogs/internal/domain"
	"github.com/vbonduro/catchlogs/internal/service"
	"github.com/vbonduro/catchlogs/internal/store"
	"github.com/vbonduro/catchlogs/internal/weather"
)

// entryView adds display labels for the weather snapshot.
type entryView struct {
	*domain.Entry
	WindCompass     *string `json:"windCompass,omitempty"`
	VisibilityLabel *string `json:"visibilityLabel,omitempty"`
}

func newEntryView(e *domain.Entry) *entryView {
	v := &entryView{Entry: e}
	if d := e.Weather.WindDirection; d != nil {
		c := weather.Compass(*d)
		v.WindCompass = &c
	}
	if m := e.Weather.Visibility; m != nil {
		l := weather.FormatVisibility(*m)
		v.VisibilityLabel = &l
	}
	return v
}

func entryViews(entries []*domain.Entry) []*entryView {
	views := make([]*entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e))
	}
	return views
}

// warning renders a non-fatal photo failure for the response body.
func warning(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var filter store.ListFilter
	if raw := q.Get("pin"); raw != "" {
		pinID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, "invalid pin id")
			return
		}
		filter.PinID = &pinID
	}
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := q.Get(key); raw != "" {
			t, err := weather.ParseDateTime(raw, s.loc)
			if err != nil {
				badRequest(w, "invalid "+key)
				return
			}
			*dst = &t
		}
	}
	filter.Oldest = strings.EqualFold(q.Get("order"), "oldest")

	entries, err := s.service.ListEntries(r.Context(), owner, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entryViews(entries))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	entryID, err := parseID(r)
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	entry, err := s.service.GetEntry(r.Context(), owner, entryID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntryView(entry))
}

type createEntryResponse struct {
	Entry            *entryView `json:"entry"`
	WeatherAvailable bool       `json:"weatherAvailable"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	if err := parseForm(w, r); err != nil {
		badRequest(w, "failed to parse form")
		return
	}

	pinID, err := strconv.ParseInt(r.FormValue("pinId"), 10, 64)
	if err != nil {
		badRequest(w, "invalid pin id")
		return
	}
	in, err := s.entryInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	photo, err := s.readPhoto(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.service.CreateEntry(r.Context(), service.CreateEntryInput{
		OwnerID:    owner,
		PinID:      pinID,
		EntryInput: in,
		Photo:      photo,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.sessions.SetTackle(owner, result.Entry.Tackle)
	writeJSON(w, http.StatusCreated, createEntryResponse{
		Entry:            newEntryView(result.Entry),
		WeatherAvailable: result.WeatherAvailable,
	})
}

type updateEntryResponse struct {
	Entry        *entryView `json:"entry"`
	PhotoWarning string     `json:"photoWarning,omitempty"`
}

// handleUpdateEntry replaces the entry's fields. A "photo" file replaces the
// photo; otherwise "photoUrl" names the photo to keep and an empty value
// removes it.
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	entryID, err := parseID(r)
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	if err := parseForm(w, r); err != nil {
		badRequest(w, "failed to parse form")
		return
	}

	in, err := s.entryInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	photo, err := s.readPhoto(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var keep *string
	if ref := strings.TrimSpace(r.FormValue("photoUrl")); ref != "" {
		keep = &ref
	}

	result, err := s.service.UpdateEntry(r.Context(), service.UpdateEntryInput{
		OwnerID:    owner,
		EntryID:    entryID,
		EntryInput: in,
		Photo:      photo,
		PhotoRef:   keep,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateEntryResponse{
		Entry:        newEntryView(result.Entry),
		PhotoWarning: warning(result.PhotoErr),
	})
}

type deleteEntryResponse struct {
	PinID        int64  `json:"pinId"`
	PinDeleted   bool   `json:"pinDeleted"`
	PhotoWarning string `json:"photoWarning,omitempty"`
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	entryID, err := parseID(r)
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	result, err := s.service.DeleteEntry(r.Context(), owner, entryID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteEntryResponse{
		PinID:        result.PinID,
		PinDeleted:   result.PinDeleted,
		PhotoWarning: warning(result.PhotoErr),
	})
}

type moveEntryResponse struct {
	Entry         *entryView  `json:"entry"`
	Pin           *domain.Pin `json:"pin"`
	OldPinID      int64       `json:"oldPinId"`
	OldPinDeleted bool        `json:"oldPinDeleted"`
}

func (s *Server) handleMoveEntry(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	entryID, err := parseID(r)
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	req, err := decodeCoordinates(w, r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		badRequest(w, "latitude and longitude are required")
		return
	}

	result, err := s.service.MoveEntry(r.Context(), service.MoveEntryInput{
		OwnerID:   owner,
		EntryID:   entryID,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moveEntryResponse{
		Entry:         newEntryView(result.Entry),
		Pin:           result.NewPin,
		OldPinID:      result.OldPinID,
		OldPinDeleted: result.OldPinDeleted,
	})
}

type statsResponse struct {
	*service.Stats
	Recent   []*entryView `json:"recent"`
	Longest  []*entryView `json:"longest"`
	Heaviest []*entryView `json:"heaviest"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	stats, err := s.service.Stats(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:    stats,
		Recent:   entryViews(stats.Recent),
		Longest:  entryViews(stats.Longest),
		Heaviest: entryViews(stats.Heaviest),
	})
}
