package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vbonduro/catchlogs/internal/service"
)

type pinRequest struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// decodeCoordinates reads a pinRequest from a JSON or form body.
func decodeCoordinates(w http.ResponseWriter, r *http.Request) (pinRequest, error) {
	var req pinRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	if err := parseForm(w, r); err != nil {
		return req, err
	}
	req.Name = r.FormValue("name")
	lat, err := requiredFloat(r, "latitude")
	if err != nil {
		return req, err
	}
	lng, err := requiredFloat(r, "longitude")
	if err != nil {
		return req, err
	}
	req.Latitude, req.Longitude = &lat, &lng
	return req, nil
}

func (s *Server) handleListPins(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	pins, err := s.service.ListPinsWithEntries(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pins)
}

func (s *Server) handleCreatePin(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
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

	pin, err := s.service.CreatePin(r.Context(), service.CreatePinInput{
		OwnerID:   owner,
		Name:      req.Name,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pin)
}

// handleAbandonPin discards a pin the user dropped but never saved an entry
// to. Pins that hold entries are rejected.
func (s *Server) handleAbandonPin(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	pinID, err := parseID(r)
	if err != nil {
		badRequest(w, "invalid pin id")
		return
	}
	if err := s.service.AbandonPin(r.Context(), owner, pinID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
